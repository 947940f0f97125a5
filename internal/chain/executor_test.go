package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/avdeyev/dexflow-bot/internal/domain"
)

const testPrivateKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

type fakeBackend struct {
	chainID        *big.Int
	balance        *big.Int
	nonce          uint64
	gasEstimate    uint64
	tipCap         *big.Int
	baseFee        *big.Int
	callOutput     []byte
	callErr        error
	sendErr        error
	receiptStatus  uint64
	receiptAfter   int
	receiptPolls   int
	sentTxs        []*types.Transaction
	estimateCalled bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		chainID:       big.NewInt(1),
		balance:       big.NewInt(0),
		nonce:         7,
		gasEstimate:   50_000,
		tipCap:        big.NewInt(2_000_000_000),
		baseFee:       big.NewInt(10_000_000_000),
		receiptStatus: types.ReceiptStatusSuccessful,
	}
}

func (b *fakeBackend) ChainID(ctx context.Context) (*big.Int, error) { return b.chainID, nil }

func (b *fakeBackend) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	return b.balance, nil
}

func (b *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if b.callErr != nil {
		return nil, b.callErr
	}
	return b.callOutput, nil
}

func (b *fakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	b.estimateCalled = true
	return b.gasEstimate, nil
}

func (b *fakeBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) { return b.tipCap, nil }

func (b *fakeBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{BaseFee: b.baseFee}, nil
}

func (b *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return b.nonce, nil
}

func (b *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sentTxs = append(b.sentTxs, tx)
	return nil
}

func (b *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	b.receiptPolls++
	if b.receiptPolls <= b.receiptAfter {
		return nil, ethereum.NotFound
	}
	return &types.Receipt{Status: b.receiptStatus, GasUsed: 46_000, TxHash: txHash}, nil
}

func newTestExecutor(t *testing.T, backend *fakeBackend) *TxExecutor {
	t.Helper()

	signer, err := NewLocalSigner(testPrivateKey)
	if err != nil {
		t.Fatalf("build signer: %v", err)
	}

	return NewTxExecutor(backend, signer, testLogger(),
		WithReceiptWait(time.Millisecond, time.Second))
}

func TestTxExecutor_Estimate(t *testing.T) {
	backend := newFakeBackend()
	executor := newTestExecutor(t, backend)

	estimate, err := executor.Estimate(context.Background(), testToken, []byte{0x01}, nil)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if estimate.GasLimit != 60_000 {
		t.Errorf("expected padded gas limit 60000, got %d", estimate.GasLimit)
	}
	if estimate.MaxPriorityFeePerGas.Cmp(backend.tipCap) != 0 {
		t.Errorf("unexpected tip cap %s", estimate.MaxPriorityFeePerGas)
	}

	// fee cap = 2*baseFee + tipCap
	expectedFeeCap := big.NewInt(22_000_000_000)
	if estimate.MaxFeePerGas.Cmp(expectedFeeCap) != 0 {
		t.Errorf("expected fee cap %s, got %s", expectedFeeCap, estimate.MaxFeePerGas)
	}
}

func TestTxExecutor_EstimateSimulationRevert(t *testing.T) {
	backend := newFakeBackend()
	backend.callErr = errors.New("execution reverted")
	executor := newTestExecutor(t, backend)

	_, err := executor.Estimate(context.Background(), testToken, []byte{0x01}, nil)
	if err == nil {
		t.Fatal("expected error when simulation reverts")
	}
	if backend.estimateCalled {
		t.Error("gas estimation must not run after a failed simulation")
	}
}

func TestTxExecutor_SubmitSuccess(t *testing.T) {
	backend := newFakeBackend()
	backend.receiptAfter = 2
	executor := newTestExecutor(t, backend)

	receipt, err := executor.Submit(context.Background(), TxRequest{
		To:                   testToken,
		Data:                 []byte{0x01},
		GasLimit:             60_000,
		MaxFeePerGas:         big.NewInt(22_000_000_000),
		MaxPriorityFeePerGas: big.NewInt(2_000_000_000),
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}

	if receipt.Status != domain.TransactionStatusSuccess {
		t.Errorf("expected success status, got %s", receipt.Status)
	}
	if receipt.GasUsed != 46_000 {
		t.Errorf("expected gas used 46000, got %d", receipt.GasUsed)
	}
	if len(backend.sentTxs) != 1 {
		t.Fatalf("expected 1 broadcast transaction, got %d", len(backend.sentTxs))
	}

	sent := backend.sentTxs[0]
	if sent.Nonce() != backend.nonce {
		t.Errorf("expected nonce %d, got %d", backend.nonce, sent.Nonce())
	}
	if sent.Type() != types.DynamicFeeTxType {
		t.Errorf("expected dynamic fee transaction, got type %d", sent.Type())
	}
	if receipt.Hash != sent.Hash().Hex() {
		t.Errorf("receipt hash %s does not match sent transaction %s", receipt.Hash, sent.Hash().Hex())
	}
}

func TestTxExecutor_SubmitRevertedReturnsFailedReceipt(t *testing.T) {
	backend := newFakeBackend()
	backend.receiptStatus = types.ReceiptStatusFailed
	executor := newTestExecutor(t, backend)

	receipt, err := executor.Submit(context.Background(), TxRequest{
		To:                   testToken,
		GasLimit:             21_000,
		Value:                big.NewInt(1),
		MaxFeePerGas:         big.NewInt(22_000_000_000),
		MaxPriorityFeePerGas: big.NewInt(2_000_000_000),
	})
	if err != nil {
		t.Fatalf("a mined revert must return a receipt, not an error, got %v", err)
	}
	if receipt.Status != domain.TransactionStatusFailed {
		t.Errorf("expected failed status, got %s", receipt.Status)
	}
}

func TestTxExecutor_SubmitReceiptTimeout(t *testing.T) {
	backend := newFakeBackend()
	backend.receiptAfter = 1 << 30
	signer, err := NewLocalSigner(testPrivateKey)
	if err != nil {
		t.Fatalf("build signer: %v", err)
	}
	executor := NewTxExecutor(backend, signer, testLogger(),
		WithReceiptWait(time.Millisecond, 20*time.Millisecond))

	_, err = executor.Submit(context.Background(), TxRequest{
		To:                   testToken,
		GasLimit:             21_000,
		MaxFeePerGas:         big.NewInt(22_000_000_000),
		MaxPriorityFeePerGas: big.NewInt(2_000_000_000),
	})
	if !errors.Is(err, ErrReceiptTimeout) {
		t.Fatalf("expected receipt timeout, got %v", err)
	}
}
