package chain

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/avdeyev/dexflow-bot/internal/domain"
	apperrors "github.com/avdeyev/dexflow-bot/internal/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeAllowanceReader struct {
	allowances []*big.Int
	calls      int
	err        error
}

func (f *fakeAllowanceReader) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	if f.err != nil {
		return nil, f.err
	}

	idx := f.calls
	if idx >= len(f.allowances) {
		idx = len(f.allowances) - 1
	}
	f.calls++
	return new(big.Int).Set(f.allowances[idx]), nil
}

type fakeExecutor struct {
	estimateErr error
	submitErr   error
	status      domain.TransactionStatus
	submitted   []TxRequest
}

func (f *fakeExecutor) Estimate(ctx context.Context, to common.Address, data []byte, value *big.Int) (*FeeEstimate, error) {
	if f.estimateErr != nil {
		return nil, f.estimateErr
	}

	return &FeeEstimate{
		GasLimit:             60_000,
		MaxFeePerGas:         big.NewInt(30_000_000_000),
		MaxPriorityFeePerGas: big.NewInt(2_000_000_000),
	}, nil
}

func (f *fakeExecutor) Submit(ctx context.Context, req TxRequest) (*Receipt, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}

	f.submitted = append(f.submitted, req)
	status := f.status
	if status == "" {
		status = domain.TransactionStatusSuccess
	}
	return &Receipt{Hash: "0xabc", Status: status, GasUsed: 46_000}, nil
}

var (
	testToken   = common.HexToAddress("0x6b175474e89094c44da98b954eedeac495271d0f")
	testSpender = common.HexToAddress("0x1111111254eeb25477b68fb85ed929f73a960582")
	testOwner   = common.HexToAddress("0x9fc3da866e7df3a1c57ade1a97c9f00a70f010c8")
)

func TestApprover_SufficientAllowanceSkipsApproval(t *testing.T) {
	reader := &fakeAllowanceReader{allowances: []*big.Int{big.NewInt(1000)}}
	executor := &fakeExecutor{}
	approver := NewApprover(reader, executor, testOwner, testLogger())

	err := approver.EnsureAllowance(context.Background(), testToken, testSpender, big.NewInt(500))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(executor.submitted) != 0 {
		t.Fatalf("expected no approval transactions, got %d", len(executor.submitted))
	}
}

func TestApprover_ShortAllowanceApprovesUnlimited(t *testing.T) {
	// First read is short, the re-query after approval reports max.
	reader := &fakeAllowanceReader{allowances: []*big.Int{big.NewInt(0), MaxUint256}}
	executor := &fakeExecutor{}
	approver := NewApprover(reader, executor, testOwner, testLogger())

	err := approver.EnsureAllowance(context.Background(), testToken, testSpender, big.NewInt(500))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(executor.submitted) != 1 {
		t.Fatalf("expected exactly 1 approval transaction, got %d", len(executor.submitted))
	}
	if reader.calls != 2 {
		t.Fatalf("expected allowance re-query after approval, got %d reads", reader.calls)
	}

	req := executor.submitted[0]
	if req.To != testToken {
		t.Errorf("approval must target the token contract, got %s", req.To.Hex())
	}

	expected, err := PackApprove(testSpender, MaxUint256)
	if err != nil {
		t.Fatalf("pack approve: %v", err)
	}
	if string(req.Data) != string(expected) {
		t.Error("approval calldata must approve the unlimited amount for the spender")
	}
}

func TestApprover_RevertedApprovalAbortsSwap(t *testing.T) {
	reader := &fakeAllowanceReader{allowances: []*big.Int{big.NewInt(0)}}
	executor := &fakeExecutor{status: domain.TransactionStatusFailed}
	approver := NewApprover(reader, executor, testOwner, testLogger())

	err := approver.EnsureAllowance(context.Background(), testToken, testSpender, big.NewInt(500))
	if err == nil {
		t.Fatal("expected error for reverted approval")
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != "E310" {
		t.Fatalf("expected approval failure code, got %v", err)
	}
}

func TestApprover_AllowanceStillShortAfterApproval(t *testing.T) {
	reader := &fakeAllowanceReader{allowances: []*big.Int{big.NewInt(0), big.NewInt(100)}}
	executor := &fakeExecutor{}
	approver := NewApprover(reader, executor, testOwner, testLogger())

	err := approver.EnsureAllowance(context.Background(), testToken, testSpender, big.NewInt(500))
	if err == nil {
		t.Fatal("expected error when allowance stays short after approval")
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) || appErr.Code != "E310" {
		t.Fatalf("expected approval failure code, got %v", err)
	}
}

func TestApprover_SubmitErrorAborts(t *testing.T) {
	reader := &fakeAllowanceReader{allowances: []*big.Int{big.NewInt(0)}}
	executor := &fakeExecutor{submitErr: errors.New("broadcast failed")}
	approver := NewApprover(reader, executor, testOwner, testLogger())

	err := approver.EnsureAllowance(context.Background(), testToken, testSpender, big.NewInt(500))
	if err == nil {
		t.Fatal("expected error when broadcast fails")
	}
	if len(executor.submitted) != 0 {
		t.Fatalf("no transaction should be recorded as submitted, got %d", len(executor.submitted))
	}
}
