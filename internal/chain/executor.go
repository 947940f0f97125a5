package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/avdeyev/dexflow-bot/internal/domain"
	apperrors "github.com/avdeyev/dexflow-bot/internal/errors"
)

// TxRequest describes one transaction to sign and broadcast. Fee fields
// are mandatory; the caller fixes them at confirmation time so the user
// approves the numbers that are actually used.
type TxRequest struct {
	To                   common.Address
	Data                 []byte
	Value                *big.Int
	GasLimit             uint64
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// Receipt is the settled outcome of a submitted transaction.
type Receipt struct {
	Hash              string
	Status            domain.TransactionStatus
	GasUsed           uint64
	EffectiveGasPrice *big.Int
	BlockNumber       uint64
}

// FeeEstimate carries the gas parameters computed for a pending action.
type FeeEstimate struct {
	GasLimit             uint64
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// Executor signs, broadcasts and settles transactions. Submit blocks
// until a receipt arrives or the wait times out; a mined-but-reverted
// transaction returns a failed Receipt and a nil error so callers can
// record it.
type Executor interface {
	Estimate(ctx context.Context, to common.Address, data []byte, value *big.Int) (*FeeEstimate, error)
	Submit(ctx context.Context, req TxRequest) (*Receipt, error)
}

// ErrReceiptTimeout indicates the receipt never arrived within the wait
// window. The transaction may still mine later; callers must not
// resubmit blindly.
var ErrReceiptTimeout = errors.New("timed out waiting for transaction receipt")

var submissionRecorder = func(status string) {}

// RegisterSubmissionRecorder lets the metrics layer count settled
// submissions by outcome (success, failed, timeout).
func RegisterSubmissionRecorder(recorder func(status string)) {
	if recorder == nil {
		submissionRecorder = func(string) {}
		return
	}

	submissionRecorder = recorder
}

const (
	defaultPollInterval  = 2 * time.Second
	defaultWaitTimeout   = 2 * time.Minute
	defaultGasMultiplier = 1.2
)

// TxExecutor is the production Executor backed by a JSON-RPC node.
type TxExecutor struct {
	backend       Backend
	signer        Signer
	log           *slog.Logger
	pollInterval  time.Duration
	waitTimeout   time.Duration
	gasMultiplier float64
	simulate      bool
}

// ExecutorOption tweaks TxExecutor behavior.
type ExecutorOption func(*TxExecutor)

// WithReceiptWait overrides the polling cadence and receipt deadline.
func WithReceiptWait(poll, timeout time.Duration) ExecutorOption {
	return func(e *TxExecutor) {
		if poll > 0 {
			e.pollInterval = poll
		}
		if timeout > 0 {
			e.waitTimeout = timeout
		}
	}
}

// WithGasMultiplier pads the node's gas estimate.
func WithGasMultiplier(m float64) ExecutorOption {
	return func(e *TxExecutor) {
		if m > 1 {
			e.gasMultiplier = m
		}
	}
}

// WithSimulation toggles the eth_call dry run before estimation.
func WithSimulation(enabled bool) ExecutorOption {
	return func(e *TxExecutor) {
		e.simulate = enabled
	}
}

// NewTxExecutor builds an executor for one signing account.
func NewTxExecutor(backend Backend, signer Signer, log *slog.Logger, opts ...ExecutorOption) *TxExecutor {
	if log == nil {
		log = slog.Default()
	}

	e := &TxExecutor{
		backend:       backend,
		signer:        signer,
		log:           log,
		pollInterval:  defaultPollInterval,
		waitTimeout:   defaultWaitTimeout,
		gasMultiplier: defaultGasMultiplier,
		simulate:      true,
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Estimate dry-runs the call, estimates gas and computes EIP-1559 fee
// caps from the latest header.
func (e *TxExecutor) Estimate(ctx context.Context, to common.Address, data []byte, value *big.Int) (*FeeEstimate, error) {
	if value == nil {
		value = big.NewInt(0)
	}

	msg := ethereum.CallMsg{From: e.signer.Address(), To: &to, Value: value, Data: data}

	if e.simulate && len(data) > 0 {
		if _, err := e.backend.CallContract(ctx, msg, nil); err != nil {
			e.log.Warn("transaction simulation reverted", "to", to.Hex(), "error", err)
			return nil, apperrors.NewExternalServiceError("rpc", fmt.Errorf("simulate call: %w", err))
		}
	}

	gasLimit, err := e.backend.EstimateGas(ctx, msg)
	if err != nil {
		return nil, apperrors.NewExternalServiceError("rpc", fmt.Errorf("estimate gas: %w", err))
	}
	gasLimit = uint64(float64(gasLimit) * e.gasMultiplier)

	tipCap, err := e.backend.SuggestGasTipCap(ctx)
	if err != nil {
		// 2 gwei keeps the flow usable when the node lacks the endpoint.
		tipCap = big.NewInt(2_000_000_000)
	}

	header, err := e.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, apperrors.NewExternalServiceError("rpc", fmt.Errorf("fetch latest header: %w", err))
	}
	baseFee := header.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(1_000_000_000)
	}

	feeCap := new(big.Int).Mul(baseFee, big.NewInt(2))
	feeCap.Add(feeCap, tipCap)

	return &FeeEstimate{
		GasLimit:             gasLimit,
		MaxFeePerGas:         feeCap,
		MaxPriorityFeePerGas: tipCap,
	}, nil
}

// Submit signs the request as an EIP-1559 transaction, broadcasts it
// and polls for the receipt.
func (e *TxExecutor) Submit(ctx context.Context, req TxRequest) (*Receipt, error) {
	chainID, err := e.backend.ChainID(ctx)
	if err != nil {
		return nil, apperrors.NewExternalServiceError("rpc", fmt.Errorf("read chain id: %w", err))
	}

	nonce, err := e.backend.PendingNonceAt(ctx, e.signer.Address())
	if err != nil {
		return nil, apperrors.NewExternalServiceError("rpc", fmt.Errorf("fetch nonce: %w", err))
	}

	value := req.Value
	if value == nil {
		value = big.NewInt(0)
	}

	to := req.To
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: req.MaxPriorityFeePerGas,
		GasFeeCap: req.MaxFeePerGas,
		Gas:       req.GasLimit,
		To:        &to,
		Value:     value,
		Data:      req.Data,
	})

	signed, err := e.signer.SignTx(chainID, tx)
	if err != nil {
		return nil, apperrors.NewExternalServiceError("signer", fmt.Errorf("sign transaction: %w", err))
	}

	if err := e.backend.SendTransaction(ctx, signed); err != nil {
		return nil, apperrors.NewExternalServiceError("rpc", fmt.Errorf("broadcast transaction: %w", err))
	}

	hash := signed.Hash()
	e.log.Info("transaction submitted", "hash", hash.Hex(), "nonce", nonce, "to", to.Hex())

	return e.waitReceipt(ctx, hash)
}

func (e *TxExecutor) waitReceipt(ctx context.Context, hash common.Hash) (*Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, e.waitTimeout)
	defer cancel()

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := e.backend.TransactionReceipt(waitCtx, hash)
		if err == nil && receipt != nil {
			status := domain.TransactionStatusSuccess
			if receipt.Status != types.ReceiptStatusSuccessful {
				status = domain.TransactionStatusFailed
				e.log.Warn("transaction reverted on-chain", "hash", hash.Hex(), "gas_used", receipt.GasUsed)
			}

			settled := &Receipt{
				Hash:              hash.Hex(),
				Status:            status,
				GasUsed:           receipt.GasUsed,
				EffectiveGasPrice: receipt.EffectiveGasPrice,
			}
			if receipt.BlockNumber != nil {
				settled.BlockNumber = receipt.BlockNumber.Uint64()
			}
			submissionRecorder(string(status))
			return settled, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) && waitCtx.Err() == nil {
			e.log.Debug("receipt poll failed, retrying", "hash", hash.Hex(), "error", err)
		}

		select {
		case <-waitCtx.Done():
			e.log.Error("receipt wait timed out", "hash", hash.Hex())
			submissionRecorder("timeout")
			return nil, fmt.Errorf("%w: %s", ErrReceiptTimeout, hash.Hex())
		case <-ticker.C:
		}
	}
}
