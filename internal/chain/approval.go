package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/avdeyev/dexflow-bot/internal/domain"
	apperrors "github.com/avdeyev/dexflow-bot/internal/errors"
)

// AllowanceReader is the read capability the approver needs. *Client
// satisfies it.
type AllowanceReader interface {
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
}

// Approver guarantees the router may spend the owner's tokens before a
// sell is attempted.
type Approver struct {
	reader   AllowanceReader
	executor Executor
	owner    common.Address
	log      *slog.Logger
}

// NewApprover builds the approval sub-protocol for one owner account.
func NewApprover(reader AllowanceReader, executor Executor, owner common.Address, log *slog.Logger) *Approver {
	if log == nil {
		log = slog.Default()
	}

	return &Approver{
		reader:   reader,
		executor: executor,
		owner:    owner,
		log:      log,
	}
}

// EnsureAllowance checks the current allowance against the required
// amount and, when short, submits an unlimited approval and waits for
// it to settle. The swap must not be attempted unless this returns nil:
// on any failure here the trade is aborted, never submitted blind.
func (a *Approver) EnsureAllowance(ctx context.Context, token, spender common.Address, required *big.Int) error {
	allowance, err := a.reader.Allowance(ctx, token, a.owner, spender)
	if err != nil {
		return apperrors.NewApprovalFailedError(err)
	}

	if allowance.Cmp(required) >= 0 {
		return nil
	}

	a.log.Info("allowance below required amount, approving",
		"token", token.Hex(), "spender", spender.Hex(),
		"allowance", allowance.String(), "required", required.String())

	data, err := PackApprove(spender, MaxUint256)
	if err != nil {
		return apperrors.NewApprovalFailedError(err)
	}

	estimate, err := a.executor.Estimate(ctx, token, data, nil)
	if err != nil {
		return apperrors.NewApprovalFailedError(err)
	}

	receipt, err := a.executor.Submit(ctx, TxRequest{
		To:                   token,
		Data:                 data,
		GasLimit:             estimate.GasLimit,
		MaxFeePerGas:         estimate.MaxFeePerGas,
		MaxPriorityFeePerGas: estimate.MaxPriorityFeePerGas,
	})
	if err != nil {
		return apperrors.NewApprovalFailedError(err)
	}
	if receipt.Status != domain.TransactionStatusSuccess {
		return apperrors.NewApprovalFailedError(fmt.Errorf("approval transaction %s reverted", receipt.Hash))
	}

	// Re-query rather than trusting the receipt: non-standard tokens
	// can confirm an approve without granting the full amount.
	allowance, err = a.reader.Allowance(ctx, token, a.owner, spender)
	if err != nil {
		return apperrors.NewApprovalFailedError(err)
	}
	if allowance.Cmp(required) < 0 {
		return apperrors.NewApprovalFailedError(
			fmt.Errorf("allowance %s still below required %s after approval", allowance, required))
	}

	return nil
}
