package flow

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/avdeyev/dexflow-bot/internal/domain"
	apperrors "github.com/avdeyev/dexflow-bot/internal/errors"
	"github.com/avdeyev/dexflow-bot/internal/state"
	"github.com/avdeyev/dexflow-bot/internal/units"
	"github.com/avdeyev/dexflow-bot/internal/validate"
)

// withdrawGasLimit is the gas a plain native transfer always costs.
const withdrawGasLimit = 21_000

// StartWithdraw opens the withdraw flow, guarded by a positive native
// balance.
func (e *Engine) StartWithdraw(ctx context.Context, st *state.UserState) (*Response, error) {
	address, err := e.deps.Wallets.EnsureWallet(ctx, st.UserID)
	if err != nil {
		return e.finish(st, nil, err)
	}

	balance, err := e.deps.Balances.NativeBalance(ctx, address)
	if err != nil {
		return e.finish(st, nil, err)
	}
	if balance.Sign() <= 0 {
		st.Reset()
		return &Response{Text: msgNoNativeFunds}, nil
	}

	st.CurrentState = state.StateWithdrawAddress
	st.Flow = &state.FlowData{
		Kind:     state.FlowKindWithdraw,
		Withdraw: &state.WithdrawFlow{NativeBalance: balance.String()},
	}

	return &Response{Text: msgWithdrawAskAddress}, nil
}

func (e *Engine) withdrawAddress(ctx context.Context, st *state.UserState, text string) (*Response, error) {
	flow, err := e.requireWithdrawFlow(st)
	if err != nil {
		return nil, err
	}

	address := strings.TrimSpace(text)
	if !validate.IsAddress(address) {
		return nil, apperrors.NewValidationError(msgInvalidAddress)
	}

	flow.ToAddress = address
	st.CurrentState = state.StateWithdrawAmount

	available := units.FromBaseUnits(units.MustParse(flow.NativeBalance), nativeDecimals)
	return &Response{Text: fmt.Sprintf(msgWithdrawAskAmount, available)}, nil
}

func (e *Engine) withdrawAmount(ctx context.Context, st *state.UserState, text string) (*Response, error) {
	flow, err := e.requireWithdrawFlow(st)
	if err != nil {
		return nil, err
	}
	if flow.ToAddress == "" {
		return nil, apperrors.NewSessionExpiredError("to_address")
	}

	amount, err := parseAmount(text, nativeDecimals)
	if err != nil {
		return nil, err
	}

	settings, err := e.deps.Settings.Settings(ctx, st.UserID)
	if err != nil {
		return nil, err
	}
	fees := e.deps.Fees.Fee(ctx, settings.GasPriority)

	// Both checks in order and in integers: the amount itself, then
	// the amount plus the worst-case transfer fee.
	balance := units.MustParse(flow.NativeBalance)
	if amount.Cmp(balance) > 0 {
		available := units.FromBaseUnits(balance, nativeDecimals)
		return nil, apperrors.NewInsufficientFundsError(fmt.Sprintf(msgAmountOverBal, available))
	}

	fee := new(big.Int).Mul(big.NewInt(withdrawGasLimit), fees.MaxFeePerGas)
	total := new(big.Int).Add(amount, fee)
	if balance.Cmp(total) <= 0 {
		return nil, apperrors.NewInsufficientFundsError(msgWithdrawFeeShort)
	}

	flow.Amount = amount.String()
	flow.MaxFeePerGas = fees.MaxFeePerGas.String()
	flow.MaxPriorityFeePerGas = fees.MaxPriorityFeePerGas.String()
	st.CurrentState = state.StateWithdrawConfirm

	return &Response{
		Text:     fmt.Sprintf(msgWithdrawConfirm, units.FromBaseUnits(amount, nativeDecimals), flow.ToAddress),
		Keyboard: confirmKeyboard(),
	}, nil
}

func (e *Engine) withdrawConfirm(ctx context.Context, st *state.UserState, data string) (*Response, error) {
	if data != cbConfirm {
		return e.reprompt(st)
	}

	flow, err := e.requireWithdrawFlow(st)
	if err != nil {
		return nil, err
	}
	if flow.ToAddress == "" || flow.Amount == "" || flow.MaxFeePerGas == "" {
		return nil, apperrors.NewSessionExpiredError("amount")
	}

	walletAddress, err := e.deps.Wallets.Address(ctx, st.UserID)
	if err != nil {
		return nil, err
	}

	gateway, err := e.deps.Gateways.GatewayFor(ctx, st.UserID)
	if err != nil {
		return nil, err
	}

	amount := units.MustParse(flow.Amount)
	receipt, err := gateway.Submit(ctx, TxPlan{
		To:                   flow.ToAddress,
		Value:                amount,
		GasLimit:             withdrawGasLimit,
		MaxFeePerGas:         units.MustParse(flow.MaxFeePerGas),
		MaxPriorityFeePerGas: units.MustParse(flow.MaxPriorityFeePerGas),
	})
	if err != nil {
		return nil, err
	}

	amountOut := big.NewInt(0)
	if receipt.Status == domain.TransactionStatusSuccess {
		amountOut = amount
	}
	if err := e.recordTransaction(ctx, st.UserID, walletAddress, domain.NativeTokenAddress, domain.NativeTokenAddress, amount, amountOut, receipt); err != nil {
		return nil, err
	}

	toAddress := flow.ToAddress
	st.Reset()

	if receipt.Status != domain.TransactionStatusSuccess {
		outcomeRecorder(string(state.FlowKindWithdraw), OutcomeFailed)
		return &Response{Text: fmt.Sprintf(msgWithdrawFailed, receipt.Hash)}, nil
	}

	outcomeRecorder(string(state.FlowKindWithdraw), OutcomeCompleted)
	return &Response{
		Text: fmt.Sprintf(msgWithdrawExecuted, units.FromBaseUnits(amount, nativeDecimals), toAddress, receipt.Hash),
	}, nil
}

func (e *Engine) requireWithdrawFlow(st *state.UserState) (*state.WithdrawFlow, error) {
	if st.Flow == nil || st.Flow.Kind != state.FlowKindWithdraw || st.Flow.Withdraw == nil {
		return nil, apperrors.NewSessionExpiredError("withdraw_flow")
	}

	return st.Flow.Withdraw, nil
}
