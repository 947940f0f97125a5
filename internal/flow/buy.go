package flow

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/avdeyev/dexflow-bot/internal/domain"
	apperrors "github.com/avdeyev/dexflow-bot/internal/errors"
	"github.com/avdeyev/dexflow-bot/internal/state"
	"github.com/avdeyev/dexflow-bot/internal/units"
	"github.com/avdeyev/dexflow-bot/internal/validate"
)

const nativeDecimals = 18

// defaultSwapGasLimit backstops aggregator responses that omit a gas
// estimate.
const defaultSwapGasLimit = 350_000

// StartBuy opens the buy flow. The wallet is created on first use; a
// zero native balance aborts immediately with an explanation instead of
// walking the user into a dead end.
func (e *Engine) StartBuy(ctx context.Context, st *state.UserState) (*Response, error) {
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

	st.CurrentState = state.StateBuyTokenSelect
	st.Flow = &state.FlowData{
		Kind: state.FlowKindBuy,
		Buy:  &state.BuyFlow{NativeBalance: balance.String()},
	}

	return &Response{Text: msgBuyAskToken}, nil
}

func (e *Engine) buyTokenSelect(ctx context.Context, st *state.UserState, text string) (*Response, error) {
	flow, err := e.requireBuyFlow(st)
	if err != nil {
		return nil, err
	}

	address := strings.TrimSpace(text)
	if !validate.IsAddress(address) {
		return nil, apperrors.NewValidationError(msgInvalidToken)
	}

	token, err := e.deps.Tokens.Resolve(ctx, strings.ToLower(address))
	if err != nil {
		return nil, err
	}

	flow.TokenAddress = token.Address
	flow.TokenSymbol = token.Symbol
	flow.TokenDecimals = token.Decimals
	st.CurrentState = state.StateBuyAmount

	available := units.FromBaseUnits(units.MustParse(flow.NativeBalance), nativeDecimals)
	return &Response{Text: fmt.Sprintf(msgBuyAskAmount, token.Symbol, available)}, nil
}

func (e *Engine) buyAmount(ctx context.Context, st *state.UserState, text string) (*Response, error) {
	flow, err := e.requireBuyFlow(st)
	if err != nil {
		return nil, err
	}
	if flow.TokenAddress == "" {
		return nil, apperrors.NewSessionExpiredError("token_address")
	}

	amount, err := parseAmount(text, nativeDecimals)
	if err != nil {
		return nil, err
	}

	// Checked against the balance captured at flow entry, not a fresh
	// read. See DESIGN.md for the stale-balance tradeoff.
	balance := units.MustParse(flow.NativeBalance)
	if amount.Cmp(balance) > 0 {
		available := units.FromBaseUnits(balance, nativeDecimals)
		return nil, apperrors.NewInsufficientFundsError(fmt.Sprintf(msgAmountOverBal, available))
	}

	walletAddress, err := e.deps.Wallets.Address(ctx, st.UserID)
	if err != nil {
		return nil, err
	}
	settings, err := e.deps.Settings.Settings(ctx, st.UserID)
	if err != nil {
		return nil, err
	}

	// Preview quote for the confirmation screen. Execution re-fetches.
	preview, err := e.deps.Quotes.Swap(ctx, domain.NativeTokenAddress, flow.TokenAddress, walletAddress, amount, settings.SlippagePercent)
	if err != nil {
		return nil, err
	}

	flow.AmountIn = amount.String()
	flow.QuoteOut = preview.OutAmount.String()
	flow.EstimatedGas = preview.EstimatedGas
	st.CurrentState = state.StateBuyConfirm

	return &Response{
		Text: fmt.Sprintf(msgBuyConfirm,
			units.FromBaseUnits(preview.OutAmount, int(flow.TokenDecimals)),
			flow.TokenSymbol,
			units.FromBaseUnits(amount, nativeDecimals),
			preview.EstimatedGas,
		),
		Keyboard: confirmKeyboard(),
	}, nil
}

func (e *Engine) buyConfirm(ctx context.Context, st *state.UserState, data string) (*Response, error) {
	if data != cbConfirm {
		return e.reprompt(st)
	}

	flow, err := e.requireBuyFlow(st)
	if err != nil {
		return nil, err
	}
	if flow.TokenAddress == "" || flow.AmountIn == "" {
		return nil, apperrors.NewSessionExpiredError("amount_in")
	}

	walletAddress, err := e.deps.Wallets.Address(ctx, st.UserID)
	if err != nil {
		return nil, err
	}
	settings, err := e.deps.Settings.Settings(ctx, st.UserID)
	if err != nil {
		return nil, err
	}

	amount := units.MustParse(flow.AmountIn)

	// The preview quote is already stale; execution always re-fetches
	// so the calldata prices at the current block.
	fresh, err := e.deps.Quotes.Swap(ctx, domain.NativeTokenAddress, flow.TokenAddress, walletAddress, amount, settings.SlippagePercent)
	if err != nil {
		return nil, err
	}

	gateway, err := e.deps.Gateways.GatewayFor(ctx, st.UserID)
	if err != nil {
		return nil, err
	}
	fees := e.deps.Fees.Fee(ctx, settings.GasPriority)

	gasLimit := fresh.EstimatedGas
	if gasLimit == 0 {
		gasLimit = defaultSwapGasLimit
	}

	receipt, err := gateway.Submit(ctx, TxPlan{
		To:                   fresh.Router,
		Data:                 fresh.CallData,
		Value:                fresh.Value,
		GasLimit:             gasLimit,
		MaxFeePerGas:         fees.MaxFeePerGas,
		MaxPriorityFeePerGas: fees.MaxPriorityFeePerGas,
	})
	if err != nil {
		return nil, err
	}

	amountOut := big.NewInt(0)
	if receipt.Status == domain.TransactionStatusSuccess {
		amountOut = fresh.OutAmount
	}
	if err := e.recordTransaction(ctx, st.UserID, walletAddress, domain.NativeTokenAddress, flow.TokenAddress, amount, amountOut, receipt); err != nil {
		return nil, err
	}

	symbol := flow.TokenSymbol
	decimals := int(flow.TokenDecimals)
	st.Reset()

	if receipt.Status != domain.TransactionStatusSuccess {
		outcomeRecorder(string(state.FlowKindBuy), OutcomeFailed)
		return &Response{Text: fmt.Sprintf(msgBuyFailed, receipt.Hash)}, nil
	}

	outcomeRecorder(string(state.FlowKindBuy), OutcomeCompleted)
	return &Response{
		Text: fmt.Sprintf(msgBuyExecuted, units.FromBaseUnits(amountOut, decimals), symbol, receipt.Hash),
	}, nil
}

func (e *Engine) requireBuyFlow(st *state.UserState) (*state.BuyFlow, error) {
	if st.Flow == nil || st.Flow.Kind != state.FlowKindBuy || st.Flow.Buy == nil {
		return nil, apperrors.NewSessionExpiredError("buy_flow")
	}

	return st.Flow.Buy, nil
}

// parseAmount validates and converts a user-typed decimal to base
// units, mapping every failure mode to a recoverable validation error.
func parseAmount(text string, decimals int) (*big.Int, error) {
	clean := strings.TrimSpace(text)
	if !validate.IsAmount(clean) {
		return nil, apperrors.NewValidationError(msgInvalidAmount)
	}

	amount, err := units.ToBaseUnits(clean, decimals)
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf(msgAmountTooPrecise, decimals))
	}
	if amount.Sign() <= 0 {
		return nil, apperrors.NewValidationError(msgInvalidAmount)
	}

	return amount, nil
}

// recordTransaction writes the once-per-flow record after the receipt,
// whatever the on-chain status was.
func (e *Engine) recordTransaction(ctx context.Context, telegramID int64, from, tokenIn, tokenOut string, amountIn, amountOut *big.Int, receipt *Receipt) error {
	record := &domain.Transaction{
		Hash:        receipt.Hash,
		TelegramID:  telegramID,
		FromAddress: from,
		TokenIn:     tokenIn,
		TokenOut:    tokenOut,
		AmountIn:    amountIn.String(),
		AmountOut:   amountOut.String(),
		Status:      receipt.Status,
		GasUsed:     receipt.GasUsed,
		CreatedAt:   time.Now().UTC(),
	}

	if err := e.deps.Records.Save(ctx, record); err != nil {
		e.log.Error("failed to record transaction", "hash", receipt.Hash, "error", err)
		return apperrors.NewDatabaseError(err)
	}

	return nil
}
