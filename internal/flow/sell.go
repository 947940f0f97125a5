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
)

// maxInput is the literal that sells the entire stored balance without
// a decimal round trip.
const maxInput = "max"

// StartSell opens the sell flow. The token list is the intersection of
// the user's trade history with live positive balances; both conditions
// are required, a token matching only one never appears.
func (e *Engine) StartSell(ctx context.Context, st *state.UserState) (*Response, error) {
	address, err := e.deps.Wallets.EnsureWallet(ctx, st.UserID)
	if err != nil {
		return e.finish(st, nil, err)
	}

	history, err := e.deps.Records.BoughtTokens(ctx, st.UserID)
	if err != nil {
		return e.finish(st, nil, apperrors.NewDatabaseError(err))
	}

	var keyboard [][]Button
	for _, tokenAddress := range history {
		balance, err := e.deps.Balances.TokenBalance(ctx, tokenAddress, address)
		if err != nil {
			return e.finish(st, nil, err)
		}
		if balance.Sign() <= 0 {
			continue
		}

		token, err := e.deps.Tokens.Resolve(ctx, tokenAddress)
		if err != nil {
			return e.finish(st, nil, err)
		}

		label := fmt.Sprintf("%s (%s)", token.Symbol, units.FromBaseUnits(balance, int(token.Decimals)))
		keyboard = append(keyboard, []Button{{Label: label, Data: cbTokenPrefix + token.Address}})
	}

	if len(keyboard) == 0 {
		st.Reset()
		return &Response{Text: msgNothingToSell}, nil
	}

	st.CurrentState = state.StateSellTokenSelect
	st.Flow = &state.FlowData{
		Kind: state.FlowKindSell,
		Sell: &state.SellFlow{},
	}

	return &Response{Text: msgSellPickToken, Keyboard: keyboard}, nil
}

func (e *Engine) sellTokenSelect(ctx context.Context, st *state.UserState, data string) (*Response, error) {
	flow, err := e.requireSellFlow(st)
	if err != nil {
		return nil, err
	}

	if !strings.HasPrefix(data, cbTokenPrefix) {
		return e.reprompt(st)
	}
	tokenAddress := strings.ToLower(strings.TrimPrefix(data, cbTokenPrefix))

	walletAddress, err := e.deps.Wallets.Address(ctx, st.UserID)
	if err != nil {
		return nil, err
	}

	// Balance read again at selection time; this snapshot is what
	// "max" later refers to.
	balance, err := e.deps.Balances.TokenBalance(ctx, tokenAddress, walletAddress)
	if err != nil {
		return nil, err
	}
	if balance.Sign() <= 0 {
		return nil, apperrors.NewValidationError(msgUnknownToken)
	}

	token, err := e.deps.Tokens.Resolve(ctx, tokenAddress)
	if err != nil {
		return nil, err
	}

	flow.TokenAddress = token.Address
	flow.TokenSymbol = token.Symbol
	flow.TokenDecimals = token.Decimals
	flow.TokenBalance = balance.String()
	st.CurrentState = state.StateSellAmount

	return &Response{
		Text: fmt.Sprintf(msgSellAskAmount, token.Symbol, units.FromBaseUnits(balance, int(token.Decimals))),
	}, nil
}

func (e *Engine) sellAmount(ctx context.Context, st *state.UserState, text string) (*Response, error) {
	flow, err := e.requireSellFlow(st)
	if err != nil {
		return nil, err
	}
	if flow.TokenAddress == "" || flow.TokenBalance == "" {
		return nil, apperrors.NewSessionExpiredError("token_balance")
	}

	balance := units.MustParse(flow.TokenBalance)

	var amount *big.Int
	if strings.EqualFold(strings.TrimSpace(text), maxInput) {
		// The stored base-unit balance verbatim: no decimal parse, no
		// truncation.
		amount = new(big.Int).Set(balance)
	} else {
		amount, err = parseAmount(text, int(flow.TokenDecimals))
		if err != nil {
			return nil, err
		}
		if amount.Cmp(balance) > 0 {
			available := units.FromBaseUnits(balance, int(flow.TokenDecimals))
			return nil, apperrors.NewInsufficientFundsError(fmt.Sprintf(msgAmountOverBal, available))
		}
	}

	walletAddress, err := e.deps.Wallets.Address(ctx, st.UserID)
	if err != nil {
		return nil, err
	}
	settings, err := e.deps.Settings.Settings(ctx, st.UserID)
	if err != nil {
		return nil, err
	}

	preview, err := e.deps.Quotes.Swap(ctx, flow.TokenAddress, domain.NativeTokenAddress, walletAddress, amount, settings.SlippagePercent)
	if err != nil {
		return nil, err
	}

	flow.AmountIn = amount.String()
	flow.QuoteOut = preview.OutAmount.String()
	flow.EstimatedGas = preview.EstimatedGas
	st.CurrentState = state.StateSellConfirm

	return &Response{
		Text: fmt.Sprintf(msgSellConfirm,
			units.FromBaseUnits(amount, int(flow.TokenDecimals)),
			flow.TokenSymbol,
			units.FromBaseUnits(preview.OutAmount, nativeDecimals),
			preview.EstimatedGas,
		),
		Keyboard: confirmKeyboard(),
	}, nil
}

func (e *Engine) sellConfirm(ctx context.Context, st *state.UserState, data string) (*Response, error) {
	if data != cbConfirm {
		return e.reprompt(st)
	}

	flow, err := e.requireSellFlow(st)
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

	fresh, err := e.deps.Quotes.Swap(ctx, flow.TokenAddress, domain.NativeTokenAddress, walletAddress, amount, settings.SlippagePercent)
	if err != nil {
		return nil, err
	}

	gateway, err := e.deps.Gateways.GatewayFor(ctx, st.UserID)
	if err != nil {
		return nil, err
	}

	// The router may not move tokens without an allowance. A failed
	// approval aborts here; the swap is never submitted after one.
	if err := gateway.EnsureAllowance(ctx, flow.TokenAddress, fresh.Router, amount); err != nil {
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
	if err := e.recordTransaction(ctx, st.UserID, walletAddress, flow.TokenAddress, domain.NativeTokenAddress, amount, amountOut, receipt); err != nil {
		return nil, err
	}

	st.Reset()

	if receipt.Status != domain.TransactionStatusSuccess {
		outcomeRecorder(string(state.FlowKindSell), OutcomeFailed)
		return &Response{Text: fmt.Sprintf(msgSellFailed, receipt.Hash)}, nil
	}

	outcomeRecorder(string(state.FlowKindSell), OutcomeCompleted)
	return &Response{
		Text: fmt.Sprintf(msgSellExecuted, units.FromBaseUnits(amountOut, nativeDecimals), receipt.Hash),
	}, nil
}

func (e *Engine) requireSellFlow(st *state.UserState) (*state.SellFlow, error) {
	if st.Flow == nil || st.Flow.Kind != state.FlowKindSell || st.Flow.Sell == nil {
		return nil, apperrors.NewSessionExpiredError("sell_flow")
	}

	return st.Flow.Sell, nil
}
