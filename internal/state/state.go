package state

import "time"

// State represents a finite-state machine state.
type State string

const (
	// StateIdle indicates that the bot is waiting for the next user command.
	StateIdle State = "idle"

	// Buy flow: pick a token, enter a native amount, confirm the swap.
	StateBuyTokenSelect State = "buy_token_select"
	StateBuyAmount      State = "buy_amount_entry"
	StateBuyConfirm     State = "buy_confirm"

	// Sell flow: pick a held token, enter a token amount, confirm.
	StateSellTokenSelect State = "sell_token_select"
	StateSellAmount      State = "sell_amount_entry"
	StateSellConfirm     State = "sell_confirm"

	// Withdraw flow: destination address, native amount, confirm.
	StateWithdrawAddress State = "withdraw_address_entry"
	StateWithdrawAmount  State = "withdraw_amount_entry"
	StateWithdrawConfirm State = "withdraw_confirm"

	// StateSettingsSlippage waits for a slippage percentage.
	StateSettingsSlippage State = "settings_slippage_entry"
)

// FlowKind tags which flow family owns the transient flow data.
type FlowKind string

const (
	FlowKindBuy      FlowKind = "buy"
	FlowKindSell     FlowKind = "sell"
	FlowKindWithdraw FlowKind = "withdraw"
)

// BuyFlow carries the data accumulated across the turns of one buy.
// Big integers are stored as base-10 strings to survive JSON exactly.
type BuyFlow struct {
	TokenAddress         string `json:"token_address,omitempty"`
	TokenSymbol          string `json:"token_symbol,omitempty"`
	TokenDecimals        uint8  `json:"token_decimals,omitempty"`
	NativeBalance        string `json:"native_balance,omitempty"` // wei, captured at flow entry
	AmountIn             string `json:"amount_in,omitempty"`      // wei
	QuoteOut             string `json:"quote_out,omitempty"`      // token base units
	EstimatedGas         uint64 `json:"estimated_gas,omitempty"`
	MaxFeePerGas         string `json:"max_fee_per_gas,omitempty"`
	MaxPriorityFeePerGas string `json:"max_priority_fee_per_gas,omitempty"`
}

// SellFlow carries the data accumulated across the turns of one sell.
type SellFlow struct {
	TokenAddress         string `json:"token_address,omitempty"`
	TokenSymbol          string `json:"token_symbol,omitempty"`
	TokenDecimals        uint8  `json:"token_decimals,omitempty"`
	TokenBalance         string `json:"token_balance,omitempty"` // base units, captured at token select
	AmountIn             string `json:"amount_in,omitempty"`     // token base units
	QuoteOut             string `json:"quote_out,omitempty"`     // wei
	EstimatedGas         uint64 `json:"estimated_gas,omitempty"`
	MaxFeePerGas         string `json:"max_fee_per_gas,omitempty"`
	MaxPriorityFeePerGas string `json:"max_priority_fee_per_gas,omitempty"`
}

// WithdrawFlow carries the data accumulated across one withdrawal.
type WithdrawFlow struct {
	ToAddress            string `json:"to_address,omitempty"`
	NativeBalance        string `json:"native_balance,omitempty"` // wei, captured at flow entry
	Amount               string `json:"amount,omitempty"`         // wei
	MaxFeePerGas         string `json:"max_fee_per_gas,omitempty"`
	MaxPriorityFeePerGas string `json:"max_priority_fee_per_gas,omitempty"`
}

// FlowData is a tagged union over the three flow families. Exactly the
// member matching Kind is set; a typed struct per family replaces the
// loose key/value bag so that a missing field is a zero value caught by
// the engine's guards, not a runtime type assertion.
type FlowData struct {
	Kind     FlowKind      `json:"kind"`
	Buy      *BuyFlow      `json:"buy,omitempty"`
	Sell     *SellFlow     `json:"sell,omitempty"`
	Withdraw *WithdrawFlow `json:"withdraw,omitempty"`
}

// UserState captures the current FSM state for a Telegram user.
type UserState struct {
	UserID       int64     `json:"user_id"`
	CurrentState State     `json:"current_state"`
	Flow         *FlowData `json:"flow,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsIdle reports whether no flow is active.
func (s *UserState) IsIdle() bool {
	return s == nil || s.CurrentState == "" || s.CurrentState == StateIdle
}

// Reset clears the active flow and returns the state to idle. Flow data
// must never survive a flow terminating, whatever the reason.
func (s *UserState) Reset() {
	if s == nil {
		return
	}
	s.CurrentState = StateIdle
	s.Flow = nil
}
