package state

// InputKind classifies what shape of input a state accepts.
type InputKind string

const (
	// InputText is free text typed into the chat.
	InputText InputKind = "text"
	// InputCallback is a press on an inline keyboard button.
	InputCallback InputKind = "callback"
)

// validTransitions is the explicit transition table. Moving to idle is
// always permitted (cancel, error recovery), so only forward and
// backward edges within a flow are listed.
var validTransitions = map[State][]State{
	StateIdle: {
		StateBuyTokenSelect,
		StateSellTokenSelect,
		StateWithdrawAddress,
		StateSettingsSlippage,
	},
	StateBuyTokenSelect: {
		StateBuyAmount,
	},
	StateBuyAmount: {
		StateBuyConfirm,
		StateBuyAmount,
	},
	StateBuyConfirm: {},
	StateSellTokenSelect: {
		StateSellAmount,
	},
	StateSellAmount: {
		StateSellConfirm,
		StateSellAmount,
	},
	StateSellConfirm: {},
	StateWithdrawAddress: {
		StateWithdrawAmount,
	},
	StateWithdrawAmount: {
		StateWithdrawConfirm,
		StateWithdrawAmount,
	},
	StateWithdrawConfirm: {},
	StateSettingsSlippage: {},
}

// expectedInput records which input shape each non-idle state accepts.
// Input of any other shape must re-prompt, never be reinterpreted.
var expectedInput = map[State]InputKind{
	StateBuyTokenSelect:   InputText,     // token contract address
	StateBuyAmount:        InputText,     // native amount
	StateBuyConfirm:       InputCallback, // confirm / cancel buttons
	StateSellTokenSelect:  InputCallback, // token buttons
	StateSellAmount:       InputText,     // token amount or "max"
	StateSellConfirm:      InputCallback,
	StateWithdrawAddress:  InputText,
	StateWithdrawAmount:   InputText,
	StateWithdrawConfirm:  InputCallback,
	StateSettingsSlippage: InputText,
}

// IsTransitionAllowed reports whether moving from one state to another is valid.
func IsTransitionAllowed(from, to State) bool {
	if to == StateIdle {
		return true
	}
	if from == "" {
		from = StateIdle
	}

	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}

	for _, st := range allowed {
		if st == to {
			return true
		}
	}

	return false
}

// ExpectedInput returns the input shape a state accepts. Idle and
// unknown states accept no flow input.
func ExpectedInput(s State) (InputKind, bool) {
	kind, ok := expectedInput[s]
	return kind, ok
}

// FlowFamily maps a state to the flow family owning it.
func FlowFamily(s State) (FlowKind, bool) {
	switch s {
	case StateBuyTokenSelect, StateBuyAmount, StateBuyConfirm:
		return FlowKindBuy, true
	case StateSellTokenSelect, StateSellAmount, StateSellConfirm:
		return FlowKindSell, true
	case StateWithdrawAddress, StateWithdrawAmount, StateWithdrawConfirm:
		return FlowKindWithdraw, true
	default:
		return "", false
	}
}
