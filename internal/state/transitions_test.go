package state

import "testing"

func TestIsTransitionAllowed(t *testing.T) {
	testCases := []struct {
		name     string
		from     State
		to       State
		expected bool
	}{
		{name: "idle to buy token select", from: StateIdle, to: StateBuyTokenSelect, expected: true},
		{name: "idle to sell token select", from: StateIdle, to: StateSellTokenSelect, expected: true},
		{name: "idle to withdraw address", from: StateIdle, to: StateWithdrawAddress, expected: true},
		{name: "idle to settings slippage", from: StateIdle, to: StateSettingsSlippage, expected: true},
		{name: "buy token select forward", from: StateBuyTokenSelect, to: StateBuyAmount, expected: true},
		{name: "buy amount forward", from: StateBuyAmount, to: StateBuyConfirm, expected: true},
		{name: "buy amount re-prompt", from: StateBuyAmount, to: StateBuyAmount, expected: true},
		{name: "sell amount forward", from: StateSellAmount, to: StateSellConfirm, expected: true},
		{name: "withdraw amount forward", from: StateWithdrawAmount, to: StateWithdrawConfirm, expected: true},
		{name: "idle straight to confirm invalid", from: StateIdle, to: StateBuyConfirm, expected: false},
		{name: "skipping amount entry invalid", from: StateBuyTokenSelect, to: StateBuyConfirm, expected: false},
		{name: "cross family invalid", from: StateBuyAmount, to: StateSellConfirm, expected: false},
		{name: "confirm back to amount invalid", from: StateBuyConfirm, to: StateBuyAmount, expected: false},
		{name: "unknown state forward invalid", from: State("unknown"), to: StateBuyAmount, expected: false},
		{name: "any state to idle", from: StateBuyConfirm, to: StateIdle, expected: true},
		{name: "unknown state to idle", from: State("whatever"), to: StateIdle, expected: true},
		{name: "empty from treated as idle", from: State(""), to: StateSellTokenSelect, expected: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			if actual := IsTransitionAllowed(tc.from, tc.to); actual != tc.expected {
				t.Errorf("IsTransitionAllowed(%s -> %s) = %t, expected %t", tc.from, tc.to, actual, tc.expected)
			}
		})
	}
}

func TestExpectedInput(t *testing.T) {
	textStates := []State{
		StateBuyTokenSelect, StateBuyAmount,
		StateSellAmount,
		StateWithdrawAddress, StateWithdrawAmount,
		StateSettingsSlippage,
	}
	for _, st := range textStates {
		kind, ok := ExpectedInput(st)
		if !ok || kind != InputText {
			t.Errorf("ExpectedInput(%s) = (%s, %t), expected text", st, kind, ok)
		}
	}

	callbackStates := []State{
		StateBuyConfirm, StateSellTokenSelect, StateSellConfirm, StateWithdrawConfirm,
	}
	for _, st := range callbackStates {
		kind, ok := ExpectedInput(st)
		if !ok || kind != InputCallback {
			t.Errorf("ExpectedInput(%s) = (%s, %t), expected callback", st, kind, ok)
		}
	}

	if _, ok := ExpectedInput(StateIdle); ok {
		t.Error("ExpectedInput(idle) should report no flow input")
	}
}

func TestFlowFamily(t *testing.T) {
	testCases := []struct {
		state    State
		expected FlowKind
		ok       bool
	}{
		{state: StateBuyTokenSelect, expected: FlowKindBuy, ok: true},
		{state: StateBuyConfirm, expected: FlowKindBuy, ok: true},
		{state: StateSellAmount, expected: FlowKindSell, ok: true},
		{state: StateWithdrawConfirm, expected: FlowKindWithdraw, ok: true},
		{state: StateIdle, ok: false},
		{state: StateSettingsSlippage, ok: false},
	}

	for _, tc := range testCases {
		kind, ok := FlowFamily(tc.state)
		if ok != tc.ok || kind != tc.expected {
			t.Errorf("FlowFamily(%s) = (%s, %t), expected (%s, %t)", tc.state, kind, ok, tc.expected, tc.ok)
		}
	}
}
