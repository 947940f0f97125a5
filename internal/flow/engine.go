package flow

import (
	"context"
	"log/slog"
	"strings"

	apperrors "github.com/avdeyev/dexflow-bot/internal/errors"
	"github.com/avdeyev/dexflow-bot/internal/state"
)

// Outcome labels reported to the registered recorder.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
	OutcomeAborted   = "aborted"
)

var outcomeRecorder = func(flow, outcome string) {}

// RegisterOutcomeRecorder lets the metrics layer observe flow endings.
func RegisterOutcomeRecorder(recorder func(flow, outcome string)) {
	if recorder == nil {
		outcomeRecorder = func(string, string) {}
		return
	}

	outcomeRecorder = recorder
}

// Engine drives every flow turn. It owns no state of its own: the
// caller passes the session in, the engine mutates it and returns the
// response. All side effects go through the injected capabilities.
type Engine struct {
	deps Deps
	log  *slog.Logger
}

// NewEngine builds the flow engine.
func NewEngine(deps Deps, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}

	return &Engine{deps: deps, log: log}
}

// HandleInput processes one mid-flow turn: free text or a callback,
// dispatched by the session's current state. On a non-recoverable error
// the flow is reset before the error is returned, so flow data never
// survives an abort.
func (e *Engine) HandleInput(ctx context.Context, st *state.UserState, in Input) (*Response, error) {
	resp, err := e.dispatch(ctx, st, in)
	return e.finish(st, resp, err)
}

// Cancel aborts whatever flow is active. Safe to call from idle.
func (e *Engine) Cancel(st *state.UserState) *Response {
	if !st.IsIdle() {
		if kind, ok := state.FlowFamily(st.CurrentState); ok {
			outcomeRecorder(string(kind), OutcomeCancelled)
		}
	}

	st.Reset()
	return &Response{Text: msgCancelled}
}

func (e *Engine) dispatch(ctx context.Context, st *state.UserState, in Input) (*Response, error) {
	if st.IsIdle() {
		return &Response{Text: msgIdleHint}, nil
	}

	// A decline on any confirm keyboard behaves exactly like /cancel.
	if in.Kind == state.InputCallback && in.Value == cbCancel {
		return e.Cancel(st), nil
	}

	// The settings screen takes either typed slippage or a priority
	// button, so the buttons bypass the expected-input shape check.
	if st.CurrentState == state.StateSettingsSlippage &&
		in.Kind == state.InputCallback && strings.HasPrefix(in.Value, cbGasPrefix) {
		return e.settingsGasPriority(ctx, st, in.Value)
	}

	expected, ok := state.ExpectedInput(st.CurrentState)
	if !ok {
		return &Response{Text: msgIdleHint}, nil
	}
	if in.Kind != expected {
		// Wrong input shape re-prompts, never reinterprets.
		return e.reprompt(st)
	}

	switch st.CurrentState {
	case state.StateBuyTokenSelect:
		return e.buyTokenSelect(ctx, st, in.Value)
	case state.StateBuyAmount:
		return e.buyAmount(ctx, st, in.Value)
	case state.StateBuyConfirm:
		return e.buyConfirm(ctx, st, in.Value)
	case state.StateSellTokenSelect:
		return e.sellTokenSelect(ctx, st, in.Value)
	case state.StateSellAmount:
		return e.sellAmount(ctx, st, in.Value)
	case state.StateSellConfirm:
		return e.sellConfirm(ctx, st, in.Value)
	case state.StateWithdrawAddress:
		return e.withdrawAddress(ctx, st, in.Value)
	case state.StateWithdrawAmount:
		return e.withdrawAmount(ctx, st, in.Value)
	case state.StateWithdrawConfirm:
		return e.withdrawConfirm(ctx, st, in.Value)
	case state.StateSettingsSlippage:
		return e.settingsSlippage(ctx, st, in.Value)
	default:
		e.log.Warn("input for unhandled state", "user_id", st.UserID, "state", st.CurrentState)
		return nil, apperrors.NewSessionExpiredError("current_state")
	}
}

// finish applies the error policy: recoverable errors leave the state
// alone for a re-prompt, everything else resets the flow.
func (e *Engine) finish(st *state.UserState, resp *Response, err error) (*Response, error) {
	if err == nil {
		return resp, nil
	}

	if !apperrors.IsRecoverable(err) {
		if kind, ok := state.FlowFamily(st.CurrentState); ok {
			outcomeRecorder(string(kind), OutcomeAborted)
		}
		st.Reset()
	}

	return nil, err
}

// reprompt re-sends the prompt belonging to the current state without
// changing anything.
func (e *Engine) reprompt(st *state.UserState) (*Response, error) {
	switch st.CurrentState {
	case state.StateBuyConfirm, state.StateSellConfirm, state.StateWithdrawConfirm:
		return &Response{Text: msgConfirmButtons, Keyboard: confirmKeyboard()}, nil
	case state.StateSellTokenSelect:
		return &Response{Text: msgSellPickToken}, nil
	default:
		return nil, apperrors.NewStateError("unexpected input shape for state " + string(st.CurrentState))
	}
}
