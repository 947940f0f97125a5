package bot

import (
	"context"
	"errors"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/avdeyev/dexflow-bot/internal/bot/keyboard"
	"github.com/avdeyev/dexflow-bot/internal/flow"
	"github.com/avdeyev/dexflow-bot/internal/state"
)

const msgTurnInFlight = "Your previous action is still processing. Give it a moment."

// TurnFn runs one flow engine step against the locked session state.
type TurnFn func(ctx context.Context, st *state.UserState) (*flow.Response, error)

// Dispatcher feeds incoming updates into the flow engine, one
// serialized turn per user at a time.
type Dispatcher struct {
	fsm    state.StateMachine
	engine *flow.Engine
	kb     *keyboard.Builder
	log    *slog.Logger
}

// NewDispatcher builds the turn dispatcher.
func NewDispatcher(fsm state.StateMachine, engine *flow.Engine, kb *keyboard.Builder, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}

	return &Dispatcher{fsm: fsm, engine: engine, kb: kb, log: log}
}

// Dispatch converts the update into a flow input and hands it to the
// engine inside the session lock.
func (d *Dispatcher) Dispatch(c telebot.Context) error {
	in := inputFrom(c)

	return d.RunTurn(c, func(ctx context.Context, st *state.UserState) (*flow.Response, error) {
		return d.engine.HandleInput(ctx, st, in)
	})
}

// RunTurn executes fn under the per-user session lock and delivers its
// response. The mutated state persists even when the engine reports an
// error, so an aborted flow stays aborted in storage.
func (d *Dispatcher) RunTurn(c telebot.Context, fn TurnFn) error {
	if c == nil || c.Sender() == nil {
		d.log.Warn("cannot dispatch without sender information")
		return nil
	}

	userID := c.Sender().ID

	var (
		resp    *flow.Response
		turnErr error
	)
	err := d.fsm.WithTurn(context.Background(), userID, func(ctx context.Context, st *state.UserState) error {
		resp, turnErr = fn(ctx, st)
		return nil
	})
	if err != nil {
		if errors.Is(err, state.ErrStateLocked) {
			return c.Send(msgTurnInFlight)
		}
		return err
	}

	if ack := c.Callback(); ack != nil {
		if respondErr := c.Respond(&telebot.CallbackResponse{}); respondErr != nil {
			d.log.Warn("failed to ack callback", slog.Int64("user_id", userID), slog.Any("error", respondErr))
		}
	}

	if turnErr != nil {
		return turnErr
	}

	return d.Send(c, resp)
}

// Send delivers a flow response, rendering its keyboard when present.
func (d *Dispatcher) Send(c telebot.Context, resp *flow.Response) error {
	if resp == nil || resp.Text == "" {
		return nil
	}

	if markup := d.kb.Render(resp.Keyboard); markup != nil {
		return c.Send(resp.Text, markup)
	}

	return c.Send(resp.Text)
}

// inputFrom classifies the update the way the engine expects it:
// button presses are callbacks, everything else is free text.
func inputFrom(c telebot.Context) flow.Input {
	if cb := c.Callback(); cb != nil {
		return flow.Input{Kind: state.InputCallback, Value: cb.Data}
	}

	return flow.Input{Kind: state.InputText, Value: c.Text()}
}
