package bot

import (
	"context"

	telebot "gopkg.in/telebot.v3"

	"github.com/avdeyev/dexflow-bot/internal/flow"
	"github.com/avdeyev/dexflow-bot/internal/state"
)

// Bot commands.
const (
	CommandStart    = "/start"
	CommandBuy      = "/buy"
	CommandSell     = "/sell"
	CommandWithdraw = "/withdraw"
	CommandSettings = "/settings"
	CommandWallet   = "/wallet"
	CommandHistory  = "/history"
	CommandCancel   = "/cancel"
)

// newFlowStartHandler turns a flow entry point into a command handler.
// Starting a new flow discards whatever flow was active; the fresh
// command wins over the stale conversation.
func newFlowStartHandler(d *Dispatcher, start TurnFn) func(telebot.Context) error {
	return func(c telebot.Context) error {
		return d.RunTurn(c, func(ctx context.Context, st *state.UserState) (*flow.Response, error) {
			if !st.IsIdle() {
				d.engine.Cancel(st)
			}
			return start(ctx, st)
		})
	}
}

// newCancelHandler aborts the active flow.
func newCancelHandler(d *Dispatcher) func(telebot.Context) error {
	return func(c telebot.Context) error {
		return d.RunTurn(c, func(ctx context.Context, st *state.UserState) (*flow.Response, error) {
			return d.engine.Cancel(st), nil
		})
	}
}
