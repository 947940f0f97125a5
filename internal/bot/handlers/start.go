package handlers

import (
	"context"
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/avdeyev/dexflow-bot/internal/bot/keyboard"
	"github.com/avdeyev/dexflow-bot/internal/user"
	"github.com/avdeyev/dexflow-bot/internal/wallet"
)

const startGreeting = `Welcome! Your trading wallet is ready.

Address: %s

Deposit native currency to it, then use the menu below.`

// NewStartHandler greets the user, provisions their record and wallet,
// and shows the main menu.
func NewStartHandler(userService *user.Service, walletService *wallet.Service, kb *keyboard.Builder, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			log.Warn("start handler invoked without sender")
			return nil
		}

		ctx := context.Background()

		if _, err := userService.GetOrCreate(ctx, sender); err != nil {
			log.Error("failed to provision user", slog.Int64("telegram_id", sender.ID), slog.Any("error", err))
			return err
		}

		w, err := walletService.GetOrCreate(ctx, sender.ID)
		if err != nil {
			log.Error("failed to provision wallet", slog.Int64("telegram_id", sender.ID), slog.Any("error", err))
			return err
		}

		return c.Send(fmt.Sprintf(startGreeting, w.Address), kb.MainMenu())
	}
}
