package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/avdeyev/dexflow-bot/internal/flow"
	"github.com/avdeyev/dexflow-bot/internal/units"
	"github.com/avdeyev/dexflow-bot/internal/wallet"
)

const nativeDecimals = 18

const walletInfoTemplate = `Your wallet:

Address: %s
Balance: %s native

To replace it with an existing key: /wallet import <private key hex>`

// NewWalletHandler serves /wallet: it shows the custodial address and
// live balance, and accepts "import" with a raw private key.
func NewWalletHandler(walletService *wallet.Service, balances flow.BalanceReader, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		sender := c.Sender()
		if sender == nil {
			return nil
		}

		ctx := context.Background()

		args := strings.Fields(c.Text())
		if len(args) >= 3 && strings.EqualFold(args[1], "import") {
			return importWallet(ctx, c, walletService, args[2], log)
		}

		w, err := walletService.GetOrCreate(ctx, sender.ID)
		if err != nil {
			log.Error("failed to load wallet", slog.Int64("telegram_id", sender.ID), slog.Any("error", err))
			return err
		}

		balance, err := balances.NativeBalance(ctx, w.Address)
		if err != nil {
			return err
		}

		return c.Send(fmt.Sprintf(walletInfoTemplate, w.Address, units.FromBaseUnits(balance, nativeDecimals)))
	}
}

func importWallet(ctx context.Context, c telebot.Context, walletService *wallet.Service, keyHex string, log *slog.Logger) error {
	sender := c.Sender()

	// The message holds a private key; drop it from the chat before
	// anything else.
	if err := c.Delete(); err != nil {
		log.Warn("failed to delete key import message", slog.Int64("telegram_id", sender.ID), slog.Any("error", err))
	}

	w, err := walletService.Import(ctx, sender.ID, keyHex)
	if err != nil {
		return err
	}

	return c.Send(fmt.Sprintf("Wallet replaced. New address: %s", w.Address))
}
