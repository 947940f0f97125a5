package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	telebot "gopkg.in/telebot.v3"

	"github.com/avdeyev/dexflow-bot/internal/bot/keyboard"
	"github.com/avdeyev/dexflow-bot/internal/domain"
	"github.com/avdeyev/dexflow-bot/internal/repository"
)

const (
	// HistoryPageAction prefixes pagination callbacks for /history.
	HistoryPageAction = "hist"

	historyPageSize   = 5
	historyFetchLimit = 50
)

// NewHistoryHandler serves /history: the most recent transactions,
// newest first, paginated with inline buttons.
func NewHistoryHandler(txRepo repository.TransactionRepository, log *slog.Logger) Handler {
	if log == nil {
		log = slog.Default()
	}

	return func(c telebot.Context) error {
		return renderHistory(c, txRepo, 1, false, log)
	}
}

// HandleHistoryPage flips between /history pages.
func HandleHistoryPage(txRepo repository.TransactionRepository, log *slog.Logger) CallbackHandler {
	return func(c telebot.Context) error {
		cb := c.Callback()
		if cb == nil {
			return nil
		}

		_, payload, err := keyboard.DecodeCallback(cb.Data)
		if err != nil {
			return nil
		}
		page, err := strconv.Atoi(payload)
		if err != nil || page < 1 {
			page = 1
		}

		if err := c.Respond(&telebot.CallbackResponse{}); err != nil {
			log.Warn("failed to ack history callback", slog.Any("error", err))
		}

		return renderHistory(c, txRepo, page, true, log)
	}
}

func renderHistory(c telebot.Context, txRepo repository.TransactionRepository, page int, edit bool, log *slog.Logger) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	ctx := context.Background()
	records, err := txRepo.RecentByTelegramID(ctx, sender.ID, historyFetchLimit)
	if err != nil {
		log.Error("failed to load history", slog.Int64("telegram_id", sender.ID), slog.Any("error", err))
		return err
	}

	if len(records) == 0 {
		return c.Send("No transactions yet.")
	}

	totalPages := (len(records) + historyPageSize - 1) / historyPageSize
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * historyPageSize
	end := start + historyPageSize
	if end > len(records) {
		end = len(records)
	}

	var sb strings.Builder
	sb.WriteString("Recent transactions:\n")
	for _, record := range records[start:end] {
		sb.WriteString(fmt.Sprintf("\n%s  %s\n%s → %s\n%s\n",
			record.CreatedAt.Format("02 Jan 15:04"),
			statusLabel(record.Status),
			shortAddress(record.TokenIn),
			shortAddress(record.TokenOut),
			record.Hash,
		))
	}

	markup := &telebot.ReplyMarkup{
		InlineKeyboard: [][]telebot.InlineButton{keyboard.PaginationButtons(HistoryPageAction, page, totalPages)},
	}

	if edit {
		return c.Edit(sb.String(), markup)
	}
	return c.Send(sb.String(), markup)
}

func statusLabel(status domain.TransactionStatus) string {
	if status == domain.TransactionStatusSuccess {
		return "✅"
	}
	return "❌"
}

func shortAddress(address string) string {
	if address == domain.NativeTokenAddress {
		return "native"
	}
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "…" + address[len(address)-4:]
}
