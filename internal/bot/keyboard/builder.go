package keyboard

import (
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/avdeyev/dexflow-bot/internal/flow"
)

// Menu actions carried in main menu callback data.
const (
	MenuActionBuy      = "menu:buy"
	MenuActionSell     = "menu:sell"
	MenuActionWithdraw = "menu:withdraw"
	MenuActionWallet   = "menu:wallet"
	MenuActionHistory  = "menu:history"
	MenuActionSettings = "menu:settings"
)

// Builder renders inline keyboards for bot responses.
type Builder struct {
	log *slog.Logger
}

// NewBuilder returns a new Builder instance.
func NewBuilder(log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}

	return &Builder{log: log}
}

// MainMenu builds the idle state menu.
func (b *Builder) MainMenu() *telebot.ReplyMarkup {
	markup := &telebot.ReplyMarkup{}
	markup.InlineKeyboard = [][]telebot.InlineButton{
		{
			{Text: "Buy 💰", Data: MenuActionBuy},
			{Text: "Sell 📉", Data: MenuActionSell},
		},
		{
			{Text: "Withdraw 📤", Data: MenuActionWithdraw},
			{Text: "Wallet 👛", Data: MenuActionWallet},
		},
		{
			{Text: "History 📜", Data: MenuActionHistory},
			{Text: "Settings ⚙️", Data: MenuActionSettings},
		},
	}
	return markup
}

// Render converts flow engine buttons into telebot inline markup.
// Buttons whose callback data exceeds the transport limit are dropped
// with a log entry rather than failing the whole response.
func (b *Builder) Render(rows [][]flow.Button) *telebot.ReplyMarkup {
	if len(rows) == 0 {
		return nil
	}

	markup := &telebot.ReplyMarkup{}
	inline := make([][]telebot.InlineButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]telebot.InlineButton, 0, len(row))
		for _, btn := range row {
			data, err := EncodeCallback(btn.Data, "")
			if err != nil {
				b.log.Warn("dropping oversized keyboard button", "label", btn.Label, "error", err)
				continue
			}
			buttons = append(buttons, telebot.InlineButton{Text: btn.Label, Data: data})
		}
		if len(buttons) > 0 {
			inline = append(inline, buttons)
		}
	}

	if len(inline) == 0 {
		return nil
	}

	markup.InlineKeyboard = inline
	return markup
}
