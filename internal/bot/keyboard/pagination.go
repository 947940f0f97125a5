package keyboard

import (
	"fmt"
	"strconv"

	telebot "gopkg.in/telebot.v3"
)

// PaginationButtons returns up to three inline buttons (prev, current
// page, next) for paginating lists behind a shared action name.
func PaginationButtons(action string, page, totalPages int) []telebot.InlineButton {
	if totalPages < 1 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	buttons := make([]telebot.InlineButton, 0, 3)

	if page > 1 {
		buttons = append(buttons, pageButton("◀️ Prev", action, page-1))
	}

	buttons = append(buttons, pageButton(fmt.Sprintf("Page %d/%d", page, totalPages), action, page))

	if page < totalPages {
		buttons = append(buttons, pageButton("Next ▶️", action, page+1))
	}

	return buttons
}

func pageButton(text, action string, page int) telebot.InlineButton {
	data, _ := EncodeCallback(action, strconv.Itoa(page))
	return telebot.InlineButton{Text: text, Data: data}
}
