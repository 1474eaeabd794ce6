package telegram

import (
	"fmt"

	"github.com/go-telegram/bot/models"
	"github.com/set-night/batchtxt/internal/domain"
)

// Callback data prefixes.
const (
	CallbackContentType = "ct:"
	CallbackBatch       = "b:"
	CallbackBatchPage   = "bp:"
	CallbackLoginChoice = "kl:"
	CallbackNoop        = "noop"
)

// InlineButton creates a single inline keyboard button.
func InlineButton(text, callbackData string) models.InlineKeyboardButton {
	return models.InlineKeyboardButton{
		Text:         text,
		CallbackData: callbackData,
	}
}

// InlineKeyboard creates an inline keyboard from rows of buttons.
func InlineKeyboard(rows ...[]models.InlineKeyboardButton) *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: rows,
	}
}

// ButtonRow creates a row of inline buttons.
func ButtonRow(buttons ...models.InlineKeyboardButton) []models.InlineKeyboardButton {
	return buttons
}

// PaginationRow creates a pagination row with prev/next buttons. Pages are
// zero based; the middle button is inert.
func PaginationRow(currentPage, totalPages int, callbackPrefix string) []models.InlineKeyboardButton {
	var row []models.InlineKeyboardButton

	if currentPage > 0 {
		row = append(row, InlineButton("⬅️", fmt.Sprintf("%s%d", callbackPrefix, currentPage-1)))
	}

	row = append(row, InlineButton(
		fmt.Sprintf("%d/%d", currentPage+1, totalPages),
		CallbackNoop,
	))

	if currentPage < totalPages-1 {
		row = append(row, InlineButton("➡️", fmt.Sprintf("%s%d", callbackPrefix, currentPage+1)))
	}

	return row
}

// BatchKeyboard shows one page of batches, one button per row, followed by
// a pagination row when there is more than one page.
func BatchKeyboard(batches []domain.BatchSummary, page, perPage int) *models.InlineKeyboardMarkup {
	if perPage <= 0 {
		perPage = len(batches)
	}
	totalPages := (len(batches) + perPage - 1) / perPage
	if totalPages == 0 {
		totalPages = 1
	}
	page = max(0, min(page, totalPages-1))

	start := page * perPage
	end := min(start+perPage, len(batches))

	rows := make([][]models.InlineKeyboardButton, 0, end-start+1)
	for _, bt := range batches[start:end] {
		rows = append(rows, ButtonRow(InlineButton(buttonLabel(bt.Name, bt.ID), CallbackBatch+bt.ID)))
	}
	if totalPages > 1 {
		rows = append(rows, PaginationRow(page, totalPages, CallbackBatchPage))
	}
	return InlineKeyboard(rows...)
}

// ContentTypeKeyboard lays content types out two per row.
func ContentTypeKeyboard(types []domain.ContentType) *models.InlineKeyboardMarkup {
	var rows [][]models.InlineKeyboardButton
	for i := 0; i < len(types); i += 2 {
		row := ButtonRow(InlineButton(types[i].Label, CallbackContentType+types[i].Key))
		if i+1 < len(types) {
			row = append(row, InlineButton(types[i+1].Label, CallbackContentType+types[i+1].Key))
		}
		rows = append(rows, row)
	}
	return InlineKeyboard(rows...)
}

// LoginChoiceKeyboard offers password or token login.
func LoginChoiceKeyboard() *models.InlineKeyboardMarkup {
	return InlineKeyboard(ButtonRow(
		InlineButton("1. ID & Password", CallbackLoginChoice+"1"),
		InlineButton("2. Token", CallbackLoginChoice+"2"),
	))
}

// buttonLabel keeps labels readable; Telegram truncates long ones anyway.
func buttonLabel(name, id string) string {
	const maxRunes = 48
	if name == "" {
		name = id
	}
	r := []rune(name)
	if len(r) > maxRunes {
		return string(r[:maxRunes-1]) + "…"
	}
	return name
}
