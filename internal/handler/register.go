package handler

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/batchtxt/internal/domain"
	"github.com/set-night/batchtxt/internal/telegram"
)

type route struct {
	prefix string
	fn     handlerFunc
}

func (h *Handler) commands() []route {
	return []route{
		{"/start", h.handleStart},
		{"/cancel", h.handleCancel},
		{"/html", h.handleHTML},
		{"/stats", h.handleStats},
		{"/pw", h.platformCommand("pw")},
		{"/ak", h.platformCommand("ak")},
		{"/cw", h.platformCommand("cw")},
		{"/kgs", h.platformCommand("kgs")},
	}
}

func (h *Handler) callbacks() []route {
	return []route{
		{telegram.CallbackContentType, h.handleContentTypeCallback},
		{telegram.CallbackBatchPage, h.handleBatchPage},
		{telegram.CallbackBatch, h.handleBatchCallback},
		{telegram.CallbackLoginChoice, h.handleLoginChoiceCallback},
		{telegram.CallbackNoop, h.handleNoop},
	}
}

// Register registers all command and callback handlers on the bot instance.
// Plain text and documents reach Default.
func (h *Handler) Register(b *bot.Bot) {
	for _, r := range h.commands() {
		b.RegisterHandler(bot.HandlerTypeMessageText, r.prefix, bot.MatchTypePrefix, wrap(r.fn))
	}
	for _, r := range h.callbacks() {
		b.RegisterHandler(bot.HandlerTypeCallbackQueryData, r.prefix, bot.MatchTypePrefix, wrap(r.fn))
	}
}

// Default is the bot's default handler.
func (h *Handler) Default(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.handleMessage(ctx, b, update)
}

// HandleUpdate routes an update the same way the registered handlers do.
func (h *Handler) HandleUpdate(ctx context.Context, api telegram.API, update *models.Update) {
	switch {
	case update.CallbackQuery != nil:
		data := update.CallbackQuery.Data
		for _, r := range h.callbacks() {
			if strings.HasPrefix(data, r.prefix) {
				r.fn(ctx, api, update)
				return
			}
		}
		h.handleNoop(ctx, api, update)
	case update.Message != nil:
		if cmd := commandOf(update.Message.Text); cmd != "" {
			for _, r := range h.commands() {
				if cmd == r.prefix {
					r.fn(ctx, api, update)
					return
				}
			}
		}
		h.handleMessage(ctx, api, update)
	}
}

// commandOf returns "/cmd" for "/cmd@bot args", or "" for non-commands.
func commandOf(text string) string {
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd, _, _ := strings.Cut(strings.Fields(text)[0], "@")
	return cmd
}

// handleNoop acknowledges callbacks of inert buttons such as page counters.
func (h *Handler) handleNoop(ctx context.Context, api telegram.API, update *models.Update) {
	if update.CallbackQuery != nil {
		answer(ctx, api, update.CallbackQuery, "")
	}
}

func answer(ctx context.Context, api telegram.API, cq *models.CallbackQuery, text string) {
	_, _ = api.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
		CallbackQueryID: cq.ID,
		Text:            text,
	})
}

// ownsButton reports whether the button was pressed by the user who started
// the dialogue; in groups everyone sees the keyboard.
func ownsButton(sess domain.Session, cq *models.CallbackQuery) bool {
	return sess.UserID == cq.From.ID
}

// callbackChat returns the chat and message id the pressed button lives in.
func callbackChat(cq *models.CallbackQuery) (int64, int, bool) {
	if cq.Message.Message == nil {
		return 0, 0, false
	}
	return cq.Message.Message.Chat.ID, cq.Message.Message.ID, true
}
