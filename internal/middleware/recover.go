package middleware

import (
	"context"
	"log/slog"
	"runtime/debug"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// PanicHandler is told about an update whose handler panicked, after the
// panic has been logged.
type PanicHandler func(ctx context.Context, update *models.Update, recovered any)

// Recover returns middleware that recovers from panics.
func Recover(onPanic PanicHandler) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			defer func() {
				if r := recover(); r != nil {
					chatID, userID := ids(update)
					slog.Error("panic recovered in handler",
						"panic", r,
						"chat_id", chatID,
						"user_id", userID,
						"stack", string(debug.Stack()),
					)
					if onPanic != nil {
						onPanic(ctx, update, r)
					}
				}
			}()
			next(ctx, b, update)
		}
	}
}

// ids pulls the chat and user out of the update kinds the bot handles.
func ids(update *models.Update) (chatID, userID int64) {
	switch {
	case update.Message != nil:
		chatID = update.Message.Chat.ID
		if update.Message.From != nil {
			userID = update.Message.From.ID
		}
	case update.CallbackQuery != nil:
		if update.CallbackQuery.Message.Message != nil {
			chatID = update.CallbackQuery.Message.Message.Chat.ID
		}
		userID = update.CallbackQuery.From.ID
	}
	return chatID, userID
}
