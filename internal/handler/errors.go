package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-telegram/bot/models"
	"github.com/m-mizutani/goerr/v2"
	"github.com/set-night/batchtxt/internal/domain"
	"github.com/set-night/batchtxt/internal/middleware"
	"github.com/set-night/batchtxt/internal/telegram"
)

const (
	msgInvalidToken   = "Invalid or Expired Token. Please Provide A Valid Token."
	msgLoginFailed    = "Login failed. Please check your credentials and try again."
	msgOTPRejected    = "OTP verification failed. Please start again."
	msgNoBatches      = "No batches found or failed to fetch. Please check your token."
	msgNoSubjects     = "No subjects found for this batch."
	msgNoContent      = "No content found."
	msgPlatformOff    = "This platform is currently disabled."
	msgUpstream       = "The platform is not responding right now. Please try again later."
	msgGeneric        = "An error occurred. Please try again later."
	msgBusy           = "⏳ Extraction in progress. Please wait for the file."
	msgTimedOut       = "Conversation timed out. Please start again."
	msgEndingPrevious = "Ending previous conversation..."
	msgNotYours       = "These buttons belong to someone else's conversation."
)

// userMessage maps an error onto the text shown in chat. Specific sentinels
// win over the error kind.
func userMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidToken):
		return msgInvalidToken
	case errors.Is(err, domain.ErrLoginFailed):
		return msgLoginFailed
	case errors.Is(err, domain.ErrOTPRejected):
		return msgOTPRejected
	case errors.Is(err, domain.ErrNoBatches):
		return msgNoBatches
	case errors.Is(err, domain.ErrNoSubjects):
		return msgNoSubjects
	case errors.Is(err, domain.ErrNoContent):
		return msgNoContent
	case errors.Is(err, domain.ErrPlatformOff):
		return msgPlatformOff
	}

	switch domain.KindOf(err) {
	case domain.KindAuthFailure:
		return msgInvalidToken
	case domain.KindEmptyResult:
		return msgNoContent
	case domain.KindUpstreamUnavailable:
		return msgUpstream
	default:
		return msgGeneric
	}
}

// presentError is the single exit for failed steps: it logs by kind, tells
// the user and ends the session.
func (h *Handler) presentError(ctx context.Context, api telegram.API, chatID int64, sessionID, where string, err error) {
	kind := domain.KindOf(err)
	attrs := []any{"chat_id", chatID, "where", where, "kind", kind.String(), "error", err}
	switch kind {
	case domain.KindEmptyResult:
		slog.Info("step ended without results", attrs...)
	case domain.KindAuthFailure:
		slog.Warn("authentication failed", attrs...)
	default:
		slog.Error("step failed", attrs...)
		h.audit.LogError(err, where)
	}

	h.sessions.End(chatID, sessionID)
	h.reply(ctx, api, chatID, userMessage(err), false, nil)
}

// RecoverPanic is the middleware.Recover callback: the panicking update's
// session is dropped and the user gets the generic message.
func (h *Handler) RecoverPanic(api telegram.API) middleware.PanicHandler {
	return func(ctx context.Context, update *models.Update, recovered any) {
		var chatID int64
		switch {
		case update.Message != nil:
			chatID = update.Message.Chat.ID
		case update.CallbackQuery != nil:
			chatID, _, _ = callbackChat(update.CallbackQuery)
		}
		if chatID == 0 {
			return
		}

		err := goerr.New(fmt.Sprintf("panic: %v", recovered), goerr.V("chat_id", chatID))
		h.audit.LogError(err, "panic")
		h.sessions.End(chatID, "")
		h.reply(ctx, api, chatID, msgGeneric, false, nil)
	}
}

// reply sends text and logs failures; chat delivery errors are not
// actionable for the caller.
func (h *Handler) reply(ctx context.Context, api telegram.API, chatID int64, text string, markdown bool, markup models.ReplyMarkup) {
	var err error
	if markdown {
		err = telegram.SendMarkdown(ctx, api, chatID, text, markup)
	} else {
		err = telegram.SendText(ctx, api, chatID, text, markup)
	}
	if err != nil {
		slog.Error("failed to send message", "chat_id", chatID, "error", err)
	}
}
