package handler

import (
	"context"
	"strings"

	"github.com/go-telegram/bot/models"
	"github.com/set-night/batchtxt/internal/domain"
	"github.com/set-night/batchtxt/internal/telegram"
)

// handleMessage routes non-command messages by the state of the chat's
// session.
func (h *Handler) handleMessage(ctx context.Context, api telegram.API, update *models.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	chatID := msg.Chat.ID

	sess, ok := h.currentSession(ctx, chatID)
	if !ok {
		if msg.Chat.Type == "private" {
			h.reply(ctx, api, chatID, "Send /start to see the available commands.", false, nil)
		}
		return
	}
	if sess.UserID != msg.From.ID {
		// Someone else in a group chat; the dialogue belongs to its starter.
		return
	}

	if msg.Document != nil {
		if sess.State != domain.StateUpload {
			h.reply(ctx, api, chatID, "Send /html first to convert a text report.", false, nil)
			return
		}
		h.handleDocument(ctx, api, msg, sess)
		return
	}
	if strings.TrimSpace(msg.Text) == "" {
		return
	}

	switch sess.State {
	case domain.StateLoginChoice:
		h.chooseLogin(ctx, api, chatID, sess, msg.Text)
	case domain.StateCredential:
		h.handleCredential(ctx, api, msg, sess)
	case domain.StateSecret:
		h.handleSecret(ctx, api, msg, sess)
	case domain.StateOTP:
		h.handleOTP(ctx, api, msg, sess)
	case domain.StateBatch:
		h.handleBatchText(ctx, api, msg, sess)
	case domain.StateContentType:
		h.handleContentTypeText(ctx, api, msg, sess)
	case domain.StateExtracting:
		h.reply(ctx, api, chatID, msgBusy, false, nil)
	case domain.StateUpload:
		h.reply(ctx, api, chatID, msgSendTxt, false, nil)
	}
}

// SweepExpired drops idle sessions and tells their chats.
func (h *Handler) SweepExpired(ctx context.Context, api telegram.API) int {
	expired := h.sessions.Sweep()
	for _, s := range expired {
		h.reply(ctx, api, s.ChatID, msgTimedOut, false, nil)
	}
	return len(expired)
}
