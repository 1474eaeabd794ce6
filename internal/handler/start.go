package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot/models"
	"github.com/set-night/batchtxt/internal/telegram"
)

var platformBlurbs = map[string]string{
	"pw":  "for Physics Wallah content",
	"ak":  "for Apni Kaksha content",
	"cw":  "for CareerWill content",
	"kgs": "for Khan GS content",
}

func (h *Handler) handleStart(ctx context.Context, api telegram.API, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	name := "user"
	if update.Message.From != nil && update.Message.From.FirstName != "" {
		name = update.Message.From.FirstName
	}

	var b strings.Builder
	fmt.Fprintf(&b, "👋 Hello *%s*\\! I'm a simple batch to TxT extractor bot\\.\n\n", telegram.Esc(name))
	for _, key := range h.extractor.Keys() {
		fmt.Fprintf(&b, "🫠 /%s \\- %s\n", key, telegram.Esc(platformBlurbs[key]))
	}
	b.WriteString("\n🌐 /html \\- convert txt to html\n")
	b.WriteString("✖️ /cancel \\- stop the current conversation")

	h.reply(ctx, api, chatID, b.String(), true, nil)
}

func (h *Handler) handleCancel(ctx context.Context, api telegram.API, update *models.Update) {
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	if h.sessions.Busy(chatID) {
		h.reply(ctx, api, chatID, msgBusy, false, nil)
		return
	}
	if h.sessions.End(chatID, "") {
		h.reply(ctx, api, chatID, "🔄 Conversation cancelled.", false, nil)
		return
	}
	h.reply(ctx, api, chatID, "There is no active conversation. Send /start to see the commands.", false, nil)
}
