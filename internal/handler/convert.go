package handler

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/go-telegram/bot/models"
	"github.com/set-night/batchtxt/internal/config"
	"github.com/set-night/batchtxt/internal/domain"
	"github.com/set-night/batchtxt/internal/htmlreport"
	"github.com/set-night/batchtxt/internal/telegram"
)

const msgSendTxt = "Please send your text file to convert to HTML."

// handleHTML starts the txt to html conversion dialogue.
func (h *Handler) handleHTML(ctx context.Context, api telegram.API, update *models.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	chatID := update.Message.Chat.ID

	if h.sessions.Busy(chatID) {
		h.reply(ctx, api, chatID, msgBusy, false, nil)
		return
	}
	_, prev := h.sessions.Start(chatID, update.Message.From.ID, "html", domain.StateUpload)
	if prev != nil {
		h.reply(ctx, api, chatID, msgEndingPrevious, false, nil)
	}
	h.reply(ctx, api, chatID, msgSendTxt, false, nil)
}

func (h *Handler) handleDocument(ctx context.Context, api telegram.API, msg *models.Message, sess domain.Session) {
	chatID := msg.Chat.ID
	doc := msg.Document

	if !isTextFile(doc) {
		h.sessions.Touch(chatID, sess.ID)
		h.reply(ctx, api, chatID, "Please send a .txt file.", false, nil)
		return
	}
	if doc.FileSize > config.MaxUploadBytes {
		h.sessions.End(chatID, sess.ID)
		h.reply(ctx, api, chatID, "❌ The file is too large.", false, nil)
		return
	}

	h.reply(ctx, api, chatID, "Converting your txt file in HTML... 🕸", false, nil)

	data, _, err := telegram.DownloadFile(ctx, api, h.httpClient, doc.FileID, config.MaxUploadBytes)
	if err != nil {
		h.presentError(ctx, api, chatID, sess.ID, "download_upload", err)
		return
	}

	title := strings.TrimSuffix(doc.FileName, path.Ext(doc.FileName))
	out, links, err := htmlreport.Convert(string(data), htmlreport.Options{
		Title:          title,
		PlayerTemplate: h.cfg.PlayerURLTemplate,
		GeneratedAt:    h.now(),
	})
	if err != nil {
		h.presentError(ctx, api, chatID, sess.ID, "convert", err)
		return
	}
	if links == 0 {
		h.sessions.End(chatID, sess.ID)
		h.reply(ctx, api, chatID, "No `title: url` lines found in this file.", false, nil)
		return
	}

	name := fmt.Sprintf("converted_%d.html", h.now().Unix())
	err = telegram.SendDocument(ctx, api, chatID, name, bytes.NewReader(out),
		"✅ Your text file has been converted to HTML successfully!")
	if err != nil {
		h.presentError(ctx, api, chatID, sess.ID, "deliver_html", err)
		return
	}

	if h.metrics != nil {
		h.metrics.Converted()
	}
	h.audit.LogConversion(actorOf(msg.From), links)
	slog.Info("html conversion delivered", "chat_id", chatID, "links", links, "bytes", len(out))
	h.sessions.End(chatID, sess.ID)
}

func isTextFile(doc *models.Document) bool {
	if strings.EqualFold(path.Ext(doc.FileName), ".txt") {
		return true
	}
	return strings.HasPrefix(doc.MimeType, "text/plain")
}
