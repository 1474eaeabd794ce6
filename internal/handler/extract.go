package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/go-telegram/bot/models"
	"github.com/m-mizutani/goerr/v2"
	"github.com/set-night/batchtxt/internal/domain"
	"github.com/set-night/batchtxt/internal/platform"
	"github.com/set-night/batchtxt/internal/report"
	"github.com/set-night/batchtxt/internal/telegram"
)

// startExtraction claims the session and runs the walk in the background so
// the update loop stays free while upstream calls are in flight.
func (h *Handler) startExtraction(ctx context.Context, api telegram.API, chatID int64, actor telegram.Actor, sess domain.Session, contentType string) {
	if err := h.sessions.TryBegin(chatID, sess.ID); err != nil {
		if errors.Is(err, domain.ErrSessionBusy) {
			h.reply(ctx, api, chatID, msgBusy, false, nil)
		}
		return
	}
	sess.ContentType = contentType

	h.background(ctx, api, chatID, sess.ID, func() {
		h.runExtraction(ctx, api, chatID, actor, sess)
	})
}

func (h *Handler) runExtraction(ctx context.Context, api telegram.API, chatID int64, actor telegram.Actor, sess domain.Session) {
	stop := telegram.StartAction(ctx, api, chatID, models.ChatActionUploadDocument)
	defer stop()

	res, err := h.extractor.Extract(ctx, sess.Platform, sess.Token, platform.ExtractRequest{
		Batch:       *sess.Batch,
		Subjects:    sess.Subjects,
		ContentType: sess.ContentType,
	})
	if err != nil {
		h.presentError(ctx, api, chatID, sess.ID, "extract", err)
		return
	}

	name := report.FileName(strings.ToUpper(sess.Platform), sess.Batch.ID, sess.ContentType)
	path, cleanup, err := report.WriteTemp(h.cfg.ReportDir, sess.ID, name, res.Report.Bytes())
	if err != nil {
		h.presentError(ctx, api, chatID, sess.ID, "write_report", err)
		return
	}
	defer cleanup()

	if err := h.deliver(ctx, api, chatID, path, name, sess, res.Items, res.Elapsed.Seconds()); err != nil {
		h.presentError(ctx, api, chatID, sess.ID, "deliver", err)
		return
	}

	h.audit.LogExtraction(telegram.ExtractionRecord{
		Platform:    sess.Platform,
		Actor:       actor,
		BatchID:     sess.Batch.ID,
		BatchName:   sess.Batch.Name,
		ContentType: sess.ContentType,
		Items:       res.Items,
		Elapsed:     res.Elapsed,
		FileName:    name,
	})
	slog.Info("extraction delivered",
		"chat_id", chatID,
		"platform", sess.Platform,
		"batch_id", sess.Batch.ID,
		"content_type", sess.ContentType,
		"items", res.Items,
		"elapsed", res.Elapsed,
	)
	h.sessions.End(chatID, sess.ID)
}

func (h *Handler) deliver(ctx context.Context, api telegram.API, chatID int64, path, name string, sess domain.Session, items int, seconds float64) error {
	f, err := os.Open(path)
	if err != nil {
		return goerr.Wrap(err, "failed to open report", goerr.V("path", path))
	}
	defer f.Close()

	return telegram.SendDocument(ctx, api, chatID, name, f, extractionCaption(sess, items, seconds))
}

func extractionCaption(sess domain.Session, items int, seconds float64) string {
	contentType := sess.ContentType
	if contentType == "" {
		contentType = "all"
	}
	return fmt.Sprintf("Here's your extracted content!✨\n\n"+
		"Batch: %s\nBatch ID💡: %s\nContent Type: %s\nLinks: %d\nExtraction time⏱️: %.2f seconds",
		sess.Batch.Name, sess.Batch.ID, contentType, items, seconds)
}
