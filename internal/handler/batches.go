package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot/models"
	"github.com/set-night/batchtxt/internal/config"
	"github.com/set-night/batchtxt/internal/domain"
	"github.com/set-night/batchtxt/internal/platform"
	"github.com/set-night/batchtxt/internal/telegram"
)

// showBatches lists the batches the token can see and moves the session to
// batch selection.
func (h *Handler) showBatches(ctx context.Context, api telegram.API, chatID int64, sess domain.Session, token string) {
	h.reply(ctx, api, chatID, "Fetching your batches. Please wait✋...", false, nil)

	batches, err := h.extractor.Batches(ctx, sess.Platform, token)
	if err != nil {
		h.presentError(ctx, api, chatID, sess.ID, "list_batches", err)
		return
	}

	if _, ok := h.sessions.Update(chatID, sess.ID, func(s *domain.Session) {
		s.Token = token
		s.Batches = batches
		s.State = domain.StateBatch
	}); !ok {
		return
	}

	h.reply(ctx, api, chatID, batchListing(batches), false,
		telegram.BatchKeyboard(batches, 0, config.BatchesPerPage))
}

func batchListing(batches []domain.BatchSummary) string {
	var b strings.Builder
	b.WriteString("Your Batches😉:\n\n")
	for _, bt := range batches {
		fmt.Fprintf(&b, "%s - %s - %s\n", bt.ID, bt.Name, bt.PriceLabel())
	}
	b.WriteString("\nSend the Batch ID to proceed⏳, or pick one below:")
	return b.String()
}

func (h *Handler) handleBatchText(ctx context.Context, api telegram.API, msg *models.Message, sess domain.Session) {
	h.selectBatch(ctx, api, msg.Chat.ID, actorOf(msg.From), sess, strings.TrimSpace(msg.Text))
}

func (h *Handler) handleBatchCallback(ctx context.Context, api telegram.API, update *models.Update) {
	cq := update.CallbackQuery
	chatID, messageID, ok := callbackChat(cq)
	if !ok {
		return
	}

	sess, ok := h.currentSession(ctx, chatID)
	if !ok || sess.State != domain.StateBatch {
		answer(ctx, api, cq, "This selection has expired.")
		return
	}
	if !ownsButton(sess, cq) {
		answer(ctx, api, cq, msgNotYours)
		return
	}
	answer(ctx, api, cq, "")

	id := strings.TrimPrefix(cq.Data, telegram.CallbackBatch)
	if batch, found := domain.FindBatch(sess.Batches, id); found {
		_ = telegram.EditText(ctx, api, chatID, messageID, fmt.Sprintf("Selected batch: %s (%s)", batch.Name, batch.ID), nil)
	}
	h.selectBatch(ctx, api, chatID, actorOf(&cq.From), sess, id)
}

func (h *Handler) handleBatchPage(ctx context.Context, api telegram.API, update *models.Update) {
	cq := update.CallbackQuery
	chatID, messageID, ok := callbackChat(cq)
	if !ok {
		return
	}
	sess, ok := h.currentSession(ctx, chatID)
	if !ok || sess.State != domain.StateBatch {
		answer(ctx, api, cq, "")
		return
	}
	if !ownsButton(sess, cq) {
		answer(ctx, api, cq, msgNotYours)
		return
	}
	answer(ctx, api, cq, "")

	page, err := strconv.Atoi(strings.TrimPrefix(cq.Data, telegram.CallbackBatchPage))
	if err != nil {
		return
	}
	h.sessions.Touch(chatID, sess.ID)

	text := cq.Message.Message.Text
	if text == "" {
		text = batchListing(sess.Batches)
	}
	_ = telegram.EditText(ctx, api, chatID, messageID, text,
		telegram.BatchKeyboard(sess.Batches, page, config.BatchesPerPage))
}

// selectBatch accepts only ids from the listing shown to the user; anything
// else re-prompts.
func (h *Handler) selectBatch(ctx context.Context, api telegram.API, chatID int64, actor telegram.Actor, sess domain.Session, id string) {
	batch, ok := domain.FindBatch(sess.Batches, id)
	if !ok {
		h.sessions.Touch(chatID, sess.ID)
		h.reply(ctx, api, chatID, "Invalid Batch ID! Please try again.", false, nil)
		return
	}

	p, err := h.extractor.Platform(sess.Platform)
	if err != nil {
		h.presentError(ctx, api, chatID, sess.ID, "select_batch", err)
		return
	}

	subjects, err := h.extractor.Subjects(ctx, sess.Platform, sess.Token, batch.ID)
	if err != nil {
		h.presentError(ctx, api, chatID, sess.ID, "list_subjects", err)
		return
	}

	selected := *batch
	updated, ok := h.sessions.Update(chatID, sess.ID, func(s *domain.Session) {
		s.Batch = &selected
		s.Subjects = subjects
		s.State = domain.StateContentType
	})
	if !ok {
		return
	}

	if len(p.ContentTypes) == 0 {
		h.reply(ctx, api, chatID, "Link extraction started. Please wait✋...", false, nil)
		h.startExtraction(ctx, api, chatID, actor, updated, "")
		return
	}

	if p.ContentButtons {
		h.reply(ctx, api, chatID, "Choose the type of content to extract:", false,
			telegram.ContentTypeKeyboard(p.ContentTypes))
		return
	}
	h.reply(ctx, api, chatID, "Which content do you want? Type one of: "+contentKeys(p), false, nil)
}

func (h *Handler) handleContentTypeText(ctx context.Context, api telegram.API, msg *models.Message, sess domain.Session) {
	chatID := msg.Chat.ID
	p, err := h.extractor.Platform(sess.Platform)
	if err != nil {
		h.presentError(ctx, api, chatID, sess.ID, "content_type", err)
		return
	}

	ct, ok := matchContentType(p, msg.Text)
	if !ok {
		h.sessions.Touch(chatID, sess.ID)
		h.reply(ctx, api, chatID, "Invalid option. Please type one of: "+contentKeys(p), false, nil)
		return
	}

	h.reply(ctx, api, chatID, "Link extraction started. Please wait✋...", false, nil)
	h.startExtraction(ctx, api, chatID, actorOf(msg.From), sess, ct.Key)
}

func (h *Handler) handleContentTypeCallback(ctx context.Context, api telegram.API, update *models.Update) {
	cq := update.CallbackQuery
	chatID, messageID, ok := callbackChat(cq)
	if !ok {
		return
	}

	sess, ok := h.currentSession(ctx, chatID)
	if !ok || sess.State != domain.StateContentType {
		answer(ctx, api, cq, "This selection has expired.")
		return
	}
	if !ownsButton(sess, cq) {
		answer(ctx, api, cq, msgNotYours)
		return
	}
	answer(ctx, api, cq, "")

	p, err := h.extractor.Platform(sess.Platform)
	if err != nil {
		h.presentError(ctx, api, chatID, sess.ID, "content_type", err)
		return
	}
	ct, ok := p.FindContentType(strings.TrimPrefix(cq.Data, telegram.CallbackContentType))
	if !ok {
		return
	}

	_ = telegram.EditText(ctx, api, chatID, messageID,
		fmt.Sprintf("Extracting content type: %s. Please wait...", ct.Key), nil)
	h.startExtraction(ctx, api, chatID, actorOf(&cq.From), sess, ct.Key)
}

func matchContentType(p *platform.Platform, input string) (domain.ContentType, bool) {
	input = strings.TrimSpace(input)
	for _, ct := range p.ContentTypes {
		if strings.EqualFold(ct.Key, input) {
			return ct, true
		}
	}
	return domain.ContentType{}, false
}

func contentKeys(p *platform.Platform) string {
	keys := make([]string, len(p.ContentTypes))
	for i, ct := range p.ContentTypes {
		keys[i] = ct.Key
	}
	return strings.Join(keys, ", ")
}
