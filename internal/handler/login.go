package handler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/batchtxt/internal/domain"
	"github.com/set-night/batchtxt/internal/platform"
	"github.com/set-night/batchtxt/internal/telegram"
)

// platformCommand starts the login dialogue for one platform.
func (h *Handler) platformCommand(key string) handlerFunc {
	return func(ctx context.Context, api telegram.API, update *models.Update) {
		if update.Message == nil || update.Message.From == nil {
			return
		}
		chatID := update.Message.Chat.ID

		p, err := h.extractor.Platform(key)
		if err != nil {
			h.reply(ctx, api, chatID, msgPlatformOff, false, nil)
			return
		}
		if h.sessions.Busy(chatID) {
			h.reply(ctx, api, chatID, msgBusy, false, nil)
			return
		}

		state := domain.StateCredential
		var markup models.ReplyMarkup
		if p.LoginChoice {
			state = domain.StateLoginChoice
			markup = telegram.LoginChoiceKeyboard()
		}

		sess, prev := h.sessions.Start(chatID, update.Message.From.ID, key, state)
		if prev != nil {
			h.reply(ctx, api, chatID, msgEndingPrevious, false, nil)
		}
		if h.metrics != nil {
			h.metrics.SessionStarted(key)
		}
		slog.Info("session started", "chat_id", chatID, "platform", key, "session_id", sess.ID)

		h.reply(ctx, api, chatID, p.Prompt, false, markup)
	}
}

func (h *Handler) handleLoginChoiceCallback(ctx context.Context, api telegram.API, update *models.Update) {
	cq := update.CallbackQuery
	chatID, _, ok := callbackChat(cq)
	if !ok {
		return
	}
	sess, ok := h.currentSession(ctx, chatID)
	if !ok || sess.State != domain.StateLoginChoice {
		answer(ctx, api, cq, "")
		return
	}
	if !ownsButton(sess, cq) {
		answer(ctx, api, cq, msgNotYours)
		return
	}
	answer(ctx, api, cq, "")
	h.chooseLogin(ctx, api, chatID, sess, strings.TrimPrefix(cq.Data, telegram.CallbackLoginChoice))
}

// chooseLogin handles "1" (password) or "2" (token); both continue with the
// user id.
func (h *Handler) chooseLogin(ctx context.Context, api telegram.API, chatID int64, sess domain.Session, choice string) {
	var method domain.LoginMethod
	switch strings.TrimSpace(choice) {
	case "1":
		method = domain.LoginPassword
	case "2":
		method = domain.LoginToken
	default:
		h.sessions.Touch(chatID, sess.ID)
		h.reply(ctx, api, chatID, "Invalid choice! Please enter 1 or 2.", false, nil)
		return
	}

	if _, ok := h.sessions.Update(chatID, sess.ID, func(s *domain.Session) {
		s.Method = method
		s.State = domain.StateCredential
	}); !ok {
		return
	}
	h.reply(ctx, api, chatID, "Please enter your User ID:", false, nil)
}

func (h *Handler) handleCredential(ctx context.Context, api telegram.API, msg *models.Message, sess domain.Session) {
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	p, err := h.extractor.Platform(sess.Platform)
	if err != nil {
		h.presentError(ctx, api, chatID, sess.ID, "credential", err)
		return
	}

	// Multi-step login: this message is the user id, the secret follows.
	if p.LoginChoice {
		if _, ok := h.sessions.Update(chatID, sess.ID, func(s *domain.Session) {
			s.Identifier = text
			s.State = domain.StateSecret
		}); !ok {
			return
		}
		prompt := "Please enter your Password:"
		if sess.Method == domain.LoginToken {
			prompt = "Please enter your Token:"
		}
		h.reply(ctx, api, chatID, prompt, false, nil)
		return
	}

	if p.OTP != nil && platform.IsPhone(text) {
		h.startOTP(ctx, api, msg, sess, text)
		return
	}

	cred := platform.ParseCredential(text)
	if p.Login == nil {
		// Token-only platforms take the message as is.
		cred = platform.Credential{Method: domain.LoginToken, Secret: text}
	}
	if cred.Method == domain.LoginPassword {
		h.deleteQuietly(ctx, api, chatID, msg.ID)
	}
	h.authenticate(ctx, api, msg, sess, cred)
}

func (h *Handler) handleSecret(ctx context.Context, api telegram.API, msg *models.Message, sess domain.Session) {
	h.deleteQuietly(ctx, api, msg.Chat.ID, msg.ID)

	cred := platform.Credential{
		Method:     sess.Method,
		Identifier: sess.Identifier,
		Secret:     strings.TrimSpace(msg.Text),
	}
	h.authenticate(ctx, api, msg, sess, cred)
}

func (h *Handler) startOTP(ctx context.Context, api telegram.API, msg *models.Message, sess domain.Session, phone string) {
	chatID := msg.Chat.ID
	if err := h.extractor.SendOTP(ctx, sess.Platform, phone); err != nil {
		h.audit.LogLogin(telegram.LoginRecord{
			Platform:   sess.Platform,
			Actor:      actorOf(msg.From),
			Method:     domain.LoginOTP,
			Identifier: phone,
			Err:        err,
		})
		h.presentError(ctx, api, chatID, sess.ID, "send_otp", err)
		return
	}

	if _, ok := h.sessions.Update(chatID, sess.ID, func(s *domain.Session) {
		s.Method = domain.LoginOTP
		s.Identifier = phone
		s.State = domain.StateOTP
	}); !ok {
		return
	}
	h.reply(ctx, api, chatID, "📩 OTP sent. Please enter the OTP you received:", false, nil)
}

func (h *Handler) handleOTP(ctx context.Context, api telegram.API, msg *models.Message, sess domain.Session) {
	chatID := msg.Chat.ID
	h.deleteQuietly(ctx, api, chatID, msg.ID)

	token, err := h.extractor.VerifyOTP(ctx, sess.Platform, sess.Identifier, msg.Text)
	h.audit.LogLogin(telegram.LoginRecord{
		Platform:   sess.Platform,
		Actor:      actorOf(msg.From),
		Method:     domain.LoginOTP,
		Identifier: sess.Identifier,
		Token:      token,
		Err:        err,
	})
	if err != nil {
		h.presentError(ctx, api, chatID, sess.ID, "verify_otp", err)
		return
	}
	h.reply(ctx, api, chatID, "✅ Login successful!", false, nil)
	h.showBatches(ctx, api, chatID, sess, token)
}

func (h *Handler) authenticate(ctx context.Context, api telegram.API, msg *models.Message, sess domain.Session, cred platform.Credential) {
	chatID := msg.Chat.ID

	token, err := h.extractor.Authenticate(ctx, sess.Platform, cred)
	h.audit.LogLogin(telegram.LoginRecord{
		Platform:   sess.Platform,
		Actor:      actorOf(msg.From),
		Method:     cred.Method,
		Identifier: cred.Identifier,
		Token:      token,
		Err:        err,
	})
	if err != nil {
		h.presentError(ctx, api, chatID, sess.ID, "login", err)
		return
	}

	if cred.Method == domain.LoginPassword {
		h.reply(ctx, api, chatID, fmt.Sprintf("✅ Login successful\\!\n\nYour token: %s", telegram.Code(token)), true, nil)
	}
	h.showBatches(ctx, api, chatID, sess, token)
}

// deleteQuietly removes a message holding a secret. Failures only matter
// to the logs; in groups the bot may lack the right.
func (h *Handler) deleteQuietly(ctx context.Context, api telegram.API, chatID int64, messageID int) {
	if _, err := api.DeleteMessage(ctx, &bot.DeleteMessageParams{ChatID: chatID, MessageID: messageID}); err != nil {
		slog.Debug("could not delete credential message", "chat_id", chatID, "error", err)
	}
}
