package telegram

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/m-mizutani/goerr/v2"
	"github.com/set-night/batchtxt/internal/config"
)

// API is the part of *bot.Bot the handlers use.
type API interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendDocument(ctx context.Context, params *bot.SendDocumentParams) (*models.Message, error)
	EditMessageText(ctx context.Context, params *bot.EditMessageTextParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
	SendChatAction(ctx context.Context, params *bot.SendChatActionParams) (bool, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
	GetFile(ctx context.Context, params *bot.GetFileParams) (*models.File, error)
	FileDownloadLink(f *models.File) string
}

var _ API = (*bot.Bot)(nil)

// SendText sends plain text, split into as many messages as needed. markup
// is attached to the last part.
func SendText(ctx context.Context, api API, chatID int64, text string, markup models.ReplyMarkup) error {
	return send(ctx, api, chatID, text, "", markup)
}

// SendMarkdown sends MarkdownV2 text and falls back to plain text when
// Telegram rejects the markup.
func SendMarkdown(ctx context.Context, api API, chatID int64, text string, markup models.ReplyMarkup) error {
	return send(ctx, api, chatID, text, models.ParseModeMarkdown, markup)
}

func send(ctx context.Context, api API, chatID int64, text string, mode models.ParseMode, markup models.ReplyMarkup) error {
	parts := SplitMessage(text, config.MaxTelegramMessageLen)
	for i, part := range parts {
		params := &bot.SendMessageParams{
			ChatID:    chatID,
			Text:      part,
			ParseMode: mode,
		}
		if i == len(parts)-1 && markup != nil {
			params.ReplyMarkup = markup
		}

		_, err := api.SendMessage(ctx, params)
		if err != nil && mode != "" {
			slog.Warn("markdown send failed, falling back to plain text", "chat_id", chatID, "error", err)
			params.ParseMode = ""
			_, err = api.SendMessage(ctx, params)
		}
		if err != nil {
			return goerr.Wrap(err, "failed to send message", goerr.V("chat_id", chatID))
		}
	}
	return nil
}

// EditText replaces the text of a bot message, typically the one holding
// an inline keyboard that was just used.
func EditText(ctx context.Context, api API, chatID int64, messageID int, text string, markup models.ReplyMarkup) error {
	params := &bot.EditMessageTextParams{
		ChatID:    chatID,
		MessageID: messageID,
		Text:      Truncate(text, config.MaxTelegramMessageLen),
	}
	if markup != nil {
		params.ReplyMarkup = markup
	}
	if _, err := api.EditMessageText(ctx, params); err != nil {
		return goerr.Wrap(err, "failed to edit message", goerr.V("chat_id", chatID), goerr.V("message_id", messageID))
	}
	return nil
}

// SendDocument uploads data as a file named filename.
func SendDocument(ctx context.Context, api API, chatID int64, filename string, data io.Reader, caption string) error {
	_, err := api.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID:   chatID,
		Document: &models.InputFileUpload{Filename: filename, Data: data},
		Caption:  Truncate(caption, config.MaxCaptionLen),
	})
	if err != nil {
		return goerr.Wrap(err, "failed to send document", goerr.V("chat_id", chatID), goerr.V("filename", filename))
	}
	return nil
}

// StartAction repeats a chat action every 4 seconds until the returned
// cancel function is called.
func StartAction(ctx context.Context, api API, chatID int64, action models.ChatAction) context.CancelFunc {
	ctx, cancel := context.WithCancel(ctx)
	go func() {
		ticker := time.NewTicker(4 * time.Second)
		defer ticker.Stop()
		for {
			_, _ = api.SendChatAction(ctx, &bot.SendChatActionParams{
				ChatID: chatID,
				Action: action,
			})
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return cancel
}
