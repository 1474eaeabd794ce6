package middleware

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/set-night/batchtxt/internal/domain"
)

type ctxKey string

const SessionKey ctxKey = "session"

// SessionSource is the read side of the session store.
type SessionSource interface {
	Get(chatID int64) (domain.Session, bool)
}

// GetSession extracts the session loaded for this update, if any.
func GetSession(ctx context.Context) (domain.Session, bool) {
	s, ok := ctx.Value(SessionKey).(domain.Session)
	return s, ok
}

// WithSession stores s in ctx the way SessionLoader does.
func WithSession(ctx context.Context, s domain.Session) context.Context {
	return context.WithValue(ctx, SessionKey, s)
}

// SessionLoader returns middleware that loads the chat's active session
// into context. Expired sessions are dropped by the store on the way.
func SessionLoader(sessions SessionSource) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if chatID, _ := ids(update); chatID != 0 {
				if s, ok := sessions.Get(chatID); ok {
					ctx = WithSession(ctx, s)
				}
			}
			next(ctx, b, update)
		}
	}
}
