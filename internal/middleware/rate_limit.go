package middleware

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per chat in memory.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[int64]*chatLimiter
	limit    rate.Limit
	burst    int
	now      func() time.Time
}

type chatLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perMinute messages per chat with the given burst.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[int64]*chatLimiter),
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    burst,
		now:      time.Now,
	}
}

func (l *RateLimiter) Allow(chatID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cl, ok := l.limiters[chatID]
	if !ok {
		cl = &chatLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[chatID] = cl
	}
	cl.lastSeen = now
	return cl.limiter.AllowN(now, 1)
}

// Prune forgets chats idle for longer than idle.
func (l *RateLimiter) Prune(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	n := 0
	for id, cl := range l.limiters {
		if now.Sub(cl.lastSeen) > idle {
			delete(l.limiters, id)
			n++
		}
	}
	return n
}

// Middleware limits messages only; button presses are always served.
func (l *RateLimiter) Middleware() bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if update.Message == nil {
				next(ctx, b, update)
				return
			}

			chatID := update.Message.Chat.ID
			if !l.Allow(chatID) {
				slog.Debug("rate limited", "chat_id", chatID)
				if _, err := b.SendMessage(ctx, &bot.SendMessageParams{
					ChatID: chatID,
					Text:   "⏳ Too many requests. Please wait a moment.",
				}); err != nil {
					slog.Warn("failed to send rate limit notice", "chat_id", chatID, "error", err)
				}
				return
			}

			next(ctx, b, update)
		}
	}
}
