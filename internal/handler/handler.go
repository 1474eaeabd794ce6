package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/m-mizutani/goerr/v2"
	"github.com/set-night/batchtxt/internal/config"
	"github.com/set-night/batchtxt/internal/domain"
	"github.com/set-night/batchtxt/internal/middleware"
	"github.com/set-night/batchtxt/internal/platform"
	"github.com/set-night/batchtxt/internal/service"
	"github.com/set-night/batchtxt/internal/telegram"
)

// Extractor is the platform work the handlers drive; *service.ExtractorService
// in production.
type Extractor interface {
	Platform(key string) (*platform.Platform, error)
	Keys() []string
	Authenticate(ctx context.Context, key string, cred platform.Credential) (string, error)
	SendOTP(ctx context.Context, key, phone string) error
	VerifyOTP(ctx context.Context, key, phone, otp string) (string, error)
	Batches(ctx context.Context, key, token string) ([]domain.BatchSummary, error)
	Subjects(ctx context.Context, key, token, batchID string) ([]domain.SubjectSummary, error)
	Extract(ctx context.Context, key, token string, req platform.ExtractRequest) (*service.Extraction, error)
}

var _ Extractor = (*service.ExtractorService)(nil)

// Handler holds all dependencies needed by command and callback handlers.
type Handler struct {
	cfg        *config.Config
	sessions   *service.SessionStore
	extractor  Extractor
	metrics    *service.Metrics
	audit      *telegram.AuditLogger
	httpClient *http.Client
	now        func() time.Time

	// jobs tracks extractions running past their update handler.
	jobs sync.WaitGroup
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Cfg        *config.Config
	Sessions   *service.SessionStore
	Extractor  Extractor
	Metrics    *service.Metrics
	Audit      *telegram.AuditLogger
	HTTPClient *http.Client
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	hc := deps.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Handler{
		cfg:        deps.Cfg,
		sessions:   deps.Sessions,
		extractor:  deps.Extractor,
		metrics:    deps.Metrics,
		audit:      deps.Audit,
		httpClient: hc,
		now:        time.Now,
	}
}

// handlerFunc is a bot handler that works against the API interface, so
// tests can drive it with a fake.
type handlerFunc func(ctx context.Context, api telegram.API, update *models.Update)

func wrap(fn handlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		fn(ctx, b, update)
	}
}

// Wait blocks until background extractions have finished.
func (h *Handler) Wait() {
	h.jobs.Wait()
}

// background runs fn outside the update loop. A panic in fn is handled
// like one in an update handler: logged, audited, the session ended and the
// user told.
func (h *Handler) background(ctx context.Context, api telegram.API, chatID int64, sessionID string, fn func()) {
	h.jobs.Add(1)
	go func() {
		defer h.jobs.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic recovered in background job",
					"panic", r,
					"chat_id", chatID,
					"session_id", sessionID,
					"stack", string(debug.Stack()),
				)
				h.audit.LogError(goerr.New(fmt.Sprintf("panic: %v", r), goerr.V("chat_id", chatID)), "background")
				h.sessions.End(chatID, sessionID)
				h.reply(ctx, api, chatID, msgGeneric, false, nil)
			}
		}()
		fn()
	}()
}

// currentSession prefers the session SessionLoader put into ctx and falls
// back to the store when the middleware did not run.
func (h *Handler) currentSession(ctx context.Context, chatID int64) (domain.Session, bool) {
	if s, ok := middleware.GetSession(ctx); ok && s.ChatID == chatID {
		return s, true
	}
	return h.sessions.Get(chatID)
}

func actorOf(u *models.User) telegram.Actor {
	if u == nil {
		return telegram.Actor{}
	}
	return telegram.Actor{UserID: u.ID, Username: u.Username}
}
