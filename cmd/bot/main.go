package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/joho/godotenv"
	"github.com/set-night/batchtxt/internal/config"
	"github.com/set-night/batchtxt/internal/handler"
	"github.com/set-night/batchtxt/internal/logging"
	"github.com/set-night/batchtxt/internal/middleware"
	"github.com/set-night/batchtxt/internal/platform"
	"github.com/set-night/batchtxt/internal/server"
	"github.com/set-night/batchtxt/internal/service"
	"github.com/set-night/batchtxt/internal/telegram"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.SlogLevel(), cfg.LogFormat)
	slog.SetDefault(logger)

	overrides, err := config.LoadPlatforms(cfg.PlatformsFile)
	if err != nil {
		slog.Error("failed to load platform overrides", "error", err, "path", cfg.PlatformsFile)
		os.Exit(1)
	}

	// Setup context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize services
	registry := platform.NewRegistry(cfg, overrides)
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	metrics := service.NewMetrics()
	sessions := service.NewSessionStore(cfg.SessionTimeout)
	extractor := service.NewExtractorService(registry, httpClient, metrics)
	limiter := middleware.NewRateLimiter(config.RateLimitPerMinute, config.RateLimitBurst)

	// Handler and bot pointers for use in middleware closures
	var (
		h *handler.Handler
		b *bot.Bot
	)

	opts := []bot.Option{
		bot.WithMiddlewares(
			middleware.Recover(func(ctx context.Context, update *models.Update, recovered any) {
				if h != nil {
					h.RecoverPanic(b)(ctx, update, recovered)
				}
			}),
			middleware.Logging(),
			limiter.Middleware(),
			middleware.SessionLoader(sessions),
		),
		bot.WithDefaultHandler(func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if h == nil {
				return
			}
			h.Default(ctx, b, update)
		}),
	}

	b, err = bot.New(cfg.BotToken, opts...)
	if err != nil {
		slog.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	// Get bot info
	me, err := b.GetMe(ctx)
	if err != nil {
		slog.Error("failed to get bot info", "error", err)
		os.Exit(1)
	}
	slog.Info("bot info retrieved", "id", me.ID, "username", me.Username)

	if cfg.DropPendingUpdates {
		if _, err := b.DeleteWebhook(ctx, &bot.DeleteWebhookParams{DropPendingUpdates: true}); err != nil {
			slog.Warn("failed to drop pending updates", "error", err)
		}
	}

	h = handler.New(handler.Deps{
		Cfg:        cfg,
		Sessions:   sessions,
		Extractor:  extractor,
		Metrics:    metrics,
		Audit:      telegram.NewAuditLogger(b, cfg),
		HTTPClient: httpClient,
	})
	h.Register(b)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.New(cfg.Port, metrics.Handler()).Run(gctx)
	})

	// Expired session sweep
	g.Go(func() error {
		ticker := time.NewTicker(config.SessionSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := h.SweepExpired(gctx, b); n > 0 {
					slog.Info("expired sessions swept", "count", n)
				}
				limiter.Prune(config.RateLimiterIdle)
			}
		}
	})

	g.Go(func() error {
		slog.Info("starting bot", "username", me.Username, "id", me.ID, "platforms", extractor.Keys())
		b.Start(gctx)
		return nil
	})

	if err := g.Wait(); err != nil {
		slog.Error("shutting down", "error", err)
	}

	// Let running extractions finish delivering.
	h.Wait()
	slog.Info("bot stopped gracefully")
}
