// Package server exposes the liveness and metrics endpoints next to the
// bot's long-polling loop.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/goerr/v2"
	"github.com/set-night/batchtxt/internal/config"
)

type Server struct {
	srv *http.Server
}

// New wires the router. metrics may be nil, in which case /metrics is not
// mounted.
func New(port int, metrics http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      Router(metrics),
		ReadTimeout:  config.ServerReadTimeout,
		WriteTimeout: config.ServerWriteTimeout,
	}}
}

func Router(metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/health"))

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("Bot is running"))
	})
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}
	return r
}

// Run serves until ctx is cancelled, then shuts down within
// config.ShutdownTimeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return goerr.Wrap(err, "http server failed", goerr.V("addr", s.srv.Addr))
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return goerr.Wrap(err, "http server shutdown")
	}
	slog.Info("http server stopped")
	return nil
}
