// Package health serves liveness and counters over HTTP.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/eliseohh/moviebot/internal/index"
	"github.com/eliseohh/moviebot/internal/logging"
)

// Store is the part of *index.DB the endpoints read.
type Store interface {
	UsageSnapshot(ctx context.Context) (index.UsageSnapshot, error)
	OfflineCount(ctx context.Context) (int, error)
}

type Server struct {
	router *chi.Mux
	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router: chi.NewRouter(),
		store:  store,
		logger: logger,
	}
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(10 * time.Second))

	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/usage", s.handleUsage)
	s.router.Get("/offline", s.handleOffline)
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe blocks until ctx is cancelled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("health server listening", slog.String("addr", addr))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	snap, err := s.store.UsageSnapshot(r.Context())
	if err != nil {
		s.fail(w, "usage snapshot failed", err)
		return
	}
	s.writeJSON(w, snap)
}

func (s *Server) handleOffline(w http.ResponseWriter, r *http.Request) {
	n, err := s.store.OfflineCount(r.Context())
	if err != nil {
		s.fail(w, "offline count failed", err)
		return
	}
	s.writeJSON(w, map[string]int{"pending": n})
}

func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	logging.LogError(s.logger, msg, err)
	http.Error(w, "internal error", http.StatusInternalServerError)
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response failed", slog.Any("error", err))
	}
}
