package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"vjcap/internal/config"
	"vjcap/internal/logging"
	"vjcap/internal/prefetch"
)

// apiServer exposes the read-only status API on the configured bind
// address. It serves operator tooling on localhost; there is no auth.
type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logger,
		daemon: d,
	}

	r := chi.NewRouter()
	r.Use(requestLogger(logger))
	r.Get("/healthz", srv.handleHealthz)
	r.Get("/api/status", srv.handleStatus)
	r.Get("/api/budget", srv.handleBudget)
	r.Get("/api/history", srv.handleHistory)
	r.Get("/api/history/{artist}", srv.handleHistoryArtist)
	r.Get("/api/prefetch", srv.handlePrefetch)
	r.Get("/metrics", srv.handleMetrics)

	srv.server = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// addr returns the bound listen address, for tests that bind port 0.
func (s *apiServer) addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleBudget(w http.ResponseWriter, r *http.Request) {
	remaining, resetAt := s.daemon.ledger.Remaining()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"remaining": remaining,
		"cap":       s.daemon.ledger.Cap(),
		"reset_at":  resetAt,
	})
}

func (s *apiServer) handleHistory(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"artists": s.daemon.history.Artists(),
	})
}

func (s *apiServer) handleHistoryArtist(w http.ResponseWriter, r *http.Request) {
	artist := chi.URLParam(r, "artist")
	seen := s.daemon.history.Seen(artist)
	if len(seen) == 0 {
		s.writeError(w, http.StatusNotFound, "no history for artist")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"artist": artist,
		"seen":   seen,
	})
}

func (s *apiServer) handlePrefetch(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.daemon.store.List(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *apiServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	s.daemon.metrics.Handler(func() {
		counts, err := s.daemon.store.CountByStatus(r.Context())
		if err != nil {
			return
		}
		for _, status := range []prefetch.Status{prefetch.StatusPending, prefetch.StatusWorking, prefetch.StatusReady, prefetch.StatusError} {
			s.daemon.metrics.SetPrefetchJobs(string(status), counts[status])
		}
	}).ServeHTTP(w, r)
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrap := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(wrap, r)
			logger.Debug("request",
				logging.String("method", r.Method),
				logging.String("path", r.URL.Path),
				logging.Int("status", wrap.status),
				logging.Int64("duration_ms", time.Since(start).Milliseconds()))
		})
	}
}
