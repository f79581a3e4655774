// Package server exposes the local review and status API used by the
// dashboard while the sync daemon runs.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rogersnm/fieldsync/internal/logger"
	"github.com/rogersnm/fieldsync/internal/model"
	"github.com/rogersnm/fieldsync/internal/queue"
)

// Monitor is the connectivity and sync state owner.
type Monitor interface {
	Online() bool
	Status() model.SyncStatus
	SetOnline(ctx context.Context, online bool)
	TriggerSync(ctx context.Context)
}

type CaptureQueue interface {
	Status(ctx context.Context) (queue.Status, error)
	RetryItem(ctx context.Context, localID string) error
	DeleteItem(ctx context.Context, localID string) error
	Len(ctx context.Context) (int, error)
	IsDraining() bool
}

type CommandQueue interface {
	Items(ctx context.Context) ([]queue.Command, error)
	Retry(ctx context.Context, commandID string) error
	Discard(ctx context.Context, commandID string) error
	Len(ctx context.Context) (int, error)
	IsDraining() bool
}

type Server struct {
	httpServer *http.Server
	monitor    Monitor
	captures   CaptureQueue
	commands   CommandQueue
	hub        *Hub
}

func New(addr string, monitor Monitor, captures CaptureQueue, commands CommandQueue, hub *Hub) *Server {
	s := &Server{
		monitor:  monitor,
		captures: captures,
		commands: commands,
		hub:      hub,
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(loggingMiddleware)

	r.Get("/healthz", handleHealthz)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/status", s.handleStatus)
	r.Put("/connectivity", s.handleConnectivity)
	r.Post("/sync", s.handleSync)

	r.Route("/captures", func(r chi.Router) {
		r.Get("/", s.handleListCaptures)
		r.Post("/{id}/retry", s.handleRetryCapture)
		r.Delete("/{id}", s.handleDeleteCapture)
	})
	r.Route("/commands", func(r chi.Router) {
		r.Get("/", s.handleListCommands)
		r.Post("/{id}/retry", s.handleRetryCommand)
		r.Delete("/{id}", s.handleDiscardCommand)
	})

	if s.hub != nil {
		r.Handle("/events", s.hub)
	}
	return r
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Default().Info("local API listening", "addr", s.httpServer.Addr)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if !rw.written {
		rw.statusCode = statusCode
		rw.written = true
		rw.ResponseWriter.WriteHeader(statusCode)
	}
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/healthz") ||
			strings.HasPrefix(r.URL.Path, "/metrics") ||
			strings.HasPrefix(r.URL.Path, "/events") {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ctx := logger.WithRequestID(r.Context(), logger.NewRequestID())
		r = r.WithContext(ctx)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		logger.FromContext(ctx).Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds())
	})
}
