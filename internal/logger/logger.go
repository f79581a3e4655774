package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

type ctxKey string

const (
	syncIDKey    ctxKey = "syncID"
	requestIDKey ctxKey = "requestID"
)

// New builds a logger writing to w.
func New(cfg Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel(), AddSource: cfg.AddSource}
	var h slog.Handler
	if cfg.IsJSON() {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h.WithAttrs(cfg.BaseAttributes()))
}

// Init installs a stderr logger built from cfg as the process default.
func Init(cfg Config) *slog.Logger {
	l := New(cfg, os.Stderr)
	slog.SetDefault(l)
	return l
}

// NewSyncID creates an id that ties together the log lines of one drain cycle.
func NewSyncID() string {
	return uuid.NewString()
}

// WithSyncID returns a new context carrying the sync cycle id.
func WithSyncID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, syncIDKey, id)
}

// SyncIDFromContext extracts the sync cycle id, if present.
func SyncIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(syncIDKey).(string)
	return id, ok && id != ""
}

// NewRequestID creates an id for one local API request.
func NewRequestID() string {
	return uuid.NewString()
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// FromContext returns the default logger, tagged with sync_id and
// request_id when present.
func FromContext(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if id, ok := SyncIDFromContext(ctx); ok {
		l = l.With("sync_id", id)
	}
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		l = l.With("request_id", id)
	}
	return l
}
