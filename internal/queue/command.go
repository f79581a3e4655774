package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rogersnm/fieldsync/internal/event"
	"github.com/rogersnm/fieldsync/internal/id"
	"github.com/rogersnm/fieldsync/internal/localstore"
	"github.com/rogersnm/fieldsync/internal/logger"
	"github.com/rogersnm/fieldsync/internal/metrics"
	"github.com/rogersnm/fieldsync/internal/remote"
)

// Command is one HTTP mutation replayed verbatim, in enqueue order.
type Command struct {
	ID         string          `json:"id"`
	URL        string          `json:"url"`
	Method     string          `json:"method"`
	Body       json.RawMessage `json:"body,omitempty"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
	LastError  string          `json:"lastError,omitempty"`
	Rejected   bool            `json:"rejected,omitempty"`
}

func (c Command) RecordKey() string { return c.ID }

// CommandSender replays a queued command against the remote service.
type CommandSender interface {
	Replay(ctx context.Context, method, url string, body []byte) error
}

// DrainResult summarizes one drain.
type DrainResult struct {
	Skipped   bool
	Delivered int
	Remaining int
	BlockedBy string
}

// CommandQueue replays commands in strict FIFO order. A failed command
// blocks everything behind it so the server never sees operations out of
// the order the user performed them.
type CommandQueue struct {
	base
	sender CommandSender
}

var allowedMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

func NewCommandQueue(store localstore.Store, sender CommandSender, opts ...Option) *CommandQueue {
	return &CommandQueue{
		base: base{
			settings: newSettings(opts),
			store:    store,
			table:    localstore.TableCommandQueue,
			source:   event.SourceCommands,
		},
		sender: sender,
	}
}

// Enqueue appends a command and announces it with sync-pending. body may be
// nil, raw JSON bytes or any value that marshals to JSON.
func (q *CommandQueue) Enqueue(ctx context.Context, url, method string, body any) (Command, error) {
	method = strings.ToUpper(method)
	if !allowedMethods[method] {
		return Command{}, fmt.Errorf("enqueueing command: unsupported method %q", method)
	}
	if url == "" {
		return Command{}, fmt.Errorf("enqueueing command: url is required")
	}
	raw, err := encodeBody(body)
	if err != nil {
		return Command{}, fmt.Errorf("enqueueing command: %w", err)
	}

	cmd := Command{
		ID:         id.New(),
		URL:        url,
		Method:     method,
		Body:       raw,
		EnqueuedAt: q.clock.Now().UTC(),
	}
	if err := q.store.Put(ctx, q.table, cmd); err != nil {
		if !localstore.IsUnavailable(err) {
			return Command{}, fmt.Errorf("enqueueing command: %w", err)
		}
		return cmd, q.sendDirect(ctx, cmd)
	}

	n := q.recordDepth(ctx)
	q.publish(ctx, event.Event{Type: event.SyncPending, Pending: n})
	return cmd, nil
}

// sendDirect is the remote-only path used when nothing can be persisted.
func (q *CommandQueue) sendDirect(ctx context.Context, cmd Command) error {
	logger.FromContext(ctx).Warn("local store unavailable, sending command without queueing",
		"method", cmd.Method, "url", cmd.URL)
	if err := q.sender.Replay(ctx, cmd.Method, cmd.URL, cmd.Body); err != nil {
		metrics.QueueFailures.WithLabelValues(string(q.source), failureKind(remote.IsPermanent(err))).Inc()
		return fmt.Errorf("sending command: %w", err)
	}
	metrics.QueueDelivered.WithLabelValues(string(q.source)).Inc()
	return nil
}

// Drain replays queued commands in order until the queue is empty or one
// fails. A drain already running turns this call into a no-op.
func (q *CommandQueue) Drain(ctx context.Context) (DrainResult, error) {
	if !q.draining.CompareAndSwap(false, true) {
		return DrainResult{Skipped: true}, nil
	}
	defer q.draining.Store(false)

	ctx = logger.WithSyncID(ctx, logger.NewSyncID())
	log := logger.FromContext(ctx)
	start := q.clock.Now()
	defer func() {
		metrics.DrainDuration.WithLabelValues(string(q.source)).Observe(q.clock.Since(start).Seconds())
		q.recordDepth(ctx)
	}()

	items, err := localstore.List[Command](ctx, q.store, q.table)
	if err != nil {
		if localstore.IsUnavailable(err) {
			return DrainResult{}, nil
		}
		q.publish(ctx, event.Event{Type: event.SyncError, Err: err})
		return DrainResult{}, fmt.Errorf("loading command queue: %w", err)
	}

	q.publish(ctx, event.Event{Type: event.SyncStart, Pending: len(items)})

	var res DrainResult
	for i, cmd := range items {
		halt := func(err error) (DrainResult, error) {
			res.Remaining = len(items) - i
			res.BlockedBy = cmd.ID
			q.publish(ctx, event.Event{
				Type: event.SyncError, Pending: res.Remaining, Delivered: res.Delivered, Failed: 1, Err: err,
			})
			return res, err
		}

		if err := ctx.Err(); err != nil {
			return halt(err)
		}
		if cmd.Rejected {
			log.Warn("command queue blocked by rejected command", "command", cmd.ID, "error", cmd.LastError)
			return halt(fmt.Errorf("command %s %s %s was rejected and needs review: %s", cmd.ID, cmd.Method, cmd.URL, cmd.LastError))
		}

		if err := q.sender.Replay(ctx, cmd.Method, cmd.URL, cmd.Body); err != nil {
			cmd.LastError = err.Error()
			cmd.Rejected = remote.IsPermanent(err)
			if perr := q.store.Put(ctx, q.table, cmd); perr != nil {
				log.Error("recording command failure", "command", cmd.ID, "error", perr)
			}
			metrics.QueueFailures.WithLabelValues(string(q.source), failureKind(cmd.Rejected)).Inc()
			log.Warn("command replay failed, halting drain",
				"command", cmd.ID, "method", cmd.Method, "url", cmd.URL, "rejected", cmd.Rejected, "error", err)
			return halt(fmt.Errorf("replaying command %s: %w", cmd.ID, err))
		}

		if err := q.store.Delete(ctx, q.table, cmd.ID); err != nil {
			// Delivered but still queued: stop so the next drain resumes here.
			return halt(fmt.Errorf("removing delivered command %s: %w", cmd.ID, err))
		}
		res.Delivered++
		metrics.QueueDelivered.WithLabelValues(string(q.source)).Inc()
	}

	log.Info("command queue drained", "delivered", res.Delivered)
	q.publish(ctx, event.Event{Type: event.SyncComplete, Delivered: res.Delivered})
	return res, nil
}

// Items returns queued commands in replay order.
func (q *CommandQueue) Items(ctx context.Context) ([]Command, error) {
	items, err := localstore.List[Command](ctx, q.store, q.table)
	if localstore.IsUnavailable(err) {
		return nil, nil
	}
	return items, err
}

// Discard removes a command, typically one that was rejected and is blocking
// the queue. The queue is announced as pending again so a drain can resume.
func (q *CommandQueue) Discard(ctx context.Context, commandID string) error {
	release, err := q.hold()
	if err != nil {
		return err
	}
	if _, err := q.load(ctx, commandID); err != nil {
		release()
		return err
	}
	if err := q.store.Delete(ctx, q.table, commandID); err != nil {
		release()
		return fmt.Errorf("discarding command %s: %w", commandID, err)
	}
	release()
	n := q.recordDepth(ctx)
	q.publish(ctx, event.Event{Type: event.SyncPending, Pending: n})
	return nil
}

// Retry clears a rejection so the next drain sends the command again.
func (q *CommandQueue) Retry(ctx context.Context, commandID string) error {
	release, err := q.hold()
	if err != nil {
		return err
	}
	cmd, err := q.load(ctx, commandID)
	if err != nil {
		release()
		return err
	}
	cmd.Rejected = false
	cmd.LastError = ""
	if err := q.store.Put(ctx, q.table, cmd); err != nil {
		release()
		return fmt.Errorf("retrying command %s: %w", commandID, err)
	}
	release()
	n := q.recordDepth(ctx)
	q.publish(ctx, event.Event{Type: event.SyncPending, Pending: n})
	return nil
}

// load reads one command. Callers hold the drain guard.
func (q *CommandQueue) load(ctx context.Context, commandID string) (Command, error) {
	cmd, err := localstore.GetAs[Command](ctx, q.store, q.table, commandID)
	if errors.Is(err, localstore.ErrNotFound) {
		return Command{}, fmt.Errorf("command %s: %w", commandID, ErrItemNotFound)
	}
	if err != nil {
		return Command{}, err
	}
	return cmd, nil
}

func encodeBody(body any) (json.RawMessage, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return b, nil
	case []byte:
		if len(b) > 0 && !json.Valid(b) {
			return nil, fmt.Errorf("body is not valid JSON")
		}
		return json.RawMessage(b), nil
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encoding body: %w", err)
		}
		return raw, nil
	}
}
