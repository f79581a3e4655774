// Package queue holds the two durable outbound queues: a strictly ordered
// command replay queue and an independent-retry capture queue. Both live in
// the local store and report progress on an event bus.
package queue

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/jonboulle/clockwork"
	"github.com/rogersnm/fieldsync/internal/event"
	"github.com/rogersnm/fieldsync/internal/localstore"
	"github.com/rogersnm/fieldsync/internal/media"
	"github.com/rogersnm/fieldsync/internal/metrics"
)

var (
	ErrDrainInProgress = errors.New("queue is draining")
	ErrItemNotFound    = errors.New("queue item not found")
)

// CreatedFunc is called once the server has confirmed a capture's entity,
// before any of its assets are uploaded.
type CreatedFunc func(ctx context.Context, item CaptureItem, remoteID string)

// DeliveredFunc is called after a capture item and all of its assets reach the server.
type DeliveredFunc func(ctx context.Context, item CaptureItem, remoteID string)

type settings struct {
	bus         *event.Bus
	clock       clockwork.Clock
	media       media.Options
	onCreated   CreatedFunc
	onDelivered DeliveredFunc
}

type Option func(*settings)

// WithBus publishes sync events on b. Queues without one get a private bus.
func WithBus(b *event.Bus) Option {
	return func(s *settings) { s.bus = b }
}

func WithClock(c clockwork.Clock) Option {
	return func(s *settings) { s.clock = c }
}

func WithMediaOptions(o media.Options) Option {
	return func(s *settings) { s.media = o }
}

func WithCreatedHook(fn CreatedFunc) Option {
	return func(s *settings) { s.onCreated = fn }
}

func WithDeliveredHook(fn DeliveredFunc) Option {
	return func(s *settings) { s.onDelivered = fn }
}

func newSettings(opts []Option) settings {
	s := settings{
		bus:   event.NewBus(),
		clock: clockwork.NewRealClock(),
		media: media.DefaultOptions,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// base is the state shared by both queues. The draining flag belongs to the
// instance so separate queues never share a guard.
type base struct {
	settings
	store    localstore.Store
	table    string
	source   event.Source
	draining atomic.Bool
}

// IsDraining reports whether a drain or process cycle is running.
func (b *base) IsDraining() bool {
	return b.draining.Load()
}

// Bus returns the bus the queue publishes on.
func (b *base) Bus() *event.Bus {
	return b.bus
}

// hold takes the drain guard for an edit to queued items, so no drain can
// pick up an item while it is being changed or removed.
func (b *base) hold() (release func(), err error) {
	if !b.draining.CompareAndSwap(false, true) {
		return nil, ErrDrainInProgress
	}
	return func() { b.draining.Store(false) }, nil
}

func (b *base) publish(ctx context.Context, e event.Event) {
	e.Source = b.source
	e.At = b.clock.Now().UTC()
	b.bus.Publish(ctx, e)
}

// Len returns the number of queued items. An unavailable store holds nothing.
func (b *base) Len(ctx context.Context) (int, error) {
	raws, err := b.store.GetAll(ctx, b.table)
	if err != nil {
		if localstore.IsUnavailable(err) {
			return 0, nil
		}
		return 0, err
	}
	return len(raws), nil
}

func (b *base) recordDepth(ctx context.Context) int {
	n, err := b.Len(ctx)
	if err != nil {
		return 0
	}
	metrics.QueueDepth.WithLabelValues(string(b.source)).Set(float64(n))
	return n
}

func failureKind(rejected bool) string {
	if rejected {
		return metrics.KindRejected
	}
	return metrics.KindTransient
}
