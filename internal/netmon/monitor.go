// Package netmon tracks connectivity and the overall sync state, and decides
// when the outbound queues run.
package netmon

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rogersnm/fieldsync/internal/event"
	"github.com/rogersnm/fieldsync/internal/logger"
	"github.com/rogersnm/fieldsync/internal/metrics"
	"github.com/rogersnm/fieldsync/internal/model"
	"github.com/rogersnm/fieldsync/internal/queue"
)

const (
	DefaultFallbackInterval = 60 * time.Second
	DefaultProbeInterval    = 15 * time.Second
)

type CommandDrainer interface {
	Drain(ctx context.Context) (queue.DrainResult, error)
}

type CaptureProcessor interface {
	Process(ctx context.Context) (queue.ProcessResult, error)
}

// Prober answers whether the remote service is reachable.
type Prober interface {
	Ping(ctx context.Context) error
}

type Option func(*Monitor)

func WithClock(c clockwork.Clock) Option {
	return func(m *Monitor) { m.clock = c }
}

func WithFallbackInterval(d time.Duration) Option {
	return func(m *Monitor) { m.fallback = d }
}

// WithProber enables the periodic connectivity probe in Run.
func WithProber(p Prober, interval time.Duration) Option {
	return func(m *Monitor) {
		m.prober = p
		m.probeEvery = interval
	}
}

// WithInitialOnline sets the connectivity assumed before the first probe.
func WithInitialOnline(online bool) Option {
	return func(m *Monitor) { m.online = online }
}

// Monitor owns the online flag and the derived SyncStatus.
type Monitor struct {
	commands CommandDrainer
	captures CaptureProcessor
	prober   Prober
	clock    clockwork.Clock

	fallback   time.Duration
	probeEvery time.Duration

	mu        sync.Mutex
	online    bool
	sources   map[event.Source]model.SyncStatus
	status    model.SyncStatus
	observers []func(model.SyncStatus)
	running   bool
	again     bool

	wg          sync.WaitGroup
	unsubscribe func()
}

// New creates a monitor and subscribes it to bus. Close releases the subscription.
func New(bus *event.Bus, commands CommandDrainer, captures CaptureProcessor, opts ...Option) *Monitor {
	m := &Monitor{
		commands:   commands,
		captures:   captures,
		clock:      clockwork.NewRealClock(),
		fallback:   DefaultFallbackInterval,
		probeEvery: DefaultProbeInterval,
		online:     true,
		sources:    make(map[event.Source]model.SyncStatus),
		status:     model.SyncIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.unsubscribe = bus.Subscribe(m.handle)
	metrics.Online.Set(boolGauge(m.online))
	metrics.SyncState.Set(statusGauge(m.status))
	return m
}

func (m *Monitor) Close() {
	m.unsubscribe()
	m.wg.Wait()
}

func (m *Monitor) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *Monitor) Status() model.SyncStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// OnStatus registers fn to be called with every SyncStatus change.
func (m *Monitor) OnStatus(fn func(model.SyncStatus)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// SetOnline records a connectivity change. Coming back online starts a
// sync straight away; going offline only flips the flag.
func (m *Monitor) SetOnline(ctx context.Context, online bool) {
	m.mu.Lock()
	was := m.online
	m.online = online
	m.mu.Unlock()

	if was == online {
		return
	}
	metrics.Online.Set(boolGauge(online))
	log := logger.FromContext(ctx)
	if !online {
		log.Info("connection lost")
		return
	}
	log.Info("connection restored, syncing")
	m.TriggerSync(ctx)
}

// TriggerSync drains the command queue and then processes the capture queue
// in the background. A trigger that arrives while a cycle is running
// schedules exactly one more cycle.
func (m *Monitor) TriggerSync(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.again = true
		m.mu.Unlock()
		return
	}
	m.running = true
	m.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			m.syncOnce(ctx)

			m.mu.Lock()
			if !m.again {
				m.running = false
				m.mu.Unlock()
				return
			}
			m.again = false
			m.mu.Unlock()
		}
	}()
}

// Wait blocks until background syncs started so far have finished.
func (m *Monitor) Wait() {
	m.wg.Wait()
}

func (m *Monitor) syncOnce(ctx context.Context) {
	log := logger.FromContext(ctx)
	if m.commands != nil {
		if _, err := m.commands.Drain(ctx); err != nil {
			log.Warn("command drain stopped", "error", err)
		}
	}
	if m.captures != nil {
		if _, err := m.captures.Process(ctx); err != nil {
			log.Warn("capture processing failed", "error", err)
		}
	}
}

func (m *Monitor) handle(ctx context.Context, e event.Event) {
	var next model.SyncStatus
	switch e.Type {
	case event.SyncStart, event.SyncPending:
		next = model.SyncSyncing
	case event.SyncComplete:
		next = model.SyncIdle
	case event.SyncError:
		next = model.SyncError
	default:
		return
	}

	m.mu.Lock()
	online := m.online
	// Pending work while offline leaves the status alone until reconnect.
	if e.Type == event.SyncPending && !online {
		m.mu.Unlock()
		return
	}
	m.sources[e.Source] = next
	changed, status, observers := m.derive()
	m.mu.Unlock()

	if changed {
		metrics.SyncState.Set(statusGauge(status))
		for _, fn := range observers {
			fn(status)
		}
	}
	if e.Type == event.SyncPending && online {
		m.TriggerSync(ctx)
	}
}

// derive recomputes the overall status. Callers hold m.mu.
func (m *Monitor) derive() (bool, model.SyncStatus, []func(model.SyncStatus)) {
	next := model.SyncIdle
	for _, s := range m.sources {
		if s == model.SyncSyncing {
			next = model.SyncSyncing
			break
		}
		if s == model.SyncError {
			next = model.SyncError
		}
	}
	if next == m.status {
		return false, next, nil
	}
	m.status = next
	return true, next, append(([]func(model.SyncStatus))(nil), m.observers...)
}

// Run drives the fallback timer and the connectivity probe until ctx ends.
func (m *Monitor) Run(ctx context.Context) error {
	fallback := m.clock.NewTicker(m.fallback)
	defer fallback.Stop()

	var probe <-chan time.Time
	if m.prober != nil {
		t := m.clock.NewTicker(m.probeEvery)
		defer t.Stop()
		probe = t.Chan()
		m.checkConnectivity(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-fallback.Chan():
			if m.Online() {
				m.TriggerSync(ctx)
			}
		case <-probe:
			m.checkConnectivity(ctx)
		}
	}
}

func (m *Monitor) checkConnectivity(ctx context.Context) {
	err := m.prober.Ping(ctx)
	if err != nil && ctx.Err() != nil {
		return
	}
	if err != nil {
		logger.FromContext(ctx).Debug("connectivity probe failed", "error", err)
	}
	m.SetOnline(ctx, err == nil)
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func statusGauge(s model.SyncStatus) float64 {
	switch s {
	case model.SyncSyncing:
		return 1
	case model.SyncError:
		return 2
	default:
		return 0
	}
}
