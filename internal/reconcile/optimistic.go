package reconcile

import (
	"context"
	"slices"
	"sync"

	"github.com/rogersnm/fieldsync/internal/logger"
)

// List is an in-memory list that accepts optimistic mutations.
type List[T any] struct {
	mu    sync.Mutex
	items []T
}

func NewList[T any](items []T) *List[T] {
	return &List[T]{items: slices.Clone(items)}
}

// Items returns a copy of the current contents.
func (l *List[T]) Items() []T {
	l.mu.Lock()
	defer l.mu.Unlock()
	return slices.Clone(l.items)
}

// Replace swaps in freshly loaded contents.
func (l *List[T]) Replace(items []T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = slices.Clone(items)
}

// Begin snapshots the list and applies mutate to it immediately. mutate
// receives a copy it may modify and returns the new contents.
func (l *List[T]) Begin(mutate func([]T) []T) *Mutation[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	snapshot := slices.Clone(l.items)
	l.items = mutate(slices.Clone(l.items))
	return &Mutation[T]{list: l, snapshot: snapshot}
}

// Mutation is an optimistic change that has not been confirmed yet.
// Only the first Commit or Rollback has any effect.
type Mutation[T any] struct {
	list     *List[T]
	snapshot []T
	once     sync.Once
	outcome  string
}

// Commit keeps the optimistic contents.
func (m *Mutation[T]) Commit() {
	m.once.Do(func() {
		m.outcome = "committed"
		m.snapshot = nil
	})
}

// Rollback restores the list to exactly what it held before Begin.
func (m *Mutation[T]) Rollback() {
	m.once.Do(func() {
		m.outcome = "rolled back"
		m.list.Replace(m.snapshot)
		m.snapshot = nil
	})
}

// Settled reports whether Commit or Rollback has run.
func (m *Mutation[T]) Settled() bool {
	return m.outcome != ""
}

// Apply runs an optimistic mutation end to end: mutate immediately, send the
// change, roll back if sending fails, then refresh from the source either way.
// A failed refresh is logged and the send result is still returned.
func Apply[T any](
	ctx context.Context,
	list *List[T],
	mutate func([]T) []T,
	send func(context.Context) error,
	refresh func(context.Context) ([]T, error),
) error {
	m := list.Begin(mutate)
	err := send(ctx)
	if err != nil {
		m.Rollback()
	} else {
		m.Commit()
	}

	if refresh != nil {
		items, rerr := refresh(ctx)
		if rerr != nil {
			logger.FromContext(ctx).Warn("refreshing after optimistic update", "error", rerr)
		} else {
			list.Replace(items)
		}
	}
	return err
}
