// Package activity keeps the project schedule cached locally and applies
// status changes optimistically, queueing them for the server.
package activity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rogersnm/fieldsync/internal/localstore"
	"github.com/rogersnm/fieldsync/internal/logger"
	"github.com/rogersnm/fieldsync/internal/model"
	"github.com/rogersnm/fieldsync/internal/queue"
	"github.com/rogersnm/fieldsync/internal/reconcile"
)

var ErrActivityNotFound = errors.New("activity not found")

// Commands is the generic replay queue.
type Commands interface {
	Enqueue(ctx context.Context, url, method string, body any) (queue.Command, error)
	Items(ctx context.Context) ([]queue.Command, error)
}

// Source is the server's view of projects and their schedules.
type Source interface {
	ListProjects(ctx context.Context) ([]model.Project, error)
	ListActivities(ctx context.Context, projectID string) ([]model.Activity, error)
}

type Service struct {
	store    localstore.Store
	commands Commands
	remote   Source
	cache    *reconcile.Cache[model.Activity]
	clock    clockwork.Clock
}

type Option func(*Service)

func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithCache sizes the per-project list cache.
func WithCache(size int, ttl time.Duration) Option {
	return func(s *Service) { s.cache = reconcile.NewCache[model.Activity](size, ttl) }
}

func New(store localstore.Store, commands Commands, remote Source, opts ...Option) *Service {
	s := &Service{
		store:    store,
		commands: commands,
		remote:   remote,
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = reconcile.NewCache[model.Activity](32, 10*time.Minute)
	}
	return s
}

// ActivityURL is the resource a status change is sent to.
func ActivityURL(activityID string) string {
	return "/activities/" + url.PathEscape(activityID)
}

// Refresh pulls the project's activities from the server into the store.
// Records with a change still waiting in the command queue keep their local
// version until that change is delivered.
func (s *Service) Refresh(ctx context.Context, projectID string) ([]model.Activity, error) {
	remote, err := s.remote.ListActivities(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("fetching activities: %w", err)
	}
	defer s.cache.Invalidate(projectID)

	queued, err := s.queuedURLs(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range remote {
		if queued[ActivityURL(a.ID)] {
			continue
		}
		a.SyncStatus = model.RecordSynced
		if err := s.store.Put(ctx, localstore.TableActivities, a); err != nil {
			if localstore.IsUnavailable(err) {
				return remote, nil
			}
			return nil, fmt.Errorf("caching activity %s: %w", a.ID, err)
		}
	}
	return s.load(ctx, projectID)
}

// List returns the project's activities from the local cache, falling back
// to the server when nothing can be stored locally.
func (s *Service) List(ctx context.Context, projectID string) ([]model.Activity, error) {
	l, err := s.list(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return l.Items(), nil
}

func (s *Service) list(ctx context.Context, projectID string) (*reconcile.List[model.Activity], error) {
	return s.cache.Load(projectID, func() ([]model.Activity, error) {
		return s.load(ctx, projectID)
	})
}

func (s *Service) load(ctx context.Context, projectID string) ([]model.Activity, error) {
	items, err := localstore.ListByIndex[model.Activity](ctx, s.store, localstore.TableActivities, localstore.IndexByProject, projectID)
	if localstore.IsUnavailable(err) {
		return s.remote.ListActivities(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("loading activities: %w", err)
	}
	return items, nil
}

// SetStatus changes an activity's status and optionally its progress. The
// cached list reflects the change at once; if the change cannot be queued
// the list is rolled back and the error returned.
func (s *Service) SetStatus(ctx context.Context, projectID, activityID string, status model.ActivityStatus, progress *int) error {
	if err := model.ValidateStatus(status); err != nil {
		return err
	}
	if progress != nil {
		if err := model.ValidateProgress(*progress); err != nil {
			return err
		}
	}

	list, err := s.list(ctx, projectID)
	if err != nil {
		return err
	}
	now := s.clock.Now().UTC()
	change := func(a *model.Activity) {
		a.Status = status
		if progress != nil {
			a.Progress = *progress
		}
		a.SyncStatus = model.RecordPending
		a.UpdatedAt = now
	}

	mutate := func(items []model.Activity) []model.Activity {
		for i := range items {
			if items[i].ID == activityID {
				change(&items[i])
			}
		}
		return items
	}

	send := func(ctx context.Context) error {
		a, err := s.find(ctx, list, activityID)
		if err != nil {
			return err
		}
		change(&a)
		body := map[string]any{"status": string(status)}
		if progress != nil {
			body["progress"] = *progress
		}
		if _, err := s.commands.Enqueue(ctx, ActivityURL(activityID), http.MethodPatch, body); err != nil {
			return fmt.Errorf("queueing status change: %w", err)
		}
		if err := s.store.Put(ctx, localstore.TableActivities, a); err != nil && !localstore.IsUnavailable(err) {
			return fmt.Errorf("saving activity %s: %w", activityID, err)
		}
		return nil
	}

	refresh := func(ctx context.Context) ([]model.Activity, error) {
		items, err := localstore.ListByIndex[model.Activity](ctx, s.store, localstore.TableActivities, localstore.IndexByProject, projectID)
		if err != nil {
			return nil, err
		}
		return items, nil
	}

	if err := reconcile.Apply(ctx, list, mutate, send, refresh); err != nil {
		return err
	}
	logger.FromContext(ctx).Info("activity status changed", "activity", activityID, "status", status)
	return nil
}

// find returns the activity as stored, or from the list when the store is
// unavailable. The list already carries the optimistic change.
func (s *Service) find(ctx context.Context, list *reconcile.List[model.Activity], activityID string) (model.Activity, error) {
	a, err := localstore.GetAs[model.Activity](ctx, s.store, localstore.TableActivities, activityID)
	if err == nil {
		return a, nil
	}
	if errors.Is(err, localstore.ErrNotFound) {
		return model.Activity{}, fmt.Errorf("%w: %s", ErrActivityNotFound, activityID)
	}
	if !localstore.IsUnavailable(err) {
		return model.Activity{}, err
	}
	for _, a := range list.Items() {
		if a.ID == activityID {
			return a, nil
		}
	}
	return model.Activity{}, fmt.Errorf("%w: %s", ErrActivityNotFound, activityID)
}

// queuedURLs lists resources with a command still waiting for delivery.
func (s *Service) queuedURLs(ctx context.Context) (map[string]bool, error) {
	cmds, err := s.commands.Items(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading command queue: %w", err)
	}
	out := make(map[string]bool, len(cmds))
	for _, c := range cmds {
		out[strings.TrimSuffix(c.URL, "/")] = true
	}
	return out, nil
}
