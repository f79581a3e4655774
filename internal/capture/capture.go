// Package capture turns a field report into an optimistic daily log plus a
// queued capture item, and assembles the activity timeline from the remote,
// cached and queued views.
package capture

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"github.com/rogersnm/fieldsync/internal/id"
	"github.com/rogersnm/fieldsync/internal/localstore"
	"github.com/rogersnm/fieldsync/internal/logger"
	"github.com/rogersnm/fieldsync/internal/model"
	"github.com/rogersnm/fieldsync/internal/queue"
	"github.com/rogersnm/fieldsync/internal/reconcile"
)

// ErrEmptyReport is returned for a report with neither a note nor photos.
var ErrEmptyReport = errors.New("a report needs a note or at least one photo")

// Input is one field report as entered by the user.
type Input struct {
	ProjectID  string `validate:"required"`
	ActivityID string `validate:"required"`
	Note       string `validate:"max=20000"`
	Status     model.ActivityStatus
	Progress   *int
	Date       *time.Time
	Photos     [][]byte `validate:"max=20"`
}

// Queue is the part of the capture queue the service drives.
type Queue interface {
	Add(ctx context.Context, req queue.CaptureRequest) (queue.CaptureItem, error)
	DeleteItem(ctx context.Context, localID string) error
	PendingFor(ctx context.Context, entityRef string) ([]queue.CaptureItem, error)
}

// LogSource lists the server's daily logs for an activity.
type LogSource interface {
	ListDailyLogs(ctx context.Context, activityID string) ([]model.DailyLog, error)
}

type Service struct {
	store  localstore.Store
	queue  Queue
	remote LogSource
	clock  clockwork.Clock
}

type Option func(*Service)

func WithClock(c clockwork.Clock) Option {
	return func(s *Service) { s.clock = c }
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func New(store localstore.Store, q Queue, remote LogSource, opts ...Option) *Service {
	s := &Service{store: store, queue: q, remote: remote, clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DailyLogsEndpoint is where a new log for activityID is created.
func DailyLogsEndpoint(activityID string) string {
	return "/activities/" + url.PathEscape(activityID) + "/daily-logs"
}

// PhotosEndpoint is where photos for a created log are attached.
const PhotosEndpoint = "/daily-logs/" + queue.IDPlaceholder + "/photos"

func (in Input) validate() error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("invalid report: %w", err)
	}
	if in.Note == "" && len(in.Photos) == 0 {
		return ErrEmptyReport
	}
	return nil
}

func (in Input) fields() map[string]any {
	f := map[string]any{
		"project_id":  in.ProjectID,
		"activity_id": in.ActivityID,
		"note":        in.Note,
	}
	if in.Status != "" {
		f["status"] = string(in.Status)
	}
	if in.Progress != nil {
		f["progress"] = *in.Progress
	}
	return f
}

// Submit records the report locally as PENDING and queues it for delivery.
// It never waits on the network. A photo that cannot be processed rejects
// the report before anything is kept.
func (s *Service) Submit(ctx context.Context, in Input) (model.DailyLog, error) {
	if err := in.validate(); err != nil {
		return model.DailyLog{}, err
	}

	log := model.DailyLog{
		ID:         id.New(),
		ProjectID:  in.ProjectID,
		ActivityID: in.ActivityID,
		Note:       in.Note,
		Status:     in.Status,
		Progress:   in.Progress,
		Date:       in.Date,
		SyncStatus: model.RecordPending,
		CreatedAt:  s.clock.Now().UTC(),
	}
	if err := log.Validate(); err != nil {
		return model.DailyLog{}, fmt.Errorf("invalid report: %w", err)
	}

	// The log goes in first: once the item is queued a background sync may
	// deliver it and promote the log at any moment.
	cached := true
	if err := s.store.Put(ctx, localstore.TableDailyLogs, log); err != nil {
		if !localstore.IsUnavailable(err) {
			return model.DailyLog{}, fmt.Errorf("saving daily log: %w", err)
		}
		cached = false
	}

	item, err := s.queue.Add(ctx, queue.CaptureRequest{
		LocalID:   log.ID,
		ProjectID: in.ProjectID,
		Payload: queue.Payload{
			EntityRef:     in.ActivityID,
			Endpoint:      DailyLogsEndpoint(in.ActivityID),
			AssetEndpoint: PhotosEndpoint,
			Fields:        in.fields(),
			Date:          in.Date,
		},
		Images: in.Photos,
	})
	if err != nil {
		if cached {
			if derr := s.store.Delete(ctx, localstore.TableDailyLogs, log.ID); derr != nil {
				logger.FromContext(ctx).Error("removing daily log after failed capture", "log", log.ID, "error", derr)
			}
		}
		return model.DailyLog{}, err
	}

	log.PhotoIDs = assetIDs(item)
	if item.RemoteID != "" && !cached {
		// Sent straight through because nothing could be stored.
		log.RemoteID = item.RemoteID
		log.SyncStatus = model.RecordSynced
	}
	return log, nil
}

// MarkCreated records the server id on a log whose entity exists remotely
// while its photos are still queued. It is installed as the capture queue's
// created hook so the timeline matches the server copy to the local one.
func (s *Service) MarkCreated(ctx context.Context, item queue.CaptureItem, remoteID string) {
	dl, err := localstore.GetAs[model.DailyLog](ctx, s.store, localstore.TableDailyLogs, item.LocalID)
	if err != nil {
		if !localstore.IsUnavailable(err) && !errors.Is(err, localstore.ErrNotFound) {
			logger.FromContext(ctx).Error("loading daily log", "log", item.LocalID, "error", err)
		}
		return
	}
	dl.RemoteID = remoteID
	if err := s.store.Put(ctx, localstore.TableDailyLogs, dl); err != nil {
		logger.FromContext(ctx).Error("recording server id", "log", dl.ID, "error", err)
	}
}

// Promote marks a delivered capture's log SYNCED under its server id. It is
// installed as the capture queue's delivered hook.
func (s *Service) Promote(ctx context.Context, item queue.CaptureItem, remoteID string) {
	log := logger.FromContext(ctx)
	dl, err := localstore.GetAs[model.DailyLog](ctx, s.store, localstore.TableDailyLogs, item.LocalID)
	if err != nil {
		if !localstore.IsUnavailable(err) && !errors.Is(err, localstore.ErrNotFound) {
			log.Error("loading daily log to promote", "log", item.LocalID, "error", err)
		}
		return
	}
	dl.RemoteID = remoteID
	dl.SyncStatus = model.RecordSynced
	dl.PhotoIDs = assetIDs(item)
	if err := s.store.Put(ctx, localstore.TableDailyLogs, dl); err != nil {
		log.Error("promoting daily log", "log", dl.ID, "error", err)
		return
	}

	photos, err := localstore.ListByIndex[model.Photo](ctx, s.store, localstore.TablePhotos, localstore.IndexByOwner, item.LocalID)
	if err != nil {
		log.Error("loading photos to promote", "log", dl.ID, "error", err)
		return
	}
	for _, p := range photos {
		if p.Uploaded {
			continue
		}
		p.Uploaded = true
		if err := s.store.Put(ctx, localstore.TablePhotos, p); err != nil {
			log.Error("marking photo uploaded", "photo", p.ID, "error", err)
		}
	}
	log.Info("daily log synced", "log", dl.ID, "remote_id", remoteID)
}

// UnsentPhotos counts stored photos the server has not received yet.
func (s *Service) UnsentPhotos(ctx context.Context) (int, error) {
	raws, err := s.store.GetAllByIndex(ctx, localstore.TablePhotos, localstore.IndexByUploaded, 0)
	if err != nil {
		if localstore.IsUnavailable(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("counting unsent photos: %w", err)
	}
	return len(raws), nil
}

// Discard drops a queued report and its PENDING log.
func (s *Service) Discard(ctx context.Context, logID string) error {
	if err := s.queue.DeleteItem(ctx, logID); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, localstore.TableDailyLogs, logID); err != nil && !localstore.IsUnavailable(err) {
		return fmt.Errorf("deleting daily log %s: %w", logID, err)
	}
	return nil
}

// Timeline is the reconciled history of an activity, newest first. Without
// the server it shows what is cached and queued; without the local store it
// shows the server's view alone.
func (s *Service) Timeline(ctx context.Context, activityID string) ([]reconcile.Entry[model.DailyLog], error) {
	log := logger.FromContext(ctx)

	remote, remoteErr := s.remote.ListDailyLogs(ctx, activityID)
	if remoteErr != nil {
		log.Warn("server unreachable, showing cached timeline", "activity", activityID, "error", remoteErr)
	}

	local, err := localstore.ListByIndex[model.DailyLog](ctx, s.store, localstore.TableDailyLogs, localstore.IndexByActivity, activityID)
	if err != nil {
		if !localstore.IsUnavailable(err) {
			return nil, fmt.Errorf("loading cached daily logs: %w", err)
		}
		if remoteErr != nil {
			return nil, fmt.Errorf("loading daily logs: %w", remoteErr)
		}
		return reconcile.Merge(remote, nil, nil), nil
	}

	items, err := s.queue.PendingFor(ctx, activityID)
	if err != nil {
		return nil, fmt.Errorf("loading queued reports: %w", err)
	}
	if remoteErr == nil {
		local = s.cacheRemote(ctx, remote, local, items)
	}
	pending := make([]model.DailyLog, 0, len(items))
	for _, item := range items {
		pending = append(pending, pendingLog(item, activityID))
	}

	return reconcile.Merge(remote, local, pending), nil
}

// cacheRemote writes server logs into the local store, reusing the key of a
// log this client created so each entity is stored once. Logs whose capture
// is still queued are left as they are until delivery promotes them. It
// returns the cached set as it now stands.
func (s *Service) cacheRemote(ctx context.Context, remote, local []model.DailyLog, queued []queue.CaptureItem) []model.DailyLog {
	byRemote := make(map[string]int, len(local))
	byLocal := make(map[string]int, len(local))
	for i, l := range local {
		byLocal[l.ID] = i
		if l.RemoteID != "" {
			byRemote[l.RemoteID] = i
		}
	}
	inFlight := make(map[string]bool, len(queued))
	for _, item := range queued {
		if item.RemoteID == "" {
			continue
		}
		inFlight[item.RemoteID] = true
		if i, ok := byLocal[item.LocalID]; ok {
			byRemote[item.RemoteID] = i
		}
	}

	for _, r := range remote {
		if inFlight[r.RemoteID] {
			continue
		}
		r.SyncStatus = model.RecordSynced
		if i, ok := byRemote[r.RemoteID]; ok {
			r.ID = local[i].ID
			local[i] = r
		} else {
			local = append(local, r)
		}
		if err := s.store.Put(ctx, localstore.TableDailyLogs, r); err != nil {
			logger.FromContext(ctx).Warn("caching daily log", "log", r.ID, "error", err)
		}
	}
	return local
}

func pendingLog(item queue.CaptureItem, activityID string) model.DailyLog {
	dl := model.DailyLog{
		ID:         item.LocalID,
		RemoteID:   item.RemoteID,
		ProjectID:  item.ProjectID,
		ActivityID: activityID,
		Date:       item.Payload.Date,
		PhotoIDs:   assetIDs(item),
		SyncStatus: model.RecordPending,
		CreatedAt:  item.CreatedAt,
	}
	if note, ok := item.Payload.Fields["note"].(string); ok {
		dl.Note = note
	}
	if status, ok := item.Payload.Fields["status"].(string); ok {
		dl.Status = model.ActivityStatus(status)
	}
	// Fields round-trip through JSON in the store, so numbers come back as float64.
	switch p := item.Payload.Fields["progress"].(type) {
	case float64:
		v := int(p)
		dl.Progress = &v
	case int:
		v := p
		dl.Progress = &v
	}
	return dl
}

func assetIDs(item queue.CaptureItem) []string {
	if len(item.Assets) == 0 {
		return nil
	}
	out := make([]string, len(item.Assets))
	for i, a := range item.Assets {
		out[i] = a.ID
	}
	return out
}
