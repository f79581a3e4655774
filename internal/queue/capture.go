package queue

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rogersnm/fieldsync/internal/event"
	"github.com/rogersnm/fieldsync/internal/id"
	"github.com/rogersnm/fieldsync/internal/localstore"
	"github.com/rogersnm/fieldsync/internal/logger"
	"github.com/rogersnm/fieldsync/internal/media"
	"github.com/rogersnm/fieldsync/internal/metrics"
	"github.com/rogersnm/fieldsync/internal/model"
	"github.com/rogersnm/fieldsync/internal/remote"
)

// IDPlaceholder in an asset endpoint is replaced by the server-confirmed entity id.
const IDPlaceholder = "{id}"

// Payload describes the entity a capture creates.
type Payload struct {
	EntityRef     string         `json:"entityRef" validate:"required"`
	Endpoint      string         `json:"endpoint" validate:"required"`
	AssetEndpoint string         `json:"assetEndpoint,omitempty"`
	Fields        map[string]any `json:"fields,omitempty"`
	Date          *time.Time     `json:"date,omitempty"`
}

// Asset is a compressed image waiting to be attached to the created entity.
type Asset struct {
	ID          string `json:"assetId"`
	ContentType string `json:"contentType"`
	Data        []byte `json:"binary"`
	Uploaded    bool   `json:"uploaded,omitempty"`
}

// CaptureItem is one field report: an entity create followed by its asset uploads.
type CaptureItem struct {
	LocalID   string    `json:"localId"`
	ProjectID string    `json:"projectId"`
	Payload   Payload   `json:"payload"`
	Assets    []Asset   `json:"assets,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Retries   int       `json:"retries"`
	LastError string    `json:"lastError,omitempty"`
	Rejected  bool      `json:"rejected,omitempty"`
	RemoteID  string    `json:"remoteId,omitempty"`
}

func (c CaptureItem) RecordKey() string { return c.LocalID }

// entityBody is what the entity endpoint receives. The client id travels
// with it so a resend after a lost response can be recognized.
func (c CaptureItem) entityBody() map[string]any {
	body := make(map[string]any, len(c.Payload.Fields)+2)
	for k, v := range c.Payload.Fields {
		body[k] = v
	}
	body["id"] = c.LocalID
	if c.Payload.Date != nil {
		body["date"] = c.Payload.Date.UTC().Format(time.RFC3339)
	}
	return body
}

func (c CaptureItem) assetEndpoint() string {
	return strings.ReplaceAll(c.Payload.AssetEndpoint, IDPlaceholder, url.PathEscape(c.RemoteID))
}

// CaptureRequest is the input to Add. LocalID may be preassigned so the
// queued item shares its id with an optimistic local record.
type CaptureRequest struct {
	LocalID   string `validate:"omitempty,uuid"`
	ProjectID string `validate:"required"`
	Payload   Payload
	Images    [][]byte `validate:"dive,min=1"`
}

// CaptureSender performs the two-step capture contract.
type CaptureSender interface {
	CreateEntity(ctx context.Context, endpoint string, body any) (string, error)
	UploadAsset(ctx context.Context, endpoint string, a remote.Asset) error
}

// ProcessResult summarizes one process cycle.
type ProcessResult struct {
	Skipped   bool
	Delivered int
	Failed    int
	Rejected  int
}

// ItemStatus is a binary-free view of a queued capture for review screens.
type ItemStatus struct {
	LocalID        string    `json:"localId"`
	ProjectID      string    `json:"projectId"`
	EntityRef      string    `json:"entityRef"`
	CreatedAt      time.Time `json:"createdAt"`
	Retries        int       `json:"retries"`
	LastError      string    `json:"lastError,omitempty"`
	Rejected       bool      `json:"rejected"`
	EntityCreated  bool      `json:"entityCreated"`
	Assets         int       `json:"assets"`
	AssetsUploaded int       `json:"assetsUploaded"`
}

// Status is the capture queue as seen from a review screen.
type Status struct {
	Items    []ItemStatus `json:"items"`
	Draining bool         `json:"draining"`
	Degraded bool         `json:"degraded"`
}

// CaptureQueue delivers capture items independently: one item failing never
// holds up the others.
type CaptureQueue struct {
	base
	sender CaptureSender
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func NewCaptureQueue(store localstore.Store, sender CaptureSender, opts ...Option) *CaptureQueue {
	return &CaptureQueue{
		base: base{
			settings: newSettings(opts),
			store:    store,
			table:    localstore.TableCaptureQueue,
			source:   event.SourceCaptures,
		},
		sender: sender,
	}
}

func validateRequest(req CaptureRequest) error {
	if err := validate.Struct(req); err != nil {
		return fmt.Errorf("invalid capture: %w", err)
	}
	if len(req.Images) > 0 && req.Payload.AssetEndpoint == "" {
		return fmt.Errorf("invalid capture: an asset endpoint is required when photos are attached")
	}
	return nil
}

// Add compresses the attached images, persists them as photo assets and
// appends one capture item. A photo that cannot be decoded rejects the whole
// capture before anything is stored.
func (q *CaptureQueue) Add(ctx context.Context, req CaptureRequest) (CaptureItem, error) {
	if err := validateRequest(req); err != nil {
		return CaptureItem{}, err
	}

	localID := req.LocalID
	if localID == "" {
		localID = id.New()
	}
	now := q.clock.Now().UTC()
	item := CaptureItem{
		LocalID:   localID,
		ProjectID: req.ProjectID,
		Payload:   req.Payload,
		CreatedAt: now,
	}

	photos := make([]model.Photo, 0, len(req.Images))
	for i, raw := range req.Images {
		img, err := media.Compress(raw, q.media)
		if err != nil {
			return CaptureItem{}, fmt.Errorf("compressing photo %d: %w", i+1, err)
		}
		thumb, err := media.Thumbnail(img.Data)
		if err != nil {
			return CaptureItem{}, fmt.Errorf("thumbnailing photo %d: %w", i+1, err)
		}
		metrics.MediaBytes.WithLabelValues(metrics.StageOriginal).Add(float64(len(raw)))
		metrics.MediaBytes.WithLabelValues(metrics.StageCompressed).Add(float64(len(img.Data)))

		assetID := id.New()
		item.Assets = append(item.Assets, Asset{ID: assetID, ContentType: img.ContentType, Data: img.Data})
		photos = append(photos, model.Photo{
			ID:          assetID,
			OwnerID:     localID,
			ContentType: img.ContentType,
			Data:        img.Data,
			Thumbnail:   thumb.Data,
			Width:       img.Width,
			Height:      img.Height,
			CreatedAt:   now,
		})
	}

	for _, p := range photos {
		if err := q.store.Put(ctx, localstore.TablePhotos, p); err != nil {
			if localstore.IsUnavailable(err) {
				break
			}
			return CaptureItem{}, fmt.Errorf("saving photo %s: %w", p.ID, err)
		}
	}
	if err := q.store.Put(ctx, q.table, item); err != nil {
		if !localstore.IsUnavailable(err) {
			return CaptureItem{}, fmt.Errorf("queueing capture: %w", err)
		}
		logger.FromContext(ctx).Warn("local store unavailable, sending capture without queueing", "capture", localID)
		if err := q.deliver(ctx, &item); err != nil {
			return CaptureItem{}, fmt.Errorf("sending capture: %w", err)
		}
		return item, nil
	}

	n := q.recordDepth(ctx)
	q.publish(ctx, event.Event{Type: event.SyncPending, Pending: n})
	return item, nil
}

// Process attempts every queued capture in insertion order. Failures are
// recorded on the item and the loop moves on. Items rejected by the server
// wait for RetryItem or DeleteItem and are skipped here.
func (q *CaptureQueue) Process(ctx context.Context) (ProcessResult, error) {
	if !q.draining.CompareAndSwap(false, true) {
		return ProcessResult{Skipped: true}, nil
	}
	defer q.draining.Store(false)

	ctx = logger.WithSyncID(ctx, logger.NewSyncID())
	log := logger.FromContext(ctx)
	start := q.clock.Now()
	defer func() {
		metrics.DrainDuration.WithLabelValues(string(q.source)).Observe(q.clock.Since(start).Seconds())
		q.recordDepth(ctx)
	}()

	items, err := localstore.List[CaptureItem](ctx, q.store, q.table)
	if err != nil {
		if localstore.IsUnavailable(err) {
			return ProcessResult{}, nil
		}
		q.publish(ctx, event.Event{Type: event.SyncError, Err: err})
		return ProcessResult{}, fmt.Errorf("loading capture queue: %w", err)
	}

	var res ProcessResult
	eligible := make([]CaptureItem, 0, len(items))
	for _, item := range items {
		if item.Rejected {
			res.Rejected++
			continue
		}
		eligible = append(eligible, item)
	}

	q.publish(ctx, event.Event{Type: event.SyncStart, Pending: len(eligible)})

	var errs []error
	for _, item := range eligible {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := q.deliver(ctx, &item); err != nil {
			q.recordFailure(ctx, &item, err)
			res.Failed++
			if item.Rejected {
				res.Rejected++
			}
			errs = append(errs, fmt.Errorf("capture %s: %w", item.LocalID, err))
			continue
		}
		res.Delivered++
	}

	pending := len(items) - res.Delivered
	if len(errs) == 0 && res.Rejected > 0 {
		errs = append(errs, fmt.Errorf("%d captures were rejected and need review", res.Rejected))
	}
	if len(errs) > 0 {
		log.Warn("capture queue processed with failures",
			"delivered", res.Delivered, "failed", res.Failed, "rejected", res.Rejected)
		q.publish(ctx, event.Event{
			Type: event.SyncError, Pending: pending, Delivered: res.Delivered, Failed: res.Failed, Err: errors.Join(errs...),
		})
		return res, nil
	}

	log.Info("capture queue processed", "delivered", res.Delivered)
	q.publish(ctx, event.Event{Type: event.SyncComplete, Delivered: res.Delivered})
	return res, nil
}

// deliver runs the two-step contract for one item. Progress is saved after
// each step so a retry resumes rather than repeating finished calls.
func (q *CaptureQueue) deliver(ctx context.Context, item *CaptureItem) error {
	if item.RemoteID == "" {
		remoteID, err := q.sender.CreateEntity(ctx, item.Payload.Endpoint, item.entityBody())
		if err != nil {
			return fmt.Errorf("creating entity: %w", err)
		}
		item.RemoteID = remoteID
		q.save(ctx, *item)
		if q.onCreated != nil {
			q.onCreated(ctx, *item, remoteID)
		}
	}

	for i := range item.Assets {
		a := &item.Assets[i]
		if a.Uploaded {
			continue
		}
		err := q.sender.UploadAsset(ctx, item.assetEndpoint(), remote.Asset{
			ID:          a.ID,
			OwnerID:     item.RemoteID,
			ContentType: a.ContentType,
			Data:        a.Data,
		})
		if err != nil {
			return fmt.Errorf("uploading asset %s: %w", a.ID, err)
		}
		a.Uploaded = true
		q.markPhotoUploaded(ctx, a.ID)
		q.save(ctx, *item)
	}

	if err := q.store.Delete(ctx, q.table, item.LocalID); err != nil && !localstore.IsUnavailable(err) {
		return fmt.Errorf("removing delivered capture: %w", err)
	}
	metrics.QueueDelivered.WithLabelValues(string(q.source)).Inc()
	if q.onDelivered != nil {
		q.onDelivered(ctx, *item, item.RemoteID)
	}
	return nil
}

func (q *CaptureQueue) recordFailure(ctx context.Context, item *CaptureItem, err error) {
	item.Retries++
	item.LastError = err.Error()
	item.Rejected = remote.IsPermanent(err)
	q.save(ctx, *item)
	metrics.QueueFailures.WithLabelValues(string(q.source), failureKind(item.Rejected)).Inc()
	logger.FromContext(ctx).Warn("capture delivery failed",
		"capture", item.LocalID, "retries", item.Retries, "rejected", item.Rejected, "error", err)
}

func (q *CaptureQueue) save(ctx context.Context, item CaptureItem) {
	if err := q.store.Put(ctx, q.table, item); err != nil && !localstore.IsUnavailable(err) {
		logger.FromContext(ctx).Error("saving capture progress", "capture", item.LocalID, "error", err)
	}
}

func (q *CaptureQueue) markPhotoUploaded(ctx context.Context, assetID string) {
	photo, err := localstore.GetAs[model.Photo](ctx, q.store, localstore.TablePhotos, assetID)
	if err != nil {
		if !localstore.IsUnavailable(err) && !errors.Is(err, localstore.ErrNotFound) {
			logger.FromContext(ctx).Error("loading photo", "photo", assetID, "error", err)
		}
		return
	}
	photo.Uploaded = true
	if err := q.store.Put(ctx, localstore.TablePhotos, photo); err != nil {
		logger.FromContext(ctx).Error("marking photo uploaded", "photo", assetID, "error", err)
	}
}

// Status lists queued captures without their binaries.
func (q *CaptureQueue) Status(ctx context.Context) (Status, error) {
	st := Status{Draining: q.IsDraining()}
	items, err := localstore.List[CaptureItem](ctx, q.store, q.table)
	if err != nil {
		if localstore.IsUnavailable(err) {
			st.Degraded = true
			return st, nil
		}
		return st, err
	}
	st.Items = make([]ItemStatus, 0, len(items))
	for _, item := range items {
		s := ItemStatus{
			LocalID:       item.LocalID,
			ProjectID:     item.ProjectID,
			EntityRef:     item.Payload.EntityRef,
			CreatedAt:     item.CreatedAt,
			Retries:       item.Retries,
			LastError:     item.LastError,
			Rejected:      item.Rejected,
			EntityCreated: item.RemoteID != "",
			Assets:        len(item.Assets),
		}
		for _, a := range item.Assets {
			if a.Uploaded {
				s.AssetsUploaded++
			}
		}
		st.Items = append(st.Items, s)
	}
	return st, nil
}

// RetryItem clears any rejection on one item and attempts it immediately.
func (q *CaptureQueue) RetryItem(ctx context.Context, localID string) error {
	if !q.draining.CompareAndSwap(false, true) {
		return ErrDrainInProgress
	}
	defer q.draining.Store(false)

	item, err := q.load(ctx, localID)
	if err != nil {
		return err
	}
	item.Rejected = false
	q.publish(ctx, event.Event{Type: event.SyncStart, Pending: 1})
	if err := q.deliver(ctx, &item); err != nil {
		q.recordFailure(ctx, &item, err)
		q.publish(ctx, event.Event{Type: event.SyncError, Pending: 1, Failed: 1, Err: err})
		return fmt.Errorf("retrying capture %s: %w", localID, err)
	}
	q.recordDepth(ctx)
	q.publish(ctx, event.Event{Type: event.SyncComplete, Delivered: 1})
	return nil
}

// DeleteItem discards a queued capture along with its photos that never
// reached the server.
func (q *CaptureQueue) DeleteItem(ctx context.Context, localID string) error {
	release, err := q.hold()
	if err != nil {
		return err
	}
	err = q.deleteItem(ctx, localID)
	release()
	if err != nil {
		return err
	}
	n := q.recordDepth(ctx)
	q.publish(ctx, event.Event{Type: event.SyncPending, Pending: n})
	return nil
}

func (q *CaptureQueue) deleteItem(ctx context.Context, localID string) error {
	if _, err := q.load(ctx, localID); err != nil {
		return err
	}
	photos, err := localstore.ListByIndex[model.Photo](ctx, q.store, localstore.TablePhotos, localstore.IndexByOwner, localID)
	if err != nil {
		return fmt.Errorf("loading photos for capture %s: %w", localID, err)
	}
	for _, p := range photos {
		if p.Uploaded {
			continue
		}
		if err := q.store.Delete(ctx, localstore.TablePhotos, p.ID); err != nil {
			return fmt.Errorf("deleting photo %s: %w", p.ID, err)
		}
	}
	if err := q.store.Delete(ctx, q.table, localID); err != nil {
		return fmt.Errorf("deleting capture %s: %w", localID, err)
	}
	return nil
}

// PendingFor returns queued captures that reference entityRef.
func (q *CaptureQueue) PendingFor(ctx context.Context, entityRef string) ([]CaptureItem, error) {
	items, err := localstore.ListByIndex[CaptureItem](ctx, q.store, q.table, localstore.IndexByEntityRef, entityRef)
	if localstore.IsUnavailable(err) {
		return nil, nil
	}
	return items, err
}

func (q *CaptureQueue) load(ctx context.Context, localID string) (CaptureItem, error) {
	item, err := localstore.GetAs[CaptureItem](ctx, q.store, q.table, localID)
	if errors.Is(err, localstore.ErrNotFound) {
		return CaptureItem{}, fmt.Errorf("capture %s: %w", localID, ErrItemNotFound)
	}
	if err != nil {
		return CaptureItem{}, err
	}
	return item, nil
}
