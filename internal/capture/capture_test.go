package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/jonboulle/clockwork"
	"github.com/rogersnm/fieldsync/internal/localstore"
	"github.com/rogersnm/fieldsync/internal/model"
	"github.com/rogersnm/fieldsync/internal/queue"
	"github.com/rogersnm/fieldsync/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI stands in for the remote service on both the write and read side.
type fakeAPI struct {
	mu          sync.Mutex
	offline     bool
	failUploads error
	logs        []model.DailyLog
	uploads     int
}

var errUnreachable = errors.New("dial tcp: connection refused")

func (f *fakeAPI) CreateEntity(_ context.Context, endpoint string, body any) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return "", errUnreachable
	}
	fields := body.(map[string]any)
	remoteID := fmt.Sprintf("srv-%d", len(f.logs)+1)
	f.logs = append(f.logs, model.DailyLog{
		ID:         remoteID,
		RemoteID:   remoteID,
		ActivityID: fields["activity_id"].(string),
		Note:       fields["note"].(string),
		SyncStatus: model.RecordSynced,
		CreatedAt:  time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	})
	return remoteID, nil
}

func (f *fakeAPI) UploadAsset(context.Context, string, remote.Asset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return errUnreachable
	}
	if f.failUploads != nil {
		return f.failUploads
	}
	f.uploads++
	return nil
}

func (f *fakeAPI) ListDailyLogs(_ context.Context, activityID string) ([]model.DailyLog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return nil, errUnreachable
	}
	var out []model.DailyLog
	for _, l := range f.logs {
		if l.ActivityID == activityID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeAPI) setOffline(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.offline = v
}

type harness struct {
	svc   *Service
	queue *queue.CaptureQueue
	store *localstore.SQLiteStore
	api   *fakeAPI
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := localstore.Open(context.Background(), filepath.Join(t.TempDir(), "fieldsync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := &harness{store: store, api: &fakeAPI{}}
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))
	h.queue = queue.NewCaptureQueue(store, h.api,
		queue.WithClock(clock),
		queue.WithCreatedHook(func(ctx context.Context, item queue.CaptureItem, remoteID string) {
			h.svc.MarkCreated(ctx, item, remoteID)
		}),
		queue.WithDeliveredHook(func(ctx context.Context, item queue.CaptureItem, remoteID string) {
			h.svc.Promote(ctx, item, remoteID)
		}),
	)
	h.svc = New(store, h.queue, h.api, WithClock(clock))
	return h
}

func testJPEG(t *testing.T) []byte {
	t.Helper()
	img := imaging.New(64, 48, color.NRGBA{R: 90, G: 90, B: 90, A: 255})
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.JPEG))
	return buf.Bytes()
}

func intPtr(v int) *int { return &v }

func TestSubmit_StoresPendingLogAndQueuesItem(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	dl, err := h.svc.Submit(ctx, Input{
		ProjectID:  "p1",
		ActivityID: "a1",
		Note:       "Formwork stripped on level 2",
		Status:     model.StatusInProgress,
		Progress:   intPtr(60),
		Photos:     [][]byte{testJPEG(t)},
	})
	require.NoError(t, err)
	assert.Equal(t, model.RecordPending, dl.SyncStatus)
	assert.Len(t, dl.PhotoIDs, 1)

	stored, err := localstore.GetAs[model.DailyLog](ctx, h.store, localstore.TableDailyLogs, dl.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RecordPending, stored.SyncStatus)

	items, err := h.queue.PendingFor(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, dl.ID, items[0].LocalID)
	assert.Equal(t, "/activities/a1/daily-logs", items[0].Payload.Endpoint)
	assert.EqualValues(t, 60, items[0].Payload.Fields["progress"])
}

func TestSubmit_Validation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Submit(ctx, Input{ProjectID: "p1", ActivityID: "a1"})
	assert.ErrorIs(t, err, ErrEmptyReport)

	_, err = h.svc.Submit(ctx, Input{ProjectID: "p1", Note: "no activity"})
	assert.Error(t, err)

	_, err = h.svc.Submit(ctx, Input{ProjectID: "p1", ActivityID: "a1", Note: "x", Progress: intPtr(140)})
	assert.Error(t, err)

	_, err = h.svc.Submit(ctx, Input{ProjectID: "p1", ActivityID: "a1", Note: "x", Status: "paused"})
	assert.Error(t, err)
}

func TestSubmit_BadPhotoKeepsNothing(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Submit(ctx, Input{
		ProjectID: "p1", ActivityID: "a1", Note: "x",
		Photos: [][]byte{[]byte("definitely not a jpeg")},
	})
	require.Error(t, err)

	logs, err := h.store.GetAll(ctx, localstore.TableDailyLogs)
	require.NoError(t, err)
	assert.Empty(t, logs)
	n, err := h.queue.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTimeline_OfflineShowsQueuedReport(t *testing.T) {
	h := newHarness(t)
	h.api.setOffline(true)
	ctx := context.Background()

	dl, err := h.svc.Submit(ctx, Input{ProjectID: "p1", ActivityID: "a1", Note: "Rain delay", Progress: intPtr(20)})
	require.NoError(t, err)

	entries, err := h.svc.Timeline(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsPending)
	assert.Equal(t, dl.ID, entries[0].Item.ID)
	assert.Equal(t, "Rain delay", entries[0].Item.Note)
	require.NotNil(t, entries[0].Item.Progress)
	assert.Equal(t, 20, *entries[0].Item.Progress)
}

func TestDelivery_PromotesLogAndDeduplicatesTimeline(t *testing.T) {
	h := newHarness(t)
	h.api.setOffline(true)
	ctx := context.Background()

	dl, err := h.svc.Submit(ctx, Input{ProjectID: "p1", ActivityID: "a1", Note: "Slab poured", Photos: [][]byte{testJPEG(t)}})
	require.NoError(t, err)

	unsent, err := h.svc.UnsentPhotos(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, unsent)

	h.api.setOffline(false)
	res, err := h.queue.Process(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Delivered)

	unsent, err = h.svc.UnsentPhotos(ctx)
	require.NoError(t, err)
	assert.Zero(t, unsent)

	stored, err := localstore.GetAs[model.DailyLog](ctx, h.store, localstore.TableDailyLogs, dl.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RecordSynced, stored.SyncStatus)
	assert.Equal(t, "srv-1", stored.RemoteID)
	assert.Equal(t, dl.PhotoIDs, stored.PhotoIDs)

	photo, err := localstore.GetAs[model.Photo](ctx, h.store, localstore.TablePhotos, dl.PhotoIDs[0])
	require.NoError(t, err)
	assert.True(t, photo.Uploaded)

	entries, err := h.svc.Timeline(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].IsPending)
	assert.Equal(t, "srv-1", entries[0].Item.ItemID())

	cached, err := h.store.GetAll(ctx, localstore.TableDailyLogs)
	require.NoError(t, err)
	assert.Len(t, cached, 1, "server copy must reuse the local key")
}

func TestTimeline_PhotoUploadFailureShowsReportOnce(t *testing.T) {
	h := newHarness(t)
	h.api.failUploads = &remote.StatusError{StatusCode: http.StatusRequestEntityTooLarge, Message: "photo too large"}
	ctx := context.Background()

	dl, err := h.svc.Submit(ctx, Input{ProjectID: "p1", ActivityID: "a1", Note: "Slab poured", Photos: [][]byte{testJPEG(t)}})
	require.NoError(t, err)

	res, err := h.queue.Process(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rejected)

	stored, err := localstore.GetAs[model.DailyLog](ctx, h.store, localstore.TableDailyLogs, dl.ID)
	require.NoError(t, err)
	assert.Equal(t, "srv-1", stored.RemoteID)
	assert.Equal(t, model.RecordPending, stored.SyncStatus)

	for range 2 {
		entries, err := h.svc.Timeline(ctx, "a1")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "Slab poured", entries[0].Item.Note)
		assert.Equal(t, "srv-1", entries[0].Item.ItemID())
	}

	cached, err := h.store.GetAll(ctx, localstore.TableDailyLogs)
	require.NoError(t, err)
	assert.Len(t, cached, 1)
}

func TestDiscard(t *testing.T) {
	h := newHarness(t)
	h.api.setOffline(true)
	ctx := context.Background()

	dl, err := h.svc.Submit(ctx, Input{ProjectID: "p1", ActivityID: "a1", Note: "wrong activity"})
	require.NoError(t, err)
	require.NoError(t, h.svc.Discard(ctx, dl.ID))

	entries, err := h.svc.Timeline(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.ErrorIs(t, h.svc.Discard(ctx, dl.ID), queue.ErrItemNotFound)
}

func TestTimeline_UnavailableStoreIsRemoteOnly(t *testing.T) {
	api := &fakeAPI{logs: []model.DailyLog{
		{ID: "srv-1", RemoteID: "srv-1", ActivityID: "a1", Note: "from server"},
	}}
	store := localstore.Unavailable(errors.New("disk I/O error"))
	svc := New(store, queue.NewCaptureQueue(store, api), api)

	entries, err := svc.Timeline(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "from server", entries[0].Item.Note)

	api.setOffline(true)
	_, err = svc.Timeline(context.Background(), "a1")
	assert.Error(t, err)
}

func TestSubmit_ThroughHTTPClient(t *testing.T) {
	var mu sync.Mutex
	var created map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/activities/a1/daily-logs":
			if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&created)) {
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{"data": map[string]string{"id": "srv-42"}})
		case r.Method == http.MethodPost && r.URL.Path == "/daily-logs/srv-42/photos":
			assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))
			w.WriteHeader(http.StatusCreated)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	store, err := localstore.Open(context.Background(), filepath.Join(t.TempDir(), "fieldsync.db"))
	require.NoError(t, err)
	defer store.Close()

	client := remote.New(srv.URL, "tok")
	var svc *Service
	q := queue.NewCaptureQueue(store, client, queue.WithDeliveredHook(func(ctx context.Context, item queue.CaptureItem, remoteID string) {
		svc.Promote(ctx, item, remoteID)
	}))
	svc = New(store, q, client)
	ctx := context.Background()

	dl, err := svc.Submit(ctx, Input{ProjectID: "p1", ActivityID: "a1", Note: "Inspection passed", Photos: [][]byte{testJPEG(t)}})
	require.NoError(t, err)
	_, err = q.Process(ctx)
	require.NoError(t, err)

	mu.Lock()
	assert.Equal(t, dl.ID, created["id"])
	assert.Equal(t, "Inspection passed", created["note"])
	mu.Unlock()

	stored, err := localstore.GetAs[model.DailyLog](ctx, store, localstore.TableDailyLogs, dl.ID)
	require.NoError(t, err)
	assert.Equal(t, "srv-42", stored.RemoteID)
}
