package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/rogersnm/fieldsync/internal/activity"
	"github.com/rogersnm/fieldsync/internal/capture"
	"github.com/rogersnm/fieldsync/internal/config"
	"github.com/rogersnm/fieldsync/internal/event"
	"github.com/rogersnm/fieldsync/internal/localstore"
	"github.com/rogersnm/fieldsync/internal/netmon"
	"github.com/rogersnm/fieldsync/internal/queue"
	"github.com/rogersnm/fieldsync/internal/remote"
)

const storeFileName = "fieldsync.db"

// app is the object graph shared by every command.
type app struct {
	store    localstore.Store
	client   *remote.Client
	bus      *event.Bus
	commands *queue.CommandQueue
	captures *queue.CaptureQueue
	capture  *capture.Service
	activity *activity.Service
	monitor  *netmon.Monitor
}

func newApp(ctx context.Context, cfg *config.Config, dataDir string, online bool) (*app, error) {
	var store localstore.Store
	db, err := localstore.Open(ctx, filepath.Join(dataDir, storeFileName))
	if err != nil {
		if errors.Is(err, localstore.ErrSchemaTooNew) {
			return nil, err
		}
		slog.Warn("local store unavailable, working remote-only", "error", err)
		store = localstore.Unavailable(err)
	} else {
		store = db
	}

	clientOpts := []remote.Option{remote.WithTimeout(cfg.API.Timeout.Std())}
	if cfg.API.AssetBucket != "" {
		blobs, err := remote.NewS3BlobStore(ctx, cfg.API.AssetBucket)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("configuring asset bucket: %w", err)
		}
		clientOpts = append(clientOpts, remote.WithBlobStore(blobs))
	}
	client := remote.New(cfg.API.URL, cfg.API.Token, clientOpts...)

	bus := event.NewBus()
	a := &app{store: store, client: client, bus: bus}

	a.commands = queue.NewCommandQueue(store, client, queue.WithBus(bus))
	a.captures = queue.NewCaptureQueue(store, client,
		queue.WithBus(bus),
		queue.WithMediaOptions(cfg.Media),
		queue.WithCreatedHook(func(ctx context.Context, item queue.CaptureItem, remoteID string) {
			a.capture.MarkCreated(ctx, item, remoteID)
		}),
		queue.WithDeliveredHook(func(ctx context.Context, item queue.CaptureItem, remoteID string) {
			a.capture.Promote(ctx, item, remoteID)
		}),
	)
	a.capture = capture.New(store, a.captures, client)
	a.activity = activity.New(store, a.commands, client,
		activity.WithCache(cfg.Sync.CacheSize, cfg.Sync.CacheTTL.Std()))
	a.monitor = netmon.New(bus, a.commands, a.captures,
		netmon.WithInitialOnline(online),
		netmon.WithFallbackInterval(cfg.Sync.FallbackInterval.Std()),
		netmon.WithProber(client, cfg.Sync.ProbeInterval.Std()),
	)
	return a, nil
}

// Close lets any sync started by the command finish, then releases the store.
func (a *app) Close() error {
	a.monitor.Wait()
	a.monitor.Close()
	return a.store.Close()
}
