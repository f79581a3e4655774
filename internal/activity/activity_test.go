package activity

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rogersnm/fieldsync/internal/localstore"
	"github.com/rogersnm/fieldsync/internal/model"
	"github.com/rogersnm/fieldsync/internal/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCommands struct {
	mu    sync.Mutex
	items []queue.Command
	err   error
}

func (f *fakeCommands) Enqueue(_ context.Context, url, method string, body any) (queue.Command, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return queue.Command{}, f.err
	}
	cmd := queue.Command{ID: url, URL: url, Method: method}
	f.items = append(f.items, cmd)
	return cmd, nil
}

func (f *fakeCommands) Items(context.Context) ([]queue.Command, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]queue.Command(nil), f.items...), nil
}

type fakeSource struct {
	projects   []model.Project
	activities []model.Activity
	err        error
}

func (f *fakeSource) ListProjects(context.Context) ([]model.Project, error) {
	return f.projects, f.err
}

func (f *fakeSource) ListActivities(_ context.Context, projectID string) ([]model.Activity, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Activity
	for _, a := range f.activities {
		if a.ProjectID == projectID {
			out = append(out, a)
		}
	}
	return out, nil
}

func schedule() []model.Activity {
	return []model.Activity{
		{ID: "a1", ProjectID: "p1", Name: "Excavation", Status: model.StatusCompleted, Progress: 100},
		{ID: "a2", ProjectID: "p1", Name: "Footings", Status: model.StatusInProgress, Progress: 30},
		{ID: "b1", ProjectID: "p2", Name: "Demolition", Status: model.StatusNotStarted},
	}
}

func newTestService(t *testing.T) (*Service, *fakeCommands, *fakeSource, localstore.Store) {
	t.Helper()
	store, err := localstore.Open(context.Background(), filepath.Join(t.TempDir(), "fieldsync.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	cmds := &fakeCommands{}
	src := &fakeSource{
		projects:   []model.Project{{ID: "p1", Name: "Harbour Tower"}, {ID: "p2", Name: "Depot"}},
		activities: schedule(),
	}
	return New(store, cmds, src), cmds, src, store
}

func TestRefreshAndList(t *testing.T) {
	svc, _, src, _ := newTestService(t)
	ctx := context.Background()

	got, err := svc.Refresh(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	src.err = errors.New("offline")
	list, err := svc.List(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Excavation", list[0].Name)
	assert.Equal(t, model.RecordSynced, list[0].SyncStatus)
}

func TestSetStatus_OptimisticAndQueued(t *testing.T) {
	svc, cmds, _, store := newTestService(t)
	ctx := context.Background()
	_, err := svc.Refresh(ctx, "p1")
	require.NoError(t, err)

	progress := 45
	require.NoError(t, svc.SetStatus(ctx, "p1", "a2", model.StatusBlocked, &progress))

	list, err := svc.List(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusBlocked, list[1].Status)
	assert.Equal(t, 45, list[1].Progress)
	assert.Equal(t, model.RecordPending, list[1].SyncStatus)

	require.Len(t, cmds.items, 1)
	assert.Equal(t, "/activities/a2", cmds.items[0].URL)
	assert.Equal(t, http.MethodPatch, cmds.items[0].Method)

	stored, err := localstore.GetAs[model.Activity](ctx, store, localstore.TableActivities, "a2")
	require.NoError(t, err)
	assert.Equal(t, model.StatusBlocked, stored.Status)
}

func TestSetStatus_EnqueueFailureRollsBack(t *testing.T) {
	svc, cmds, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Refresh(ctx, "p1")
	require.NoError(t, err)
	before, err := svc.List(ctx, "p1")
	require.NoError(t, err)

	cmds.err = errors.New("database is locked")
	err = svc.SetStatus(ctx, "p1", "a2", model.StatusCompleted, nil)
	require.Error(t, err)

	after, err := svc.List(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSetStatus_Validation(t *testing.T) {
	svc, cmds, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Refresh(ctx, "p1")
	require.NoError(t, err)

	assert.Error(t, svc.SetStatus(ctx, "p1", "a2", "paused", nil))
	bad := 101
	assert.Error(t, svc.SetStatus(ctx, "p1", "a2", model.StatusInProgress, &bad))
	assert.ErrorIs(t, svc.SetStatus(ctx, "p1", "zz", model.StatusInProgress, nil), ErrActivityNotFound)
	assert.Empty(t, cmds.items)
}

func TestRefresh_KeepsQueuedLocalChanges(t *testing.T) {
	svc, _, _, store := newTestService(t)
	ctx := context.Background()
	_, err := svc.Refresh(ctx, "p1")
	require.NoError(t, err)
	require.NoError(t, svc.SetStatus(ctx, "p1", "a2", model.StatusBlocked, nil))

	_, err = svc.Refresh(ctx, "p1")
	require.NoError(t, err)
	stored, err := localstore.GetAs[model.Activity](ctx, store, localstore.TableActivities, "a2")
	require.NoError(t, err)
	assert.Equal(t, model.StatusBlocked, stored.Status)
	assert.Equal(t, model.RecordPending, stored.SyncStatus)
}

func TestList_UnavailableStoreReadsServer(t *testing.T) {
	src := &fakeSource{activities: schedule()}
	svc := New(localstore.Unavailable(nil), &fakeCommands{}, src)

	list, err := svc.List(context.Background(), "p2")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Demolition", list[0].Name)
}

func TestProjects(t *testing.T) {
	svc, _, src, _ := newTestService(t)
	ctx := context.Background()

	projects, err := svc.Projects(ctx)
	require.NoError(t, err)
	assert.Len(t, projects, 2)

	src.err = errors.New("offline")
	projects, err = svc.Projects(ctx)
	require.NoError(t, err)
	assert.Len(t, projects, 2)

	p, err := svc.Project(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, "Depot", p.Name)
}

func TestIssues(t *testing.T) {
	svc, cmds, _, _ := newTestService(t)
	ctx := context.Background()

	issue, err := svc.RaiseIssue(ctx, "p1", "a2", "Honeycombing on footing F3")
	require.NoError(t, err)
	assert.Equal(t, model.IssueOpen, issue.Status)
	assert.Equal(t, "/projects/p1/issues", cmds.items[0].URL)

	resolved, err := svc.ResolveIssue(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, model.IssueResolved, resolved.Status)
	assert.Equal(t, "/issues/"+issue.ID, cmds.items[1].URL)

	issues, err := svc.Issues(ctx, "a2")
	require.NoError(t, err)
	require.Len(t, issues, 1)
	assert.Equal(t, model.IssueResolved, issues[0].Status)

	_, err = svc.ResolveIssue(ctx, "missing")
	assert.ErrorIs(t, err, ErrIssueNotFound)
	_, err = svc.RaiseIssue(ctx, "p1", "a2", "")
	assert.Error(t, err)
}
