package localstore

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	ID         string `json:"id"`
	ProjectID  string `json:"projectId,omitempty"`
	ActivityID string `json:"activityId,omitempty"`
	Note       string `json:"note,omitempty"`
	Uploaded   bool   `json:"uploaded,omitempty"`
	OwnerID    string `json:"ownerId,omitempty"`
}

func (r testRecord) RecordKey() string { return r.ID }

func openTestStore(t *testing.T) (*SQLiteStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fieldsync.db")
	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func TestOpen_CreatesLatestSchema(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	v, err := s.Version(ctx)
	require.NoError(t, err)
	latest, err := LatestVersion()
	require.NoError(t, err)
	assert.Equal(t, latest, v)

	for _, table := range Tables() {
		_, err := s.GetAll(ctx, table)
		assert.NoError(t, err, table)
	}
}

func TestPutGet_RoundTrip(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, TableDailyLogs, testRecord{ID: "d1", ActivityID: "a1", Note: "poured"}))

	got, err := GetAs[testRecord](ctx, s, TableDailyLogs, "d1")
	require.NoError(t, err)
	assert.Equal(t, "poured", got.Note)
	assert.Equal(t, "a1", got.ActivityID)
}

func TestGet_NotFound(t *testing.T) {
	s, _ := openTestStore(t)
	_, err := GetAs[testRecord](context.Background(), s, TableDailyLogs, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPut_UpsertKeepsInsertionOrder(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Put(ctx, TableCommandQueue, testRecord{ID: id}))
	}
	require.NoError(t, s.Put(ctx, TableCommandQueue, testRecord{ID: "a", Note: "edited"}))

	all, err := List[testRecord](ctx, s, TableCommandQueue)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].ID, all[1].ID, all[2].ID})
	assert.Equal(t, "edited", all[0].Note)
}

func TestPut_RequiresKey(t *testing.T) {
	s, _ := openTestStore(t)
	assert.Error(t, s.Put(context.Background(), TableProjects, testRecord{}))
}

func TestGetAllByIndex(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, TableDailyLogs, testRecord{ID: "d1", ActivityID: "a1", ProjectID: "p1"}))
	require.NoError(t, s.Put(ctx, TableDailyLogs, testRecord{ID: "d2", ActivityID: "a2", ProjectID: "p1"}))
	require.NoError(t, s.Put(ctx, TableDailyLogs, testRecord{ID: "d3", ActivityID: "a1", ProjectID: "p1"}))

	byActivity, err := ListByIndex[testRecord](ctx, s, TableDailyLogs, IndexByActivity, "a1")
	require.NoError(t, err)
	require.Len(t, byActivity, 2)
	assert.Equal(t, "d1", byActivity[0].ID)
	assert.Equal(t, "d3", byActivity[1].ID)

	byProject, err := ListByIndex[testRecord](ctx, s, TableDailyLogs, IndexByProject, "p1")
	require.NoError(t, err)
	assert.Len(t, byProject, 3)
}

func TestGetAllByIndex_BooleanField(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, TablePhotos, testRecord{ID: "ph1", OwnerID: "d1", Uploaded: true}))
	require.NoError(t, s.Put(ctx, TablePhotos, testRecord{ID: "ph2", OwnerID: "d1"}))

	uploaded, err := ListByIndex[testRecord](ctx, s, TablePhotos, IndexByUploaded, 1)
	require.NoError(t, err)
	require.Len(t, uploaded, 1)
	assert.Equal(t, "ph1", uploaded[0].ID)
}

func TestUnknownTableAndIndex(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	_, err := s.GetAll(ctx, "sprints")
	assert.ErrorIs(t, err, ErrUnknownTable)

	_, err = s.GetAllByIndex(ctx, TableProjects, "by_owner", "x")
	assert.ErrorIs(t, err, ErrUnknownIndex)

	assert.ErrorIs(t, s.Put(ctx, "sprints", testRecord{ID: "x"}), ErrUnknownTable)
}

func TestDelete_Idempotent(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, TableProjects, testRecord{ID: "p1"}))
	require.NoError(t, s.Delete(ctx, TableProjects, "p1"))
	require.NoError(t, s.Delete(ctx, TableProjects, "p1"))

	_, err := GetAs[testRecord](ctx, s, TableProjects, "p1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReopen_PreservesData(t *testing.T) {
	s, path := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Put(ctx, TableCaptureQueue, testRecord{ID: "c1"}))
	require.NoError(t, s.Close())

	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	all, err := reopened.GetAll(ctx, TableCaptureQueue)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestOpen_ExistingTablesAreTolerated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	db, err := sql.Open("sqlite", "file:"+path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE projects (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		record_key TEXT NOT NULL UNIQUE,
		body TEXT NOT NULL CHECK (json_valid(body)))`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO projects (record_key, body) VALUES ('p1', '{"id":"p1"}')`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()

	got, err := GetAs[testRecord](context.Background(), s, TableProjects, "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ID)
}

func TestOpen_RefusesNewerSchema(t *testing.T) {
	s, path := openTestStore(t)
	_, err := s.db.Exec(`INSERT INTO goose_db_version (version_id, is_applied) VALUES (?, 1)`, 999)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(context.Background(), path)
	assert.ErrorIs(t, err, ErrSchemaTooNew)
}

func TestUnavailable(t *testing.T) {
	cause := errors.New("disk quota exceeded")
	s := Unavailable(cause)
	ctx := context.Background()

	err := s.Put(ctx, TableProjects, testRecord{ID: "p1"})
	assert.True(t, IsUnavailable(err))
	assert.Contains(t, err.Error(), "disk quota exceeded")

	_, err = s.GetAll(ctx, TableProjects)
	assert.True(t, IsUnavailable(err))
	assert.NoError(t, s.Close())
}
