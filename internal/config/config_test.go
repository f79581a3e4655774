package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rogersnm/fieldsync/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{EnvAPIURL, EnvToken, EnvAssetBucket, EnvLogLevel, EnvLogFormat, EnvListen} {
		t.Setenv(key, "")
	}
}

func TestLoad_ExistingFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, FileName), []byte(`default_project: p-123
api:
  url: https://example.test/api
sync:
  fallback_interval: 90s
media:
  max_width: 800
  max_height: 600
  quality: 0.5
`), 0644)

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "p-123", cfg.DefaultProject)
	assert.Equal(t, "https://example.test/api", cfg.API.URL)
	assert.Equal(t, 90*time.Second, cfg.Sync.FallbackInterval.Std())
	assert.Equal(t, 15*time.Second, cfg.Sync.ProbeInterval.Std())
	assert.Equal(t, 800, cfg.Media.MaxWidth)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "", cfg.DefaultProject)
	assert.Equal(t, DefaultAPIURL, cfg.API.URL)
	assert.Equal(t, DefaultListen, cfg.Listen)
	assert.Equal(t, media.DefaultOptions, cfg.Media)
	assert.Equal(t, 60*time.Second, cfg.Sync.FallbackInterval.Std())
	require.NoError(t, cfg.Validate())
}

func TestLoad_MalformedYAML(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, FileName), []byte("{{bad yaml"), 0644)

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoad_BadDuration(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, FileName), []byte("sync:\n  probe_interval: soon\n"), 0644)

	_, err := LoadFile(dir)
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, FileName), []byte("api:\n  token: from-file\n"), 0644)
	os.WriteFile(filepath.Join(dir, EnvFileName), []byte("FIELDSYNC_TOKEN=from-dotenv\nFIELDSYNC_LOG_FORMAT=json\n"), 0644)
	t.Setenv(EnvLogFormat, "text")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.API.Token)
	assert.Equal(t, "text", cfg.Log.Format, "process env wins over .env")
}

func TestValidate_Rejects(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	bad := *cfg
	bad.API.URL = "not a url"
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Media.Quality = 1.5
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Sync.ProbeInterval = Duration(-time.Second)
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.Log.Level = "verbose"
	assert.Error(t, bad.Validate())
}

func TestLogger(t *testing.T) {
	cfg := &Config{Log: LogConfig{Level: "debug", Format: "json"}}
	lc := cfg.Logger("1.0.0")
	assert.Equal(t, "debug", lc.Level)
	assert.True(t, lc.IsJSON())
	assert.Equal(t, "1.0.0", lc.Version)
}

func TestSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		DefaultProject: "p-123",
		Sync:           SyncConfig{FallbackInterval: Duration(2 * time.Minute)},
	}

	require.NoError(t, Save(dir, cfg))

	loaded, err := LoadFile(dir)
	require.NoError(t, err)
	assert.Equal(t, cfg.DefaultProject, loaded.DefaultProject)
	assert.Equal(t, 2*time.Minute, loaded.Sync.FallbackInterval.Std())

	raw, err := os.ReadFile(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "fallback_interval: 2m0s")
	assert.NotContains(t, string(raw), "token")
}

func TestSave_CreatesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "subdir")
	cfg := &Config{DefaultProject: "p-123"}

	require.NoError(t, Save(dir, cfg))
	_, err := os.Stat(filepath.Join(dir, FileName))
	assert.NoError(t, err)
}
