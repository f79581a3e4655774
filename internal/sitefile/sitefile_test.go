package sitefile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteRead(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Write(dir, "p-harbour"))

	got, err := Read(dir)
	require.NoError(t, err)
	assert.Equal(t, "p-harbour", got)
}

func TestRead_MissingAndPadded(t *testing.T) {
	dir := t.TempDir()
	got, err := Read(dir)
	require.NoError(t, err)
	assert.Empty(t, got)

	os.WriteFile(filepath.Join(dir, FileName), []byte("  p-depot \n\n"), 0644)
	got, err = Read(dir)
	require.NoError(t, err)
	assert.Equal(t, "p-depot", got)
}

func TestFind_WalksUp(t *testing.T) {
	parent := t.TempDir()
	child := filepath.Join(parent, "level-2", "north")
	require.NoError(t, os.MkdirAll(child, 0755))
	require.NoError(t, Write(parent, "p-harbour"))

	id, foundDir, err := Find(child)
	require.NoError(t, err)
	assert.Equal(t, "p-harbour", id)
	assert.Equal(t, parent, foundDir)
}

func TestFind_NotFound(t *testing.T) {
	id, foundDir, err := Find(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Empty(t, foundDir)
}

func TestRemove(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Remove(dir), "missing file is fine")

	require.NoError(t, Write(dir, "p-harbour"))
	require.NoError(t, Remove(dir))
	got, err := Read(dir)
	require.NoError(t, err)
	assert.Empty(t, got)
}
