package intake

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRaw(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRelocate_CollisionKeepsOneFile(t *testing.T) {
	rawDir := t.TempDir()
	workDir := t.TempDir()

	writeRaw(t, rawDir, "export_199996_aa.csv", "first")
	writeRaw(t, rawDir, "export_199996_bb.csv", "second")

	in := New(rawDir, workDir)
	require.NoError(t, in.Relocate("199996"))

	entries, err := os.ReadDir(workDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	want := NormalizedName(time.Now(), "199996")
	assert.Equal(t, want, entries[0].Name())

	// Directory scan order is lexicographic, so the bb export moved last
	data, err := os.ReadFile(filepath.Join(workDir, want))
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	remaining, err := os.ReadDir(rawDir)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestRelocate_IgnoresStaleFiles(t *testing.T) {
	rawDir := t.TempDir()
	workDir := t.TempDir()

	stale := writeRaw(t, rawDir, "export_199996_old.csv", "stale")
	old := time.Now().AddDate(0, 0, -2)
	require.NoError(t, os.Chtimes(stale, old, old))

	in := New(rawDir, workDir)
	require.NoError(t, in.Relocate("199996"))

	entries, err := os.ReadDir(workDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = os.Stat(stale)
	assert.NoError(t, err, "stale file must stay in the raw directory")
}

func TestRelocate_IgnoresOtherMeters(t *testing.T) {
	rawDir := t.TempDir()
	workDir := t.TempDir()

	other := writeRaw(t, rawDir, "export_300001.csv", "other meter")

	in := New(rawDir, workDir)
	require.NoError(t, in.Relocate("199996"))

	entries, err := os.ReadDir(workDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = os.Stat(other)
	assert.NoError(t, err)
}

func TestRelocate_MissingRawDir(t *testing.T) {
	in := New(filepath.Join(t.TempDir(), "does-not-exist"), t.TempDir())
	assert.Error(t, in.Relocate("199996"))
}

func TestNormalizedName(t *testing.T) {
	day := time.Date(2023, 3, 24, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, "20230324_199996.csv", NormalizedName(day, "199996"))
}
