package rangehttp

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tanq16/rangeget/internal/utils"
)

func writeChunks(t *testing.T, dir string, chunks map[string]string) {
	t.Helper()
	for name, content := range chunks {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestMergeAndRemoveChunks(t *testing.T) {
	dir := t.TempDir()
	writeChunks(t, dir, map[string]string{
		"0":  "first chunk|",
		"26": "second\nchunk|",
		"52": "third\x00chunk|",
		"78": "last",
	})

	written, err := MergeChunks(dir, "example.com+file", 26, 4)
	require.NoError(t, err)

	merged, err := os.ReadFile(filepath.Join(dir, "example.com+file"))
	require.NoError(t, err)
	want := "first chunk|second\nchunk|third\x00chunk|last"
	assert.Equal(t, want, string(merged))
	assert.Equal(t, int64(len(want)), written)

	require.NoError(t, RemoveChunkFiles(dir, 26, 4))
	assert.Equal(t, []string{"example.com+file"}, listDir(t, dir))
}

func TestMergeTruncatesExistingDestination(t *testing.T) {
	dir := t.TempDir()
	writeChunks(t, dir, map[string]string{"0": "ab", "2": "cd", "out": "stale content from an earlier run"})

	_, err := MergeChunks(dir, "out", 2, 2)
	require.NoError(t, err)
	merged, err := os.ReadFile(filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(merged))
}

func TestMergeMissingChunkWritesNothing(t *testing.T) {
	dir := t.TempDir()
	writeChunks(t, dir, map[string]string{"0": "a", "26": "b", "78": "d"})

	_, err := MergeChunks(dir, "example.com+file", 26, 4)
	require.ErrorIs(t, err, utils.ErrChunkMissing)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, statErr := os.Stat(filepath.Join(dir, "example.com+file"))
	assert.True(t, os.IsNotExist(statErr), "no merged file may exist after a gap")
}

func TestRemoveChunkFilesContinuesPastGap(t *testing.T) {
	dir := t.TempDir()
	writeChunks(t, dir, map[string]string{"0": "a", "52": "c", "78": "d", "keep": "x"})

	require.NoError(t, RemoveChunkFiles(dir, 26, 4))
	assert.Equal(t, []string{"keep"}, listDir(t, dir))
}

func TestWriteChunk(t *testing.T) {
	dir := t.TempDir()
	raw := "HTTP/1.0 206 Partial Content\r\nContent-Range: bytes 26-51/100\r\n\r\npayload bytes"
	task := utils.NewTask("example.com/file", 26, 51)
	task.Result = &utils.Buffer{Data: []byte(raw), Length: len(raw)}

	n, err := WriteChunk(dir, task)
	require.NoError(t, err)
	assert.Equal(t, len("payload bytes"), n)
	content, err := os.ReadFile(filepath.Join(dir, "26"))
	require.NoError(t, err)
	assert.Equal(t, "payload bytes", string(content))

	failed := utils.NewTask("example.com/file", 52, 77)
	failed.Err = errors.New("dial tcp: refused")
	_, err = WriteChunk(dir, failed)
	assert.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "52"))
	assert.True(t, os.IsNotExist(statErr))
}
