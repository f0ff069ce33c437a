package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputePlanRanges(t *testing.T) {
	plan := ComputePlan(100, 4)
	require.Equal(t, int64(26), plan.ChunkSize)
	require.Equal(t, 4, plan.ChunkCount)

	want := [][2]int64{{0, 25}, {26, 51}, {52, 77}, {78, 103}}
	for i, w := range want {
		start, end := plan.Range(i)
		assert.Equal(t, w[0], start)
		assert.Equal(t, w[1], end)
	}
}

func TestPlanRangesContiguous(t *testing.T) {
	for _, tc := range []struct {
		size    int64
		workers int
	}{{0, 1}, {1, 3}, {999, 7}, {1 << 20, 16}} {
		plan := ComputePlan(tc.size, tc.workers)
		var next int64
		for i := range plan.ChunkCount {
			start, end := plan.Range(i)
			require.Equal(t, next, start)
			require.GreaterOrEqual(t, end, start)
			next = end + 1
		}
		require.GreaterOrEqual(t, next, tc.size, "ranges cover the whole resource")
	}
}

func TestBufferContent(t *testing.T) {
	raw := []byte("HTTP/1.0 206 Partial Content\r\nContent-Length: 5\r\n\r\nhello\r\n\r\nworld")
	buf := &Buffer{Data: raw, Length: len(raw)}
	assert.Equal(t, "hello\r\n\r\nworld", string(buf.Content()))
	assert.Equal(t, 206, StatusCode(buf))

	v, ok := HeaderValue(buf, "content-length")
	require.True(t, ok)
	assert.Equal(t, "5", v)
	_, ok = HeaderValue(buf, "Content-Range")
	assert.False(t, ok)

	noHeader := &Buffer{Data: []byte("just bytes"), Length: 10}
	assert.Equal(t, "just bytes", string(noHeader.Content()))
}

func TestParseTarget(t *testing.T) {
	target, err := ParseTarget("example.com/files/a.bin")
	require.NoError(t, err)
	assert.Equal(t, Target{Host: "example.com", Port: "80", Path: "/files/a.bin"}, target)
	assert.Equal(t, "example.com", target.HostHeader())

	target, err = ParseTarget("http://127.0.0.1:8080/x")
	require.NoError(t, err)
	assert.Equal(t, Target{Host: "127.0.0.1", Port: "8080", Path: "/x"}, target)
	assert.Equal(t, "127.0.0.1:8080", target.HostHeader())

	target, err = ParseTarget("HTTP://example.com")
	require.NoError(t, err)
	assert.Equal(t, "/", target.Path)

	_, err = ParseTarget("https://example.com/x")
	assert.ErrorIs(t, err, ErrUnsupportedScheme)
	_, err = ParseTarget("example.com")
	assert.ErrorIs(t, err, ErrInvalidURL)
	_, err = ParseTarget("/only/path")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestReadDownloadListPlain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	content := "example.com/a\n\n  # comment\nexample.com/b  \r\nhttp://example.org/c"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	entries, err := ReadDownloadList(path)
	require.NoError(t, err)
	assert.Equal(t, []DownloadEntry{
		{URL: "example.com/a"},
		{URL: "example.com/b"},
		{URL: "http://example.org/c"},
	}, entries)
}

func TestReadDownloadListYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "urls.yaml")
	content := "- link: example.com/a\n  op: a.bin\n- link: example.com/b\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	entries, err := ReadDownloadList(path)
	require.NoError(t, err)
	assert.Equal(t, []DownloadEntry{
		{URL: "example.com/a", OutputPath: "a.bin"},
		{URL: "example.com/b"},
	}, entries)

	bad := filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(bad, []byte("- op: nolink\n"), 0644))
	_, err = ReadDownloadList(bad)
	assert.Error(t, err)

	numeric := filepath.Join(dir, "numeric.yaml")
	require.NoError(t, os.WriteFile(numeric, []byte("- link: example.com/a\n  op: \"0\"\n"), 0644))
	_, err = ReadDownloadList(numeric)
	assert.ErrorContains(t, err, "clash with chunk files")
}

func TestReadDownloadListMissingFile(t *testing.T) {
	_, err := ReadDownloadList(filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFileNames(t *testing.T) {
	assert.Equal(t, filepath.Join("dl", "52"), ChunkFileName("dl", 52))
	assert.Equal(t, "example.com+file", OutputFileName(DownloadEntry{URL: "example.com/file"}))
	assert.Equal(t, "custom", OutputFileName(DownloadEntry{URL: "example.com/file", OutputPath: "custom"}))
}

func TestClean(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"0", "26", "52", "keep.txt", "example.com+file"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	removed, err := Clean(dir)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	left, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, f := range left {
		names = append(names, f.Name())
	}
	assert.ElementsMatch(t, []string{"keep.txt", "example.com+file"}, names)

	removed, err = Clean(filepath.Join(dir, "nope"))
	require.NoError(t, err)
	assert.Zero(t, removed)
}
