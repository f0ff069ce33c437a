package utils

import (
	"bytes"
	"time"
)

type DownloadEntry struct {
	OutputPath string `yaml:"op"`
	URL        string `yaml:"link"`
}

type DownloadConfig struct {
	Dir              string
	Workers          int
	HTTPClientConfig HTTPClientConfig
}

type HTTPClientConfig struct {
	Timeout   time.Duration // zero disables dial and read deadlines
	UserAgent string
	Headers   map[string]string
	RateLimit int64 // bytes per second shared by every connection, zero disables
}

// Buffer holds one raw HTTP response, status line and headers included.
type Buffer struct {
	Data   []byte
	Length int
}

// Content returns the payload after the first blank line of the response.
// A buffer without a header boundary is returned whole.
func (b *Buffer) Content() []byte {
	data := b.Data[:b.Length]
	if idx := bytes.Index(data, headerBoundary); idx >= 0 {
		return data[idx+len(headerBoundary):]
	}
	return data
}

// Header returns the status line and header block without the boundary.
func (b *Buffer) Header() []byte {
	data := b.Data[:b.Length]
	if idx := bytes.Index(data, headerBoundary); idx >= 0 {
		return data[:idx]
	}
	return nil
}

// Task is one byte-range fetch. RangeEnd is inclusive. A worker sets
// exactly one of Result or Err.
type Task struct {
	URL        string
	RangeStart int64
	RangeEnd   int64
	Result     *Buffer
	Err        error
}

func NewTask(url string, start, end int64) *Task {
	return &Task{URL: url, RangeStart: start, RangeEnd: end}
}

func (t *Task) Succeeded() bool {
	return t.Err == nil && t.Result != nil
}

// Plan describes how one resource is split into chunks.
type Plan struct {
	TotalSize  int64
	ChunkSize  int64
	ChunkCount int
}

// ComputePlan always produces one chunk per worker. The extra byte on the
// chunk size keeps the last range past the end of the resource; servers
// clamp it.
func ComputePlan(totalSize int64, workers int) Plan {
	return Plan{
		TotalSize:  totalSize,
		ChunkSize:  totalSize/int64(workers) + 1,
		ChunkCount: workers,
	}
}

// Range returns the inclusive byte range of chunk i.
func (p Plan) Range(i int) (int64, int64) {
	start := int64(i) * p.ChunkSize
	return start, start + p.ChunkSize - 1
}
