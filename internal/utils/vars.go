package utils

import (
	"errors"
	"regexp"
)

const DefaultBufferSize = 1024 * 1024 // socket buffer size
const LogFile = ".rangeget.log"
const ToolUserAgent = "rangeget/1.0"
const DefaultHTTPPort = "80"

var headerBoundary = []byte("\r\n\r\n")

var (
	ErrInvalidURL        = errors.New("url has no host/path separator")
	ErrUnsupportedScheme = errors.New("unsupported url scheme")
	ErrMalformedResponse = errors.New("response is not a parseable HTTP response")
	ErrNoContentLength   = errors.New("server did not report a usable Content-Length")
	ErrInvalidWorkers    = errors.New("worker count must be a positive integer")
	ErrChunkMissing      = errors.New("chunk file missing")
)

var ChunkFileRegex = regexp.MustCompile(`^\d+$`)
