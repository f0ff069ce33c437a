package rangehttp

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/tanq16/rangeget/internal/utils"
)

// Client plans and fetches byte ranges over plain HTTP/1.0.
type Client struct {
	wire *utils.WireClient
	log  zerolog.Logger
}

func NewClient(cfg utils.HTTPClientConfig) *Client {
	return &Client{
		wire: utils.NewWireClient(cfg),
		log:  utils.GetLogger("http"),
	}
}

// Plan probes the resource with HEAD and splits it into one chunk per
// worker.
func (c *Client) Plan(url string, workers int) (utils.Plan, error) {
	if workers < 1 {
		return utils.Plan{}, fmt.Errorf("%w: %d", utils.ErrInvalidWorkers, workers)
	}
	size, err := c.probeSize(url)
	if err != nil {
		return utils.Plan{}, err
	}
	plan := utils.ComputePlan(size, workers)
	c.log.Debug().Str("op", "http/plan").Str("url", url).Int64("size", size).Int64("chunkSize", plan.ChunkSize).Int("chunks", plan.ChunkCount).Msg("Resource planned")
	return plan, nil
}

func (c *Client) probeSize(url string) (int64, error) {
	resp, err := c.wire.Do("HEAD", url, nil)
	if err != nil {
		return 0, fmt.Errorf("error probing %s: %w", url, err)
	}
	if status := utils.StatusCode(resp); status >= 400 {
		return 0, fmt.Errorf("server returned error for %s: %d", url, status)
	}
	contentLength, ok := utils.HeaderValue(resp, "Content-Length")
	if !ok {
		return 0, fmt.Errorf("%w: %s", utils.ErrNoContentLength, url)
	}
	size, err := strconv.ParseInt(contentLength, 10, 64)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("%w: %s reported %q", utils.ErrNoContentLength, url, contentLength)
	}
	return size, nil
}

// FetchRange GETs bytes start through end inclusive and returns the raw
// response. A 416 means the range lies wholly past the end of the
// resource, which happens when there are more workers than bytes; its
// body is dropped so the chunk is empty.
func (c *Client) FetchRange(url string, start, end int64) (*utils.Buffer, error) {
	rangeHeader := fmt.Sprintf("bytes=%d-%d", start, end)
	resp, err := c.wire.Do("GET", url, map[string]string{"Range": rangeHeader})
	if err != nil {
		return nil, err
	}
	if utils.StatusCode(resp) == http.StatusRequestedRangeNotSatisfiable {
		header := append(resp.Header(), "\r\n\r\n"...)
		resp = &utils.Buffer{Data: header, Length: len(header)}
	}
	c.log.Debug().Str("op", "http/fetch").Str("range", rangeHeader).Int("status", utils.StatusCode(resp)).Int("bytes", resp.Length).Msg("Range response received")
	return resp, nil
}
