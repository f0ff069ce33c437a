package utils

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/juju/ratelimit"
)

// Target is a parsed plain-HTTP URL.
type Target struct {
	Host string
	Port string
	Path string
}

func (t Target) Addr() string {
	return net.JoinHostPort(t.Host, t.Port)
}

func (t Target) HostHeader() string {
	if t.Port == DefaultHTTPPort {
		return t.Host
	}
	return t.Addr()
}

// ParseTarget accepts "host/path" (port 80) and "http://host[:port]/path".
func ParseTarget(rawURL string) (Target, error) {
	rest := rawURL
	schemeless := true
	if idx := strings.Index(rest, "://"); idx >= 0 {
		if scheme := strings.ToLower(rest[:idx]); scheme != "http" {
			return Target{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
		}
		rest = rest[idx+3:]
		schemeless = false
	}
	hostport, path := rest, "/"
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		hostport, path = rest[:idx], rest[idx:]
	} else if schemeless {
		return Target{}, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	if hostport == "" {
		return Target{}, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}
	target := Target{Host: hostport, Port: DefaultHTTPPort, Path: path}
	if host, port, err := net.SplitHostPort(hostport); err == nil {
		target.Host, target.Port = host, port
	}
	return target, nil
}

// WireClient speaks HTTP/1.0 over a fresh TCP connection per request and
// returns the raw response bytes.
type WireClient struct {
	dialer *net.Dialer
	config HTTPClientConfig
	bucket *ratelimit.Bucket
}

func NewWireClient(cfg HTTPClientConfig) *WireClient {
	if cfg.UserAgent == "" {
		cfg.UserAgent = ToolUserAgent
	}
	client := &WireClient{
		dialer: &net.Dialer{
			Timeout: cfg.Timeout,
			Control: func(network, address string, c syscall.RawConn) error {
				return c.Control(func(fd uintptr) {
					setSocketOptions(fd)
				})
			},
		},
		config: cfg,
	}
	if cfg.RateLimit > 0 {
		client.bucket = ratelimit.NewBucketWithRate(float64(cfg.RateLimit), cfg.RateLimit)
	}
	return client
}

// Do sends one request and reads until the server closes the connection.
func (c *WireClient) Do(method, rawURL string, headers map[string]string) (*Buffer, error) {
	target, err := ParseTarget(rawURL)
	if err != nil {
		return nil, err
	}
	conn, err := c.dialer.Dial("tcp", target.Addr())
	if err != nil {
		return nil, fmt.Errorf("error connecting to %s: %w", target.Addr(), err)
	}
	defer conn.Close()
	if _, err := conn.Write(c.buildRequest(method, target, headers)); err != nil {
		return nil, fmt.Errorf("error sending %s request: %w", method, err)
	}
	var reader io.Reader = &idleTimeoutConn{Conn: conn, timeout: c.config.Timeout}
	if c.bucket != nil {
		reader = ratelimit.Reader(reader, c.bucket)
	}
	var data bytes.Buffer
	if _, err := data.ReadFrom(reader); err != nil {
		return nil, fmt.Errorf("error reading %s response: %w", method, err)
	}
	raw := data.Bytes()
	if !bytes.HasPrefix(raw, []byte("HTTP/")) || !bytes.Contains(raw, headerBoundary) {
		return nil, fmt.Errorf("%w (%d bytes from %s)", ErrMalformedResponse, len(raw), target.Addr())
	}
	return &Buffer{Data: raw, Length: len(raw)}, nil
}

func (c *WireClient) buildRequest(method string, target Target, headers map[string]string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s HTTP/1.0\r\n", method, target.Path)
	fmt.Fprintf(&b, "Host: %s\r\n", target.HostHeader())
	fmt.Fprintf(&b, "User-Agent: %s\r\n", c.config.UserAgent)
	merged := make(map[string]string, len(c.config.Headers)+len(headers))
	for k, v := range c.config.Headers {
		merged[k] = v
	}
	for k, v := range headers {
		merged[k] = v
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		if strings.EqualFold(k, "Host") || strings.EqualFold(k, "User-Agent") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\r\n", k, merged[k])
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}

type idleTimeoutConn struct {
	net.Conn
	timeout time.Duration
}

func (c *idleTimeoutConn) Read(p []byte) (int, error) {
	if c.timeout > 0 {
		c.Conn.SetReadDeadline(time.Now().Add(c.timeout))
	}
	return c.Conn.Read(p)
}

// StatusCode parses the status line of a raw response, zero if unparseable.
func StatusCode(buf *Buffer) int {
	line, _, _ := bytes.Cut(buf.Header(), []byte("\r\n"))
	fields := strings.Fields(string(line))
	if len(fields) < 2 {
		return 0
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0
	}
	return code
}

// HeaderValue looks up a response header case-insensitively.
func HeaderValue(buf *Buffer, name string) (string, bool) {
	lines := strings.Split(string(buf.Header()), "\r\n")
	for _, line := range lines[min(1, len(lines)):] {
		key, value, ok := strings.Cut(line, ":")
		if ok && strings.EqualFold(strings.TrimSpace(key), name) {
			return strings.TrimSpace(value), true
		}
	}
	return "", false
}
