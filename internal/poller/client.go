package poller

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxResponseBodySize bounds a feed body. Busy pages list 50 incidents with
// full update history, well under this.
const maxResponseBodySize = 1 << 20

const userAgent = "statuswatch/1"

// Each host serves two feeds, so a handful of pooled connections is plenty.
const (
	maxIdleConns        = 100
	maxConnsPerHost     = 6
	idleConnTimeout     = 60 * time.Second
	tlsHandshakeTimeout = 10 * time.Second
)

// Request is a single feed fetch.
type Request struct {
	URL     string
	Timeout time.Duration

	// ETag, when set, is sent as If-None-Match so an unchanged feed costs
	// a 304 instead of a full body.
	ETag string
}

// Response is the outcome of [Client.Fetch]. Transport failures are carried
// in Error; a non-2xx status is not an Error.
type Response struct {
	StatusCode int // zero when no response arrived
	ETag       string
	Body       []byte
	Latency    time.Duration
	Error      error
}

// NotModified reports whether the server answered a conditional request
// with 304.
func (r Response) NotModified() bool {
	return r.StatusCode == http.StatusNotModified
}

// Client fetches status-page feeds over a shared connection pool. Timeouts
// are per request, so providers with different timeouts share one Client.
type Client struct {
	http *http.Client
}

// NewClient creates a [Client].
func NewClient() *Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        maxIdleConns,
		MaxIdleConnsPerHost: maxConnsPerHost,
		MaxConnsPerHost:     maxConnsPerHost,
		IdleConnTimeout:     idleConnTimeout,
		TLSHandshakeTimeout: tlsHandshakeTimeout,
	}
	return &Client{http: &http.Client{Transport: transport}}
}

// Fetch GETs req.URL. It never returns a nil-error Response with a partial
// body: a failed read is reported in Error.
func (c *Client) Fetch(ctx context.Context, req Request) Response {
	ctx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	start := time.Now()
	resp := c.do(ctx, req)
	resp.Latency = time.Since(start)
	return resp
}

func (c *Client) do(ctx context.Context, req Request) Response {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return Response{Error: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	if req.ETag != "" {
		httpReq.Header.Set("If-None-Match", req.ETag)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{Error: fmt.Errorf("request failed: %w", err)}
	}
	defer func() { _ = httpResp.Body.Close() }()

	out := Response{
		StatusCode: httpResp.StatusCode,
		ETag:       httpResp.Header.Get("ETag"),
	}
	out.Body, err = io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBodySize))
	if err != nil {
		out.Body = nil
		out.Error = fmt.Errorf("read body: %w", err)
	}
	return out
}

// Close drops idle pooled connections. The Client stays usable; Close is
// safe on a nil Client and may be called repeatedly.
func (c *Client) Close() {
	if c == nil || c.http == nil {
		return
	}
	c.http.CloseIdleConnections()
}
