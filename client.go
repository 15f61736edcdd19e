package surge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const probeTimeout = 10 * time.Second

var ErrUnreachable = errors.New("target unreachable")

// Client issues the HTTP requests of a run. One client is shared by every
// worker; the transport is sized for the highest concurrency level.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration, maxConcurrency int) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		MaxIdleConns:        2 * maxConcurrency,
		MaxIdleConnsPerHost: maxConcurrency,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http:    &http.Client{Transport: transport},
	}
}

// Do performs one request against the endpoint and never returns an error;
// failures are encoded in the result. Duration covers connect through the
// last body byte.
func (c *Client) Do(ctx context.Context, ep Endpoint, active int) RequestResult {
	issued := time.Now()
	result := RequestResult{
		Endpoint:    ep.Name,
		Method:      ep.Method,
		Timestamp:   issued,
		Concurrency: active,
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if ep.Body != "" {
		body = strings.NewReader(ep.Body)
	}
	req, err := http.NewRequestWithContext(ctx, ep.Method, c.baseURL+ep.Path, body)
	if err != nil {
		result.Duration = time.Since(issued)
		result.Err = err.Error()
		return result
	}
	for k, v := range ep.Headers {
		req.Header.Set(k, v)
	}

	res, err := c.http.Do(req)
	if err != nil {
		result.Duration = time.Since(issued)
		result.Err = err.Error()
		return result
	}

	n, err := io.Copy(io.Discard, res.Body)
	res.Body.Close()
	result.Duration = time.Since(issued)
	if err != nil {
		// a broken body read counts as a transport failure
		result.Err = fmt.Sprintf("read body: %v", err)
		return result
	}
	result.StatusCode = res.StatusCode
	result.Bytes = n
	return result
}

// Probe issues a single GET through the regular request path before any
// load is generated. Any HTTP status counts as reachable.
func (c *Client) Probe(ctx context.Context, path string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	result := c.Do(ctx, Endpoint{Name: "probe", Method: http.MethodGet, Path: path}, 1)
	if !result.Completed() {
		return 0, fmt.Errorf("%w: %s", ErrUnreachable, result.Err)
	}
	return result.StatusCode, nil
}
