// Package httpds implements the remote half of the loader: a small HTTP GET
// client and a Source that fetches a delimited export from a URL template.
//
// There is no automatic retry. A failed fetch fails the render pass and the
// viewer asks again.
package httpds

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	"lodging/internal/table"
)

// Config configures the HTTP client. A zero Timeout means 30s.
type Config struct {
	// Timeout bounds the whole exchange, body read included.
	Timeout time.Duration

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool

	// UserAgent, when set, is sent on every request.
	UserAgent string

	// BaseHeaders are added to every request.
	BaseHeaders http.Header

	// Transport is an optional custom RoundTripper. When nil, a default
	// *http.Transport is constructed from the TLS setting.
	Transport http.RoundTripper
}

// StatusError reports a non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// Unwrap classifies every bad status as an unavailable source.
func (e *StatusError) Unwrap() error { return table.ErrSourceUnavailable }

// Client wraps an http.Client with status checking.
type Client struct {
	httpClient *http.Client
	headers    http.Header
}

// NewClient constructs a Client from Config, applying defaults for zero values.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	transport := cfg.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // explicitly configurable
			},
		}
	}

	hdr := cfg.BaseHeaders.Clone()
	if hdr == nil {
		hdr = http.Header{}
	}
	if cfg.UserAgent != "" {
		hdr.Set("User-Agent", cfg.UserAgent)
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout, Transport: transport},
		headers:    hdr,
	}
}

// Get issues one GET and returns the response when its status is 2xx. Any
// other outcome is an error wrapping table.ErrSourceUnavailable: transport
// failures, timeouts, and bad statuses (as *StatusError). Cancellation of
// ctx by the caller is returned as the bare context error so that a
// superseded render is not mistaken for an outage.
//
// The caller must close the response body.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	if url == "" {
		return nil, errors.New("httpds: url must not be empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("httpds: build request: %w", err)
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("GET %s: %w", url, errors.Join(table.ErrSourceUnavailable, err))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}
	return resp, nil
}
