// Package apiclient talks to the moneyviz backend API over HTTP.
package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"moneyviz/internal/core"
)

const (
	categoriesPath   = "/categories"
	transactionsPath = "/transactions"

	// maxBodySize bounds how much of a response body is read.
	maxBodySize = 8 << 20
)

// Client fetches categories and transaction series from the backend.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	timeout    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a client for the backend rooted at baseURL. timeout bounds
// each request; zero leaves only the caller's context in charge.
func New(baseURL string, timeout time.Duration, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported backend URL scheme %q", u.Scheme)
	}

	c := &Client{
		baseURL:    u,
		httpClient: newHTTPClientWithPooling(),
		timeout:    timeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// newHTTPClientWithPooling creates an HTTP client with connection pooling
// and keep-alive settings suited to a single backend host.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}

	return &http.Client{Transport: transport}
}

// Categories returns the category ids known to the backend.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	var out []string
	if err := c.getJSON(ctx, "categories", categoriesPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Transactions returns the series matching the filter. Only the truthy
// fields of the filter are sent.
func (c *Client) Transactions(ctx context.Context, f core.FilterState) (core.Series, error) {
	var out core.Series
	if err := c.getJSON(ctx, "transactions", transactionsPath, f.Query(), &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = core.Series{}
	}
	return out, nil
}

// URL builds the absolute request URL for path and query.
func (c *Client) URL(path string, q core.QueryParams) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) getJSON(ctx context.Context, op, path string, q core.QueryParams, dst any) error {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	target := c.URL(path, q)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &core.NetworkError{Op: op, URL: target, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// a caller cancelling the request is not a backend failure
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return fmt.Errorf("%s: %w", op, context.Canceled)
		}
		return &core.NetworkError{Op: op, URL: target, Err: err}
	}
	defer resp.Body.Close()

	// one byte past the limit tells a full body from a cut one
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize+1))
	if err != nil {
		return &core.NetworkError{Op: op, URL: target, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &core.NetworkError{
			Op:         op,
			URL:        target,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status %s: %s", resp.Status, errorMessage(body)),
		}
	}
	if len(body) > maxBodySize {
		return &core.NetworkError{Op: op, URL: target, Err: fmt.Errorf("%w: over %d bytes", core.ErrResponseTooLarge, maxBodySize)}
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return &core.NetworkError{Op: op, URL: target, Err: fmt.Errorf("%w: %v", core.ErrMalformedResponse, err)}
	}
	return nil
}

// errorMessage pulls the message out of the backend's error envelope and
// falls back to a trimmed body.
func errorMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}
