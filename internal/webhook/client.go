// Package webhook fetches PCS status snapshots from the remote webhook and
// normalizes its loosely shaped responses into pcs.Snapshot.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/pcsboard/internal/pcs"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 2
	maxBodyBytes      = 16 << 20
)

// Filters are forwarded to the webhook. Empty fields are omitted.
type Filters struct {
	Status string  `json:"status,omitempty"`
	Origin string  `json:"origem,omitempty"`
	Search string  `json:"search,omitempty"`
	Period *Period `json:"periodo,omitempty"`
}

// Period bounds the snapshot in time, as ISO dates.
type Period struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Pagination asks the webhook for one page of vessels.
type Pagination struct {
	Page  int `json:"page,omitempty"`
	Limit int `json:"limit,omitempty"`
}

// Sort asks the webhook to order vessels.
type Sort struct {
	Field     string `json:"field,omitempty"`
	Direction string `json:"direction,omitempty"`
}

// Query is the POST body understood by webhooks that accept one.
type Query struct {
	Filters    *Filters    `json:"filters,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
	Sort       *Sort       `json:"sort,omitempty"`
}

// FetchError reports a failed snapshot fetch. StatusCode is set when the
// webhook answered with a non-2xx status.
type FetchError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("pcs webhook %s %s: status %d: %v", e.Op, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("pcs webhook %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Hooks receive fetch telemetry. Nil fields are skipped.
type Hooks struct {
	OnFetch func(outcome string, shape Shape, duration time.Duration)
	OnRetry func(attempt int, err error)
}

// Client talks to the PCS status webhook.
type Client struct {
	endpoint        string
	httpClient      *http.Client
	logger          log.Logger
	hooks           Hooks
	maxRetries      uint
	initialInterval time.Duration
	maxInterval     time.Duration
	now             func() time.Time
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default traced client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetry sets the retry budget and backoff bounds.
func WithRetry(maxRetries uint, initial, maxInterval time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.initialInterval = initial
		c.maxInterval = maxInterval
	}
}

// WithHooks installs telemetry hooks.
func WithHooks(h Hooks) Option {
	return func(c *Client) { c.hooks = h }
}

// New creates a webhook client for endpoint.
func New(endpoint string, logger log.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = log.Nop()
	}
	c := &Client{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:          logger,
		maxRetries:      defaultMaxRetries,
		initialInterval: time.Second,
		maxInterval:     30 * time.Second,
		now:             time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// FetchSnapshot GETs the current snapshot. Search and status filters are
// passed as query parameters; the rest is applied by callers.
func (c *Client) FetchSnapshot(ctx context.Context, f Filters) (*pcs.Snapshot, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, &FetchError{Op: "GET", URL: c.endpoint, Err: fmt.Errorf("invalid endpoint: %w", err)}
	}
	q := u.Query()
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	u.RawQuery = q.Encode()

	return c.fetch(ctx, http.MethodGet, u.String(), nil)
}

// PostSnapshot POSTs the query for webhooks that support server-side
// filtering, and falls back to FetchSnapshot when that fails.
func (c *Client) PostSnapshot(ctx context.Context, query Query) (*pcs.Snapshot, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, &FetchError{Op: "POST", URL: c.endpoint, Err: fmt.Errorf("marshal query: %w", err)}
	}
	s, err := c.fetch(ctx, http.MethodPost, c.endpoint, body)
	if err == nil {
		return s, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}
	c.logger.Warn(ctx, "pcs webhook POST failed, falling back to GET", "error", err)

	var f Filters
	if query.Filters != nil {
		f = *query.Filters
	}
	return c.FetchSnapshot(ctx, f)
}

func (c *Client) fetch(ctx context.Context, method, target string, body []byte) (*pcs.Snapshot, error) {
	start := time.Now()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialInterval
	bo.MaxInterval = c.maxInterval
	bo.Multiplier = 2
	bo.RandomizationFactor = 0

	attempt := 0
	var lastErr error
	res, err := backoff.Retry(ctx, func() (normalized, error) {
		attempt++
		if attempt > 1 && c.hooks.OnRetry != nil {
			c.hooks.OnRetry(attempt, lastErr)
		}
		n, err := c.do(ctx, method, target, body)
		if err != nil {
			lastErr = err
			c.logger.Warn(ctx, "pcs webhook attempt failed", "attempt", attempt, "method", method, "error", err)
		}
		return n, err
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(c.maxRetries+1))

	if err != nil {
		c.observe("error", ShapeUnknown, time.Since(start))
		var fe *FetchError
		if !errors.As(err, &fe) {
			err = &FetchError{Op: method, URL: target, Err: err}
		}
		return nil, err
	}

	c.observe("success", res.shape, time.Since(start))

	s := res.snapshot
	c.logger.Info(ctx, "pcs snapshot fetched",
		"shape", res.shape.String(),
		"vessels", len(s.Vessels),
		"alerts", len(s.Alerts),
		"sources", len(s.Counts),
		"dropped_vessels", res.droppedVessels,
		"dropped_alerts", res.droppedAlerts,
		"attempts", attempt,
	)
	return s, nil
}

// do performs one request. Client errors and undecodable bodies are
// permanent; everything else is retried.
func (c *Client) do(ctx context.Context, method, target string, body []byte) (normalized, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return normalized{}, backoff.Permanent(&FetchError{Op: method, URL: target, Err: fmt.Errorf("create request: %w", err)})
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req) //nolint:gosec // endpoint comes from trusted config
	if err != nil {
		return normalized{}, &FetchError{Op: method, URL: target, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return normalized{}, &FetchError{Op: method, URL: target, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		fe := &FetchError{Op: method, URL: target, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", truncate(string(payload), 256))}
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return normalized{}, backoff.Permanent(fe)
		}
		return normalized{}, fe
	}

	env, err := classify(payload)
	if err != nil {
		return normalized{}, backoff.Permanent(&FetchError{Op: method, URL: target, Err: err})
	}
	return normalize(env, c.now()), nil
}

func (c *Client) observe(outcome string, shape Shape, d time.Duration) {
	if c.hooks.OnFetch != nil {
		c.hooks.OnFetch(outcome, shape, d)
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
