package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "http://localhost:8080"
	defaultTimeout = 30 * time.Second
	userAgent      = "sonicweb-go"
)

// Client is the sonicweb API entry point. Safe for concurrent use.
type Client struct {
	base      *url.URL
	apiKey    string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	obs       *observer
}

// New creates a Client. No request is made until the first call.
func New(opts ...Option) (*Client, error) {
	cfg := &clientConfig{
		baseURL:   defaultBaseURL,
		timeout:   defaultTimeout,
		userAgent: userAgent,
	}
	for _, o := range opts {
		o.apply(cfg)
	}

	base, err := url.Parse(strings.TrimRight(cfg.baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("sonicweb: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("sonicweb: base url must be http or https, got %q", cfg.baseURL)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}

	var limiter *rate.Limiter
	if cfg.rateLimit > 0 {
		burst := cfg.rateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.rateLimit), burst)
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	return &Client{
		base:      base,
		apiKey:    cfg.apiKey,
		userAgent: cfg.userAgent,
		http:      hc,
		limiter:   limiter,
		obs:       obs,
	}, nil
}

// Ingest stores text and indexes it for search.
func (c *Client) Ingest(ctx context.Context, text string) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("ingest", start, err) }()

	var resp ingestResponse
	if err = c.do(ctx, http.MethodPost, "/ingest", ingestRequest{Text: text}, &resp); err != nil {
		return err
	}
	if !resp.Status {
		return fmt.Errorf("ingest: %w", ErrNotAcknowledged)
	}
	return nil
}

// IngestAll ingests texts with at most concurrency requests in flight.
// errs[i] is the outcome for texts[i].
func (c *Client) IngestAll(ctx context.Context, texts []string, concurrency int) []error {
	if concurrency <= 0 {
		concurrency = 1
	}
	errs := make([]error, len(texts))

	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, text := range texts {
		g.Go(func() error {
			errs[i] = c.Ingest(ctx, text)
			return nil
		})
	}
	_ = g.Wait()
	return errs
}

// Search returns the stored texts matching any word of query.
func (c *Client) Search(ctx context.Context, query string) (values []string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("search", start, err) }()

	var items []valueItem
	if err = c.do(ctx, http.MethodGet, "/search/"+url.PathEscape(query), nil, &items); err != nil {
		return nil, err
	}
	c.obs.results("search", len(items))
	return flatten(items), nil
}

// Suggest returns completions for the last word of input.
func (c *Client) Suggest(ctx context.Context, input string) (words []string, err error) {
	start := time.Now()
	defer func() { c.obs.observe("suggest", start, err) }()

	var items []valueItem
	if err = c.do(ctx, http.MethodGet, "/suggest/"+url.PathEscape(input), nil, &items); err != nil {
		return nil, err
	}
	c.obs.results("suggest", len(items))
	return flatten(items), nil
}

// Consolidate asks the server to flush the search index to disk.
func (c *Client) Consolidate(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { c.obs.observe("consolidate", start, err) }()

	var resp consolidateResponse
	if err = c.do(ctx, http.MethodPost, "/consolidate", nil, &resp); err != nil {
		return err
	}
	if !resp.Consolidated {
		return fmt.Errorf("consolidate: %w", ErrNotAcknowledged)
	}
	return nil
}

// Reindex re-pushes every stored document into the search index.
func (c *Client) Reindex(ctx context.Context) (res ReindexResult, err error) {
	start := time.Now()
	defer func() { c.obs.observe("reindex", start, err) }()

	err = c.do(ctx, http.MethodPost, "/reindex", nil, &res)
	return res, err
}

// Stats returns corpus statistics.
func (c *Client) Stats(ctx context.Context) (s Stats, err error) {
	start := time.Now()
	defer func() { c.obs.observe("stats", start, err) }()

	err = c.do(ctx, http.MethodGet, "/stats", nil, &s)
	return s, err
}

// Health returns the server health report. A degraded server still yields a
// report; err is set only when no report could be read.
func (c *Client) Health(ctx context.Context) (h HealthStatus, err error) {
	start := time.Now()
	defer func() { c.obs.observe("health", start, err) }()

	err = c.do(ctx, http.MethodGet, "/health", nil, &h)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusServiceUnavailable && h.Status != "" {
		return h, nil
	}
	return h, err
}

// do sends a JSON request and decodes the response into out. On 503 the body
// is still decoded into out before the error is returned.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrRateLimited, err)
		}
	}

	var body io.Reader = http.NoBody
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("sonicweb: encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return fmt.Errorf("sonicweb: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sonicweb: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("sonicweb: read response: %w", err)
	}

	if resp.StatusCode == http.StatusServiceUnavailable && out != nil {
		_ = json.Unmarshal(data, out)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newAPIError(resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("sonicweb: decode response: %w", err)
	}
	return nil
}

// endpoint joins path onto the base URL, keeping escapes in path intact.
func (c *Client) endpoint(path string) string {
	return c.base.String() + path
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}
	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Code != "" {
		apiErr.Code = er.Code
		apiErr.Message = er.Message
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(body))
	return apiErr
}

func flatten(items []valueItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.Value
	}
	return out
}
