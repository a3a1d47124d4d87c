// Package wiki is a client library for the MediaWiki Action API. A
// Client holds one wiki's session state (cookies, tokens, namespace
// table, user rights) and exposes typed operations for reading page
// content, revisions, logs and users, and for performing writes.
package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/olgasafonova/wikikit/internal/infra"
	"github.com/olgasafonova/wikikit/metrics"
	"github.com/olgasafonova/wikikit/tracing"
)

// MaxConcurrentRequests limits parallel API calls per session to avoid
// overwhelming the server.
const MaxConcurrentRequests = 3

// Cache TTLs per kind of read.
const (
	siteInfoTTL    = 60 * time.Minute
	pageContentTTL = 5 * time.Minute
	pageInfoTTL    = 2 * time.Minute
)

// Client handles communication with the MediaWiki API for one wiki.
// A Client is safe for concurrent use.
type Client struct {
	config     *Config
	httpClient *http.Client
	logger     *slog.Logger

	// Authentication state. loggedIn is atomic because the transport
	// consults it while Login holds mu.
	mu          sync.RWMutex
	loggedIn    atomic.Bool
	csrfToken   string
	tokenExpiry time.Time
	rights      map[string]bool
	highLimits  bool

	// Rate limiting - semaphore to control concurrent requests
	semaphore chan struct{}

	// Response cache and in-flight request coalescing
	cache *infra.Cache
	dedup *infra.RequestDeduplicator
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithHTTPClient sets a custom HTTP client. The client's cookie jar is
// replaced so the session can hold login cookies.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithCache sets a custom response cache.
func WithCache(cache *infra.Cache) Option {
	return func(c *Client) { c.cache = cache }
}

// NewClient creates a new MediaWiki API client for the wiki named by
// config.BaseURL.
func NewClient(config *Config, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DisableCompression:  false,
		ForceAttemptHTTP2:   true,
	}

	c := &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Jar:       jar,
			Transport: transport,
		},
		logger:    slog.Default(),
		semaphore: make(chan struct{}, MaxConcurrentRequests),
		cache:     infra.NewCache(infra.DefaultMaxCacheEntries),
		dedup:     infra.NewRequestDeduplicator(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient.Jar == nil {
		c.httpClient.Jar = jar
	}
	return c
}

// BaseURL returns the API endpoint this client talks to.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Close releases the client's background resources.
func (c *Client) Close() {
	c.cache.Close()
}

// apiRequest makes a request to the MediaWiki API with rate limiting,
// maxlag-aware retry and typed error mapping.
func (c *Client) apiRequest(ctx context.Context, params url.Values) (map[string]any, error) {
	action := params.Get("action")

	ctx, span := tracing.StartSpan(ctx, "wiki.api."+action)
	defer span.End()
	tracing.AddAPIAttributes(span, action, params.Get("titles"))

	// Acquire semaphore slot (rate limiting)
	select {
	case c.semaphore <- struct{}{}:
		defer func() { <-c.semaphore }()
	case <-ctx.Done():
		return nil, fmt.Errorf("context cancelled while waiting for rate limiter: %w", ctx.Err())
	}

	params.Set("format", "json")
	params.Set("formatversion", "2")
	if c.config.MaxLag > 0 {
		params.Set("maxlag", strconv.Itoa(c.config.MaxLag))
	}
	if c.config.Assert != "" && action != "login" && action != "clientlogin" && c.isLoggedIn() {
		params.Set("assert", c.config.Assert)
	}

	start := time.Now()
	result, err := c.doWithRetry(ctx, action, params)
	status := "success"
	if err != nil {
		status = "error"
		tracing.RecordError(span, err)
	}
	metrics.RecordRequest(action, status, time.Since(start).Seconds())
	return result, err
}

func (c *Client) doWithRetry(ctx context.Context, action string, params url.Values) (map[string]any, error) {
	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff with context awareness
			backoff := time.Duration(attempt*attempt) * 100 * time.Millisecond
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, fmt.Errorf("context cancelled during backoff: %w", ctx.Err())
			}
		}

		// Fresh request per attempt; the body is consumed on send.
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL, strings.NewReader(params.Encode()))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("User-Agent", c.config.UserAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			metrics.APIRetries.WithLabelValues("network").Inc()
			c.logger.Warn("API request failed, retrying",
				"action", action,
				"attempt", attempt+1,
				"max_retries", c.config.MaxRetries,
				"error", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			// Don't retry client errors (4xx) except rate limiting (429)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
				return nil, fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
			}

			if resp.StatusCode == http.StatusTooManyRequests {
				lastErr = &APIError{Code: "ratelimited", Info: fmt.Sprintf("HTTP 429 on attempt %d", attempt+1)}
				if err := c.waitRetryAfter(ctx, resp.Header.Get("Retry-After"), action, attempt); err != nil {
					return nil, err
				}
				metrics.APIRetries.WithLabelValues("http429").Inc()
				continue
			}

			lastErr = fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
			metrics.APIRetries.WithLabelValues("http5xx").Inc()
			c.logger.Warn("API returned non-OK status",
				"action", action,
				"status", resp.StatusCode,
				"attempt", attempt+1)
			continue
		}

		var result map[string]any
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}

		if errObj, ok := result["error"].(map[string]any); ok {
			code := getString(errObj["code"])
			info := getString(errObj["info"])

			// Maxlag is the server's cooperative throttling signal:
			// replicas are lagging and well-behaved clients back off.
			if code == "maxlag" {
				waited := time.Now()
				if err := c.waitRetryAfter(ctx, resp.Header.Get("Retry-After"), action, attempt); err != nil {
					return nil, err
				}
				metrics.MaxlagWaits.Inc()
				metrics.MaxlagWaitSeconds.Add(time.Since(waited).Seconds())
				metrics.APIRetries.WithLabelValues("maxlag").Inc()
				lastErr = &APIError{Code: code, Info: info}
				continue
			}
			if code == "ratelimited" {
				lastErr = &APIError{Code: code, Info: info}
				if err := c.waitRetryAfter(ctx, resp.Header.Get("Retry-After"), action, attempt); err != nil {
					return nil, err
				}
				metrics.APIRetries.WithLabelValues("ratelimited").Inc()
				continue
			}

			return nil, apiErrorFrom(code, info)
		}

		return result, nil
	}

	return nil, lastErr
}

// waitRetryAfter sleeps for the duration the server requested, with a
// five second default when the header is absent or unparseable.
func (c *Client) waitRetryAfter(ctx context.Context, header, action string, attempt int) error {
	seconds := 5
	if header != "" {
		if n, err := strconv.Atoi(header); err == nil && n > 0 {
			seconds = n
		}
	}
	c.logger.Warn("server asked client to back off",
		"action", action,
		"retry_after", seconds,
		"attempt", attempt+1)
	select {
	case <-time.After(time.Duration(seconds) * time.Second):
		return nil
	case <-ctx.Done():
		return fmt.Errorf("context cancelled during throttle wait: %w", ctx.Err())
	}
}

// cachedQuery answers a read from the response cache when possible,
// coalescing concurrent identical fetches through the deduplicator.
func (c *Client) cachedQuery(ctx context.Context, key string, ttl time.Duration, fetch func() (any, error)) (any, error) {
	if data, ok := c.cache.Get(key); ok {
		metrics.RecordCacheAccess(true)
		return data, nil
	}
	metrics.RecordCacheAccess(false)

	data, shared, err := c.dedup.Do(ctx, key, fetch)
	if err != nil {
		return nil, err
	}
	if shared {
		metrics.DedupShared.Inc()
	} else {
		c.cache.Set(key, data, ttl)
	}
	return data, nil
}

// invalidatePage drops cached reads for a page after a write to it.
func (c *Client) invalidatePage(title string) {
	c.cache.DeletePrefix("page:" + title)
	c.cache.DeletePrefix("pageinfo:" + title)
}

func (c *Client) isLoggedIn() bool {
	return c.loggedIn.Load()
}

// hasRight reports whether the logged-in user holds the given right,
// from the rights list fetched at login. Unknown before login.
func (c *Client) hasRight(right string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rights[right]
}

// queryLimit is the per-request list limit: 500 for sessions holding
// apihighlimits, 50 otherwise.
func (c *Client) queryLimit() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.highLimits {
		return fastQueryMax
	}
	return slowQueryMax
}

// ---- response field helpers ----
//
// API responses are decoded into map[string]any; these tolerate both
// missing fields and the numeric/boolean quirks of formatversion=2.

func getString(v any) string {
	s, _ := v.(string)
	return s
}

func getInt(v any) int {
	f, _ := v.(float64)
	return int(f)
}

func getInt64(v any) int64 {
	f, _ := v.(float64)
	return int64(f)
}

func getBool(v any) bool {
	b, _ := v.(bool)
	return b
}

func getTime(v any) time.Time {
	t, _ := time.Parse(time.RFC3339, getString(v))
	return t
}

// queryPages pulls the pages array out of a query response.
func queryPages(resp map[string]any) ([]any, error) {
	query, ok := resp["query"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected response format: no query")
	}
	pages, ok := query["pages"].([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected response format: no pages")
	}
	return pages, nil
}

// queryList pulls a named list out of a query response.
func queryList(resp map[string]any, name string) ([]any, error) {
	query, ok := resp["query"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected response format: no query")
	}
	list, ok := query[name].([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected response format: no %s list", name)
	}
	return list, nil
}

// continueToken extracts a continuation token from a query response.
func continueToken(resp map[string]any, key string) (string, bool) {
	cont, ok := resp["continue"].(map[string]any)
	if !ok {
		return "", false
	}
	token, ok := cont[key].(string)
	return token, ok
}
