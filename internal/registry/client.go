// Package registry implements the HTTP client for the public
// declaration registry API: permit-bounded, rate-limited, retrying.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/openveris/declaration-crawler/internal/metrics"
)

// ErrUnavailable signals that the registry could not produce a usable
// response after all retry attempts. Callers treat it as "no data",
// never as a reason to abort the whole crawl.
var ErrUnavailable = errors.New("registry unavailable")

// Config controls transport behavior.
type Config struct {
	BaseURL          string
	ListEndpoint     string
	DocumentEndpoint string
	Timeout          time.Duration
	Concurrency      int
	RequestDelay     time.Duration
	MaxRetries       int
	RetryDelay       time.Duration
	UserAgents       []string
}

// Client issues single JSON GET requests against the registry. It has
// no knowledge of pagination state or business data; per call it
// acquires a concurrency permit, sleeps a jittered delay, rotates the
// User-Agent, and retries with linearly growing backoff.
type Client struct {
	cfg     Config
	http    *http.Client
	permits *semaphore.Weighted
	logger  *zap.Logger

	mu      sync.Mutex
	uaIndex int
}

// NewClient constructs a Client. The permit pool is shared by listing
// and detail fetches so record fan-out throttles to the same ceiling
// as sequential listing calls.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.Concurrency <= 0 {
		return nil, fmt.Errorf("registry client concurrency must be > 0")
	}
	if len(cfg.UserAgents) == 0 {
		return nil, fmt.Errorf("registry client requires at least one user agent")
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("registry client max retries must be >= 0")
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		permits: semaphore.NewWeighted(int64(cfg.Concurrency)),
		logger:  logger.Named("registry"),
	}, nil
}

// FetchListing retrieves one listing page for a year and returns the
// record ids it names.
func (c *Client) FetchListing(ctx context.Context, year, page int) ([]string, error) {
	params := url.Values{}
	params.Set("page", fmt.Sprintf("%d", page))
	params.Set("declaration_year", fmt.Sprintf("%d", year))

	raw, err := c.Fetch(ctx, c.cfg.BaseURL+c.cfg.ListEndpoint, params)
	if err != nil {
		return nil, err
	}
	return ExtractIDs(raw), nil
}

// FetchDocument retrieves one declaration document by record id.
func (c *Client) FetchDocument(ctx context.Context, id string) (json.RawMessage, error) {
	return c.Fetch(ctx, fmt.Sprintf("%s%s/%s", c.cfg.BaseURL, c.cfg.DocumentEndpoint, url.PathEscape(id)), nil)
}

// Fetch GETs a URL and returns its JSON body. After exhausting retries
// (or on a malformed body, which is not retryable) it degrades to
// ErrUnavailable. Context cancellation propagates immediately.
func (c *Client) Fetch(ctx context.Context, rawURL string, params url.Values) (json.RawMessage, error) {
	if err := c.permits.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.permits.Release(1)

	// Randomize the delay ±30% around the base so concurrent tasks do
	// not burst in lockstep.
	if err := sleepCtx(ctx, jitter(c.cfg.RequestDelay)); err != nil {
		return nil, err
	}

	target := rawURL
	if len(params) > 0 {
		target = rawURL + "?" + params.Encode()
	}

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.ObserveRetry()
			// Linear backoff: retry_delay * attempt.
			if err := sleepCtx(ctx, time.Duration(attempt)*c.cfg.RetryDelay); err != nil {
				return nil, err
			}
		}

		body, err := c.doRequest(ctx, target, attempt)
		if err == nil {
			if !json.Valid(body) {
				c.logger.Warn("malformed response body", zap.String("url", rawURL))
				metrics.ObserveRequest("unavailable")
				return nil, ErrUnavailable
			}
			metrics.ObserveRequest("success")
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		metrics.ObserveRequest("error")
		c.logger.Warn("request failed",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", c.cfg.MaxRetries+1),
			zap.Error(err),
		)
	}

	c.logger.Error("request exhausted retries",
		zap.String("url", rawURL),
		zap.Int("attempts", c.cfg.MaxRetries+1),
	)
	metrics.ObserveRequest("unavailable")
	return nil, ErrUnavailable
}

func (c *Client) doRequest(ctx context.Context, target string, attempt int) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", c.nextUserAgent())
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "uk-UA,uk;q=0.9,en;q=0.8")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("http status %d", resp.StatusCode)
	}

	c.logger.Debug("request succeeded",
		zap.String("url", target),
		zap.Int("attempt", attempt+1),
		zap.Duration("elapsed", time.Since(start)),
	)
	return body, nil
}

// nextUserAgent rotates through the configured pool, one step per call.
func (c *Client) nextUserAgent() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	ua := c.cfg.UserAgents[c.uaIndex]
	c.uaIndex = (c.uaIndex + 1) % len(c.cfg.UserAgents)
	return ua
}

func jitter(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	low := float64(base) * 0.7
	span := float64(base) * 0.6
	return time.Duration(low + rand.Float64()*span)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
