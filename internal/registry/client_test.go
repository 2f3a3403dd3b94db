package registry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(baseURL string) Config {
	return Config{
		BaseURL:          baseURL,
		ListEndpoint:     "/documents/list",
		DocumentEndpoint: "/documents",
		Timeout:          2 * time.Second,
		Concurrency:      5,
		RequestDelay:     time.Millisecond,
		MaxRetries:       2,
		RetryDelay:       time.Millisecond,
		UserAgents:       []string{"agent-a", "agent-b"},
	}
}

func newTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	c, err := NewClient(cfg, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestFetchReturnsJSONBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Write([]byte(`{"ok":true}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := newTestClient(t, testConfig(srv.URL))
	raw, err := c.Fetch(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(raw))
}

func TestFetchRetriesOnServerError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := newTestClient(t, testConfig(srv.URL))
	_, err := c.Fetch(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchDegradesToUnavailableAfterRetries(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, testConfig(srv.URL))
	raw, err := c.Fetch(context.Background(), srv.URL, nil)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Nil(t, raw)
	assert.Equal(t, int32(3), calls.Load(), "max_retries=2 means 3 attempts")
}

func TestFetchZeroRetriesIsSingleAttempt(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.MaxRetries = 0
	cfg.RetryDelay = time.Hour // would hang the test if a retry slept

	c := newTestClient(t, cfg)
	start := time.Now()
	_, err := c.Fetch(context.Background(), srv.URL, nil)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(1), calls.Load())
	assert.Less(t, time.Since(start), time.Second)
}

func TestFetchMalformedBodyIsNotRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"truncated":`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := newTestClient(t, testConfig(srv.URL))
	_, err := c.Fetch(context.Background(), srv.URL, nil)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchRotatesUserAgents(t *testing.T) {
	t.Parallel()

	var agents []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		agents = append(agents, r.Header.Get("User-Agent"))
		w.Write([]byte(`{}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := newTestClient(t, testConfig(srv.URL))
	for range 3 {
		_, err := c.Fetch(context.Background(), srv.URL, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"agent-a", "agent-b", "agent-a"}, agents)
}

func TestFetchHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.RetryDelay = time.Hour

	c := newTestClient(t, cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Fetch(ctx, srv.URL, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetchListingBuildsYearAndPageParams(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/documents/list", r.URL.Path)
		assert.Equal(t, "2020", r.URL.Query().Get("declaration_year"))
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		w.Write([]byte(`{"items":[{"id":"a"},{"id":"b"}]}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := newTestClient(t, testConfig(srv.URL))
	ids, err := c.FetchListing(context.Background(), 2020, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
}

func TestFetchDocumentEscapesID(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/documents/doc-1", r.URL.Path)
		w.Write([]byte(`{"data":{}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	c := newTestClient(t, testConfig(srv.URL))
	raw, err := c.FetchDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":{}}`, string(raw))
}
