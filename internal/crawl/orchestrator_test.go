package crawl

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openveris/declaration-crawler/internal/cache"
	"github.com/openveris/declaration-crawler/internal/registry"
)

type fakeFetcher struct {
	mu          sync.Mutex
	pages       map[int][][]string // year -> listing pages
	listingErrs map[int]map[int]error
	docErrs     map[string]error
	listings    int
}

func (f *fakeFetcher) FetchListing(_ context.Context, year, page int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listings++
	if errs, ok := f.listingErrs[year]; ok {
		if err, ok := errs[page]; ok {
			return nil, err
		}
	}
	pages := f.pages[year]
	if page-1 < len(pages) {
		return pages[page-1], nil
	}
	return nil, nil
}

func (f *fakeFetcher) FetchDocument(_ context.Context, id string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.docErrs[id]; ok {
		return nil, err
	}
	return json.RawMessage(`{"data":{}}`), nil
}

type fakeStore struct {
	mu      sync.Mutex
	saved   []string
	failIDs map[string]bool
}

func (s *fakeStore) PersistDeclaration(_ context.Context, id string, _ json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failIDs[id] {
		return fmt.Errorf("constraint violation")
	}
	s.saved = append(s.saved, id)
	return nil
}

func makeIDs(prefix string, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s-%03d", prefix, i)
	}
	return ids
}

func newTestOrchestrator(f Fetcher, s Store, c cache.Cache) *Orchestrator {
	return New(f, s, c, 5*time.Second, zap.NewNop())
}

func TestCrawlYearStopsOnEmptyPage(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int][][]string{
		2024: {makeIDs("a", 3), makeIDs("b", 2)},
	}}
	store := &fakeStore{}
	orch := newTestOrchestrator(fetcher, store, cache.NewMemoryCache())

	stats, err := orch.CrawlYear(context.Background(), 2024)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Pages)
	assert.Equal(t, 5, stats.TotalFound)
	assert.Equal(t, 5, stats.NewSaved)
	assert.Equal(t, 0, stats.SkippedExisting)
	assert.Len(t, store.saved, 5)
	// Two listing pages plus the empty terminator.
	assert.Equal(t, 3, fetcher.listings)
}

func TestCrawlYearPartitionsAgainstCache(t *testing.T) {
	ids := makeIDs("doc", 340)
	fetcher := &fakeFetcher{pages: map[int][][]string{2023: {ids}}}
	store := &fakeStore{}
	c := cache.NewMemoryCache()
	require.NoError(t, c.BulkLoad(context.Background(), ids[:150]))
	orch := newTestOrchestrator(fetcher, store, c)

	stats, err := orch.CrawlYear(context.Background(), 2023)
	require.NoError(t, err)
	assert.Equal(t, 340, stats.TotalFound)
	assert.Equal(t, 150, stats.SkippedExisting)
	assert.Equal(t, 190, stats.NewSaved)
	assert.Len(t, store.saved, 190)

	// Saved ids are now cached so a rerun skips everything.
	rerunFetcher := &fakeFetcher{pages: map[int][][]string{2023: {ids}}}
	stats, err = newTestOrchestrator(rerunFetcher, store, c).CrawlYear(context.Background(), 2023)
	require.NoError(t, err)
	assert.Equal(t, 340, stats.SkippedExisting)
	assert.Equal(t, 0, stats.NewSaved)
}

func TestCrawlYearListingErrorEndsYear(t *testing.T) {
	fetcher := &fakeFetcher{
		pages: map[int][][]string{2022: {makeIDs("a", 4), makeIDs("b", 4)}},
		listingErrs: map[int]map[int]error{
			2022: {2: registry.ErrUnavailable},
		},
	}
	store := &fakeStore{}
	orch := newTestOrchestrator(fetcher, store, cache.NewMemoryCache())

	stats, err := orch.CrawlYear(context.Background(), 2022)
	require.Error(t, err)
	// Page one's records survive the aborted year.
	assert.Equal(t, 1, stats.Pages)
	assert.Equal(t, 4, stats.NewSaved)
	assert.Len(t, store.saved, 4)
}

func TestCrawlYearsContinuesAfterFailedYear(t *testing.T) {
	fetcher := &fakeFetcher{
		pages: map[int][][]string{
			2024: {makeIDs("y24", 2)},
			2023: {makeIDs("y23", 3)},
		},
		listingErrs: map[int]map[int]error{
			2024: {1: registry.ErrUnavailable},
		},
	}
	store := &fakeStore{}
	orch := newTestOrchestrator(fetcher, store, cache.NewMemoryCache())

	stats, err := orch.CrawlYears(context.Background(), []int{2024, 2023})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.NewSaved)
	assert.Len(t, store.saved, 3)
}

func TestUnavailableDocumentSkippedAndNotCached(t *testing.T) {
	ids := makeIDs("doc", 3)
	fetcher := &fakeFetcher{
		pages:   map[int][][]string{2024: {ids}},
		docErrs: map[string]error{ids[1]: registry.ErrUnavailable},
	}
	store := &fakeStore{}
	c := cache.NewMemoryCache()
	orch := newTestOrchestrator(fetcher, store, c)

	stats, err := orch.CrawlYear(context.Background(), 2024)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.NewSaved)
	assert.Equal(t, 1, stats.Failed)

	// The failed id stays out of the cache so a later run retries it.
	ok, cacheErr := c.Contains(context.Background(), ids[1])
	require.NoError(t, cacheErr)
	assert.False(t, ok)
}

func TestPersistFailureSkipsRecordAndNotCached(t *testing.T) {
	ids := makeIDs("doc", 3)
	fetcher := &fakeFetcher{pages: map[int][][]string{2024: {ids}}}
	store := &fakeStore{failIDs: map[string]bool{ids[0]: true}}
	c := cache.NewMemoryCache()
	orch := newTestOrchestrator(fetcher, store, c)

	stats, err := orch.CrawlYear(context.Background(), 2024)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.NewSaved)
	assert.Equal(t, 1, stats.Failed)

	ok, cacheErr := c.Contains(context.Background(), ids[0])
	require.NoError(t, cacheErr)
	assert.False(t, ok)
}

type stallingFetcher struct {
	fakeFetcher
}

func (f *stallingFetcher) FetchDocument(ctx context.Context, _ string) (json.RawMessage, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestPageDeadlineCountsUnfinishedAsFailed(t *testing.T) {
	ids := makeIDs("doc", 3)
	fetcher := &stallingFetcher{fakeFetcher{pages: map[int][][]string{2024: {ids}}}}
	store := &fakeStore{}
	c := cache.NewMemoryCache()
	orch := New(fetcher, store, c, 100*time.Millisecond, zap.NewNop())

	stats, err := orch.CrawlYear(context.Background(), 2024)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pages)
	assert.Equal(t, 0, stats.NewSaved)
	assert.Equal(t, 3, stats.Failed, "records pending at the page deadline count as failed")

	// Nothing was cached, so a rerun retries all of them.
	for _, id := range ids {
		ok, cacheErr := c.Contains(context.Background(), id)
		require.NoError(t, cacheErr)
		assert.False(t, ok)
	}
}

func TestCrawlYearsHonorsCancellation(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[int][][]string{2024: {makeIDs("a", 2)}}}
	store := &fakeStore{}
	orch := newTestOrchestrator(fetcher, store, cache.NewMemoryCache())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := orch.CrawlYears(ctx, []int{2024, 2023})
	assert.ErrorIs(t, err, context.Canceled)
}
