// Package crawl drives the year-by-year page loop: list record ids,
// partition them against the existence cache, fan out detail fetches,
// and persist what comes back.
package crawl

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openveris/declaration-crawler/internal/cache"
	"github.com/openveris/declaration-crawler/internal/metrics"
	"github.com/openveris/declaration-crawler/internal/registry"
)

// Fetcher is the registry surface the orchestrator needs.
type Fetcher interface {
	FetchListing(ctx context.Context, year, page int) ([]string, error)
	FetchDocument(ctx context.Context, id string) (json.RawMessage, error)
}

// Store persists one fetched declaration document.
type Store interface {
	PersistDeclaration(ctx context.Context, documentID string, raw json.RawMessage) error
}

// Stats aggregates one crawl run's outcome counts.
type Stats struct {
	TotalFound      int
	NewSaved        int
	SkippedExisting int
	Failed          int
	Pages           int
}

func (s *Stats) add(other Stats) {
	s.TotalFound += other.TotalFound
	s.NewSaved += other.NewSaved
	s.SkippedExisting += other.SkippedExisting
	s.Failed += other.Failed
	s.Pages += other.Pages
}

// Orchestrator walks listing pages for its assigned years. The
// registry client bounds request concurrency, so the orchestrator fans
// out one goroutine per new id and lets the client's permits throttle.
type Orchestrator struct {
	fetcher     Fetcher
	store       Store
	cache       cache.Cache
	logger      *zap.Logger
	pageTimeout time.Duration
}

// New constructs an Orchestrator.
func New(fetcher Fetcher, store Store, c cache.Cache, pageTimeout time.Duration, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		fetcher:     fetcher,
		store:       store,
		cache:       c,
		logger:      logger.Named("crawl"),
		pageTimeout: pageTimeout,
	}
}

// CrawlYears processes each year in order and returns combined stats.
// A failed year does not stop the rest; context cancellation does.
func (o *Orchestrator) CrawlYears(ctx context.Context, years []int) (Stats, error) {
	var total Stats
	for _, year := range years {
		stats, err := o.CrawlYear(ctx, year)
		total.add(stats)
		if err != nil {
			if ctx.Err() != nil {
				return total, ctx.Err()
			}
			o.logger.Warn("year ended early", zap.Int("year", year), zap.Error(err))
		}
	}
	o.logger.Info("crawl finished",
		zap.Int("total_found", total.TotalFound),
		zap.Int("new_saved", total.NewSaved),
		zap.Int("skipped_existing", total.SkippedExisting),
		zap.Int("failed", total.Failed),
		zap.Int("pages", total.Pages),
	)
	return total, ctx.Err()
}

// CrawlYear pages through one year until the registry returns an empty
// page. A listing fetch failure ends the year with whatever was
// gathered so far; the next year still runs.
func (o *Orchestrator) CrawlYear(ctx context.Context, year int) (Stats, error) {
	var stats Stats
	label := strconv.Itoa(year)

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		ids, err := o.fetcher.FetchListing(ctx, year, page)
		if err != nil {
			return stats, err
		}
		if len(ids) == 0 {
			o.logger.Info("year exhausted",
				zap.Int("year", year),
				zap.Int("pages", stats.Pages),
				zap.Int("new_saved", stats.NewSaved),
				zap.Int("skipped_existing", stats.SkippedExisting),
			)
			return stats, nil
		}

		pageStats, err := o.processPage(ctx, year, ids)
		stats.add(pageStats)
		stats.Pages++
		metrics.ObservePage(label)
		metrics.ObserveRecords(label, "new", pageStats.NewSaved)
		metrics.ObserveRecords(label, "skipped", pageStats.SkippedExisting)
		metrics.ObserveRecords(label, "failed", pageStats.Failed)
		if err != nil {
			return stats, err
		}

		o.logger.Info("page processed",
			zap.Int("year", year),
			zap.Int("page", page),
			zap.Int("found", pageStats.TotalFound),
			zap.Int("new", pageStats.NewSaved),
			zap.Int("skipped", pageStats.SkippedExisting),
			zap.Int("failed", pageStats.Failed),
		)
	}
}

// processPage partitions a page's ids against the cache and fetches the
// new ones concurrently under a wall-clock budget. A record that fails
// to fetch or persist is dropped from this pass and stays out of the
// cache, so the next run retries it.
func (o *Orchestrator) processPage(ctx context.Context, year int, ids []string) (Stats, error) {
	stats := Stats{TotalFound: len(ids)}

	fresh := make([]string, 0, len(ids))
	for _, id := range ids {
		exists, err := o.cache.Contains(ctx, id)
		if err != nil {
			// Persistence is idempotent, so an unanswerable cache is
			// treated as "not seen" rather than ending the page.
			o.logger.Warn("existence check failed", zap.String("id", id), zap.Error(err))
			exists = false
		}
		if exists {
			stats.SkippedExisting++
			continue
		}
		fresh = append(fresh, id)
	}
	if len(fresh) == 0 {
		return stats, nil
	}

	pageCtx, cancel := context.WithTimeout(ctx, o.pageTimeout)
	defer cancel()

	var saved, failed atomic.Int64
	g, gctx := errgroup.WithContext(pageCtx)
	for _, id := range fresh {
		g.Go(func() error {
			raw, err := o.fetcher.FetchDocument(gctx, id)
			if err != nil {
				if errors.Is(err, registry.ErrUnavailable) {
					failed.Add(1)
					o.logger.Warn("document unavailable", zap.String("id", id))
					return nil
				}
				return err
			}
			if err := o.store.PersistDeclaration(gctx, id, raw); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				failed.Add(1)
				o.logger.Error("persist failed", zap.String("id", id), zap.Error(err))
				return nil
			}
			if err := o.cache.Add(gctx, id); err != nil {
				o.logger.Warn("cache add failed", zap.String("id", id), zap.Error(err))
			}
			saved.Add(1)
			return nil
		})
	}
	err := g.Wait()
	stats.NewSaved = int(saved.Load())
	stats.Failed = int(failed.Load())

	if err != nil && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		// The page budget expired, not the whole crawl. Everything not
		// saved counts as failed; those ids were never cached and will
		// be retried next run.
		stats.Failed = len(fresh) - stats.NewSaved
		o.logger.Warn("page deadline exceeded",
			zap.Int("year", year),
			zap.Int("saved", stats.NewSaved),
			zap.Int("failed", stats.Failed),
		)
		return stats, nil
	}
	return stats, err
}
