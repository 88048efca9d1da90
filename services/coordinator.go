package services

import (
	"errors"
	"sync/atomic"
	"time"

	"cartas-scraper/models"
	"cartas-scraper/scraper"
	"cartas-scraper/storage"
	"cartas-scraper/utils"
)

var (
	// ErrRefreshInProgress signals that a concurrently triggered refresh
	// was skipped. Callers treat it as a no-op, not a failure.
	ErrRefreshInProgress = errors.New("refresh already in progress")

	// ErrNoDataAvailable means every source failed and the store holds
	// nothing, so no result can be served at all.
	ErrNoDataAvailable = errors.New("no data could be retrieved from any source")
)

// RefreshResult summarizes one refresh pass.
type RefreshResult struct {
	Inserted          int
	RemovedDuplicates int
	RemovedStale      int
	Report            *scraper.BatchReport
}

// Coordinator drives the scrape → normalize → dedup → store pipeline and is
// the single entry point the route layer and the cron hook call into. A
// refresh is single-flight: while one runs, a second trigger is skipped
// rather than queued.
type Coordinator struct {
	orchestrator *scraper.Orchestrator
	normalizer   *Normalizer
	dedup        *Deduplicator
	engine       *SearchEngine
	store        storage.Store
	audit        storage.RawAuditWriter
	logger       *utils.Logger

	FreshnessWindow time.Duration

	refreshing atomic.Bool
}

// NewCoordinator wires the pipeline together. audit may be nil.
func NewCoordinator(
	orchestrator *scraper.Orchestrator,
	normalizer *Normalizer,
	dedup *Deduplicator,
	engine *SearchEngine,
	store storage.Store,
	audit storage.RawAuditWriter,
	freshnessWindow time.Duration,
	logger *utils.Logger,
) *Coordinator {
	return &Coordinator{
		orchestrator:    orchestrator,
		normalizer:      normalizer,
		dedup:           dedup,
		engine:          engine,
		store:           store,
		audit:           audit,
		logger:          logger,
		FreshnessWindow: freshnessWindow,
	}
}

// Refresh scrapes every source (or just sourceName when non-empty),
// normalizes, stores, deduplicates and drops stale rows. Returns
// ErrRefreshInProgress when another refresh holds the flight lock, and
// ErrNoDataAvailable when every source failed and the store is empty.
func (c *Coordinator) Refresh(sourceName string) (*RefreshResult, error) {
	if !c.refreshing.CompareAndSwap(false, true) {
		c.logger.Warn("[coordinator] Refresh skipped: another refresh is in progress")
		return nil, ErrRefreshInProgress
	}
	defer c.refreshing.Store(false)

	started := time.Now()
	raw, report, err := c.scrape(sourceName)
	if err != nil {
		return nil, err
	}

	if c.audit != nil && len(raw) > 0 {
		if err := c.audit.WriteRaw(raw); err != nil {
			c.logger.Warn("[coordinator] Raw audit write failed: %v", err)
		}
	}

	result := &RefreshResult{Report: report}

	listings := c.normalizer.Normalize(raw)
	if len(listings) > 0 {
		if err := c.store.Save(listings); err != nil {
			return nil, err
		}
		result.Inserted = len(listings)
	}

	result.RemovedDuplicates, err = c.Deduplicate()
	if err != nil {
		return nil, err
	}
	result.RemovedStale, err = c.store.CleanOld(c.FreshnessWindow)
	if err != nil {
		return nil, err
	}

	if report == nil || !report.AllFailed() {
		if err := c.store.SetLastUpdate(time.Now()); err != nil {
			c.logger.Warn("[coordinator] Failed to record last update: %v", err)
		}
	} else if n, _ := c.store.Count(); n == 0 {
		return nil, ErrNoDataAvailable
	}

	c.logger.Info("[coordinator] Refresh done in %v — %d upserted, %d duplicates removed, %d stale removed",
		time.Since(started).Round(time.Millisecond), result.Inserted, result.RemovedDuplicates, result.RemovedStale)
	return result, nil
}

func (c *Coordinator) scrape(sourceName string) ([]*models.RawListing, *scraper.BatchReport, error) {
	if sourceName == "" {
		raw, report := c.orchestrator.ScrapeAll()
		return raw, report, nil
	}

	raw, err := c.orchestrator.ScrapeByName(sourceName)
	if err != nil {
		if errors.Is(err, scraper.ErrUnknownSource) {
			return nil, nil, err
		}
		// A single-source scrape failure is contained like any other
		// source failure; the caller reads it off the report.
		c.logger.Error("[coordinator] Source %q failed: %v", sourceName, err)
		report := &scraper.BatchReport{Failed: 1, Errors: map[string]error{sourceName: err}}
		return nil, report, nil
	}
	return raw, &scraper.BatchReport{Succeeded: 1, Errors: map[string]error{}}, nil
}

// Deduplicate runs the cross-vendor duplicate pass over the whole store and
// returns how many rows it removed. Idempotent.
func (c *Coordinator) Deduplicate() (int, error) {
	all, err := c.store.FetchAll()
	if err != nil {
		return 0, err
	}
	remove := c.dedup.Removable(all)
	if len(remove) == 0 {
		return 0, nil
	}
	return c.store.DeleteIDs(remove)
}

// Search answers a filtered query. When the store is empty (or force is
// set) it refreshes first, then re-runs the query, so a cold start still
// serves data. An in-flight refresh elsewhere is waited out by simply
// querying what the store has.
func (c *Coordinator) Search(filter models.SearchFilter, force bool) (*models.SearchResult, error) {
	n, err := c.store.Count()
	if err != nil {
		return nil, err
	}

	if n == 0 || force {
		if _, err := c.Refresh(""); err != nil {
			switch {
			case errors.Is(err, ErrRefreshInProgress):
				// Serve whatever is stored; the other flight will land.
			case errors.Is(err, ErrNoDataAvailable):
				return nil, err
			default:
				return nil, err
			}
		}
	}

	return c.engine.Search(filter)
}

// Stats exposes the store aggregates.
func (c *Coordinator) Stats() (*models.Stats, error) {
	return c.store.Stats()
}

// Vendedores lists the distinct sources currently represented in the store.
func (c *Coordinator) Vendedores() ([]string, error) {
	return c.store.Vendedores()
}

// LastUpdate returns the time of the last successful refresh, zero when
// none has completed.
func (c *Coordinator) LastUpdate() (time.Time, error) {
	return c.store.LastUpdate()
}
