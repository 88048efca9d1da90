package scraper

import (
	"fmt"
	"sync"

	"cartas-scraper/models"
	"cartas-scraper/utils"
)

// BatchReport is the diagnostic side channel of a scrape batch. A batch in
// which every source failed still yields an empty listing slice; callers that
// need to tell "no data upstream" from "refresh failed" inspect AllFailed.
type BatchReport struct {
	Succeeded int
	Failed    int
	Errors    map[string]error
}

// AllFailed reports whether not a single source produced output.
func (r *BatchReport) AllFailed() bool {
	return r.Succeeded == 0 && r.Failed > 0
}

// Orchestrator fans a scrape out over every registered source, isolating
// each one so a broken marketplace never takes the batch down.
type Orchestrator struct {
	registry *Registry
	logger   *utils.Logger
	maxConc  int
}

// NewOrchestrator creates an Orchestrator bounded to maxConcurrency
// simultaneous source scrapes.
func NewOrchestrator(registry *Registry, maxConcurrency int, logger *utils.Logger) *Orchestrator {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Orchestrator{
		registry: registry,
		logger:   logger,
		maxConc:  maxConcurrency,
	}
}

// ScrapeAll runs every registered source concurrently and concatenates the
// successful outputs, in no guaranteed cross-source order. Source failures
// (errors and panics alike) are logged, recorded in the report and excluded.
func (o *Orchestrator) ScrapeAll() ([]*models.RawListing, *BatchReport) {
	report := &BatchReport{Errors: make(map[string]error)}

	var (
		mu  sync.Mutex
		all []*models.RawListing
	)

	pool := utils.NewWorkerPool(o.maxConc, 0)
	for _, src := range o.registry.All() {
		src := src
		pool.Submit(func() {
			listings, err := o.scrapeOne(src)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
				report.Errors[src.Name()] = err
				o.logger.Error("[orchestrator] Source %q failed: %v", src.Name(), err)
				return
			}
			report.Succeeded++
			all = append(all, listings...)
			o.logger.Info("[orchestrator] Source %q returned %d raw listings", src.Name(), len(listings))
		})
	}
	pool.Wait()

	o.logger.Info("[orchestrator] Batch done — %d sources ok, %d failed, %d raw listings",
		report.Succeeded, report.Failed, len(all))
	return all, report
}

// ScrapeByName resolves one source and runs it alone. ErrUnknownSource when
// no registered source matches the name.
func (o *Orchestrator) ScrapeByName(name string) ([]*models.RawListing, error) {
	src, err := o.registry.ByName(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", err, name)
	}
	return o.scrapeOne(src)
}

// scrapeOne shields the batch from a misbehaving connector: a panic inside
// Scrape is converted into an ordinary error.
func (o *Orchestrator) scrapeOne(src Source) (listings []*models.RawListing, err error) {
	defer func() {
		if r := recover(); r != nil {
			listings = nil
			err = fmt.Errorf("source %q panicked: %v", src.Name(), r)
		}
	}()
	return src.Scrape()
}
