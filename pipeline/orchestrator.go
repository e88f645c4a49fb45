package pipeline

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"png-rentals/models"
	"png-rentals/services"
	"png-rentals/utils"
)

// Collector is the capability every source scraper provides: produce raw
// text records, possibly failing, bounded by the context it is given. How
// a collector fetches (browser automation, plain HTTP) is its own concern.
type Collector interface {
	Name() string
	Verified() bool
	Collect(ctx context.Context) ([]*models.RawRecord, error)
}

// Options configures an orchestrator run.
type Options struct {
	// Portals always run and are not gated by the agency semaphore.
	Portals []Collector
	// Agencies run under a shared concurrency cap.
	Agencies []Collector
	// Socials (marketplace feeds) run ungated, like portals, but produce
	// unverified records.
	Socials []Collector

	// AgencyConcurrency caps how many agency collectors are in flight at
	// once. Defaults to 3.
	AgencyConcurrency int
	// GlobalTimeout cancels in-flight collectors when exceeded; output from
	// collectors that already finished is still included. Zero disables it.
	GlobalTimeout time.Duration

	// OnProgress, when set, is called after each collector finishes.
	OnProgress func(source string, records int)
}

// Orchestrator fans out all source collectors, funnels their raw records
// through normalization and scoring, and unifies the result. A collector
// failure never aborts the run; it is recorded in the manifest.
type Orchestrator struct {
	opts   Options
	scorer *services.Scorer
	dedup  *services.Deduplicator
	logger *zap.SugaredLogger
}

// NewOrchestrator wires the pipeline stages together.
func NewOrchestrator(scorer *services.Scorer, dedup *services.Deduplicator, logger *zap.SugaredLogger, opts Options) *Orchestrator {
	if opts.AgencyConcurrency <= 0 {
		opts.AgencyConcurrency = 3
	}
	return &Orchestrator{opts: opts, scorer: scorer, dedup: dedup, logger: logger}
}

// Run drives every collector to completion (or failure), then produces the
// unified listing set and the run manifest. The result is deterministic
// given deterministic collector output: raw records are aggregated in
// configured collector order, not completion order.
func (o *Orchestrator) Run(ctx context.Context) ([]*models.Listing, *models.RunManifest) {
	manifest := &models.RunManifest{StartedAt: time.Now().UTC()}

	if o.opts.GlobalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.GlobalTimeout)
		defer cancel()
	}

	type slot struct {
		records []*models.RawRecord
		result  models.SourceResult
	}

	all := make([]Collector, 0, len(o.opts.Portals)+len(o.opts.Socials)+len(o.opts.Agencies))
	all = append(all, o.opts.Portals...)
	all = append(all, o.opts.Socials...)
	firstAgency := len(all)
	all = append(all, o.opts.Agencies...)

	o.logger.Infof("[orchestrator] launching %d collectors (%d agencies capped at %d)",
		len(all), len(o.opts.Agencies), o.opts.AgencyConcurrency)

	slots := make([]slot, len(all))
	runOne := func(i int, c Collector) {
		t0 := time.Now()
		records, err := c.Collect(ctx)

		res := models.SourceResult{
			Source:   c.Name(),
			Verified: c.Verified(),
			Records:  len(records),
			Duration: time.Since(t0),
		}
		if err != nil {
			res.Err = err.Error()
			o.logger.Errorf("[orchestrator] %s failed: %v", c.Name(), err)
		} else {
			o.logger.Infof("[orchestrator] %s finished: %d records in %s",
				c.Name(), len(records), res.Duration.Round(time.Millisecond))
		}

		// Keep partial output even when the collector reports an error.
		slots[i] = slot{records: records, result: res}

		if o.opts.OnProgress != nil {
			o.opts.OnProgress(c.Name(), len(records))
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < firstAgency; i++ {
		i, c := i, all[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			runOne(i, c)
		}()
	}

	pool := utils.NewWorkerPool(o.opts.AgencyConcurrency, 0)
	for i := firstAgency; i < len(all); i++ {
		i, c := i, all[i]
		pool.Submit(func() { runOne(i, c) })
	}
	pool.Wait()
	wg.Wait()

	var raw []*models.RawRecord
	for _, s := range slots {
		raw = append(raw, s.records...)
		manifest.Sources = append(manifest.Sources, s.result)
	}
	manifest.RawCount = len(raw)

	listings := make([]*models.Listing, 0, len(raw))
	for _, rec := range raw {
		l := services.BuildListing(rec)
		o.scorer.Annotate(l)
		listings = append(listings, l)
	}

	unified := o.dedup.Unify(listings)
	manifest.UnifiedCount = len(unified)
	manifest.RemovedCount = len(listings) - len(unified)
	manifest.FinishedAt = time.Now().UTC()

	o.logger.Infof("[orchestrator] run complete: %d raw → %d unified (%d removed, %d sources failed)",
		manifest.RawCount, manifest.UnifiedCount, manifest.RemovedCount, len(manifest.Failed()))
	return unified, manifest
}
