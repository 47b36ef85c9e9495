package services

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"discount-harvester/models"
	"discount-harvester/scraper/configurator"
	"discount-harvester/scraper/listing"
	"discount-harvester/storage"
	"discount-harvester/utils"
)

// RunReport collects the outcome of every stage of a run.
type RunReport struct {
	Day            time.Time
	Brands         []configurator.BrandResult
	Listing        *listing.Result
	Reconciliation *Reconciliation
}

// Pipeline chains the configurator harvest, the listing harvest and the
// reconciliation of one date. Callers must not run two pipelines against
// the same data directory at once.
type Pipeline struct {
	supervisor *configurator.Supervisor
	listing    *listing.Harvester
	reconciler *Reconciler
	primary    *storage.PrimaryDataset
	mirror     storage.Mirror
	logger     utils.EventSink
}

func NewPipeline(supervisor *configurator.Supervisor, lh *listing.Harvester, reconciler *Reconciler, primary *storage.PrimaryDataset, mirror storage.Mirror, logger utils.EventSink) *Pipeline {
	return &Pipeline{
		supervisor: supervisor,
		listing:    lh,
		reconciler: reconciler,
		primary:    primary,
		mirror:     mirror,
		logger:     logger,
	}
}

// Harvest runs the configurator harvest for every brand with a configurator URL.
func (p *Pipeline) Harvest(ctx context.Context, day time.Time, brands []models.Brand) ([]configurator.BrandResult, error) {
	hlog, err := storage.OpenHarvestLog(p.primary, day, p.mirror, p.logger)
	if err != nil {
		return nil, err
	}

	var targets []models.Brand
	for _, b := range brands {
		if b.ConfiguratorURL == "" {
			p.logger.Warn("[pipeline] %s has no configurator URL, skipping", b.Name)
			continue
		}
		targets = append(targets, b)
	}

	start := time.Now()
	results := p.supervisor.Harvest(ctx, targets, hlog)
	p.logger.Info("[pipeline] configurator harvest finished in %v", time.Since(start).Round(time.Second))
	return results, nil
}

// HarvestListing runs the listing harvest for every brand with a listing URL.
func (p *Pipeline) HarvestListing(ctx context.Context, day time.Time, brands []models.Brand) (*listing.Result, error) {
	var targets []models.Brand
	for _, b := range brands {
		if b.ListingURL != "" {
			targets = append(targets, b)
		}
	}
	return p.listing.Harvest(ctx, day, targets)
}

func (p *Pipeline) Reconcile(day time.Time) (*Reconciliation, error) {
	return p.reconciler.Run(day)
}

// RunAll runs the three stages in order. Harvest failures are logged and
// the run goes on; only a reconciliation error is returned.
func (p *Pipeline) RunAll(ctx context.Context, day time.Time, brands []models.Brand) (*RunReport, error) {
	report := &RunReport{Day: day}

	p.logger.Info("[pipeline] ====== configurator harvest %s ======", storage.DateStamp(day))
	results, err := p.Harvest(ctx, day, brands)
	if err != nil {
		p.logger.Error("[pipeline] configurator harvest failed: %v", err)
	}
	report.Brands = results

	p.logger.Info("[pipeline] ====== listing harvest ======")
	lres, err := p.HarvestListing(ctx, day, brands)
	if err != nil {
		p.logger.Error("[pipeline] listing harvest failed: %v", err)
	}
	report.Listing = lres

	if err := ctx.Err(); err != nil {
		return report, eris.Wrap(err, "pipeline: cancelled before reconciliation")
	}

	p.logger.Info("[pipeline] ====== reconciliation ======")
	rec, err := p.Reconcile(day)
	report.Reconciliation = rec
	if err != nil {
		return report, err
	}
	return report, nil
}
