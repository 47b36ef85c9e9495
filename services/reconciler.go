package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"discount-harvester/extract"
	"discount-harvester/models"
	"discount-harvester/storage"
	"discount-harvester/utils"
)

// ErrMissingInput is returned when either dataset of the requested date is
// absent. No file is touched in that case.
var ErrMissingInput = eris.New("reconcile: missing input dataset")

// Reconciliation is the outcome of one reconciliation of a date.
type Reconciliation struct {
	Day           time.Time
	Discounted    int
	Discrepancies []models.DiscrepancyRecord
	Backfill      []models.HarvestRecord
	// BackfillErr is set when the backfill rows could not be written.
	BackfillErr error
}

// Reconciler cross-checks the listing dataset against the configurator
// dataset of the same date.
type Reconciler struct {
	primary   *storage.PrimaryDataset
	secondary *storage.SecondaryDataset
	report    *storage.DiscrepancyReport
	mirror    storage.Mirror
	logger    utils.EventSink
}

// NewReconciler creates a Reconciler. mirror may be nil.
func NewReconciler(primary *storage.PrimaryDataset, secondary *storage.SecondaryDataset, report *storage.DiscrepancyReport, mirror storage.Mirror, logger utils.EventSink) *Reconciler {
	return &Reconciler{
		primary:   primary,
		secondary: secondary,
		report:    report,
		mirror:    mirror,
		logger:    logger,
	}
}

// Run reconciles the datasets of day. The discrepancy report is replaced
// when there is anything to report; listing-only models are appended to the
// primary dataset for review.
func (r *Reconciler) Run(day time.Time) (*Reconciliation, error) {
	if !r.primary.Exists(day) {
		r.logger.Error("[reconcile] file does not exist: %s", storage.PrimaryName(day))
		return nil, eris.Wrapf(ErrMissingInput, "%s", storage.PrimaryName(day))
	}
	if !r.secondary.Exists(day) {
		r.logger.Error("[reconcile] file does not exist: %s", storage.SecondaryName(day))
		return nil, eris.Wrapf(ErrMissingInput, "%s", storage.SecondaryName(day))
	}

	app, err := r.primary.Load(day)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: load primary dataset")
	}
	web, err := r.secondary.Load(day)
	if err != nil {
		return nil, eris.Wrap(err, "reconcile: load secondary dataset")
	}
	r.logger.Info("[reconcile] %s: %d rows loaded", storage.PrimaryName(day), len(app))
	r.logger.Info("[reconcile] %s: %d rows loaded", storage.SecondaryName(day), len(web))

	res := Compare(day, app, web)
	r.logger.Info("[reconcile] discounted listing models: %d", res.Discounted)

	if len(res.Discrepancies) > 0 {
		if err := r.report.Save(day, res.Discrepancies); err != nil {
			return res, eris.Wrap(err, "reconcile: save report")
		}
		r.logger.Info("[reconcile] %d discrepancies found, saved to %s (previous data overwritten)",
			len(res.Discrepancies), storage.DiscrepancyName(day))
		if r.mirror != nil {
			if err := r.mirror.MirrorDiscrepancies(day, res.Discrepancies); err != nil {
				r.logger.Warn("[reconcile] mirror discrepancies failed: %v", err)
			}
		}
	} else {
		r.logger.Info("[reconcile] every discounted model matches")
	}

	if len(res.Backfill) > 0 {
		if _, err := r.primary.Backfill(day, res.Backfill); err != nil {
			res.BackfillErr = err
			r.logger.Error("[reconcile] updating app data failed: %v", err)
		} else {
			r.logger.Info("[reconcile] %d models missing from the app added to %s",
				len(res.Backfill), storage.PrimaryName(day))
			if r.mirror != nil {
				if err := r.mirror.MirrorHarvest(res.Backfill); err != nil {
					r.logger.Warn("[reconcile] mirror backfill rows failed: %v", err)
				}
			}
		}
	}
	return res, nil
}

// Compare applies the matching rules to in-memory datasets. It has no side
// effects.
func Compare(day time.Time, app []models.HarvestRecord, web []models.ListingRecord) *Reconciliation {
	byKey := make(map[models.MatchKey][]models.HarvestRecord, len(app))
	for _, a := range app {
		byKey[a.MatchKey()] = append(byKey[a.MatchKey()], a)
	}

	res := &Reconciliation{Day: day}
	for _, w := range web {
		// Placeholder rows carry the parse error where the discount belongs.
		if w.Model == extract.ErrorModel || models.IsDiscountSentinel(w.Discount) {
			continue
		}
		res.Discounted++

		matches := byKey[w.MatchKey()]
		if len(matches) == 0 {
			res.Discrepancies = append(res.Discrepancies, models.DiscrepancyRecord{
				Brand:         w.Brand,
				Series:        w.Series,
				ModelYear:     w.ModelYear,
				Model:         w.Model,
				WebMSRP:       w.MSRP,
				WebOff:        w.Discount,
				AppMSRP:       models.SentinelNotFound,
				AppCashOff:    models.SentinelNotFound,
				AppFinanceOff: models.SentinelNotFound,
				Issue:         models.IssueModelNotFound,
			})
			res.Backfill = append(res.Backfill, models.NewBackfillRecord(day, w))
			continue
		}

		for _, a := range matches {
			issues := pairIssues(w, a)
			if len(issues) == 0 {
				continue
			}
			res.Discrepancies = append(res.Discrepancies, models.DiscrepancyRecord{
				Brand:         w.Brand,
				Series:        w.Series,
				ModelYear:     w.ModelYear,
				Model:         w.Model,
				WebMSRP:       w.MSRP,
				WebOff:        w.Discount,
				AppMSRP:       a.MSRP,
				AppCashOff:    a.CashOff,
				AppFinanceOff: a.FinanceOff,
				Issue:         strings.Join(issues, "; "),
			})
		}
	}
	return res
}

// pairIssues lists the disagreements between a listing row and one matching
// configurator row. Sentinels never take part in a comparison, so a pair
// whose fields are all unknown reports nothing.
func pairIssues(w models.ListingRecord, a models.HarvestRecord) []string {
	var issues []string

	if !models.IsSentinel(w.MSRP) && !models.IsSentinel(a.MSRP) && w.MSRP != a.MSRP {
		issues = append(issues, fmt.Sprintf("MSRP mismatch: Web=%s, App=%s", w.MSRP, a.MSRP))
	}

	// Either discount column matching the listing is enough.
	comparable := !models.IsDiscountSentinel(w.Discount) &&
		!models.IsDiscountSentinel(a.CashOff) &&
		!models.IsDiscountSentinel(a.FinanceOff)
	if comparable && w.Discount != a.CashOff && w.Discount != a.FinanceOff {
		issues = append(issues, fmt.Sprintf("Discount mismatch: Web=%s, App Cash=%s, App Finance=%s",
			w.Discount, a.CashOff, a.FinanceOff))
	}
	return issues
}
