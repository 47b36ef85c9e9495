package configurator

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"discount-harvester/browser"
	"discount-harvester/extract"
	"discount-harvester/models"
	"discount-harvester/storage"
	"discount-harvester/utils"
)

// State is a step of the configurator traversal.
type State int

const (
	BrandLoaded State = iota
	SeriesListed
	SeriesOpened
	ModelListExpanded
	ModelOpened
	PriceDetailRead
	BrandDone
)

func (s State) String() string {
	switch s {
	case BrandLoaded:
		return "BrandLoaded"
	case SeriesListed:
		return "SeriesListed"
	case SeriesOpened:
		return "SeriesOpened"
	case ModelListExpanded:
		return "ModelListExpanded"
	case ModelOpened:
		return "ModelOpened"
	case PriceDetailRead:
		return "PriceDetailRead"
	case BrandDone:
		return "BrandDone"
	}
	return "Unknown"
}

// Timeouts bound every wait of a traversal.
type Timeouts struct {
	// ModelFrame bounds the lookup of the branded model-list frame and of the
	// price-detail frame after a tile click.
	ModelFrame time.Duration
	// DetailReady bounds the wait for the price detail to render.
	DetailReady time.Duration
	// Tiles bounds the wait for the first model tile of a series.
	Tiles time.Duration
	// Navigation bounds each in-page step: a click, a history pop or a
	// load wait.
	Navigation time.Duration
	// PageLoad bounds the initial navigation to a brand page.
	PageLoad time.Duration
	// Attempt bounds one whole supervised pass over a brand.
	Attempt time.Duration
}

// DefaultTimeouts are the waits the configurator needs on a normal connection.
var DefaultTimeouts = Timeouts{
	ModelFrame:  10 * time.Second,
	DetailReady: 6 * time.Second,
	Tiles:       3 * time.Second,
	Navigation:  30 * time.Second,
	PageLoad:    10 * time.Minute,
	Attempt:     30 * time.Minute,
}

// ModelFailure is a model that could not be read. It never aborts the series.
type ModelFailure struct {
	Series string
	Index  int
	Model  string
	Reason string
}

// Pass is the outcome of one traversal of a brand.
type Pass struct {
	Brand    string
	Series   []string
	Skipped  []string
	Records  []models.HarvestRecord
	Failures []ModelFailure
}

// Complete reports whether every listed series was already collected
// before the pass started, leaving nothing to yield.
func (p *Pass) Complete() bool {
	return len(p.Series) > 0 && len(p.Skipped) == len(p.Series)
}

// Navigator walks one brand of the configurator: series, then each model's
// price detail, then back, persisting every series before the next one.
type Navigator struct {
	strategy extract.ConfiguratorStrategy
	logger   utils.EventSink
	timeouts Timeouts
	poll     time.Duration

	// Observe, when set, receives every state transition.
	Observe func(State)
}

// NewNavigator creates a Navigator reading markup through strategy.
func NewNavigator(strategy extract.ConfiguratorStrategy, timeouts Timeouts, logger utils.EventSink) *Navigator {
	return &Navigator{
		strategy: strategy,
		logger:   logger,
		timeouts: timeouts,
		poll:     100 * time.Millisecond,
	}
}

func (n *Navigator) enter(s State) {
	if n.Observe != nil {
		n.Observe(s)
	}
}

// Run traverses the brand page currently loaded in page. Series already in
// hlog for its day are skipped; every other series is appended to hlog as
// soon as it is done.
func (n *Navigator) Run(ctx context.Context, page browser.Page, brand models.Brand, hlog *storage.HarvestLog) (*Pass, error) {
	n.enter(BrandLoaded)
	pass := &Pass{Brand: brand.Name}

	doc, err := page.HTML(ctx, nil)
	if err != nil {
		return pass, eris.Wrapf(err, "navigator: read %s brand page", brand.Name)
	}
	series, err := n.strategy.LocateSeries(doc)
	if err != nil {
		return pass, eris.Wrapf(err, "navigator: locate %s series", brand.Name)
	}
	pass.Series = series
	n.logger.Info("[configurator] %s: %d series listed", brand.Name, len(series))

	for _, name := range series {
		if err := ctx.Err(); err != nil {
			return pass, eris.Wrap(err, "navigator: cancelled")
		}
		n.enter(SeriesListed)

		if hlog.Collected(name) {
			n.logger.Info("[configurator] %s already collected, skipping", name)
			pass.Skipped = append(pass.Skipped, name)
			continue
		}

		n.logger.Info("[configurator] Exploring series: %s", name)
		records := n.harvestSeries(ctx, page, brand, name, hlog.Day(), pass)
		if len(records) == 0 {
			n.logger.Warn("[configurator] %s: no discounted models collected", name)
			continue
		}

		n.logger.Info("[configurator] %s done, %d models collected", name, len(records))
		pass.Records = append(pass.Records, records...)
		if err := hlog.Append(records); err != nil {
			n.logger.Error("[configurator] %s: persisting %d rows failed: %v", name, len(records), err)
		}
	}

	n.enter(BrandDone)
	return pass, nil
}

// harvestSeries opens one series, reads every model tile and returns to the
// series list.
func (n *Navigator) harvestSeries(ctx context.Context, page browser.Page, brand models.Brand, series string, day time.Time, pass *Pass) []models.HarvestRecord {
	if err := n.step(ctx, func(ctx context.Context) error { return page.ClickText(ctx, series) }); err != nil {
		n.logger.Error("[configurator] %s: open series failed: %v", series, err)
		return nil
	}
	n.enter(SeriesOpened)
	defer n.back(ctx, page, series)

	if err := n.step(ctx, page.WaitLoad); err != nil {
		n.logger.Warn("[configurator] %s: series page load: %v", series, err)
	}

	scope, err := n.modelScope(ctx, page, series)
	if err != nil {
		n.logger.Error("[configurator] %s: %v", series, err)
		return nil
	}

	count, err := n.waitCount(ctx, page, scope, n.strategy.ModelTileSelector(), n.timeouts.Tiles)
	if err != nil {
		n.logger.Error("[configurator] %s: model tiles did not load: %v", series, err)
		return nil
	}
	n.enter(ModelListExpanded)

	var records []models.HarvestRecord
	for i := 0; i < count; i++ {
		rec, ok, err := n.harvestModel(ctx, page, brand, series, day, i, count)
		if err != nil {
			n.logger.Warn("[configurator] %s model %d/%d failed: %v", series, i+1, count, err)
			pass.Failures = append(pass.Failures, ModelFailure{
				Series: series, Index: i, Model: rec.Model, Reason: err.Error(),
			})
		} else if ok {
			records = append(records, rec)
		}
		n.enter(ModelListExpanded)
	}
	return records
}

// modelScope picks the document holding the model tiles: the top document
// for V2-layout series, the branded frame otherwise. Going back re-creates
// the branded frame, so it is looked up again for every model.
func (n *Navigator) modelScope(ctx context.Context, page browser.Page, series string) (*browser.Frame, error) {
	if n.strategy.UsesV2Layout(series) {
		return nil, nil
	}
	res := n.resolver(n.timeouts.ModelFrame).Resolve(ctx, page, n.strategy.BrandFrameMarker())
	if res.State != browser.Found {
		return nil, eris.Errorf("brand frame %s (last error: %v)", res.State, res.Err)
	}
	return &res.Frame, nil
}

// harvestModel opens the i-th tile and reads its price detail. The page is
// always taken back to the model list before it returns.
func (n *Navigator) harvestModel(ctx context.Context, page browser.Page, brand models.Brand, series string, day time.Time, i, count int) (rec models.HarvestRecord, ok bool, err error) {
	scope, err := n.modelScope(ctx, page, series)
	if err != nil {
		return rec, false, err
	}
	doc, err := page.HTML(ctx, scope)
	if err != nil {
		return rec, false, eris.Wrap(err, "read model list")
	}
	tiles, err := n.strategy.LocateModels(doc)
	if err != nil {
		return rec, false, eris.Wrap(err, "locate models")
	}
	if i >= len(tiles) {
		return rec, false, eris.Errorf("only %d model names for %d tiles", len(tiles), count)
	}
	tile := tiles[i]
	rec = models.NewHarvestRecord(day, brand.Name, series, tile.ModelYear, tile.Fuel, tile.Name)
	n.logger.Info("[configurator] %s - %s (%s) %s", series, tile.Name, tile.ModelYear, tile.Fuel)

	err = n.step(ctx, func(ctx context.Context) error {
		return page.ClickNth(ctx, scope, n.strategy.ModelTileSelector(), i)
	})
	if err != nil {
		return rec, false, eris.Wrap(err, "open model")
	}
	n.enter(ModelOpened)
	defer n.back(ctx, page, tile.Name)

	detail, err := n.readPriceDetail(ctx, page)
	if err != nil {
		return rec, false, err
	}
	n.enter(PriceDetailRead)

	rec.MSRP = detail.MSRP
	rec.CashOff = detail.CashOff
	rec.FinanceOff = detail.FinanceOff
	n.logger.Info("[configurator] price: %s, cash off: %s, finance off: %s",
		extract.FormatThousands(rec.MSRP), extract.FormatThousands(rec.CashOff), extract.FormatThousands(rec.FinanceOff))

	return rec, rec.HasDiscount(), nil
}

func (n *Navigator) readPriceDetail(ctx context.Context, page browser.Page) (extract.PriceDetail, error) {
	res := n.resolver(n.timeouts.ModelFrame).Resolve(ctx, page, n.strategy.DetailFrameMarker())
	if res.State != browser.Found {
		return extract.PriceDetail{}, eris.Errorf("price detail frame %s", res.State)
	}
	frame := res.Frame

	if _, err := n.waitCount(ctx, page, &frame, n.strategy.PriceDetailReadySelector(), n.timeouts.DetailReady); err != nil {
		return extract.PriceDetail{}, eris.Wrap(err, "price detail not rendered")
	}
	doc, err := page.HTML(ctx, &frame)
	if err != nil {
		return extract.PriceDetail{}, eris.Wrap(err, "read price detail")
	}
	return n.strategy.ExtractPriceDetail(doc)
}

// back pops one history entry and waits for the previous document.
func (n *Navigator) back(ctx context.Context, page browser.Page, what string) {
	if err := n.step(ctx, page.Back); err != nil {
		n.logger.Warn("[configurator] going back from %s failed: %v", what, err)
		return
	}
	if err := n.step(ctx, page.WaitLoad); err != nil {
		n.logger.Warn("[configurator] reload after leaving %s: %v", what, err)
	}
}

// step runs one navigation action under the Navigation deadline.
func (n *Navigator) step(ctx context.Context, action func(ctx context.Context) error) error {
	return withTimeout(ctx, n.timeouts.Navigation, action)
}

// withTimeout runs action bounded by d. A non-positive d leaves ctx as is.
func withTimeout(ctx context.Context, d time.Duration, action func(ctx context.Context) error) error {
	if d <= 0 {
		return action(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return action(ctx)
}

// waitCount polls until selector matches at least one element of scope.
func (n *Navigator) waitCount(ctx context.Context, page browser.Page, scope *browser.Frame, selector string, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(n.poll)
	defer ticker.Stop()

	var lastErr error
	for {
		count, err := page.Count(ctx, scope, selector)
		if err == nil && count > 0 {
			return count, nil
		}
		if err != nil {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return 0, eris.Wrapf(lastErr, "wait for %q", selector)
			}
			return 0, eris.Errorf("wait for %q: timed out after %v", selector, timeout)
		case <-ticker.C:
		}
	}
}

func (n *Navigator) resolver(timeout time.Duration) *browser.FrameResolver {
	r := browser.NewFrameResolver(timeout)
	if n.poll < r.Interval {
		r.Interval = n.poll
	}
	return r
}
