package listing

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

// PageTimeout bounds the load of one listing page.
const PageTimeout = 60 * time.Second

// Result summarises one listing harvest.
type Result struct {
	Records   []models.ListingRecord
	RowErrors int
	// Failed lists brands whose page could not be read.
	Failed []string
}

// Harvester reads each brand's listing page once and overwrites the day's
// secondary dataset with what it found.
type Harvester struct {
	browser browser.Browser
	parser  *extract.ListingParser
	dataset *storage.SecondaryDataset
	logger  utils.EventSink
	timeout time.Duration
}

// New creates a listing Harvester.
func New(b browser.Browser, dataset *storage.SecondaryDataset, logger utils.EventSink) *Harvester {
	return &Harvester{
		browser: b,
		parser:  extract.NewListingParser(),
		dataset: dataset,
		logger:  logger,
		timeout: PageTimeout,
	}
}

// Harvest visits every brand in order. A brand whose page fails is logged
// and contributes no rows. The dataset is written even when it is empty.
func (h *Harvester) Harvest(ctx context.Context, day time.Time, brands []models.Brand) (*Result, error) {
	res := &Result{}
	for _, brand := range brands {
		h.logger.Info("[listing] Scraping %s: %s", brand.Name, brand.ListingURL)

		records, rowErrs, err := h.harvestBrand(ctx, brand)
		if err != nil {
			h.logger.Error("[listing] %s failed: %v", brand.Name, err)
			res.Failed = append(res.Failed, brand.Name)
			continue
		}
		for _, re := range rowErrs {
			h.logger.Error("[listing] %s row %d of %s: %v", brand.Name, re.Index, re.Series, re.Err)
		}

		res.RowErrors += len(rowErrs)
		res.Records = append(res.Records, records...)
		h.logger.Info("[listing] %s done: %d rows", brand.Name, len(records))
	}

	if err := h.dataset.Save(day, res.Records); err != nil {
		return res, err
	}
	h.logger.Info("[listing] %s saved, %d rows (previous data overwritten)", storage.SecondaryName(day), len(res.Records))
	return res, nil
}

func (h *Harvester) harvestBrand(ctx context.Context, brand models.Brand) ([]models.ListingRecord, []extract.RowError, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	page, err := h.browser.NewPage(ctx)
	if err != nil {
		return nil, nil, eris.Wrap(err, "listing: open page")
	}
	defer page.Close()

	if err := page.Navigate(ctx, brand.ListingURL); err != nil {
		return nil, nil, eris.Wrapf(err, "listing: navigate to %s", brand.ListingURL)
	}
	if err := page.WaitLoad(ctx); err != nil {
		return nil, nil, eris.Wrap(err, "listing: page load")
	}

	doc, err := page.HTML(ctx, nil)
	if err != nil {
		return nil, nil, eris.Wrap(err, "listing: read page")
	}
	return h.parser.Parse(brand.Name, doc)
}
