package configurator

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"discount-harvester/browser"
	"discount-harvester/models"
	"discount-harvester/storage"
	"discount-harvester/utils"
)

// BrandResult summarises one brand of a harvest run.
type BrandResult struct {
	Brand    string
	Attempts int
	Records  []models.HarvestRecord
	Failures []ModelFailure
	Err      error
}

// Supervisor runs the Navigator once per brand under a bounded retry
// policy. A brand that never yields is logged and the run moves on.
type Supervisor struct {
	browser   browser.Browser
	navigator *Navigator
	policy    utils.RetryPolicy[*Pass]
	logger    utils.EventSink

	// Sleep replaces the settle pause in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// NewSupervisor creates a Supervisor making up to maxAttempts passes per
// brand, delay apart.
func NewSupervisor(b browser.Browser, nav *Navigator, maxAttempts int, delay time.Duration, logger utils.EventSink) *Supervisor {
	return &Supervisor{
		browser:   b,
		navigator: nav,
		logger:    logger,
		policy: utils.RetryPolicy[*Pass]{
			MaxAttempts: maxAttempts,
			Delay:       delay,
			Logger:      logger,
			Succeeded: func(p *Pass, _ error) bool {
				return p != nil && (len(p.Records) > 0 || p.Complete())
			},
		},
		Sleep: utils.SleepContext,
	}
}

// SetRetrySleep overrides the pause between attempts.
func (s *Supervisor) SetRetrySleep(sleep func(ctx context.Context, d time.Duration) error) {
	s.policy.Sleep = sleep
}

// Harvest runs every brand in order against the same HarvestLog.
func (s *Supervisor) Harvest(ctx context.Context, brands []models.Brand, hlog *storage.HarvestLog) []BrandResult {
	results := make([]BrandResult, 0, len(brands))
	for _, brand := range brands {
		if ctx.Err() != nil {
			s.logger.Warn("[configurator] run cancelled before %s", brand.Name)
			break
		}
		results = append(results, s.HarvestBrand(ctx, brand, hlog))
	}
	return results
}

// HarvestBrand retries the brand until a pass yields records or the
// attempts run out. It never returns an error; failures are in the result.
func (s *Supervisor) HarvestBrand(ctx context.Context, brand models.Brand, hlog *storage.HarvestLog) BrandResult {
	res := BrandResult{Brand: brand.Name}

	pass, attempts, err := s.policy.Do(ctx, brand.Name, func(ctx context.Context, attempt int) (*Pass, error) {
		s.logger.Info("[configurator] ====== Brand start: %s (attempt %d) ======", brand.Name, attempt)
		p, err := s.attempt(ctx, brand, hlog)
		if p != nil {
			res.Failures = append(res.Failures, p.Failures...)
			if err == nil && len(p.Records) == 0 && !p.Complete() {
				s.logger.Warn("[configurator] %s: 0 records collected, retry needed", brand.Name)
			}
		}
		return p, err
	})
	res.Attempts = attempts

	if pass != nil {
		res.Records = pass.Records
	}
	if err != nil {
		res.Err = err
		s.logger.Error("[configurator] %s: collection failed after %d attempts, moving to next brand: %v",
			brand.Name, attempts, err)
		return res
	}
	s.logger.Info("[configurator] %s: %d records collected", brand.Name, len(res.Records))
	return res
}

// attempt runs one pass on a fresh page, bounded by the Attempt deadline.
func (s *Supervisor) attempt(ctx context.Context, brand models.Brand, hlog *storage.HarvestLog) (*Pass, error) {
	timeouts := s.navigator.timeouts
	if timeouts.Attempt > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeouts.Attempt)
		defer cancel()
	}

	page, err := s.browser.NewPage(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "open page")
	}
	defer func() {
		if err := page.Close(); err != nil {
			s.logger.Debug("[configurator] close page: %v", err)
		}
	}()

	err = withTimeout(ctx, timeouts.PageLoad, func(ctx context.Context) error {
		if err := page.Navigate(ctx, brand.ConfiguratorURL); err != nil {
			return eris.Wrapf(err, "navigate to %s", brand.ConfiguratorURL)
		}
		return eris.Wrap(page.WaitLoad(ctx), "brand page load")
	})
	if err != nil {
		return nil, err
	}
	if err := s.Sleep(ctx, brand.Settle); err != nil {
		return nil, eris.Wrap(err, "settle")
	}

	return s.navigator.Run(ctx, page, brand, hlog)
}
