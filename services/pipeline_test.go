package services

import (
	"context"
	"errors"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discount-harvester/browser"
	"discount-harvester/extract"
	"discount-harvester/models"
	"discount-harvester/scraper/configurator"
	"discount-harvester/scraper/listing"
	"discount-harvester/utils"
)

// offlineBrowser cannot open any page.
type offlineBrowser struct {
	attempts int
}

func (b *offlineBrowser) NewPage(context.Context) (browser.Page, error) {
	b.attempts++
	return nil, errors.New("browser offline")
}

func (b *offlineBrowser) Close() error { return nil }

func newTestPipeline(f *fixture, b browser.Browser) *Pipeline {
	logger := utils.NewNopLogger()
	nav := configurator.NewNavigator(extract.NewGetchaStrategy(), configurator.DefaultTimeouts, logger)
	sup := configurator.NewSupervisor(b, nav, 2, 0, logger)
	lh := listing.New(b, f.secondary, logger)
	return NewPipeline(sup, lh, f.reconciler(), f.primary, nil, logger)
}

var testBrands = []models.Brand{
	{Name: "01_BMW", ConfiguratorURL: "https://cd.example/bmw", ListingURL: "https://list.example/bmw"},
	{Name: "04_Mini", ListingURL: "https://list.example/mini"},
}

func TestRunAllSurvivesHarvestFailures(t *testing.T) {
	f := newFixture(t, nil, nil)
	b := &offlineBrowser{}

	report, err := newTestPipeline(f, b).RunAll(context.Background(), day, testBrands)

	require.Len(t, report.Brands, 1, "brands without a configurator URL are skipped")
	assert.Equal(t, 2, report.Brands[0].Attempts)
	assert.Error(t, report.Brands[0].Err)

	require.NotNil(t, report.Listing)
	assert.Equal(t, []string{"01_BMW", "04_Mini"}, report.Listing.Failed)
	assert.True(t, f.secondary.Exists(day), "listing dataset is written even when empty")

	assert.True(t, eris.Is(err, ErrMissingInput), "nothing was harvested for the primary dataset")
	assert.Equal(t, 2+2, b.attempts)
}

func TestRunAllReconcilesExistingPrimary(t *testing.T) {
	f := newFixture(t, []models.HarvestRecord{app("3", "320i", "6000", "500", "0")}, nil)

	report, err := newTestPipeline(f, &offlineBrowser{}).RunAll(context.Background(), day, testBrands)
	require.NoError(t, err)
	require.NotNil(t, report.Reconciliation)
	assert.Equal(t, 0, report.Reconciliation.Discounted)
}
