package services

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"discount-harvester/models"
	"discount-harvester/scraper/configurator"
	"discount-harvester/scraper/listing"
)

func TestSummaryGenerate(t *testing.T) {
	report := &RunReport{
		Day: day,
		Brands: []configurator.BrandResult{
			{Brand: "01_BMW", Attempts: 1, Records: []models.HarvestRecord{app("3", "320i", "1", "1", "0"), app("5", "520i", "1", "1", "0")}},
			{Brand: "04_Mini", Attempts: 5, Err: errors.New("exhausted"), Failures: []configurator.ModelFailure{{Series: "Cooper"}}},
		},
		Listing: &listing.Result{Records: make([]models.ListingRecord, 4), RowErrors: 1, Failed: []string{"02_MB"}},
		Reconciliation: &Reconciliation{
			Discounted: 3,
			Discrepancies: []models.DiscrepancyRecord{
				{Issue: models.IssueModelNotFound},
				{Issue: "MSRP mismatch: Web=1, App=2; Discount mismatch: Web=1, App Cash=2, App Finance=3"},
				{Issue: "MSRP mismatch: Web=1, App=3"},
			},
			Backfill: []models.HarvestRecord{{}},
		},
	}

	sum := NewSummaryService(&bytes.Buffer{}).Generate(report)

	assert.Equal(t, "20250409", sum.Date)
	assert.Equal(t, 2, sum.TotalRecords)
	assert.Equal(t, BrandLine{Brand: "04_Mini", Attempts: 5, Failures: 1, Failed: true}, sum.Brands[1])
	assert.Equal(t, 4, sum.ListingRows)
	assert.Equal(t, 3, sum.Discrepancies)
	assert.Equal(t, map[string]int{
		models.IssueModelNotFound: 1,
		"MSRP mismatch":           2,
		"Discount mismatch":       1,
	}, sum.IssuesByKind)
	assert.Equal(t, 1, sum.Backfilled)
}

func TestSummaryPrint(t *testing.T) {
	var buf bytes.Buffer
	s := NewSummaryService(&buf)

	s.Print(s.Generate(&RunReport{
		Day:    day,
		Brands: []configurator.BrandResult{{Brand: "01_BMW", Attempts: 2}},
		Reconciliation: &Reconciliation{
			BackfillErr: errors.New("disk full"),
			Backfill:    []models.HarvestRecord{{}},
		},
	}))

	out := buf.String()
	assert.Contains(t, out, "DISCOUNT HARVEST 20250409")
	assert.Contains(t, out, "01_BMW")
	assert.Contains(t, out, "Backfill")
	assert.Contains(t, out, "failed")
}
