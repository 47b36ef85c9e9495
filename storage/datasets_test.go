package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discount-harvester/models"
)

var testDay = time.Date(2025, time.April, 9, 0, 0, 0, 0, time.Local)

func harvestRecord(series, model, cash string) models.HarvestRecord {
	r := models.NewHarvestRecord(testDay, "01_BMW", series, "25", models.FuelPetrol, model)
	r.MSRP = "7150"
	r.CashOff = cash
	r.FinanceOff = "0"
	return r
}

func TestDatasetNames(t *testing.T) {
	assert.Equal(t, "car_data_20250409", PrimaryName(testDay))
	assert.Equal(t, "etc/car_data_web_20250409", SecondaryName(testDay))
	assert.Equal(t, "etc/discrepancies_20250409", DiscrepancyName(testDay))

	day, err := ParseDateStamp("20250409")
	require.NoError(t, err)
	assert.True(t, day.Equal(testDay))

	_, err = ParseDateStamp("2025-04-09")
	assert.Error(t, err)
}

func TestPrimaryAppendReplaceAndMerge(t *testing.T) {
	store := NewMemoryStore()
	ds := NewPrimaryDataset(store)

	total, err := ds.Append(testDay, []models.HarvestRecord{harvestRecord("3", "320i", "500")}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	total, err = ds.Append(testDay, []models.HarvestRecord{harvestRecord("5", "520i", "700")}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	total, err = ds.Append(testDay, []models.HarvestRecord{harvestRecord("X", "X5", "900")}, true)
	require.NoError(t, err)
	assert.Equal(t, 1, total, "replace drops the previous rows")
}

func TestPrimaryFormatsAmounts(t *testing.T) {
	store := NewMemoryStore()
	ds := NewPrimaryDataset(store)

	r := harvestRecord("7", "740i", "2500")
	r.MSRP = "2500000"
	_, err := ds.Append(testDay, []models.HarvestRecord{r}, true)
	require.NoError(t, err)

	tbl, err := store.Read(PrimaryName(testDay))
	require.NoError(t, err)
	assert.Equal(t, PrimaryColumns, tbl.Header)
	assert.Equal(t, "2,500,000", tbl.Get(tbl.Rows[0], ColMSRP))
	assert.Equal(t, "2,500", tbl.Get(tbl.Rows[0], ColCashOff))

	loaded, err := ds.Load(testDay)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "2500000", loaded[0].MSRP)
	assert.Equal(t, "2500", loaded[0].CashOff)
	assert.Equal(t, models.FuelPetrol, loaded[0].FuelType)
	assert.True(t, loaded[0].CollectedOn(testDay))
}

func TestPrimaryLoadReadsBlankAmountsAsNaN(t *testing.T) {
	store := NewMemoryStore()
	tbl := NewTable(PrimaryColumns...)
	tbl.Append([]string{"2025", "4", "9", "01_BMW", "25", "3", "P", "320i", "", "", ""})
	require.NoError(t, store.Write(PrimaryName(testDay), tbl))

	loaded, err := NewPrimaryDataset(store).Load(testDay)
	require.NoError(t, err)
	assert.Equal(t, models.SentinelNaN, loaded[0].MSRP)
	assert.Equal(t, models.SentinelNaN, loaded[0].CashOff)
	assert.Equal(t, models.SentinelNaN, loaded[0].FinanceOff)
}

func TestPrimaryBackfillAddsValidatedColumn(t *testing.T) {
	store := NewMemoryStore()
	ds := NewPrimaryDataset(store)
	_, err := ds.Append(testDay, []models.HarvestRecord{harvestRecord("3", "320i", "500")}, true)
	require.NoError(t, err)

	backfill := models.NewBackfillRecord(testDay, models.ListingRecord{
		Brand: "01_BMW", Series: "i4", ModelYear: "25", Model: "eDrive40", MSRP: "7990", Discount: "800",
	})
	total, err := ds.Backfill(testDay, []models.HarvestRecord{backfill})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	loaded, err := ds.Load(testDay)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, models.ValidatedOK, loaded[0].Validated)
	assert.Equal(t, models.ValidatedReview, loaded[1].Validated)
	assert.Equal(t, "7990", loaded[1].MSRP)
	assert.Equal(t, models.FuelType(""), loaded[1].FuelType)
	assert.Equal(t, models.SentinelNaN, loaded[1].CashOff)
}

func TestPrimaryBackfillRequiresFile(t *testing.T) {
	ds := NewPrimaryDataset(NewMemoryStore())

	_, err := ds.Backfill(testDay, []models.HarvestRecord{harvestRecord("3", "320i", "1")})
	assert.True(t, eris.Is(err, ErrNotFound))
}

func TestSecondarySaveOverwrites(t *testing.T) {
	store := NewMemoryStore()
	ds := NewSecondaryDataset(store)

	require.NoError(t, ds.Save(testDay, []models.ListingRecord{
		{Brand: "01_BMW", Series: "3", ModelYear: "25", Model: "320i", MSRP: "6000", Discount: "500"},
		{Brand: "01_BMW", Series: "3", ModelYear: "25", Model: "330i", MSRP: "7000", Discount: "0"},
	}))
	require.NoError(t, ds.Save(testDay, []models.ListingRecord{
		{Brand: "02_MB", Series: "E", ModelYear: "24", Model: "E300", MSRP: "8000", Discount: "1200"},
	}))

	loaded, err := ds.Load(testDay)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, "E300", loaded[0].Model)
	assert.Equal(t, "1200", loaded[0].Discount)
	assert.Equal(t, "24", loaded[0].ModelYear)
}

func TestSecondaryLoadDefaultsModelYear(t *testing.T) {
	store := NewMemoryStore()
	tbl := NewTable(ColBrand, ColSeries, ColModel, ColMSRP, ColOff)
	tbl.Append([]string{"01_BMW", "3", "320i", "6,000", "500만원"})
	require.NoError(t, store.Write(SecondaryName(testDay), tbl))

	loaded, err := NewSecondaryDataset(store).Load(testDay)
	require.NoError(t, err)
	assert.Equal(t, "25", loaded[0].ModelYear)
	assert.Equal(t, "6000", loaded[0].MSRP)
	assert.Equal(t, "500", loaded[0].Discount)
}

func TestDiscrepancyReportRoundTrip(t *testing.T) {
	report := NewDiscrepancyReport(NewXLSXStore(t.TempDir()))
	in := []models.DiscrepancyRecord{{
		Brand: "01_BMW", Series: "3", ModelYear: "25", Model: "320i",
		WebMSRP: "6000", WebOff: "500", AppMSRP: "6100", AppCashOff: "500", AppFinanceOff: "0",
		Issue: "MSRP mismatch: Web=6000, App=6100",
	}}

	require.NoError(t, report.Save(testDay, in))
	out, err := report.Load(testDay)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestAvailableDatesNewestFirst(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"car_data_20250401.xlsx",
		"car_data_20250409.xlsx",
		"car_data_20250409.csv",
		"car_data_20250405.csv",
		"car_data_web_20250409.xlsx",
		"notes.txt",
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	dates, err := AvailableDates(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"20250409", "20250405", "20250401"}, dates)

	dates, err = AvailableDates(filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, dates)
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "($1,$2,$3)", placeholders(1, 3))
	assert.Equal(t, "($1,$2),($3,$4),($5,$6)", placeholders(3, 2))
}
