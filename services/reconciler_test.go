package services

import (
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"discount-harvester/extract"
	"discount-harvester/models"
	"discount-harvester/storage"
	"discount-harvester/utils"
)

var day = time.Date(2025, time.April, 9, 0, 0, 0, 0, time.Local)

func app(series, model, msrp, cash, finance string) models.HarvestRecord {
	r := models.NewHarvestRecord(day, "01_BMW", series, "25", models.FuelPetrol, model)
	r.MSRP, r.CashOff, r.FinanceOff = msrp, cash, finance
	return r
}

func web(series, model, msrp, off string) models.ListingRecord {
	return models.ListingRecord{Brand: "01_BMW", Series: series, ModelYear: "25", Model: model, MSRP: msrp, Discount: off}
}

type fixture struct {
	store     *storage.MemoryStore
	primary   *storage.PrimaryDataset
	secondary *storage.SecondaryDataset
	report    *storage.DiscrepancyReport
}

func newFixture(t *testing.T, appRows []models.HarvestRecord, webRows []models.ListingRecord) *fixture {
	t.Helper()
	store := storage.NewMemoryStore()
	f := &fixture{
		store:     store,
		primary:   storage.NewPrimaryDataset(store),
		secondary: storage.NewSecondaryDataset(store),
		report:    storage.NewDiscrepancyReport(store),
	}
	if appRows != nil {
		_, err := f.primary.Append(day, appRows, true)
		require.NoError(t, err)
	}
	if webRows != nil {
		require.NoError(t, f.secondary.Save(day, webRows))
	}
	return f
}

func (f *fixture) reconciler() *Reconciler {
	return NewReconciler(f.primary, f.secondary, f.report, nil, utils.NewNopLogger())
}

func TestReconcileIdenticalDatasetsIsClean(t *testing.T) {
	f := newFixture(t,
		[]models.HarvestRecord{app("3", "320i", "6000", "500", "0"), app("5", "520i", "7500", "0", "800")},
		[]models.ListingRecord{web("3", "320i", "6000", "500"), web("5", "520i", "7500", "800")},
	)

	res, err := f.reconciler().Run(day)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Discounted)
	assert.Empty(t, res.Discrepancies)
	assert.Empty(t, res.Backfill)
	assert.False(t, f.store.Exists(storage.DiscrepancyName(day)))
}

func TestReconcileMissingModelBackfill(t *testing.T) {
	f := newFixture(t,
		[]models.HarvestRecord{app("5", "520i", "7500", "0", "800")},
		[]models.ListingRecord{{Brand: "01_BMW", Series: "3-Series", ModelYear: "25", Model: "320i", MSRP: "5000", Discount: "100"}},
	)

	res, err := f.reconciler().Run(day)
	require.NoError(t, err)

	require.Len(t, res.Discrepancies, 1)
	d := res.Discrepancies[0]
	assert.Equal(t, models.IssueModelNotFound, d.Issue)
	assert.Equal(t, "Not Found", d.AppMSRP)
	assert.Equal(t, "Not Found", d.AppCashOff)
	assert.Equal(t, "Not Found", d.AppFinanceOff)
	assert.Equal(t, "100", d.WebOff)

	require.Len(t, res.Backfill, 1)
	assert.Equal(t, models.ValidatedReview, res.Backfill[0].Validated)

	saved, err := f.report.Load(day)
	require.NoError(t, err)
	assert.Len(t, saved, 1)

	rows, err := f.primary.Load(day)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, models.ValidatedOK, rows[0].Validated)
	assert.Equal(t, models.ValidatedReview, rows[1].Validated)
	assert.Equal(t, "320i", rows[1].Model)
	assert.Equal(t, "5000", rows[1].MSRP)
	assert.Equal(t, models.FuelType(""), rows[1].FuelType)
}

func TestReconcileSentinelSuppression(t *testing.T) {
	res := Compare(day,
		[]models.HarvestRecord{app("3", "320i", "N/A", "300", "0")},
		[]models.ListingRecord{web("3", "320i", "5000", "300")},
	)
	assert.Empty(t, res.Discrepancies)
}

func TestReconcileDiscountRules(t *testing.T) {
	tests := []struct {
		name    string
		app     models.HarvestRecord
		web     models.ListingRecord
		wantIss string
	}{
		{
			name: "matches cash off, finance zero",
			app:  app("3", "320i", "5000", "300", "0"),
			web:  web("3", "320i", "5000", "300"),
		},
		{
			name: "matches finance off",
			app:  app("3", "320i", "5000", "200", "300"),
			web:  web("3", "320i", "5000", "300"),
		},
		{
			name:    "differs from both",
			app:     app("3", "320i", "5000", "200", "250"),
			web:     web("3", "320i", "5000", "300"),
			wantIss: "Discount mismatch: Web=300, App Cash=200, App Finance=250",
		},
		{
			name: "one app discount zero is not comparable",
			app:  app("3", "320i", "5000", "200", "0"),
			web:  web("3", "320i", "5000", "300"),
		},
		{
			name:    "msrp mismatch",
			app:     app("3", "320i", "5100", "300", "0"),
			web:     web("3", "320i", "5000", "300"),
			wantIss: "MSRP mismatch: Web=5000, App=5100",
		},
		{
			name:    "both issues joined",
			app:     app("3", "320i", "5100", "200", "250"),
			web:     web("3", "320i", "5000", "300"),
			wantIss: "MSRP mismatch: Web=5000, App=5100; Discount mismatch: Web=300, App Cash=200, App Finance=250",
		},
		{
			name: "app msrp unknown",
			app:  app("3", "320i", "nan", "300", "0"),
			web:  web("3", "320i", "5000", "300"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Compare(day, []models.HarvestRecord{tt.app}, []models.ListingRecord{tt.web})
			if tt.wantIss == "" {
				assert.Empty(t, res.Discrepancies)
				return
			}
			require.Len(t, res.Discrepancies, 1)
			assert.Equal(t, tt.wantIss, res.Discrepancies[0].Issue)
			assert.Equal(t, tt.app.CashOff, res.Discrepancies[0].AppCashOff)
		})
	}
}

func TestReconcileIgnoresUndiscountedListings(t *testing.T) {
	res := Compare(day, nil, []models.ListingRecord{
		web("3", "320i", "5000", "0"),
		web("3", "330i", "6000", "nan"),
		web("3", "M340i", "8000", "N/A"),
	})
	assert.Equal(t, 0, res.Discounted)
	assert.Empty(t, res.Discrepancies)
	assert.Empty(t, res.Backfill)
}

func TestReconcileUnknownPairReportsNothing(t *testing.T) {
	res := Compare(day,
		[]models.HarvestRecord{app("3", "320i", "nan", "N/A", "Not Found")},
		[]models.ListingRecord{web("3", "320i", "nan", "300")},
	)
	assert.Equal(t, 1, res.Discounted)
	assert.Empty(t, res.Discrepancies)
	assert.Empty(t, res.Backfill)
}

func TestReconcileSkipsErrorPlaceholderRows(t *testing.T) {
	res := Compare(day, nil, []models.ListingRecord{
		{Brand: "01_BMW", Series: "x5", ModelYear: "25", Model: extract.ErrorModel, Discount: "extract: empty model name"},
		web("3", "320i", "5000", "300"),
	})
	assert.Equal(t, 1, res.Discounted)
	require.Len(t, res.Backfill, 1)
	assert.Equal(t, "320i", res.Backfill[0].Model)
	require.Len(t, res.Discrepancies, 1)
	assert.Equal(t, models.IssueModelNotFound, res.Discrepancies[0].Issue)
}

func TestReconcileOneIssuePerMatchingPair(t *testing.T) {
	res := Compare(day,
		[]models.HarvestRecord{
			app("3", "320i", "5100", "300", "0"),
			app("3", "320i", "5000", "300", "0"),
			app("3", "320i", "5200", "300", "0"),
		},
		[]models.ListingRecord{web("3", "320i", "5000", "300")},
	)
	assert.Len(t, res.Discrepancies, 2)
}

func TestReconcileKeyIsExact(t *testing.T) {
	other := app("3", "320i", "5000", "300", "0")
	other.ModelYear = "24"

	res := Compare(day, []models.HarvestRecord{other}, []models.ListingRecord{web("3", "320i", "5000", "300")})
	require.Len(t, res.Discrepancies, 1)
	assert.Equal(t, models.IssueModelNotFound, res.Discrepancies[0].Issue)
}

func TestReconcileMissingInput(t *testing.T) {
	t.Run("no primary", func(t *testing.T) {
		f := newFixture(t, nil, []models.ListingRecord{web("3", "320i", "5000", "100")})
		_, err := f.reconciler().Run(day)
		assert.True(t, eris.Is(err, ErrMissingInput))
		assert.Equal(t, 1, f.store.Writes, "no file is touched")
	})
	t.Run("no secondary", func(t *testing.T) {
		f := newFixture(t, []models.HarvestRecord{app("3", "320i", "5000", "100", "0")}, nil)
		_, err := f.reconciler().Run(day)
		assert.True(t, eris.Is(err, ErrMissingInput))
		assert.Equal(t, 1, f.store.Writes)
	})
}

func TestReconcileReportIsOverwritten(t *testing.T) {
	f := newFixture(t,
		[]models.HarvestRecord{app("3", "320i", "5100", "300", "0")},
		[]models.ListingRecord{web("3", "320i", "5000", "300")},
	)
	require.NoError(t, f.report.Save(day, []models.DiscrepancyRecord{{Brand: "old"}, {Brand: "older"}}))

	_, err := f.reconciler().Run(day)
	require.NoError(t, err)

	saved, err := f.report.Load(day)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "01_BMW", saved[0].Brand)
}

func TestReconcileBackfillFailureKeepsPrimary(t *testing.T) {
	f := newFixture(t,
		[]models.HarvestRecord{app("5", "520i", "7500", "0", "800")},
		[]models.ListingRecord{web("3", "320i", "5000", "100")},
	)
	rec := f.reconciler()
	// Report write succeeds, then the store starts refusing writes.
	rec.report = storage.NewDiscrepancyReport(storage.NewMemoryStore())
	f.store.FailWrites = true

	res, err := rec.Run(day)
	require.NoError(t, err)
	assert.Error(t, res.BackfillErr)

	f.store.FailWrites = false
	rows, err := f.primary.Load(day)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "", rows[0].Validated)
}
