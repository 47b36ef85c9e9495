package storage

import (
	"os"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"discount-harvester/extract"
	"discount-harvester/models"
)

// Primary dataset columns.
const (
	ColYear       = "Year"
	ColMonth      = "Month"
	ColDate       = "Date"
	ColBrand      = "Brand"
	ColMY         = "MY"
	ColSeries     = "Series"
	ColFuelType   = "Fuel Type"
	ColModelAdj   = "Model (adjusted)"
	ColMSRP       = "MSRP"
	ColCashOff    = "Cash_off"
	ColFinanceOff = "Finance_off"
	ColValidated  = "Validated"

	ColModel = "Model"
	ColOff   = "Off"

	ColWebMSRP       = "Web_MSRP"
	ColWebOff        = "Web_Off"
	ColAppMSRP       = "App_MSRP"
	ColAppCashOff    = "App_Cash_off"
	ColAppFinanceOff = "App_Finance_off"
	ColIssue         = "Issue"
)

var (
	PrimaryColumns = []string{
		ColYear, ColMonth, ColDate, ColBrand, ColMY, ColSeries,
		ColFuelType, ColModelAdj, ColMSRP, ColCashOff, ColFinanceOff,
	}
	SecondaryColumns   = []string{ColBrand, ColSeries, ColMY, ColModel, ColMSRP, ColOff}
	DiscrepancyColumns = []string{
		ColBrand, ColSeries, ColMY, ColModel, ColWebMSRP, ColWebOff,
		ColAppMSRP, ColAppCashOff, ColAppFinanceOff, ColIssue,
	}
)

const dateLayout = "20060102"

// DateStamp formats day the way dataset names carry it.
func DateStamp(day time.Time) string {
	return day.Format(dateLayout)
}

// ParseDateStamp parses a YYYYMMDD stamp in the local zone.
func ParseDateStamp(stamp string) (time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, stamp, time.Local)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "storage: invalid date %q", stamp)
	}
	return day, nil
}

// Dataset names, relative to the store root.
func PrimaryName(day time.Time) string     { return "car_data_" + DateStamp(day) }
func SecondaryName(day time.Time) string   { return "etc/car_data_web_" + DateStamp(day) }
func DiscrepancyName(day time.Time) string { return "etc/discrepancies_" + DateStamp(day) }

// PrimaryDataset is the date-stamped configurator dataset.
type PrimaryDataset struct {
	store TableStore
}

func NewPrimaryDataset(store TableStore) *PrimaryDataset {
	return &PrimaryDataset{store: store}
}

func (d *PrimaryDataset) Exists(day time.Time) bool {
	return d.store.Exists(PrimaryName(day))
}

// Load returns every row of day's dataset with amounts stripped of
// thousands separators and blanks read as "nan". A missing MY column reads
// as "25" and a missing Validated column as "".
func (d *PrimaryDataset) Load(day time.Time) ([]models.HarvestRecord, error) {
	t, err := d.store.Read(PrimaryName(day))
	if err != nil {
		return nil, err
	}

	records := make([]models.HarvestRecord, 0, len(t.Rows))
	for _, row := range t.Rows {
		my := t.Get(row, ColMY)
		if t.Column(ColMY) < 0 {
			my = extract.DefaultListingModelYear
		}
		records = append(records, models.HarvestRecord{
			CollectedYear:  atoi(t.Get(row, ColYear)),
			CollectedMonth: atoi(t.Get(row, ColMonth)),
			CollectedDay:   atoi(t.Get(row, ColDate)),
			Brand:          t.Get(row, ColBrand),
			ModelYear:      my,
			Series:         t.Get(row, ColSeries),
			FuelType:       models.FuelType(t.Get(row, ColFuelType)),
			Model:          t.Get(row, ColModelAdj),
			MSRP:           orNaN(extract.StripThousands(t.Get(row, ColMSRP))),
			CashOff:        orNaN(extract.StripThousands(t.Get(row, ColCashOff))),
			FinanceOff:     orNaN(extract.StripThousands(t.Get(row, ColFinanceOff))),
			Validated:      t.Get(row, ColValidated),
		})
	}
	return records, nil
}

// Append writes records to day's dataset. With replace the file is
// rewritten from records alone; otherwise the current file is read,
// extended and rewritten. No deduplication happens here.
func (d *PrimaryDataset) Append(day time.Time, records []models.HarvestRecord, replace bool) (int, error) {
	name := PrimaryName(day)

	t := NewTable(PrimaryColumns...)
	if !replace {
		existing, err := d.store.Read(name)
		switch {
		case err == nil:
			t = existing
		case eris.Is(err, ErrNotFound):
		default:
			return 0, eris.Wrap(err, "primary: read current dataset")
		}
	}

	for _, r := range records {
		t.Append(primaryRow(t, r))
	}
	if err := d.store.Write(name, t); err != nil {
		return 0, eris.Wrap(err, "primary: write dataset")
	}
	return len(t.Rows), nil
}

// Backfill appends review rows to the file as it is on disk. Existing rows
// gain Validated="O" when the column is missing.
func (d *PrimaryDataset) Backfill(day time.Time, records []models.HarvestRecord) (int, error) {
	name := PrimaryName(day)
	t, err := d.store.Read(name)
	if err != nil {
		return 0, eris.Wrap(err, "primary: read for backfill")
	}

	if t.Column(ColValidated) < 0 {
		t.AddColumn(ColValidated, models.ValidatedOK)
	}
	for _, r := range records {
		if r.Validated == "" {
			r.Validated = models.ValidatedReview
		}
		t.Append(primaryRow(t, r))
	}
	if err := d.store.Write(name, t); err != nil {
		return 0, eris.Wrap(err, "primary: write backfill")
	}
	return len(t.Rows), nil
}

// primaryRow lays r out in t's column order.
func primaryRow(t *Table, r models.HarvestRecord) []string {
	values := map[string]string{
		ColYear:       strconv.Itoa(r.CollectedYear),
		ColMonth:      strconv.Itoa(r.CollectedMonth),
		ColDate:       strconv.Itoa(r.CollectedDay),
		ColBrand:      r.Brand,
		ColMY:         r.ModelYear,
		ColSeries:     r.Series,
		ColFuelType:   string(r.FuelType),
		ColModelAdj:   r.Model,
		ColMSRP:       extract.FormatThousands(r.MSRP),
		ColCashOff:    extract.FormatThousands(r.CashOff),
		ColFinanceOff: extract.FormatThousands(r.FinanceOff),
		ColValidated:  r.Validated,
	}
	row := make([]string, len(t.Header))
	for i, h := range t.Header {
		row[i] = values[h]
	}
	return row
}

// SecondaryDataset is the date-stamped listing-page dataset.
type SecondaryDataset struct {
	store TableStore
}

func NewSecondaryDataset(store TableStore) *SecondaryDataset {
	return &SecondaryDataset{store: store}
}

func (d *SecondaryDataset) Exists(day time.Time) bool {
	return d.store.Exists(SecondaryName(day))
}

// Save overwrites day's listing dataset.
func (d *SecondaryDataset) Save(day time.Time, records []models.ListingRecord) error {
	t := NewTable(SecondaryColumns...)
	for _, r := range records {
		t.Append([]string{
			r.Brand, r.Series, r.ModelYear, r.Model,
			extract.FormatThousands(r.MSRP), extract.FormatThousands(r.Discount),
		})
	}
	if err := d.store.Write(SecondaryName(day), t); err != nil {
		return eris.Wrap(err, "secondary: write dataset")
	}
	return nil
}

// Load returns day's listing rows with amounts stripped of separators and
// blank amounts read as "nan".
func (d *SecondaryDataset) Load(day time.Time) ([]models.ListingRecord, error) {
	t, err := d.store.Read(SecondaryName(day))
	if err != nil {
		return nil, err
	}

	records := make([]models.ListingRecord, 0, len(t.Rows))
	for _, row := range t.Rows {
		my := t.Get(row, ColMY)
		if t.Column(ColMY) < 0 {
			my = extract.DefaultListingModelYear
		}
		records = append(records, models.ListingRecord{
			Brand:     t.Get(row, ColBrand),
			Series:    t.Get(row, ColSeries),
			ModelYear: my,
			Model:     t.Get(row, ColModel),
			MSRP:      orNaN(extract.StripThousands(t.Get(row, ColMSRP))),
			Discount:  orNaN(extract.StripThousands(t.Get(row, ColOff))),
		})
	}
	return records, nil
}

// DiscrepancyReport is the date-stamped reconciliation report.
type DiscrepancyReport struct {
	store TableStore
}

func NewDiscrepancyReport(store TableStore) *DiscrepancyReport {
	return &DiscrepancyReport{store: store}
}

// Save overwrites day's report.
func (d *DiscrepancyReport) Save(day time.Time, records []models.DiscrepancyRecord) error {
	t := NewTable(DiscrepancyColumns...)
	for _, r := range records {
		t.Append([]string{
			r.Brand, r.Series, r.ModelYear, r.Model, r.WebMSRP, r.WebOff,
			r.AppMSRP, r.AppCashOff, r.AppFinanceOff, r.Issue,
		})
	}
	if err := d.store.Write(DiscrepancyName(day), t); err != nil {
		return eris.Wrap(err, "report: write discrepancies")
	}
	return nil
}

// Load returns day's report rows.
func (d *DiscrepancyReport) Load(day time.Time) ([]models.DiscrepancyRecord, error) {
	t, err := d.store.Read(DiscrepancyName(day))
	if err != nil {
		return nil, err
	}
	out := make([]models.DiscrepancyRecord, 0, len(t.Rows))
	for _, row := range t.Rows {
		out = append(out, models.DiscrepancyRecord{
			Brand:         t.Get(row, ColBrand),
			Series:        t.Get(row, ColSeries),
			ModelYear:     t.Get(row, ColMY),
			Model:         t.Get(row, ColModel),
			WebMSRP:       t.Get(row, ColWebMSRP),
			WebOff:        t.Get(row, ColWebOff),
			AppMSRP:       t.Get(row, ColAppMSRP),
			AppCashOff:    t.Get(row, ColAppCashOff),
			AppFinanceOff: t.Get(row, ColAppFinanceOff),
			Issue:         t.Get(row, ColIssue),
		})
	}
	return out, nil
}

var primaryFileRegexp = regexp.MustCompile(`^car_data_(\d{8})\.(xlsx|csv)$`)

// AvailableDates lists the date stamps of primary datasets in dir, newest first.
func AvailableDates(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "storage: list %s", dir)
	}

	seen := make(map[string]struct{})
	var dates []string
	for _, e := range entries {
		m := primaryFileRegexp.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		if _, dup := seen[m[1]]; dup {
			continue
		}
		seen[m[1]] = struct{}{}
		dates = append(dates, m[1])
	}
	sort.Sort(sort.Reverse(sort.StringSlice(dates)))
	return dates, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// orNaN reads a blank amount cell as the "nan" sentinel.
func orNaN(s string) string {
	if s == "" {
		return models.SentinelNaN
	}
	return s
}
