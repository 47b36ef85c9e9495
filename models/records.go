package models

import (
	"strconv"
	"time"
)

// FuelType is the powertrain classification attached to a configurator model.
type FuelType string

const (
	FuelPetrol  FuelType = "P"
	FuelDiesel  FuelType = "D"
	FuelBEV     FuelType = "BEV"
	FuelPHEV    FuelType = "PHEV"
	FuelNone    FuelType = "None"
	FuelUnknown FuelType = "Unknown"
)

// Sentinel cell values. They mark "extraction failed / unknown" and never
// take part in an equality comparison.
const (
	SentinelNaN      = "nan"
	SentinelNotFound = "Not Found"
	SentinelNA       = "N/A"

	// NoDiscount means the page was read and showed no discount.
	NoDiscount = "0"
)

// Validation flags written to the primary dataset's Validated column.
const (
	ValidatedOK     = "O"
	ValidatedReview = "X"
)

// IsSentinel reports whether v is one of the unknown markers.
func IsSentinel(v string) bool {
	switch v {
	case SentinelNaN, SentinelNotFound, SentinelNA:
		return true
	}
	return false
}

// IsDiscountSentinel is IsSentinel extended with "0", which for discount
// columns also carries no comparable information.
func IsDiscountSentinel(v string) bool {
	return IsSentinel(v) || v == NoDiscount
}

// HarvestRecord is one discounted model read from the configurator.
// Monetary fields are in 10,000-won units.
type HarvestRecord struct {
	CollectedYear  int
	CollectedMonth int
	CollectedDay   int
	Brand          string
	ModelYear      string
	Series         string
	FuelType       FuelType
	Model          string
	MSRP           string
	CashOff        string
	FinanceOff     string
	Validated      string
}

// NewHarvestRecord stamps a record with the collection date.
func NewHarvestRecord(day time.Time, brand, series, modelYear string, fuel FuelType, model string) HarvestRecord {
	return HarvestRecord{
		CollectedYear:  day.Year(),
		CollectedMonth: int(day.Month()),
		CollectedDay:   day.Day(),
		Brand:          brand,
		ModelYear:      modelYear,
		Series:         series,
		FuelType:       fuel,
		Model:          model,
	}
}

// HasDiscount reports whether either discount column is non-zero.
// Undiscounted models never produce a row.
func (r HarvestRecord) HasDiscount() bool {
	return (r.CashOff != "" && r.CashOff != NoDiscount) ||
		(r.FinanceOff != "" && r.FinanceOff != NoDiscount)
}

// CollectedOn reports whether the record was collected on day.
func (r HarvestRecord) CollectedOn(day time.Time) bool {
	return r.CollectedYear == day.Year() &&
		r.CollectedMonth == int(day.Month()) &&
		r.CollectedDay == day.Day()
}

// DedupKey is the {collected date, series} key used to skip series already
// collected today.
func (r HarvestRecord) DedupKey() string {
	return strconv.Itoa(r.CollectedYear) + "-" + strconv.Itoa(r.CollectedMonth) + "-" +
		strconv.Itoa(r.CollectedDay) + "|" + r.Series
}

// DedupKeyFor builds the key a record collected on day for series would have.
func DedupKeyFor(day time.Time, series string) string {
	return HarvestRecord{
		CollectedYear:  day.Year(),
		CollectedMonth: int(day.Month()),
		CollectedDay:   day.Day(),
		Series:         series,
	}.DedupKey()
}

// ListingRecord is one model row from the public listing page.
type ListingRecord struct {
	Brand     string
	ModelYear string
	Series    string
	Model     string
	MSRP      string
	Discount  string
}

// MatchKey is the natural cross-source key {brand, series, model year, model}.
type MatchKey struct {
	Brand     string
	Series    string
	ModelYear string
	Model     string
}

func (r HarvestRecord) MatchKey() MatchKey {
	return MatchKey{Brand: r.Brand, Series: r.Series, ModelYear: r.ModelYear, Model: r.Model}
}

func (r ListingRecord) MatchKey() MatchKey {
	return MatchKey{Brand: r.Brand, Series: r.Series, ModelYear: r.ModelYear, Model: r.Model}
}

// DiscrepancyRecord is one row of the reconciliation report.
type DiscrepancyRecord struct {
	Brand         string
	Series        string
	ModelYear     string
	Model         string
	WebMSRP       string
	WebOff        string
	AppMSRP       string
	AppCashOff    string
	AppFinanceOff string
	Issue         string
}

// IssueModelNotFound is reported for discounted listing rows the configurator
// never produced.
const IssueModelNotFound = "Model not found in app data"

// NewBackfillRecord builds the synthetic primary-dataset row for a model
// only the listing page knows about. It is flagged for manual review.
func NewBackfillRecord(day time.Time, l ListingRecord) HarvestRecord {
	rec := NewHarvestRecord(day, l.Brand, l.Series, l.ModelYear, "", l.Model)
	rec.MSRP = l.MSRP
	rec.Validated = ValidatedReview
	return rec
}
