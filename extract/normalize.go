package extract

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"discount-harvester/models"
)

var (
	// amountRegexp captures the first run of digits, optionally grouped by commas.
	amountRegexp = regexp.MustCompile(`\d[\d,]*`)
	// bareAmountRegexp matches text that is nothing but an amount.
	bareAmountRegexp = regexp.MustCompile(`^\d[\d,]*$`)
	// manwonRegexp captures an amount expressed in 10,000-won units ("300만원").
	manwonRegexp = regexp.MustCompile(`([\d,]+)\s*만원`)
	// yearTokenRegexp captures "25년식" or "2025년식".
	yearTokenRegexp = regexp.MustCompile(`(\d{2,4})년식`)

	printer = message.NewPrinter(language.English)
)

// fuelKeywords is checked in order; the first keyword found wins.
var fuelKeywords = []struct {
	keyword string
	fuel    models.FuelType
}{
	{"휘발유", models.FuelPetrol},
	{"경유", models.FuelDiesel},
	{"전기", models.FuelBEV},
	{"플러그인 하이브리드", models.FuelPHEV},
}

// FuelTypeOf classifies a fuel label. Labels without a known keyword map
// to models.FuelNone.
func FuelTypeOf(label string) models.FuelType {
	for _, fk := range fuelKeywords {
		if strings.Contains(label, fk.keyword) {
			return fk.fuel
		}
	}
	return models.FuelNone
}

// NormalizeMSRP turns "25,000,000" or "6,390만원" into bare digits.
// Text without any digits yields models.SentinelNA.
func NormalizeMSRP(raw string) string {
	digits, ok := firstAmount(raw, amountRegexp)
	if !ok {
		return models.SentinelNA
	}
	return digits
}

// NormalizeDiscount turns "300만원" into "300". Absent or digit-free text,
// including "0만원", yields "0". Digits that are not a 만원 amount, such as
// "5%" or "2회차", are an error: they are not a discount this parser can read.
func NormalizeDiscount(raw string) (string, error) {
	if digits, ok := firstAmount(raw, manwonRegexp); ok {
		return digits, nil
	}
	if amountRegexp.MatchString(raw) {
		return "", eris.Errorf("extract: discount %q is not a 만원 amount", strings.TrimSpace(raw))
	}
	return models.NoDiscount, nil
}

// NormalizeListingDiscount reads the listing page's discount cell, which
// prints a bare number next to a separate unit label. Other text carrying
// digits yields models.SentinelNA.
func NormalizeListingDiscount(raw string) string {
	if digits, ok := firstAmount(raw, manwonRegexp); ok {
		return digits
	}
	if bareAmountRegexp.MatchString(strings.TrimSpace(raw)) {
		digits, _ := firstAmount(raw, amountRegexp)
		return digits
	}
	if amountRegexp.MatchString(raw) {
		return models.SentinelNA
	}
	return models.NoDiscount
}

func firstAmount(raw string, re *regexp.Regexp) (string, bool) {
	m := re.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}
	match := m[len(m)-1]
	n, err := strconv.ParseInt(strings.ReplaceAll(match, ",", ""), 10, 64)
	if err != nil {
		return "", false
	}
	return strconv.FormatInt(n, 10), true
}

// FormatThousands renders a bare-digit amount with thousands separators.
// Anything that is not a plain integer (sentinels, blanks) passes through.
func FormatThousands(v string) string {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return v
	}
	return printer.Sprintf("%d", n)
}

// StripThousands removes thousands separators and a trailing "만원".
func StripThousands(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimSuffix(v, "만원")
	return strings.ReplaceAll(v, ",", "")
}

// ConfiguratorModelYear takes the two digits after the century from a
// configurator year label ("2025년형" → "25"). Short labels yield "00".
func ConfiguratorModelYear(label string) string {
	r := []rune(strings.TrimSpace(label))
	if len(r) < 4 {
		return "00"
	}
	return string(r[2:4])
}

// ListingModelYear extracts the model year from a listing header token
// ("25년식" or "2025년식"). fallback is returned when no token is present.
func ListingModelYear(text, fallback string) string {
	m := yearTokenRegexp.FindStringSubmatch(text)
	if m == nil {
		return fallback
	}
	year := m[1]
	if len(year) > 2 {
		year = year[len(year)-2:]
	}
	return year
}

// NormaliseText strips leading/trailing whitespace and collapses internal whitespace.
func NormaliseText(s string) string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	return strings.Join(fields, " ")
}
