package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"discount-harvester/models"
)

const (
	listingSection  = "section._1vrlmaf2._1vrlmaf0"
	listingHeader   = "h3.j00ses5"
	listingRow      = "a._15c6uvi5, div._15c6uvi5"
	listingName     = "span._15c6uvi9"
	listingMSRP     = "div._15c6uvi7 span._15c6uvif"
	listingDiscount = "span._15c6uvim._15c6uvif"

	// DefaultListingModelYear applies when a section header carries no year token.
	DefaultListingModelYear = "25"

	// ErrorModel names the placeholder row recorded for a row that failed to parse.
	ErrorModel = "Error"
)

// RowError describes one listing row that could not be read.
type RowError struct {
	Series string
	Index  int
	Err    error
}

// ListingParser reads the flat public listing page.
type ListingParser struct{}

// NewListingParser returns a parser for the current listing markup.
func NewListingParser() *ListingParser {
	return &ListingParser{}
}

// Parse extracts every model row of a brand's listing page. Rows that fail
// are returned as placeholder records (Model "Error", Discount holding the
// reason) and reported in the RowError slice.
func (p *ListingParser) Parse(brand, doc string) ([]models.ListingRecord, []RowError, error) {
	root, err := parse(doc)
	if err != nil {
		return nil, nil, err
	}

	var (
		records []models.ListingRecord
		failed  []RowError
	)
	root.Find(listingSection).Each(func(_ int, section *goquery.Selection) {
		sectionID, ok := section.Attr("id")
		if !ok || sectionID == "" {
			sectionID = "no-id"
		}

		series := sectionID
		modelYear := DefaultListingModelYear
		if header := section.Find(listingHeader).First(); header.Length() > 0 {
			texts := strippedStrings(header)
			switch {
			case len(texts) >= 2:
				series = texts[1]
			case len(texts) == 1:
				series = texts[0]
			}
			if span := header.Find("span").First(); span.Length() > 0 {
				modelYear = ListingModelYear(span.Text(), DefaultListingModelYear)
			}
		}

		section.Find(listingRow).Each(func(i int, row *goquery.Selection) {
			rec, skip, err := parseListingRow(brand, series, modelYear, row)
			if skip {
				return
			}
			if err != nil {
				failed = append(failed, RowError{Series: sectionID, Index: i, Err: err})
				records = append(records, models.ListingRecord{
					Brand:     brand,
					Series:    sectionID,
					ModelYear: modelYear,
					Model:     ErrorModel,
					MSRP:      "",
					Discount:  err.Error(),
				})
				return
			}
			records = append(records, rec)
		})
	})
	return records, failed, nil
}

// parseListingRow reads one row. Rows without a model-name element are not
// model rows and are skipped.
func parseListingRow(brand, series, modelYear string, row *goquery.Selection) (rec models.ListingRecord, skip bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("extract: listing row panic: %v", r)
		}
	}()

	nameTag := row.Find(listingName).First()
	if nameTag.Length() == 0 {
		return rec, true, nil
	}
	name := NormaliseText(nameTag.Text())
	if name == "" {
		return rec, false, eris.New("extract: empty model name")
	}

	msrp := ""
	if el := row.Find(listingMSRP).First(); el.Length() > 0 {
		msrp = NormalizeMSRP(el.Text())
	}
	discount := models.NoDiscount
	if el := row.Find(listingDiscount).First(); el.Length() > 0 {
		discount = NormalizeListingDiscount(el.Text())
	}

	return models.ListingRecord{
		Brand:     brand,
		Series:    series,
		ModelYear: modelYear,
		Model:     name,
		MSRP:      msrp,
		Discount:  discount,
	}, false, nil
}

// strippedStrings returns every non-blank descendant text node, trimmed, in
// document order.
func strippedStrings(sel *goquery.Selection) []string {
	var out []string
	sel.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			if t := strings.TrimSpace(c.Text()); t != "" {
				out = append(out, t)
			}
			return
		}
		out = append(out, strippedStrings(c)...)
	})
	return out
}
