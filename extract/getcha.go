package extract

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"discount-harvester/models"
)

// Selectors of the configurator markup. They are generated class names and
// change whenever the site is rebuilt.
const (
	getchaSeriesCard  = "css-175oi2r r-1i6wzkk r-lrvibr r-1loqt21 r-1otgn73 r-1awozwy r-18u37iz r-1wtj0ep r-117bsoe r-11wrixw r-61z16t r-1x0uki6 r-1mdbw0j r-1hfyk0a r-1qfoi16 r-wk8lta r-13qz1uu"
	getchaSeriesTitle = "css-146c3p1 r-1jstmqa r-litx2b r-1b43r93 r-icto9i r-14yzgew r-p76n7o r-13wfysu r-1a2p6p6"

	getchaModelTile  = "div.sc-80108d2f-0.hlytKE:not(.kwqkHl)"
	getchaModelName  = "h5.sc-850306bd-6.DcjFc"
	getchaFuelBlock  = "div.sc-84b91bcb-0.fscxQt"
	getchaFuelLabel  = "div.sc-84b91bcb-1.dpHZpA h6.sc-850306bd-8.bcvqMy"
	getchaYearBlock  = "div.sc-16e7f35c-0.iTBJvM"
	getchaYearLabel  = "div.sc-16e7f35c-1.bEkQLM h4.sc-850306bd-5.iXDDjz"
	getchaDetailRoot = "#cardetail_container > div.sc-68368f62-0.gfdAnO"

	getchaBrandFrame  = "https://cd.getcha.kr/brand/"
	getchaDetailFrame = "car-detail"
	getchaV2Marker    = "5"
)

// GetchaStrategy reads the getcha configurator markup.
type GetchaStrategy struct{}

// NewGetchaStrategy returns the strategy for the current configurator build.
func NewGetchaStrategy() *GetchaStrategy {
	return &GetchaStrategy{}
}

func (g *GetchaStrategy) LocateSeries(doc string) ([]string, error) {
	root, err := parse(doc)
	if err != nil {
		return nil, err
	}

	var series []string
	seen := make(map[string]struct{})
	root.Find(classSelector("", getchaSeriesCard)).Each(func(_ int, card *goquery.Selection) {
		title := card.Find(classSelector("div", getchaSeriesTitle)).First()
		if title.Length() == 0 {
			return
		}
		name := NormaliseText(title.Text())
		if name == "" {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		series = append(series, name)
	})
	return series, nil
}

func (g *GetchaStrategy) LocateModels(doc string) ([]ModelTile, error) {
	root, err := parse(doc)
	if err != nil {
		return nil, err
	}

	var tiles []ModelTile
	root.Find(getchaModelTile).Each(func(_ int, tile *goquery.Selection) {
		nameTag := tile.Find(getchaModelName).First()

		year := "00"
		if label := nameTag.Closest(getchaYearBlock).Find(getchaYearLabel).First(); label.Length() > 0 {
			year = ConfiguratorModelYear(label.Text())
		}

		fuel := models.FuelUnknown
		if label := nameTag.Closest(getchaFuelBlock).Find(getchaFuelLabel).First(); label.Length() > 0 {
			fuel = FuelTypeOf(NormaliseText(label.Text()))
		}

		tiles = append(tiles, ModelTile{
			Name:      NormaliseText(nameTag.Text()),
			ModelYear: year,
			Fuel:      fuel,
		})
	})
	return tiles, nil
}

func (g *GetchaStrategy) ExtractPriceDetail(doc string) (PriceDetail, error) {
	root, err := parse(doc)
	if err != nil {
		return PriceDetail{}, err
	}

	detail := root.Find(getchaDetailRoot).First()
	if detail.Length() == 0 {
		return PriceDetail{}, eris.New("extract: price detail container not found")
	}

	out := PriceDetail{
		MSRP:       models.SentinelNA,
		CashOff:    models.NoDiscount,
		FinanceOff: models.NoDiscount,
	}
	if msrp := detailCell(detail, 1, "div"); msrp.Length() > 0 {
		out.MSRP = NormalizeMSRP(msrp.Text())
	}
	if cash := detailCell(detail, 2, "em"); cash.Length() > 0 {
		if out.CashOff, err = NormalizeDiscount(cash.Text()); err != nil {
			return PriceDetail{}, eris.Wrap(err, "cash off")
		}
	}
	if finance := detailCell(detail, 3, "em"); finance.Length() > 0 {
		if out.FinanceOff, err = NormalizeDiscount(finance.Text()); err != nil {
			return PriceDetail{}, eris.Wrap(err, "finance off")
		}
	}
	return out, nil
}

func (g *GetchaStrategy) ModelTileSelector() string        { return getchaModelTile }
func (g *GetchaStrategy) PriceDetailReadySelector() string { return getchaDetailRoot }
func (g *GetchaStrategy) BrandFrameMarker() string         { return getchaBrandFrame }
func (g *GetchaStrategy) DetailFrameMarker() string        { return getchaDetailFrame }

func (g *GetchaStrategy) UsesV2Layout(series string) bool {
	return strings.Contains(series, getchaV2Marker)
}

// detailCell selects "> div > div:nth-child(n) > leaf" below the detail root.
func detailCell(detail *goquery.Selection, n int, leaf string) *goquery.Selection {
	return detail.ChildrenFiltered("div").
		ChildrenFiltered("div:nth-child(" + strconv.Itoa(n) + ")").
		ChildrenFiltered(leaf).
		First()
}

func parse(doc string) (*goquery.Document, error) {
	root, err := goquery.NewDocumentFromReader(strings.NewReader(doc))
	if err != nil {
		return nil, eris.Wrap(err, "extract: parse html")
	}
	return root, nil
}

// classSelector turns a space-separated class attribute into a compound
// CSS selector ("a b" → "tag.a.b").
func classSelector(tag, classes string) string {
	return tag + "." + strings.Join(strings.Fields(classes), ".")
}
