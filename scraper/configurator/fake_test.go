package configurator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"discount-harvester/browser"
	"discount-harvester/extract"
	"discount-harvester/models"
)

const (
	tileSelector  = "div.tile"
	readySelector = "div.detail"
	brandMarker   = "/brand/"
	detailMarker  = "car-detail"
)

// fakeSite is the configurator as the fake page and strategy see it.
type fakeSite struct {
	series []string
	models map[string][]fakeModel
}

type fakeModel struct {
	name    string
	detail  extract.PriceDetail
	noFrame bool
}

// fakeStrategy reads the location strings rendered by fakePage.
type fakeStrategy struct {
	site *fakeSite
}

func (s *fakeStrategy) LocateSeries(doc string) ([]string, error) {
	if doc != "brand" {
		return nil, fmt.Errorf("not a brand page: %s", doc)
	}
	return s.site.series, nil
}

func (s *fakeStrategy) LocateModels(doc string) ([]extract.ModelTile, error) {
	series, ok := strings.CutPrefix(doc, "series:")
	if !ok {
		return nil, fmt.Errorf("not a series page: %s", doc)
	}
	var tiles []extract.ModelTile
	for _, m := range s.site.models[series] {
		tiles = append(tiles, extract.ModelTile{Name: m.name, ModelYear: "25", Fuel: models.FuelPetrol})
	}
	return tiles, nil
}

func (s *fakeStrategy) ExtractPriceDetail(doc string) (extract.PriceDetail, error) {
	parts := strings.Split(doc, ":")
	if len(parts) != 3 || parts[0] != "detail" {
		return extract.PriceDetail{}, fmt.Errorf("not a detail page: %s", doc)
	}
	i, _ := strconv.Atoi(parts[2])
	return s.site.models[parts[1]][i].detail, nil
}

func (s *fakeStrategy) ModelTileSelector() string        { return tileSelector }
func (s *fakeStrategy) PriceDetailReadySelector() string { return readySelector }
func (s *fakeStrategy) BrandFrameMarker() string         { return brandMarker }
func (s *fakeStrategy) DetailFrameMarker() string        { return detailMarker }
func (s *fakeStrategy) UsesV2Layout(series string) bool  { return v2Layout(series) }

// v2Layout mirrors the routing rule of GetchaStrategy: these series list
// their tiles in the top document, every other series in the brand frame.
func v2Layout(series string) bool { return strings.Contains(series, "5") }

// fakePage keeps a history stack of locations: "brand", "series:<name>",
// "detail:<series>:<index>". Every Back re-creates the frames with new ids,
// and ids of an earlier generation are rejected like a real browser does.
type fakePage struct {
	site     *fakeSite
	history  []string
	backs    int
	closed   bool
	failNav  bool
	hangBack bool

	generation int
	// clicks records the document every tile click ran in: "top" or "brand".
	clicks []string
}

func newFakePage(site *fakeSite) *fakePage {
	return &fakePage{site: site}
}

func (p *fakePage) current() string {
	if len(p.history) == 0 {
		return ""
	}
	return p.history[len(p.history)-1]
}

func (p *fakePage) Navigate(_ context.Context, url string) error {
	if p.failNav {
		return errors.New("net::ERR_CONNECTION_RESET")
	}
	p.history = append(p.history, "brand")
	return nil
}

func (p *fakePage) WaitLoad(context.Context) error { return nil }

func (p *fakePage) Back(ctx context.Context) error {
	if p.hangBack {
		<-ctx.Done()
		return ctx.Err()
	}
	if len(p.history) <= 1 {
		return errors.New("no history")
	}
	p.history = p.history[:len(p.history)-1]
	p.backs++
	p.generation++
	return nil
}

func (p *fakePage) brandFrame() browser.Frame {
	return browser.Frame{Src: "https://cd.example/brand/x", Attached: true, ID: fmt.Sprintf("brand-%d", p.generation)}
}

func (p *fakePage) detailFrame() browser.Frame {
	return browser.Frame{Src: "https://cd.example/car-detail/1", Attached: true, ID: fmt.Sprintf("detail-%d", p.generation)}
}

func (p *fakePage) Frames(context.Context) ([]browser.Frame, error) {
	loc := p.current()
	switch {
	case strings.HasPrefix(loc, "series:"):
		return []browser.Frame{p.brandFrame()}, nil
	case strings.HasPrefix(loc, "detail:"):
		frames := []browser.Frame{p.brandFrame()}
		if !p.modelAt(loc).noFrame {
			frames = append(frames, p.detailFrame())
		}
		return frames, nil
	}
	return nil, nil
}

// document returns the markup scope shows at the current location.
func (p *fakePage) document(scope *browser.Frame) (string, error) {
	loc := p.current()
	series, onSeries := strings.CutPrefix(loc, "series:")

	if scope == nil {
		switch {
		case onSeries && !v2Layout(series):
			return "shell:" + series, nil
		case strings.HasPrefix(loc, "detail:"):
			return "detail-shell", nil
		}
		return loc, nil
	}

	frames, _ := p.Frames(context.Background())
	for _, f := range frames {
		if f.ID != scope.ID {
			continue
		}
		if strings.HasPrefix(f.ID, "detail-") {
			return loc, nil
		}
		if onSeries && !v2Layout(series) {
			return loc, nil
		}
		return "brand-shell", nil
	}
	return "", fmt.Errorf("No frame for given id found (%s)", scope.ID)
}

func (p *fakePage) HTML(_ context.Context, scope *browser.Frame) (string, error) {
	return p.document(scope)
}

func (p *fakePage) Count(_ context.Context, scope *browser.Frame, selector string) (int, error) {
	doc, err := p.document(scope)
	if err != nil {
		return 0, err
	}
	switch selector {
	case tileSelector:
		if series, ok := strings.CutPrefix(doc, "series:"); ok {
			return len(p.site.models[series]), nil
		}
	case readySelector:
		if strings.HasPrefix(doc, "detail:") {
			return 1, nil
		}
	}
	return 0, nil
}

func (p *fakePage) ClickText(_ context.Context, text string) error {
	if p.current() != "brand" {
		return fmt.Errorf("series %q clicked outside the brand page (%s)", text, p.current())
	}
	p.history = append(p.history, "series:"+text)
	return nil
}

func (p *fakePage) ClickNth(_ context.Context, scope *browser.Frame, _ string, index int) error {
	doc, err := p.document(scope)
	if err != nil {
		return err
	}
	series, ok := strings.CutPrefix(doc, "series:")
	if !ok {
		return fmt.Errorf("no model tiles in %s", doc)
	}
	where := "top"
	if scope != nil {
		where = "brand"
	}
	p.clicks = append(p.clicks, where)
	p.history = append(p.history, fmt.Sprintf("detail:%s:%d", series, index))
	return nil
}

func (p *fakePage) Close() error {
	p.closed = true
	return nil
}

func (p *fakePage) modelAt(loc string) fakeModel {
	parts := strings.Split(loc, ":")
	i, _ := strconv.Atoi(parts[2])
	return p.site.models[parts[1]][i]
}

// fakeBrowser hands out fresh pages over the same site.
type fakeBrowser struct {
	site     *fakeSite
	pages    []*fakePage
	failNav  bool
	hangBack bool
}

func (b *fakeBrowser) NewPage(context.Context) (browser.Page, error) {
	p := newFakePage(b.site)
	p.failNav = b.failNav
	p.hangBack = b.hangBack
	b.pages = append(b.pages, p)
	return p, nil
}

func (b *fakeBrowser) Close() error { return nil }

func testTimeouts() Timeouts {
	return Timeouts{ModelFrame: 30 * time.Millisecond, DetailReady: 30 * time.Millisecond, Tiles: 30 * time.Millisecond}
}

func discounted(msrp, cash, finance string) extract.PriceDetail {
	return extract.PriceDetail{MSRP: msrp, CashOff: cash, FinanceOff: finance}
}
