package extract

import "discount-harvester/models"

// ModelTile is one model entry of an opened series, in page order.
type ModelTile struct {
	Name      string
	ModelYear string
	Fuel      models.FuelType
}

// PriceDetail holds the monetary fields of a model's price-detail frame,
// already normalised to bare digits.
type PriceDetail struct {
	MSRP       string
	CashOff    string
	FinanceOff string
}

// ConfiguratorStrategy maps one version of the configurator's markup to
// typed fields. Swapping site versions means swapping the strategy, not the
// navigator.
type ConfiguratorStrategy interface {
	// LocateSeries returns the series names listed on a brand page.
	LocateSeries(doc string) ([]string, error)
	// LocateModels returns the model tiles of an opened series, in the same
	// order as ModelTileSelector matches them.
	LocateModels(doc string) ([]ModelTile, error)
	// ExtractPriceDetail reads the price-detail frame document.
	ExtractPriceDetail(doc string) (PriceDetail, error)

	// ModelTileSelector is the CSS selector of clickable model tiles.
	ModelTileSelector() string
	// PriceDetailReadySelector appears once the price detail has rendered.
	PriceDetailReadySelector() string
	// BrandFrameMarker is the URL substring of the branded model-list frame.
	BrandFrameMarker() string
	// DetailFrameMarker is the URL substring of the price-detail frame.
	DetailFrameMarker() string
	// UsesV2Layout reports whether a series renders its model list in the
	// top document instead of the branded frame.
	UsesV2Layout(series string) bool
}
