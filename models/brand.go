package models

import "time"

// Brand is one configured manufacturer partition of a harvest run.
type Brand struct {
	Name string
	// ConfiguratorURL is the brand's entry page in the configurator app.
	ConfiguratorURL string
	// ListingURL is the brand's flat listing page.
	ListingURL string
	// Settle is the pause after the brand page loads before navigation
	// begins. It is a fixed per-brand constant.
	Settle time.Duration
}

// BrandNames maps the configurator URL index (1-based) to the brand label
// used in every dataset.
var BrandNames = map[int]string{
	1: "01_BMW",
	2: "04_Mini",
	3: "02_MB",
	4: "03_Audi",
	5: "12_Volkswagen",
}

// BrandCount is the number of configured brands.
const BrandCount = 5
