package config

import (
	"log"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"

	"discount-harvester/models"
)

// LoadURLs reads the "url" list of a JSON URL file.
func LoadURLs(path string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		return nil, eris.Wrapf(err, "config: read url file %s", path)
	}
	if !v.IsSet("url") {
		return nil, eris.Errorf("config: %s has no \"url\" list", path)
	}
	return v.GetStringSlice("url"), nil
}

// Brands joins the two URL lists against the brand table. The configurator
// list is indexed 1..BrandCount (entry 0 is unused); the listing list is
// 0-based in the same brand order. A missing entry leaves that URL empty.
func Brands(cfg *Config, configuratorURLs, listingURLs []string) []models.Brand {
	brands := make([]models.Brand, 0, models.BrandCount)
	for i := 1; i <= models.BrandCount; i++ {
		b := models.Brand{
			Name:   models.BrandNames[i],
			Settle: cfg.Settle(i),
		}
		if i < len(configuratorURLs) {
			b.ConfiguratorURL = configuratorURLs[i]
		}
		if i-1 < len(listingURLs) {
			b.ListingURL = listingURLs[i-1]
		}
		brands = append(brands, b)
	}
	return brands
}

// LoadBrands reads both URL files named by cfg. A missing listing file
// only empties the listing URLs.
func LoadBrands(cfg *Config) ([]models.Brand, error) {
	configurator, err := LoadURLs(cfg.URLsFile)
	if err != nil {
		return nil, err
	}
	listing, err := LoadURLs(cfg.WebURLsFile)
	if err != nil {
		log.Printf("[config] listing URLs unavailable: %v", err)
	}
	return Brands(cfg, configurator, listing), nil
}
