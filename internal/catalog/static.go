package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/noah-isme/nitro-storefront/internal/pricing"
)

//go:embed static/pricing-data.json
var staticPricing []byte

// Static decodes the bundled USD catalog shipped with the binary.
func Static() (pricing.Catalog, error) {
	return decodeCatalog(staticPricing, pricing.DefaultCurrency, pricing.SourceStatic)
}

// Empty is the catalog of last resort: no families and only USD supported.
func Empty() pricing.Catalog {
	return pricing.Catalog{
		ProductFamilies:     []pricing.ProductFamily{},
		SupportedCurrencies: []string{pricing.DefaultCurrency},
		LastUpdated:         time.Now().UTC(),
		Currency:            pricing.DefaultCurrency,
		Source:              pricing.SourceEmpty,
	}
}

type catalogDocument struct {
	ProductFamilies     []pricing.ProductFamily `json:"productFamilies"`
	SupportedCurrencies []string                `json:"supportedCurrencies"`
	LastUpdated         string                  `json:"lastUpdated"`
}

func decodeCatalog(raw []byte, currency string, source pricing.Source) (pricing.Catalog, error) {
	var doc catalogDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return pricing.Catalog{}, fmt.Errorf("catalog: decode %s catalog: %w", source, err)
	}
	if doc.ProductFamilies == nil {
		return pricing.Catalog{}, fmt.Errorf("catalog: %s catalog has no productFamilies", source)
	}
	supported := doc.SupportedCurrencies
	if len(supported) == 0 {
		supported = append([]string(nil), pricing.DefaultSupportedCurrencies...)
	}
	updated, err := time.Parse(time.RFC3339, doc.LastUpdated)
	if err != nil {
		updated = time.Time{}
	}
	return pricing.Catalog{
		ProductFamilies:     doc.ProductFamilies,
		SupportedCurrencies: supported,
		LastUpdated:         updated,
		Currency:            pricing.NormalizeCurrency(currency),
		Source:              source,
	}, nil
}
