package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/nitro-storefront/internal/common"
	"github.com/noah-isme/nitro-storefront/internal/pricing"
)

// ErrCurrencyUnsupported is returned when no catalog exists for a currency.
var ErrCurrencyUnsupported = errors.New("catalog: currency not supported")

// CurrencyPlaceholder is substituted in SourceConfig.PathTemplate.
const CurrencyPlaceholder = "{currency}"

// Source is the authoritative server-side catalog. Catalog files are looked up
// per currency; USD falls back to the bundled catalog when no file exists.
type Source struct {
	pathTemplate string
	cache        *Cache
	logger       zerolog.Logger
}

// SourceConfig configures a Source.
type SourceConfig struct {
	// PathTemplate is a file path containing {currency}, e.g. data/pricing-{currency}.json.
	PathTemplate string
	Cache        *Cache
	Logger       zerolog.Logger
}

// NewSource validates the configuration.
func NewSource(cfg SourceConfig) (*Source, error) {
	tmpl := strings.TrimSpace(cfg.PathTemplate)
	if tmpl != "" && !strings.Contains(tmpl, CurrencyPlaceholder) {
		return nil, fmt.Errorf("catalog: path template %q lacks %s", tmpl, CurrencyPlaceholder)
	}
	return &Source{pathTemplate: tmpl, cache: cfg.Cache, logger: cfg.Logger}, nil
}

// Load returns the validated catalog for currency. A catalog file that fails
// validation is rejected rather than served.
func (s *Source) Load(ctx context.Context, currency string) (pricing.Catalog, error) {
	currency = pricing.NormalizeCurrency(currency)
	log := s.logger.With().Str("currency", currency).Logger()

	if cached, ok, err := s.cache.Get(ctx, currency); err != nil {
		log.Warn().Err(err).Msg("catalog_cache_get_failed")
	} else if ok {
		return cached, nil
	}

	cat, err := s.read(currency)
	if err != nil {
		return pricing.Catalog{}, err
	}
	if err := pricing.Validate(cat.ProductFamilies); err != nil {
		return pricing.Catalog{}, common.NewAppError("CATALOG_INVALID", "catalog failed validation", http.StatusInternalServerError, err)
	}
	cat.SupportedCurrencies = s.Currencies()
	if err := s.cache.Set(ctx, cat); err != nil {
		log.Warn().Err(err).Msg("catalog_cache_set_failed")
	}
	return cat, nil
}

// Catalog is Load under the name estimators look for.
func (s *Source) Catalog(ctx context.Context, currency string) (pricing.Catalog, error) {
	return s.Load(ctx, currency)
}

// Currencies lists the currencies a catalog can be loaded for.
func (s *Source) Currencies() []string {
	out := []string{pricing.DefaultCurrency}
	if s.pathTemplate == "" {
		return out
	}
	for _, code := range pricing.DefaultSupportedCurrencies {
		if code == pricing.DefaultCurrency {
			continue
		}
		if _, err := os.Stat(s.path(code)); err == nil {
			out = append(out, code)
		}
	}
	return out
}

// Invalidate drops any cached copy so the next Load re-reads the file.
func (s *Source) Invalidate(ctx context.Context, currency string) error {
	return s.cache.Invalidate(ctx, currency)
}

func (s *Source) read(currency string) (pricing.Catalog, error) {
	if s.pathTemplate != "" {
		raw, err := os.ReadFile(s.path(currency))
		switch {
		case err == nil:
			return decodeCatalog(raw, currency, pricing.SourceStatic)
		case !errors.Is(err, fs.ErrNotExist):
			return pricing.Catalog{}, fmt.Errorf("catalog: read %s: %w", currency, err)
		}
	}
	if currency != pricing.DefaultCurrency {
		return pricing.Catalog{}, common.NewAppError("CURRENCY_UNSUPPORTED", "no catalog for currency "+currency, http.StatusNotFound, ErrCurrencyUnsupported)
	}
	return Static()
}

func (s *Source) path(currency string) string {
	return strings.ReplaceAll(s.pathTemplate, CurrencyPlaceholder, currency)
}
