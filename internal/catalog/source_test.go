package catalog_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nitro-storefront/internal/backend"
	"github.com/noah-isme/nitro-storefront/internal/catalog"
	"github.com/noah-isme/nitro-storefront/internal/common"
)

const eurCatalog = `{
  "productFamilies": [{
    "name": "Nitro PDF",
    "plans": [{
      "name": "Nitro PDF Standard",
      "oneYearPricing": [{"minSeats": 1, "price": 165}, {"minSeats": 10, "price": 149}],
      "threeYearPricing": [{"minSeats": 1, "price": 149}]
    }]
  }],
  "lastUpdated": "2025-02-01T00:00:00Z"
}`

func newRedisCache(t *testing.T) (*catalog.Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return catalog.NewCache(client, time.Minute), mr
}

func writeCatalog(t *testing.T, dir, currency, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pricing-"+currency+".json"), []byte(body), 0o600))
}

func TestNewSourceRequiresPlaceholder(t *testing.T) {
	_, err := catalog.NewSource(catalog.SourceConfig{PathTemplate: "data/pricing.json"})
	require.Error(t, err)
}

func TestSourceLoadsFileAndCaches(t *testing.T) {
	dir := t.TempDir()
	writeCatalog(t, dir, "EUR", eurCatalog)
	cache, mr := newRedisCache(t)
	src, err := catalog.NewSource(catalog.SourceConfig{PathTemplate: filepath.Join(dir, "pricing-{currency}.json"), Cache: cache})
	require.NoError(t, err)

	cat, err := src.Load(context.Background(), "eur")
	require.NoError(t, err)
	require.Equal(t, "EUR", cat.Currency)
	require.Equal(t, []string{"USD", "EUR"}, cat.SupportedCurrencies)
	require.True(t, mr.Exists("pricing:catalog:EUR"))

	// served from Redis once the file is gone
	require.NoError(t, os.Remove(filepath.Join(dir, "pricing-EUR.json")))
	again, err := src.Load(context.Background(), "EUR")
	require.NoError(t, err)
	require.Equal(t, 165.0, again.ProductFamilies[0].Plans[0].OneYearPricing[0].Price)

	require.NoError(t, src.Invalidate(context.Background(), "EUR"))
	_, err = src.Load(context.Background(), "EUR")
	require.ErrorIs(t, err, catalog.ErrCurrencyUnsupported)
}

func TestSourceRejectsInvalidCatalogFile(t *testing.T) {
	dir := t.TempDir()
	writeCatalog(t, dir, "GBP", `{"productFamilies":[{"name":"Nitro PDF","plans":[{"name":"Nitro PDF Standard","oneYearPricing":[{"minSeats":1,"price":-3}],"threeYearPricing":[]}]}]}`)
	src, err := catalog.NewSource(catalog.SourceConfig{PathTemplate: filepath.Join(dir, "pricing-{currency}.json")})
	require.NoError(t, err)

	_, err = src.Load(context.Background(), "GBP")
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, "CATALOG_INVALID", appErr.Code)
}

func TestSourceFallsBackToBundledUSD(t *testing.T) {
	src, err := catalog.NewSource(catalog.SourceConfig{PathTemplate: filepath.Join(t.TempDir(), "pricing-{currency}.json")})
	require.NoError(t, err)
	cat, err := src.Load(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "USD", cat.Currency)
	require.Len(t, cat.ProductFamilies, 2)
}

func TestPricingHandler(t *testing.T) {
	cache, _ := newRedisCache(t)
	src, err := catalog.NewSource(catalog.SourceConfig{Cache: cache})
	require.NoError(t, err)
	handler := catalog.NewHandler(catalog.HandlerConfig{Source: src})

	t.Run("bundled usd", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.Pricing(rr, httptest.NewRequest(http.MethodGet, "/api/pricing?currency=USD", nil))
		require.Equal(t, http.StatusOK, rr.Code)

		var body backend.PricingResponse
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		require.Len(t, body.ProductFamilies, 2)
		require.Equal(t, []string{"USD"}, body.SupportedCurrencies)
		require.Equal(t, "2025-01-15T00:00:00Z", body.LastUpdated)
	})

	t.Run("unsupported currency", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.Pricing(rr, httptest.NewRequest(http.MethodGet, "/api/pricing?currency=EUR", nil))
		require.Equal(t, http.StatusNotFound, rr.Code)
		require.Contains(t, rr.Body.String(), "CURRENCY_UNSUPPORTED")
	})

	t.Run("currencies", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.Currencies(rr, httptest.NewRequest(http.MethodGet, "/api/pricing/currencies", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		require.JSONEq(t, `{"data":["USD"]}`, rr.Body.String())
	})

	t.Run("not configured", func(t *testing.T) {
		rr := httptest.NewRecorder()
		catalog.NewHandler(catalog.HandlerConfig{}).Pricing(rr, httptest.NewRequest(http.MethodGet, "/api/pricing", nil))
		require.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}
