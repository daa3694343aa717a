package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nitro-storefront/internal/backend"
	"github.com/noah-isme/nitro-storefront/internal/billing"
	"github.com/noah-isme/nitro-storefront/internal/pricing"
	"github.com/noah-isme/nitro-storefront/internal/resilience"
)

func newTestClient(t *testing.T, handler http.Handler) *backend.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := backend.NewClient(backend.Config{
		BaseURL: srv.URL + "/api/",
		HTTP: resilience.HTTPClient{
			Client:      srv.Client(),
			Breaker:     resilience.NewBreaker(100, 1, time.Second),
			BaseBackoff: time.Millisecond,
			MaxAttempts: 3,
			Timeout:     time.Second,
		},
	})
	require.NoError(t, err)
	return client
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	_, err := backend.NewClient(backend.Config{})
	require.Error(t, err)
	_, err = backend.NewClient(backend.Config{BaseURL: "not a url"})
	require.Error(t, err)
}

func TestPricingDecodesCatalog(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/pricing", r.URL.Path)
		require.Equal(t, "EUR", r.URL.Query().Get("currency"))
		_, _ = w.Write([]byte(`{"productFamilies":[{"name":"Nitro PDF","plans":[{"name":"Nitro PDF Standard","oneYearPricing":[{"minSeats":1,"price":10}]}]}],"supportedCurrencies":["USD","EUR"],"lastUpdated":"2025-03-01T10:00:00Z"}`))
	}))

	cat, err := client.Pricing(context.Background(), "eur")
	require.NoError(t, err)
	require.Equal(t, pricing.SourceRemote, cat.Source)
	require.Equal(t, "EUR", cat.Currency)
	require.Equal(t, []string{"USD", "EUR"}, cat.SupportedCurrencies)
	require.Len(t, cat.ProductFamilies, 1)
	require.Equal(t, 2025, cat.LastUpdated.Year())
}

func TestPricingWithoutFamiliesIsMalformed(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"supportedCurrencies":["USD"]}`))
	}))
	_, err := client.Pricing(context.Background(), "USD")
	require.ErrorIs(t, err, backend.ErrMalformedResponse)
}

func TestEstimateRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		var req backend.EstimateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Items, 1)
		_, _ = w.Write([]byte(`{"items":[{"productFamily":"Nitro PDF","planName":"Nitro PDF Standard","seats":2,"totalPrice":20}],"subtotal":20,"total":20,"currency":"USD","billingTerm":"1year"}`))
	}))

	resp, err := client.Estimate(context.Background(), backend.EstimateRequest{
		Items:       []pricing.Item{{ProductFamily: "Nitro PDF", PlanName: "Nitro PDF Standard", Seats: 2}},
		Currency:    "USD",
		BillingTerm: "1year",
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, hits.Load())
	require.InDelta(t, 20.0, *resp.Subtotal, 1e-9)
}

func TestEstimateRejectsContractViolations(t *testing.T) {
	cases := map[string]string{
		"missing subtotal":  `{"items":[],"currency":"USD"}`,
		"missing items":     `{"subtotal":0,"currency":"USD"}`,
		"currency mismatch": `{"items":[],"subtotal":0,"currency":"EUR"}`,
		"not json":          `<html>`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			}))
			_, err := client.Estimate(context.Background(), backend.EstimateRequest{Items: []pricing.Item{}, Currency: "USD"})
			require.ErrorIs(t, err, backend.ErrMalformedResponse)
		})
	}
}

func TestClientErrorsCarryStatusAndMessage(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":{"code":"invalid","message":"unknown plan"}}`))
	}))
	_, err := client.Taxes(context.Background(), backend.TaxRequest{Currency: "USD"})
	require.ErrorIs(t, err, backend.ErrUnexpectedStatus)
	var se *backend.StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusUnprocessableEntity, se.Status)
	require.Equal(t, "unknown plan", se.Message)
}

func TestCheckoutSendsIdempotencyKeyOnce(t *testing.T) {
	var hits atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		require.Equal(t, "key-1", r.Header.Get("Idempotency-Key"))
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	_, err := client.Checkout(context.Background(), backend.CheckoutRequest{
		Items: []billing.LineItem{{ItemPriceID: "Nitro_PDF_STD-USD-1_YEAR", Quantity: 1}},
	}, "key-1")
	require.Error(t, err)
	require.True(t, resilience.Transient(err))
	require.EqualValues(t, 1, hits.Load())
}

func TestHealth(t *testing.T) {
	healthy := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	require.True(t, healthy.Health(context.Background()))

	down := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	require.False(t, down.Health(context.Background()))
}
