// Package backend talks to the storefront API: pricing catalog, estimates,
// tax quotes, checkout and health.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/nitro-storefront/internal/pricing"
	"github.com/noah-isme/nitro-storefront/internal/resilience"
)

var (
	// ErrUnexpectedStatus marks a non-2xx answer that is not retried.
	ErrUnexpectedStatus = errors.New("backend: unexpected status")
	// ErrMalformedResponse marks a 2xx answer whose body breaks the contract.
	ErrMalformedResponse = errors.New("backend: malformed response")
)

// StatusError carries the status and server message of a rejected call.
type StatusError struct {
	Op      string
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend %s: status %d: %s", e.Op, e.Status, e.Message)
	}
	return fmt.Sprintf("backend %s: status %d", e.Op, e.Status)
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

// Config wires a Client.
type Config struct {
	BaseURL string
	HTTP    resilience.HTTPClient
	Logger  zerolog.Logger
}

// Client calls the storefront API through the retrying, breaker-guarded HTTP client.
type Client struct {
	baseURL string
	http    resilience.HTTPClient
	logger  zerolog.Logger
}

// NewClient validates the base URL and returns a client.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("backend: base url is required")
	}
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("backend: invalid base url: %w", err)
	}
	httpClient := cfg.HTTP
	if httpClient.Client == nil {
		httpClient.Client = NewHTTPClient(0)
	}
	return &Client{baseURL: base, http: httpClient, logger: cfg.Logger}, nil
}

// NewHTTPClient returns an instrumented http.Client. A zero timeout leaves the
// bound to the per-attempt timeout of resilience.HTTPClient.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// Pricing fetches the catalog for currency.
func (c *Client) Pricing(ctx context.Context, currency string) (pricing.Catalog, error) {
	currency = pricing.NormalizeCurrency(currency)
	var body PricingResponse
	q := url.Values{"currency": []string{currency}}
	if err := c.call(ctx, c.http, "pricing", http.MethodGet, "/pricing", q, nil, nil, &body); err != nil {
		return pricing.Catalog{}, err
	}
	if body.ProductFamilies == nil {
		return pricing.Catalog{}, fmt.Errorf("%w: pricing: productFamilies missing", ErrMalformedResponse)
	}
	supported := body.SupportedCurrencies
	if len(supported) == 0 {
		supported = append([]string(nil), pricing.DefaultSupportedCurrencies...)
	}
	updated, err := time.Parse(time.RFC3339, body.LastUpdated)
	if err != nil {
		updated = time.Now().UTC()
	}
	return pricing.Catalog{
		ProductFamilies:     body.ProductFamilies,
		SupportedCurrencies: supported,
		LastUpdated:         updated,
		Currency:            currency,
		Source:              pricing.SourceRemote,
	}, nil
}

// Estimate asks the backend to price req. A body without items or subtotal, or
// priced in another currency, is malformed.
func (c *Client) Estimate(ctx context.Context, req EstimateRequest) (EstimateResponse, error) {
	var body EstimateResponse
	if err := c.call(ctx, c.http, "estimate", http.MethodPost, "/estimate", nil, nil, req, &body); err != nil {
		return EstimateResponse{}, err
	}
	if body.Items == nil || body.Subtotal == nil {
		return EstimateResponse{}, fmt.Errorf("%w: estimate: items or subtotal missing", ErrMalformedResponse)
	}
	if body.Currency != "" && !strings.EqualFold(body.Currency, req.Currency) {
		return EstimateResponse{}, fmt.Errorf("%w: estimate: currency %s, requested %s", ErrMalformedResponse, body.Currency, req.Currency)
	}
	return body, nil
}

// Taxes requests a tax quote.
func (c *Client) Taxes(ctx context.Context, req TaxRequest) (TaxResponse, error) {
	var body TaxResponse
	if err := c.call(ctx, c.http, "taxes", http.MethodPost, "/taxes", nil, nil, req, &body); err != nil {
		return TaxResponse{}, err
	}
	if body.TotalTax == nil {
		return TaxResponse{}, fmt.Errorf("%w: taxes: totalTax missing", ErrMalformedResponse)
	}
	return body, nil
}

// Checkout submits one checkout attempt. Retries belong to the caller so the
// idempotency key stays under its control.
func (c *Client) Checkout(ctx context.Context, req CheckoutRequest, idempotencyKey string) (CheckoutResponse, error) {
	single := c.http
	single.MaxAttempts = 1
	headers := http.Header{}
	if idempotencyKey != "" {
		headers.Set("Idempotency-Key", idempotencyKey)
	}
	var body CheckoutResponse
	if err := c.call(ctx, single, "checkout", http.MethodPost, "/checkout", nil, headers, req, &body); err != nil {
		return CheckoutResponse{}, err
	}
	return body, nil
}

// Health reports whether GET /health answers with a 2xx status.
func (c *Client) Health(ctx context.Context) bool {
	single := c.http
	single.MaxAttempts = 1
	err := c.call(ctx, single, "health", http.MethodGet, "/health", nil, nil, nil, nil)
	if err != nil {
		c.logger.Debug().Err(err).Msg("backend_health_failed")
		return false
	}
	return true
}

func (c *Client) call(ctx context.Context, hc resilience.HTTPClient, op, method, path string, query url.Values, headers http.Header, in, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("backend %s: encode request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("backend %s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := hc.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("backend %s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, Status: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, op, err)
	}
	return nil
}

// errorMessage pulls "message" (or the "error.message" envelope) out of an
// error body, falling back to the raw text.
func errorMessage(r io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(r, 4<<10))
	var envelope struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Error.Message != "" {
			return envelope.Error.Message
		}
	}
	return strings.TrimSpace(string(raw))
}
