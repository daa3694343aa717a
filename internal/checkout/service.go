// Package checkout quotes tax for a priced cart and submits it for
// subscription creation.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noah-isme/nitro-storefront/internal/backend"
	"github.com/noah-isme/nitro-storefront/internal/billing"
	"github.com/noah-isme/nitro-storefront/internal/estimate"
	"github.com/noah-isme/nitro-storefront/internal/obs"
	"github.com/noah-isme/nitro-storefront/internal/pricing"
	"github.com/noah-isme/nitro-storefront/internal/resilience"
	"github.com/noah-isme/nitro-storefront/internal/selection"
)

const (
	// DefaultMaxAttempts bounds automatic checkout retries.
	DefaultMaxAttempts = 3
	// MaxAttemptsCap is the hard ceiling regardless of configuration.
	MaxAttemptsCap = 5
)

// ErrDeclined is returned when the backend answered but refused the checkout.
var ErrDeclined = errors.New("checkout: declined")

// Backend is the subset of the storefront API checkout talks to.
type Backend interface {
	Taxes(ctx context.Context, req backend.TaxRequest) (backend.TaxResponse, error)
	Checkout(ctx context.Context, req backend.CheckoutRequest, idempotencyKey string) (backend.CheckoutResponse, error)
}

// SubmitError is the user-visible checkout failure. Retryable tells the UI
// whether offering "try again" makes sense.
type SubmitError struct {
	Retryable bool
	Attempts  int
	Err       error
}

func (e *SubmitError) Error() string {
	return fmt.Sprintf("checkout failed after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *SubmitError) Unwrap() error { return e.Err }

// Result is a completed submission.
type Result struct {
	Success              bool   `json:"success"`
	SalesContactRequired bool   `json:"salesContactRequired"`
	Message              string `json:"message,omitempty"`
	CustomerID           string `json:"customerId,omitempty"`
	SubscriptionID       string `json:"subscriptionId,omitempty"`
	InvoiceID            string `json:"invoiceId,omitempty"`
	ConfirmationNumber   string `json:"confirmationNumber,omitempty"`
	PortalSessionURL     string `json:"portalSessionUrl,omitempty"`
	IdempotencyKey       string `json:"idempotencyKey,omitempty"`
	Attempts             int    `json:"attempts"`
}

// TaxQuote is the tax added on top of an estimate.
type TaxQuote struct {
	Subtotal   float64         `json:"subtotal"`
	Tax        float64         `json:"tax"`
	FinalTotal float64         `json:"finalTotal"`
	Currency   string          `json:"currency"`
	Breakdown  json.RawMessage `json:"breakdown,omitempty"`
	Quoted     bool            `json:"quoted"`
}

// Config wires a Service.
type Config struct {
	Backend     Backend
	Validator   *validator.Validate
	MaxAttempts int
	BaseBackoff time.Duration
	Jitter      float64
	Logger      zerolog.Logger
	// NewKey overrides idempotency key generation.
	NewKey func() string
}

// Service runs checkout against the storefront API.
type Service struct {
	backend     Backend
	builder     Builder
	maxAttempts int
	baseBackoff time.Duration
	jitter      float64
	logger      zerolog.Logger
	newKey      func() string
}

// NewService constructs a Service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Backend == nil {
		return nil, errors.New("checkout: backend is required")
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}
	if attempts > MaxAttemptsCap {
		attempts = MaxAttemptsCap
	}
	backoff := cfg.BaseBackoff
	if backoff <= 0 {
		backoff = 250 * time.Millisecond
	}
	newKey := cfg.NewKey
	if newKey == nil {
		newKey = uuid.NewString
	}
	return &Service{
		backend:     cfg.Backend,
		builder:     Builder{Mapper: billing.Mapper{Logger: cfg.Logger}, Validate: cfg.Validator},
		maxAttempts: attempts,
		baseBackoff: backoff,
		jitter:      cfg.Jitter,
		logger:      cfg.Logger,
		newKey:      newKey,
	}, nil
}

// Build exposes the request the service would submit for cart.
func (s *Service) Build(cart selection.Cart, currency string, d Details) (backend.CheckoutRequest, error) {
	return s.builder.Build(cart, currency, d)
}

// MaxAttempts is the effective retry bound.
func (s *Service) MaxAttempts() int { return s.maxAttempts }

// QuoteTax asks the backend for tax on agg. It never fails: without a usable
// address, with a zero subtotal or on any backend error the tax is 0 and the
// final total equals the estimate total.
func (s *Service) QuoteTax(ctx context.Context, agg estimate.Aggregate, items []pricing.Item, addr Address) TaxQuote {
	quote := TaxQuote{Subtotal: agg.Subtotal, FinalTotal: agg.Total, Currency: agg.Currency}
	taxAddr := addr.TaxAddress()
	if agg.Subtotal == 0 || taxAddr.Zip == "" || taxAddr.State == "" {
		return quote
	}
	log := s.logger.With().Str("currency", agg.Currency).Logger()
	resp, err := s.backend.Taxes(ctx, backend.TaxRequest{
		Items:           items,
		CustomerAddress: taxAddr,
		Currency:        agg.Currency,
	})
	if err != nil {
		log.Warn().Err(err).Msg("tax_quote_failed")
		return quote
	}
	if resp.TotalTax == nil {
		return quote
	}
	if resp.TotalTax.Currency != "" && !strings.EqualFold(resp.TotalTax.Currency, agg.Currency) {
		log.Warn().Str("tax_currency", resp.TotalTax.Currency).Msg("tax_quote_currency_mismatch")
		return quote
	}
	quote.Tax = resp.TotalTax.Amount
	quote.FinalTotal = pricing.Sum(agg.Total, resp.TotalTax.Amount)
	quote.Breakdown = resp.TaxBreakdown
	quote.Quoted = true
	return quote
}

// Submit builds and sends the checkout. Three-year carts return
// SalesContactRequired without calling the backend. Transient failures are
// retried with the same idempotency key up to the configured bound; every
// failure comes back as *SubmitError. The cart is never modified.
func (s *Service) Submit(ctx context.Context, cart selection.Cart, currency string, d Details) (Result, error) {
	if cart.SalesContactRequired() {
		obs.CountCheckoutAttempt("sales_contact")
		return Result{SalesContactRequired: true, Message: "three-year terms are arranged with our sales team"}, nil
	}
	req, err := s.builder.Build(cart, currency, d)
	if err != nil {
		obs.CountCheckoutAttempt("invalid")
		return Result{}, &SubmitError{Retryable: false, Err: err}
	}

	key := s.newKey()
	log := s.logger.With().Str("idempotency_key", key).Str("currency", req.Currency).Logger()
	start := time.Now()
	defer func() { obs.ObserveCheckout(float64(time.Since(start).Milliseconds())) }()

	var lastErr error
	attempt := 0
	for attempt < s.maxAttempts {
		attempt++
		resp, err := s.backend.Checkout(ctx, req, key)
		if err == nil {
			return s.finish(resp, key, attempt, log)
		}
		lastErr = err
		if !resilience.Transient(err) {
			obs.CountCheckoutAttempt("failed")
			log.Warn().Err(err).Int("attempt", attempt).Msg("checkout_failed")
			return Result{}, &SubmitError{Retryable: false, Attempts: attempt, Err: err}
		}
		obs.CountCheckoutAttempt("retry")
		log.Warn().Err(err).Int("attempt", attempt).Msg("checkout_attempt_failed")
		if attempt == s.maxAttempts {
			break
		}
		timer := time.NewTimer(resilience.Backoff(s.baseBackoff, attempt, s.jitter))
		select {
		case <-ctx.Done():
			timer.Stop()
			return Result{}, &SubmitError{Retryable: true, Attempts: attempt, Err: ctx.Err()}
		case <-timer.C:
		}
	}
	obs.CountCheckoutAttempt("exhausted")
	log.Error().Err(lastErr).Int("attempts", attempt).Msg("checkout_retries_exhausted")
	return Result{}, &SubmitError{Retryable: true, Attempts: attempt, Err: lastErr}
}

func (s *Service) finish(resp backend.CheckoutResponse, key string, attempt int, log zerolog.Logger) (Result, error) {
	res := Result{
		Success:              resp.Success,
		SalesContactRequired: resp.SalesContactRequired,
		Message:              resp.Message,
		CustomerID:           resp.CustomerID,
		SubscriptionID:       resp.SubscriptionID,
		InvoiceID:            resp.InvoiceID,
		ConfirmationNumber:   resp.ConfirmationNumber,
		PortalSessionURL:     resp.PortalSessionURL,
		IdempotencyKey:       key,
		Attempts:             attempt,
	}
	switch {
	case resp.Success:
		obs.CountCheckoutAttempt("ok")
		log.Info().Str("subscription_id", resp.SubscriptionID).Int("attempts", attempt).Msg("checkout_completed")
		return res, nil
	case resp.SalesContactRequired:
		obs.CountCheckoutAttempt("sales_contact")
		return res, nil
	default:
		obs.CountCheckoutAttempt("declined")
		msg := resp.Error
		if msg == "" {
			msg = resp.Message
		}
		if msg == "" {
			msg = "checkout processing failed"
		}
		log.Warn().Str("reason", msg).Msg("checkout_declined")
		return Result{}, &SubmitError{Retryable: false, Attempts: attempt, Err: fmt.Errorf("%w: %s", ErrDeclined, msg)}
	}
}
