package estimate

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/noah-isme/nitro-storefront/internal/backend"
	"github.com/noah-isme/nitro-storefront/internal/catalog"
	"github.com/noah-isme/nitro-storefront/internal/obs"
	"github.com/noah-isme/nitro-storefront/internal/pricing"
	"github.com/noah-isme/nitro-storefront/internal/resilience"
)

// Estimator prices a request.
type Estimator interface {
	Estimate(ctx context.Context, req Request) (Aggregate, error)
}

// CatalogSource yields the catalog a request is priced against.
type CatalogSource interface {
	Catalog(ctx context.Context, currency string) (pricing.Catalog, error)
}

// LocalEstimator prices requests in-process. With no catalog loaded it returns a
// zeroed aggregate instead of an error. Aggregates carry the currency of the
// catalog they were priced from, which differs from the requested one while a
// fetch for the new currency is pending or fell back to the bundled catalog.
type LocalEstimator struct {
	Catalogs CatalogSource
	Logger   zerolog.Logger
}

// Estimate implements Estimator.
func (l LocalEstimator) Estimate(ctx context.Context, req Request) (Aggregate, error) {
	if l.Catalogs == nil {
		return Zero(req), nil
	}
	pctx := req.Context()
	cat, err := l.Catalogs.Catalog(ctx, pctx.Currency)
	if errors.Is(err, catalog.ErrNoCatalog) {
		return Zero(req), nil
	}
	if err != nil {
		return Aggregate{}, err
	}
	if len(cat.ProductFamilies) == 0 {
		return Zero(req), nil
	}
	if cat.Currency != "" && cat.Currency != pctx.Currency {
		l.Logger.Debug().
			Str("requested", pctx.Currency).
			Str("catalog", cat.Currency).
			Msg("estimate_catalog_currency_differs")
		pctx.Currency = cat.Currency
	}
	agg := Calculate(req.Items, cat.ProductFamilies, pctx)
	for _, u := range agg.Unresolved {
		obs.CountUnresolved(u.ProductFamily)
		l.Logger.Debug().
			Str("family", u.ProductFamily).
			Str("plan", u.PlanName).
			Str("reason", u.Reason).
			Msg("estimate_item_unresolved")
	}
	return agg, nil
}

// RemoteClient is the backend call RemoteEstimator depends on.
type RemoteClient interface {
	Estimate(ctx context.Context, req backend.EstimateRequest) (backend.EstimateResponse, error)
}

// RemoteEstimator asks the backend for the authoritative estimate.
type RemoteEstimator struct {
	Client RemoteClient
}

// Estimate implements Estimator. Any failure, a malformed body included, is
// returned as an error for the coordinator to act on.
func (r RemoteEstimator) Estimate(ctx context.Context, req Request) (Aggregate, error) {
	if r.Client == nil {
		return Aggregate{}, errors.New("estimate: remote client not configured")
	}
	pctx := req.Context()
	items := priceable(req.Items)
	resp, err := r.Client.Estimate(ctx, backend.EstimateRequest{
		Items:       items,
		Currency:    pctx.Currency,
		BillingTerm: string(pctx.Term),
	})
	if err != nil {
		return Aggregate{}, err
	}
	agg := Aggregate{
		Items:       resp.Items,
		Subtotal:    *resp.Subtotal,
		Total:       *resp.Subtotal,
		Currency:    pctx.Currency,
		BillingTerm: pctx.Term,
		Source:      PathRemote,
	}
	if resp.Total != nil {
		agg.Total = *resp.Total
	}
	for _, item := range items {
		if !priced(resp.Items, item) {
			agg.Unresolved = append(agg.Unresolved, unresolved(item, ReasonNotPriced))
		}
	}
	return agg, nil
}

func priced(lines []pricing.LineItemEstimate, item pricing.Item) bool {
	for _, l := range lines {
		if l.ProductFamily == item.ProductFamily && l.PlanName == item.PlanName {
			return true
		}
	}
	return false
}

// Coordinator tries Primary and answers from Fallback on any failure, so callers
// always get an aggregate of the same shape.
type Coordinator struct {
	Primary  Estimator
	Fallback Estimator
	Logger   zerolog.Logger
}

// Estimate implements Estimator and never returns an error.
func (c Coordinator) Estimate(ctx context.Context, req Request) (Aggregate, error) {
	if c.Primary != nil {
		agg, err := c.Primary.Estimate(ctx, req)
		if err == nil {
			obs.CountEstimate(string(agg.Source), "ok")
			return agg, nil
		}
		reason := FailureReason(err)
		obs.CountEstimateFallback(reason)
		c.Logger.Warn().Err(err).Str("reason", reason).Int("items", len(req.Items)).Msg("estimate_remote_failed")
	}

	if c.Fallback == nil {
		obs.CountEstimate(string(PathEmpty), "fallback")
		return Zero(req), nil
	}
	agg, err := c.Fallback.Estimate(ctx, req)
	if err != nil {
		c.Logger.Error().Err(err).Msg("estimate_fallback_failed")
		agg = Zero(req)
	}
	result := "ok"
	if c.Primary != nil {
		result = "fallback"
	}
	obs.CountEstimate(string(agg.Source), result)
	return agg, nil
}

// FailureReason classifies an estimator error for metrics and logs.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, resilience.ErrOpenCircuit):
		return "breaker_open"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, backend.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, backend.ErrUnexpectedStatus):
		return "status"
	case resilience.Transient(err):
		return "transient"
	default:
		return "error"
	}
}
