// Package estimate prices a set of selections into a cart estimate, either on
// the backend or locally over the cached catalog.
package estimate

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/nitro-storefront/internal/pricing"
)

// Path records which estimator produced an aggregate.
type Path string

const (
	PathRemote Path = "remote"
	PathLocal  Path = "local"
	PathEmpty  Path = "empty"
)

// Request is a set of selections priced under one currency and term.
type Request struct {
	Items    []pricing.Item
	Currency string
	Term     pricing.BillingTerm
}

// Context returns the pricing context of the request with defaults applied.
func (r Request) Context() pricing.Context {
	return pricing.Context{Currency: pricing.NormalizeCurrency(r.Currency), Term: pricing.ParseTerm(string(r.Term))}
}

// Unresolved reasons.
const (
	ReasonFamilyNotFound = "family_not_found"
	ReasonPlanNotFound   = "plan_not_found"
	ReasonNotPriced      = "not_priced"
)

// UnresolvedItem is a selection that contributed nothing because it could not
// be priced.
type UnresolvedItem struct {
	ProductFamily string `json:"productFamily"`
	PlanName      string `json:"planName"`
	Reason        string `json:"reason"`
}

// Aggregate is the priced cart. Total equals Subtotal; tax is added at checkout.
type Aggregate struct {
	Items       []pricing.LineItemEstimate `json:"items"`
	Subtotal    float64                    `json:"subtotal"`
	Total       float64                    `json:"total"`
	Currency    string                     `json:"currency"`
	BillingTerm pricing.BillingTerm        `json:"billingTerm"`
	Unresolved  []UnresolvedItem           `json:"unresolved,omitempty"`
	Source      Path                       `json:"source"`
}

// Zero is the empty aggregate returned when nothing can be priced.
func Zero(req Request) Aggregate {
	pctx := req.Context()
	return Aggregate{
		Items:       []pricing.LineItemEstimate{},
		Currency:    pctx.Currency,
		BillingTerm: pctx.Term,
		Source:      PathEmpty,
	}
}

// Calculate prices items against families. Items without a plan name are
// ignored; items whose family or plan is unknown are left out of the totals and
// reported in Unresolved.
func Calculate(items []pricing.Item, families []pricing.ProductFamily, pctx pricing.Context) Aggregate {
	agg := Aggregate{
		Items:       make([]pricing.LineItemEstimate, 0, len(items)),
		Currency:    pricing.NormalizeCurrency(pctx.Currency),
		BillingTerm: pricing.ParseTerm(string(pctx.Term)),
		Source:      PathLocal,
	}
	subtotal := decimal.Zero
	for _, item := range items {
		if strings.TrimSpace(item.PlanName) == "" {
			continue
		}
		family, ok := pricing.FindFamily(families, item.ProductFamily)
		if !ok {
			agg.Unresolved = append(agg.Unresolved, unresolved(item, ReasonFamilyNotFound))
			continue
		}
		plan, ok := pricing.FindPlan(family, item.PlanName)
		if !ok {
			agg.Unresolved = append(agg.Unresolved, unresolved(item, ReasonPlanNotFound))
			continue
		}
		line := pricing.PriceLineItem(family.Name, plan, item.Quantities(), agg.BillingTerm)
		agg.Items = append(agg.Items, line)
		subtotal = subtotal.Add(pricing.Amount(line.TotalPrice))
	}
	agg.Subtotal = subtotal.InexactFloat64()
	agg.Total = agg.Subtotal
	return agg
}

func unresolved(item pricing.Item, reason string) UnresolvedItem {
	return UnresolvedItem{ProductFamily: item.ProductFamily, PlanName: item.PlanName, Reason: reason}
}

// priceable drops items without a plan name.
func priceable(items []pricing.Item) []pricing.Item {
	out := make([]pricing.Item, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.PlanName) != "" {
			out = append(out, item)
		}
	}
	return out
}
