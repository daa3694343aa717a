// Package billing maps priced selections onto the subscription provider's
// item price IDs.
package billing

import (
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/nitro-storefront/internal/obs"
	"github.com/noah-isme/nitro-storefront/internal/pricing"
)

// LineItem is one checkout line as the billing backend expects it.
type LineItem struct {
	ItemPriceID string `json:"itemPriceId" validate:"required"`
	Quantity    int    `json:"quantity" validate:"gt=0"`
}

type planKey struct {
	family string
	plan   string
}

// priceFamilies maps catalog plans onto the provider's product codes. Short
// plan names from older carts map to the same codes.
var priceFamilies = map[planKey]string{
	{"Nitro PDF", "Nitro PDF Standard"}:     "Nitro_PDF_STD",
	{"Nitro PDF", "Nitro PDF Plus"}:         "Nitro_PDF_PLUS",
	{"Nitro PDF", "Nitro PDF Enterprise"}:   "Nitro_PDF_ENT",
	{"Nitro Sign", "Nitro Sign Standard"}:   "Nitro_SIGN_STD",
	{"Nitro Sign", "Nitro Sign Plus"}:       "Nitro_SIGN_PLUS",
	{"Nitro Sign", "Nitro Sign Enterprise"}: "Nitro_SIGN_ENT",

	{"Nitro PDF", "PDF Standard"}:     "Nitro_PDF_STD",
	{"Nitro PDF", "PDF Plus"}:         "Nitro_PDF_PLUS",
	{"Nitro PDF", "PDF Enterprise"}:   "Nitro_PDF_ENT",
	{"Nitro Sign", "Sign Standard"}:   "Nitro_SIGN_STD",
	{"Nitro Sign", "Sign Plus"}:       "Nitro_SIGN_PLUS",
	{"Nitro Sign", "Sign Enterprise"}: "Nitro_SIGN_ENT",
}

const (
	packagesCode = "Nitro_SIGN_PACKAGES"
	apiCallsCode = "Nitro_SIGN_API"
)

// TermSuffix renders the term the way price IDs spell it.
func TermSuffix(term pricing.BillingTerm) string {
	if term == pricing.TermThreeYear {
		return "3_YEAR"
	}
	return "1_YEAR"
}

func priceID(code, currency string, term pricing.BillingTerm) string {
	return code + "-" + pricing.NormalizeCurrency(currency) + "-" + TermSuffix(term)
}

// LookupPriceID returns the explicit price ID of a plan and whether one exists.
func LookupPriceID(family, plan, currency string, term pricing.BillingTerm) (string, bool) {
	code, ok := priceFamilies[planKey{family, plan}]
	if !ok {
		return "", false
	}
	return priceID(code, currency, term), true
}

// DerivedPriceID is the fallback for plans without an explicit mapping: the plan
// name lower-cased with every space turned into a hyphen. It carries neither
// currency nor term.
func DerivedPriceID(plan string) string {
	return strings.ReplaceAll(strings.ToLower(plan), " ", "-")
}

// Mapper turns selections into billing line items.
type Mapper struct {
	Logger zerolog.Logger
}

// Map builds the line items for items billed in currency over term. Seat lines
// need a plan and at least one seat; add-on lines appear only when their
// quantity is positive. Unknown plans never block checkout: they get a derived
// ID, a warning and a metric.
func (m Mapper) Map(items []pricing.Item, currency string, term pricing.BillingTerm) []LineItem {
	out := make([]LineItem, 0, len(items))
	for _, item := range items {
		if strings.TrimSpace(item.PlanName) == "" || item.Seats <= 0 {
			continue
		}
		id, ok := LookupPriceID(item.ProductFamily, item.PlanName, currency, term)
		if !ok {
			id = DerivedPriceID(item.PlanName)
			obs.CountUnmappedPlan(item.ProductFamily)
			m.Logger.Warn().
				Str("family", item.ProductFamily).
				Str("plan", item.PlanName).
				Str("item_price_id", id).
				Msg("billing_plan_unmapped")
		}
		out = append(out, LineItem{ItemPriceID: id, Quantity: item.Seats})
		if item.Packages > 0 {
			out = append(out, LineItem{ItemPriceID: priceID(packagesCode, currency, term), Quantity: item.Packages})
		}
		if item.APICalls > 0 {
			out = append(out, LineItem{ItemPriceID: priceID(apiCallsCode, currency, term), Quantity: item.APICalls})
		}
	}
	return out
}

// MapSelectionToBillingItems maps items with a silent logger.
func MapSelectionToBillingItems(items []pricing.Item, currency string, term pricing.BillingTerm) []LineItem {
	return Mapper{Logger: zerolog.Nop()}.Map(items, currency, term)
}

