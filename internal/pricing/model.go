package pricing

import (
	"strings"
	"time"
)

// BillingTerm is the subscription commitment length.
type BillingTerm string

const (
	// TermOneYear selects the one-year tier table.
	TermOneYear BillingTerm = "1year"
	// TermThreeYear selects the three-year tier table.
	TermThreeYear BillingTerm = "3year"
)

// Valid reports whether the term is one of the known commitment lengths.
func (t BillingTerm) Valid() bool {
	return t == TermOneYear || t == TermThreeYear
}

// ParseTerm converts raw input into a BillingTerm, defaulting to one year.
func ParseTerm(raw string) BillingTerm {
	term := BillingTerm(strings.TrimSpace(raw))
	if term.Valid() {
		return term
	}
	return TermOneYear
}

// DefaultCurrency is the currency of the bundled catalog.
const DefaultCurrency = "USD"

// DefaultSupportedCurrencies is advertised when the backend does not report its own list.
var DefaultSupportedCurrencies = []string{"USD", "EUR", "GBP", "CAD", "AUD"}

// RampPricing is a volume band: for seat counts >= MinSeats the per-seat Price applies.
type RampPricing struct {
	MinSeats int     `json:"minSeats"`
	Price    float64 `json:"price"`
}

// Plan is a purchasable tier within a product family.
type Plan struct {
	Name                string        `json:"name"`
	Description         string        `json:"description"`
	Features            []string      `json:"features"`
	OneYearPricing      []RampPricing `json:"oneYearPricing"`
	ThreeYearPricing    []RampPricing `json:"threeYearPricing"`
	PackagePrice        *float64      `json:"packagePrice,omitempty"`
	APIPrice            *float64      `json:"apiPrice,omitempty"`
	FreePackagesPerSeat *int          `json:"freePackagesPerSeat,omitempty"`
}

// Tiers returns the tier table that applies to the term.
func (p Plan) Tiers(term BillingTerm) []RampPricing {
	if term == TermThreeYear {
		return p.ThreeYearPricing
	}
	return p.OneYearPricing
}

// ProductFamily groups the plans of one product line.
type ProductFamily struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Plans       []Plan `json:"plans"`
}

// Source identifies where a catalog snapshot came from.
type Source string

const (
	SourceRemote Source = "remote"
	SourceStatic Source = "static"
	SourceEmpty  Source = "empty"
)

// Catalog is a priced product catalog for one currency.
type Catalog struct {
	ProductFamilies     []ProductFamily `json:"productFamilies"`
	SupportedCurrencies []string        `json:"supportedCurrencies"`
	LastUpdated         time.Time       `json:"lastUpdated"`
	Currency            string          `json:"currency,omitempty"`
	Source              Source          `json:"-"`
}

// Context carries the currency and billing term a calculation runs under.
type Context struct {
	Currency string
	Term     BillingTerm
}

// NormalizeCurrency upper-cases a currency code, defaulting to USD.
func NormalizeCurrency(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return DefaultCurrency
	}
	return code
}

// FindFamily returns the first family with the given name.
func FindFamily(families []ProductFamily, name string) (ProductFamily, bool) {
	for _, f := range families {
		if f.Name == name {
			return f, true
		}
	}
	return ProductFamily{}, false
}

// FindPlan returns the first plan in the family with the given name.
func FindPlan(family ProductFamily, name string) (Plan, bool) {
	for _, p := range family.Plans {
		if p.Name == name {
			return p, true
		}
	}
	return Plan{}, false
}

// Lookup resolves a plan by family and plan name.
func Lookup(families []ProductFamily, familyName, planName string) (Plan, bool) {
	family, ok := FindFamily(families, familyName)
	if !ok {
		return Plan{}, false
	}
	return FindPlan(family, planName)
}

// Float returns a pointer to v, for optional catalog rates.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v, for optional catalog allotments.
func Int(v int) *int { return &v }

// MaxQuantity bounds seats, packages and API calls accepted from clients.
const MaxQuantity = 100_000_000

// Item is one family/plan selection with its metered quantities, as sent to
// the estimate and checkout contracts.
type Item struct {
	ProductFamily string `json:"productFamily" validate:"required"`
	PlanName      string `json:"planName"`
	Seats         int    `json:"seats" validate:"gte=0,lte=100000000"`
	Packages      int    `json:"packages,omitempty" validate:"gte=0,lte=100000000"`
	APICalls      int    `json:"apiCalls,omitempty" validate:"gte=0,lte=100000000"`
}

// Quantities returns the metered part of the item.
func (i Item) Quantities() Quantities {
	return Quantities{Seats: i.Seats, Packages: i.Packages, APICalls: i.APICalls}
}
