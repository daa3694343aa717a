// Package selection holds what a shopper picked: plans, quantities and term,
// how those picks travel between pages as URL parameters, and the per-surface
// state that keeps an estimate in step with them.
package selection

import (
	"strings"

	"github.com/noah-isme/nitro-storefront/internal/pricing"
)

// Known product families.
const (
	FamilyPDF  = "Nitro PDF"
	FamilySign = "Nitro Sign"
)

// KnownFamilies is the order families appear in links and carts.
var KnownFamilies = []string{FamilyPDF, FamilySign}

// Selection is one family/plan pick with its quantities and term.
type Selection struct {
	ProductFamily string              `json:"productFamily"`
	PlanName      string              `json:"planName"`
	Seats         int                 `json:"seats"`
	Packages      int                 `json:"packages"`
	APICalls      int                 `json:"apiCalls"`
	Term          pricing.BillingTerm `json:"billingTerm"`
}

// New returns a selection with the default quantities: one seat, no add-ons,
// one-year term.
func New(family, plan string) Selection {
	return Selection{ProductFamily: family, PlanName: plan, Seats: 1, Term: pricing.TermOneYear}
}

// Normalize coerces a selection into range: one to pricing.MaxQuantity seats,
// add-ons between zero and pricing.MaxQuantity, and a known term.
func Normalize(s Selection) Selection {
	s.Seats = min(max(s.Seats, 1), pricing.MaxQuantity)
	s.Packages = min(max(s.Packages, 0), pricing.MaxQuantity)
	s.APICalls = min(max(s.APICalls, 0), pricing.MaxQuantity)
	s.Term = pricing.ParseTerm(string(s.Term))
	return s
}

// Item converts the selection to its priced form.
func (s Selection) Item() pricing.Item {
	return pricing.Item{
		ProductFamily: s.ProductFamily,
		PlanName:      s.PlanName,
		Seats:         s.Seats,
		Packages:      s.Packages,
		APICalls:      s.APICalls,
	}
}

// Selected reports whether a plan was picked.
func (s Selection) Selected() bool {
	return strings.TrimSpace(s.PlanName) != ""
}

// Cart is the set of selections carried to the cart page. All selections share
// the cart's term.
type Cart struct {
	Selections     []Selection
	Term           pricing.BillingTerm
	BuyNow         bool
	FromCalculator bool
}

// Items returns the priced form of every selected plan.
func (c Cart) Items() []pricing.Item {
	out := make([]pricing.Item, 0, len(c.Selections))
	for _, s := range c.Selections {
		if s.Selected() {
			out = append(out, s.Item())
		}
	}
	return out
}

// SalesContactRequired reports whether the cart must go through sales instead
// of self-serve checkout. Three-year terms are sold by the sales team.
func (c Cart) SalesContactRequired() bool {
	return c.Term == pricing.TermThreeYear
}

// Find returns the selection for family.
func (c Cart) Find(family string) (Selection, bool) {
	for _, s := range c.Selections {
		if s.ProductFamily == family {
			return s, true
		}
	}
	return Selection{}, false
}

// FamilyKey is the URL prefix of a family: lower-cased with the first space
// removed ("Nitro PDF" -> "nitropdf").
func FamilyKey(family string) string {
	return strings.ToLower(strings.Replace(family, " ", "", 1))
}

// meteredFamily reports whether packages and API calls apply to family.
func meteredFamily(family string) bool {
	return family == FamilySign
}
