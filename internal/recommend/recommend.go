// Package recommend suggests cart additions: the companion product family at
// the same tier, the next tier up within a family, and metered add-ons.
package recommend

import (
	"strings"

	"github.com/samber/lo"

	"github.com/noah-isme/nitro-storefront/internal/pricing"
	"github.com/noah-isme/nitro-storefront/internal/selection"
)

// Plan tiers from lowest to highest.
const (
	TierStandard   = "Standard"
	TierPlus       = "Plus"
	TierEnterprise = "Enterprise"
)

var ladder = []string{TierStandard, TierPlus, TierEnterprise}

var companions = map[string]string{
	selection.FamilyPDF:  selection.FamilySign,
	selection.FamilySign: selection.FamilyPDF,
}

// CrossSell proposes the companion family of a cart item.
type CrossSell struct {
	ProductFamily string  `json:"productFamily"`
	PlanName      string  `json:"planName"`
	Reason        string  `json:"reason"`
	Price         float64 `json:"price"`
}

// Upsell proposes the next tier for a cart item at the same quantities.
type Upsell struct {
	ProductFamily string  `json:"productFamily"`
	CurrentPlan   string  `json:"currentPlan"`
	SuggestedPlan string  `json:"suggestedPlan"`
	PriceIncrease float64 `json:"priceIncrease"`
}

// AddOn kinds.
const (
	AddOnPackages = "packages"
	AddOnAPICalls = "apiCalls"
)

// AddOn is a metered extra a plan can be bought with.
type AddOn struct {
	ProductFamily   string  `json:"productFamily"`
	PlanName        string  `json:"planName"`
	Type            string  `json:"type"`
	UnitPrice       float64 `json:"unitPrice"`
	CurrentQuantity int     `json:"currentQuantity"`
}

// Suggestions groups everything proposed for one cart.
type Suggestions struct {
	CrossSells []CrossSell `json:"crossSells"`
	Upsells    []Upsell    `json:"upsells"`
	AddOns     []AddOn     `json:"addOns"`
}

// Tier returns the tier named in a plan name, or "" when none is.
func Tier(planName string) string {
	tier, _ := lo.Find(ladder, func(t string) bool { return strings.Contains(planName, t) })
	return tier
}

// nextTier returns the tier above tier.
func nextTier(tier string) (string, bool) {
	idx := lo.IndexOf(ladder, tier)
	if idx < 0 || idx == len(ladder)-1 {
		return "", false
	}
	return ladder[idx+1], true
}

func planAtTier(family pricing.ProductFamily, tier string) (pricing.Plan, bool) {
	return lo.Find(family.Plans, func(p pricing.Plan) bool { return Tier(p.Name) == tier })
}

// For computes every suggestion for items billed over term.
func For(families []pricing.ProductFamily, items []pricing.Item, term pricing.BillingTerm) Suggestions {
	return Suggestions{
		CrossSells: CrossSells(families, items, term),
		Upsells:    Upsells(families, items, term),
		AddOns:     AddOns(families, items),
	}
}

// CrossSells proposes, for each cart item, the other family's plan at the same
// tier when that family is not in the cart yet. Prices are for one seat.
func CrossSells(families []pricing.ProductFamily, items []pricing.Item, term pricing.BillingTerm) []CrossSell {
	inCart := lo.SliceToMap(items, func(i pricing.Item) (string, bool) { return i.ProductFamily, true })
	out := make([]CrossSell, 0, len(items))
	for _, item := range items {
		target, ok := companions[item.ProductFamily]
		if !ok || inCart[target] {
			continue
		}
		tier := Tier(item.PlanName)
		if tier == "" {
			continue
		}
		family, ok := pricing.FindFamily(families, target)
		if !ok {
			continue
		}
		plan, ok := planAtTier(family, tier)
		if !ok {
			continue
		}
		out = append(out, CrossSell{
			ProductFamily: target,
			PlanName:      plan.Name,
			Reason:        "Complete your document workflow with both PDF and eSignature capabilities",
			Price:         pricing.CalculateLineItemPrice(plan, 1, 0, 0, term),
		})
	}
	return lo.UniqBy(out, func(c CrossSell) string { return c.ProductFamily })
}

// Upsells proposes the next tier within the same family for each cart item,
// priced at the item's quantities, when that costs more than the current plan.
func Upsells(families []pricing.ProductFamily, items []pricing.Item, term pricing.BillingTerm) []Upsell {
	out := make([]Upsell, 0, len(items))
	for _, item := range items {
		family, ok := pricing.FindFamily(families, item.ProductFamily)
		if !ok {
			continue
		}
		current, ok := pricing.FindPlan(family, item.PlanName)
		if !ok {
			continue
		}
		next, ok := nextTier(Tier(current.Name))
		if !ok {
			continue
		}
		upgrade, ok := planAtTier(family, next)
		if !ok {
			continue
		}
		now := pricing.CalculateLineItemPrice(current, item.Seats, item.Packages, item.APICalls, term)
		then := pricing.CalculateLineItemPrice(upgrade, item.Seats, item.Packages, item.APICalls, term)
		increase := pricing.Sum(then, -now)
		if increase <= 0 {
			continue
		}
		out = append(out, Upsell{
			ProductFamily: family.Name,
			CurrentPlan:   current.Name,
			SuggestedPlan: upgrade.Name,
			PriceIncrease: increase,
		})
	}
	return out
}

// AddOns lists the metered extras each cart item's plan is priced for.
func AddOns(families []pricing.ProductFamily, items []pricing.Item) []AddOn {
	var out []AddOn
	for _, item := range items {
		plan, ok := pricing.Lookup(families, item.ProductFamily, item.PlanName)
		if !ok {
			continue
		}
		if plan.PackagePrice != nil {
			out = append(out, AddOn{
				ProductFamily:   item.ProductFamily,
				PlanName:        plan.Name,
				Type:            AddOnPackages,
				UnitPrice:       *plan.PackagePrice,
				CurrentQuantity: item.Packages,
			})
		}
		if plan.APIPrice != nil {
			out = append(out, AddOn{
				ProductFamily:   item.ProductFamily,
				PlanName:        plan.Name,
				Type:            AddOnAPICalls,
				UnitPrice:       *plan.APIPrice,
				CurrentQuantity: item.APICalls,
			})
		}
	}
	return out
}
