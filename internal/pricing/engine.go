package pricing

import (
	"math"
	"strconv"

	"github.com/shopspring/decimal"
)

// Quantities is the metered selection priced for one plan.
type Quantities struct {
	Seats    int
	Packages int
	APICalls int
}

// LineItemEstimate is the priced breakdown of one family/plan selection.
type LineItemEstimate struct {
	ProductFamily    string  `json:"productFamily"`
	PlanName         string  `json:"planName"`
	Seats            int     `json:"seats"`
	BasePrice        float64 `json:"basePrice"`
	PackagesPrice    float64 `json:"packagesPrice"`
	APICallsPrice    float64 `json:"apiCallsPrice"`
	TotalPrice       float64 `json:"totalPrice"`
	AppliedTier      string  `json:"appliedTier"`
	IncludedPackages *int    `json:"includedPackages,omitempty"`
	ExtraPackages    *int    `json:"extraPackages,omitempty"`
}

// AddonCharges is the metered part of the line total.
func (e LineItemEstimate) AddonCharges() float64 {
	return Amount(e.PackagesPrice).Add(Amount(e.APICallsPrice)).InexactFloat64()
}

// UnknownTier labels a line item whose seat count matched no band.
const UnknownTier = "Unknown"

// ResolveBand returns the band with the largest MinSeats not exceeding seats.
// Input order is irrelevant; on equal MinSeats the earlier entry wins.
func ResolveBand(tiers []RampPricing, seats int) (RampPricing, bool) {
	var (
		best  RampPricing
		found bool
	)
	for _, t := range tiers {
		if t.MinSeats > seats {
			continue
		}
		if !found || t.MinSeats > best.MinSeats {
			best = t
			found = true
		}
	}
	return best, found
}

// ResolveTier returns the per-seat price for seats, or 0 when no band applies.
// A zero result means "no price defined", not "free".
func ResolveTier(tiers []RampPricing, seats int) float64 {
	band, ok := ResolveBand(tiers, seats)
	if !ok {
		return 0
	}
	return band.Price
}

// TierLabel renders the applied band the way the storefront displays it.
func TierLabel(band RampPricing, ok bool) string {
	if !ok {
		return UnknownTier
	}
	return "$" + strconv.FormatFloat(band.Price, 'f', -1, 64) + "/seat"
}

// VolumeTier returns the MinSeats of the applied band, or 0.
func VolumeTier(plan Plan, seats int, term BillingTerm) int {
	band, ok := ResolveBand(plan.Tiers(term), seats)
	if !ok {
		return 0
	}
	return band.MinSeats
}

// PriceLineItem computes the full breakdown for one plan selection.
func PriceLineItem(familyName string, plan Plan, q Quantities, term BillingTerm) LineItemEstimate {
	band, ok := ResolveBand(plan.Tiers(term), q.Seats)
	var unit decimal.Decimal
	if ok {
		unit = Amount(band.Price)
	}
	seats := decimal.NewFromInt(int64(q.Seats))
	base := seats.Mul(unit)

	est := LineItemEstimate{
		ProductFamily: familyName,
		PlanName:      plan.Name,
		Seats:         q.Seats,
		AppliedTier:   TierLabel(band, ok),
	}

	packages := decimal.Zero
	if plan.FreePackagesPerSeat != nil && plan.PackagePrice != nil {
		included := Allotment(q.Seats, *plan.FreePackagesPerSeat)
		extra := 0
		if q.Packages > included {
			extra = q.Packages - included
		}
		est.IncludedPackages = &included
		est.ExtraPackages = &extra
		packages = decimal.NewFromInt(int64(extra)).Mul(Amount(*plan.PackagePrice))
	}

	api := decimal.Zero
	if plan.APIPrice != nil && q.APICalls > 0 {
		api = decimal.NewFromInt(int64(q.APICalls)).Mul(Amount(*plan.APIPrice))
	}

	est.BasePrice = base.InexactFloat64()
	est.PackagesPrice = packages.InexactFloat64()
	est.APICallsPrice = api.InexactFloat64()
	est.TotalPrice = base.Add(packages).Add(api).InexactFloat64()
	return est
}

// CalculateLineItemPrice returns the total for one plan selection.
func CalculateLineItemPrice(plan Plan, seats, packages, apiCalls int, term BillingTerm) float64 {
	return PriceLineItem("", plan, Quantities{Seats: seats, Packages: packages, APICalls: apiCalls}, term).TotalPrice
}

// Sum adds amounts exactly before converting back to float64.
func Sum(amounts ...float64) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(Amount(a))
	}
	return total.InexactFloat64()
}

// Amount converts a catalog amount for exact arithmetic. NaN and infinities,
// which only a catalog built in code can carry, count as zero.
func Amount(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}
