package pricing

import (
	"math"

	"github.com/samber/lo"
)

// DefaultFreePackagesPerSeat is the allotment Nitro Sign plans include per seat.
const DefaultFreePackagesPerSeat = 200

// PackageBreakdown splits a requested package count into included and billable parts.
type PackageBreakdown struct {
	FreePackages        int `json:"freePackages"`
	ExtraPackages       int `json:"extraPackages"`
	TotalPackages       int `json:"totalPackages"`
	FreePackagesPerSeat int `json:"freePackagesPerSeat"`
}

// Packages computes the breakdown for display. A non-positive seat count includes
// nothing, so every requested package is extra.
func Packages(seats, requested, freePerSeat int) PackageBreakdown {
	free := Allotment(seats, freePerSeat)
	return PackageBreakdown{
		FreePackages:        free,
		ExtraPackages:       lo.Max([]int{0, requested - free}),
		TotalPackages:       requested,
		FreePackagesPerSeat: freePerSeat,
	}
}

// Allotment is the number of packages seats include. It is never negative and
// saturates at math.MaxInt instead of overflowing.
func Allotment(seats, freePerSeat int) int {
	if seats <= 0 || freePerSeat <= 0 {
		return 0
	}
	if seats > math.MaxInt/freePerSeat {
		return math.MaxInt
	}
	return seats * freePerSeat
}

// PlanPackages is Packages using the plan's allotment, falling back to the default.
func PlanPackages(plan Plan, seats, requested int) PackageBreakdown {
	per := DefaultFreePackagesPerSeat
	if plan.FreePackagesPerSeat != nil {
		per = *plan.FreePackagesPerSeat
	}
	return Packages(seats, requested, per)
}

// MaxSeats is the largest MinSeats across every plan and term of the family,
// or 10000 when the family defines no tiers.
func MaxSeats(family ProductFamily) int {
	largest := 0
	for _, p := range family.Plans {
		for _, t := range append(append([]RampPricing{}, p.OneYearPricing...), p.ThreeYearPricing...) {
			if t.MinSeats > largest {
				largest = t.MinSeats
			}
		}
	}
	if largest == 0 {
		return 10000
	}
	return largest
}
