package pricing

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/samber/lo"
)

// ErrInvalidCatalog wraps every catalog validation failure.
var ErrInvalidCatalog = errors.New("pricing: invalid catalog")

// Validate checks catalog data that arrives from outside the process. Unsorted tier
// tables are accepted; overlapping or negative data is not.
func Validate(families []ProductFamily) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidCatalog}, args...)...))
	}

	for _, name := range lo.FindDuplicates(lo.Map(families, func(f ProductFamily, _ int) string { return f.Name })) {
		add("duplicate product family %q", name)
	}
	for _, f := range families {
		if f.Name == "" {
			add("product family without name")
		}
		for _, name := range lo.FindDuplicates(lo.Map(f.Plans, func(p Plan, _ int) string { return p.Name })) {
			add("%s: duplicate plan %q", f.Name, name)
		}
		for _, p := range f.Plans {
			if p.Name == "" {
				add("%s: plan without name", f.Name)
			}
			errs = append(errs, validateTiers(f.Name, p.Name, "oneYearPricing", p.OneYearPricing)...)
			errs = append(errs, validateTiers(f.Name, p.Name, "threeYearPricing", p.ThreeYearPricing)...)
			if p.PackagePrice != nil && !validAmount(*p.PackagePrice) {
				add("%s/%s: packagePrice %v is negative or not finite", f.Name, p.Name, *p.PackagePrice)
			}
			if p.APIPrice != nil && !validAmount(*p.APIPrice) {
				add("%s/%s: apiPrice %v is negative or not finite", f.Name, p.Name, *p.APIPrice)
			}
			if p.FreePackagesPerSeat != nil && *p.FreePackagesPerSeat < 0 {
				add("%s/%s: negative freePackagesPerSeat", f.Name, p.Name)
			}
		}
	}
	return errors.Join(errs...)
}

func validateTiers(family, plan, table string, tiers []RampPricing) []error {
	var errs []error
	add := func(format string, args ...any) {
		prefix := []any{ErrInvalidCatalog, family, plan, table}
		errs = append(errs, fmt.Errorf("%w: %s/%s %s: "+format, append(prefix, args...)...))
	}
	if len(tiers) == 0 {
		add("no tiers")
		return errs
	}
	for _, t := range tiers {
		if t.MinSeats < 1 {
			add("minSeats %d below 1", t.MinSeats)
		}
		if !validAmount(t.Price) {
			add("price %v at minSeats %d is negative or not finite", t.Price, t.MinSeats)
		}
	}
	for _, dup := range lo.FindDuplicates(lo.Map(tiers, func(t RampPricing, _ int) int { return t.MinSeats })) {
		add("duplicate minSeats %d", dup)
	}

	// Catalog convention: per-seat price never rises with volume.
	sorted := append([]RampPricing(nil), tiers...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].MinSeats < sorted[j].MinSeats })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Price > sorted[i-1].Price {
			add("price rises from %v to %v at minSeats %d", sorted[i-1].Price, sorted[i].Price, sorted[i].MinSeats)
		}
	}
	return errs
}

func validAmount(v float64) bool {
	return v >= 0 && !math.IsInf(v, 1)
}
