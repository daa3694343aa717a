package recommend_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nitro-storefront/internal/catalog"
	"github.com/noah-isme/nitro-storefront/internal/pricing"
	"github.com/noah-isme/nitro-storefront/internal/recommend"
)

func bundled(t *testing.T) []pricing.ProductFamily {
	t.Helper()
	cat, err := catalog.Static()
	require.NoError(t, err)
	return cat.ProductFamilies
}

func TestTier(t *testing.T) {
	require.Equal(t, recommend.TierPlus, recommend.Tier("Nitro Sign Plus"))
	require.Equal(t, recommend.TierEnterprise, recommend.Tier("Nitro Sign Enterprise"))
	require.Empty(t, recommend.Tier("Nitro Sign Business"))
}

func TestCrossSellsMatchTier(t *testing.T) {
	families := bundled(t)
	got := recommend.CrossSells(families, []pricing.Item{
		{ProductFamily: "Nitro PDF", PlanName: "Nitro PDF Plus", Seats: 12},
	}, pricing.TermOneYear)

	require.Len(t, got, 1)
	require.Equal(t, "Nitro Sign", got[0].ProductFamily)
	require.Equal(t, "Nitro Sign Plus", got[0].PlanName)
	require.InDelta(t, 179.99, got[0].Price, 1e-9, "priced at one seat")
}

func TestCrossSellsSkipFamiliesAlreadyInCart(t *testing.T) {
	got := recommend.CrossSells(bundled(t), []pricing.Item{
		{ProductFamily: "Nitro PDF", PlanName: "Nitro PDF Standard", Seats: 1},
		{ProductFamily: "Nitro Sign", PlanName: "Nitro Sign Standard", Seats: 1},
	}, pricing.TermOneYear)
	require.Empty(t, got)
}

func TestCrossSellsNeedMatchingPlan(t *testing.T) {
	got := recommend.CrossSells(bundled(t), []pricing.Item{
		{ProductFamily: "Nitro Sign", PlanName: "Nitro Sign Enterprise", Seats: 1},
	}, pricing.TermOneYear)
	require.Empty(t, got, "the bundled catalog has no PDF Enterprise plan")
}

func TestUpsellsClimbOneTier(t *testing.T) {
	got := recommend.Upsells(bundled(t), []pricing.Item{
		{ProductFamily: "Nitro Sign", PlanName: "Nitro Sign Standard", Seats: 2},
		{ProductFamily: "Nitro Sign", PlanName: "Nitro Sign Enterprise", Seats: 2},
		{ProductFamily: "Nitro PDF", PlanName: "Nitro PDF Plus", Seats: 2},
	}, pricing.TermOneYear)

	require.Equal(t, []recommend.Upsell{{
		ProductFamily: "Nitro Sign",
		CurrentPlan:   "Nitro Sign Standard",
		SuggestedPlan: "Nitro Sign Plus",
		PriceIncrease: 120,
	}}, got)
}

func TestUpsellsSkipCheaperUpgrades(t *testing.T) {
	families := []pricing.ProductFamily{{
		Name: "Nitro PDF",
		Plans: []pricing.Plan{
			{Name: "Nitro PDF Standard", OneYearPricing: []pricing.RampPricing{{MinSeats: 1, Price: 10}}},
			{Name: "Nitro PDF Plus", OneYearPricing: []pricing.RampPricing{{MinSeats: 1, Price: 10}}},
		},
	}}
	got := recommend.Upsells(families, []pricing.Item{
		{ProductFamily: "Nitro PDF", PlanName: "Nitro PDF Standard", Seats: 3},
	}, pricing.TermOneYear)
	require.Empty(t, got)
}

func TestAddOnsFollowPlanPricing(t *testing.T) {
	got := recommend.AddOns(bundled(t), []pricing.Item{
		{ProductFamily: "Nitro PDF", PlanName: "Nitro PDF Standard", Seats: 1},
		{ProductFamily: "Nitro Sign", PlanName: "Nitro Sign Enterprise", Seats: 1, Packages: 300, APICalls: 20},
	})
	require.Equal(t, []recommend.AddOn{
		{ProductFamily: "Nitro Sign", PlanName: "Nitro Sign Enterprise", Type: recommend.AddOnPackages, UnitPrice: 1, CurrentQuantity: 300},
		{ProductFamily: "Nitro Sign", PlanName: "Nitro Sign Enterprise", Type: recommend.AddOnAPICalls, UnitPrice: 0.05, CurrentQuantity: 20},
	}, got)
}

func TestForCombinesSuggestions(t *testing.T) {
	s := recommend.For(bundled(t), []pricing.Item{
		{ProductFamily: "Nitro Sign", PlanName: "Nitro Sign Standard", Seats: 1},
	}, pricing.TermThreeYear)
	require.Len(t, s.CrossSells, 1)
	require.Equal(t, "Nitro PDF Standard", s.CrossSells[0].PlanName)
	require.Len(t, s.Upsells, 1)
	require.Len(t, s.AddOns, 1)
}
