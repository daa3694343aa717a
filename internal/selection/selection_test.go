package selection_test

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nitro-storefront/internal/pricing"
	"github.com/noah-isme/nitro-storefront/internal/selection"
)

func TestNormalizeCoercesOutOfRangeValues(t *testing.T) {
	got := selection.Normalize(selection.Selection{
		ProductFamily: selection.FamilySign,
		PlanName:      "Plus",
		Seats:         0,
		Packages:      -3,
		APICalls:      -1,
		Term:          "monthly",
	})
	require.Equal(t, 1, got.Seats)
	require.Zero(t, got.Packages)
	require.Zero(t, got.APICalls)
	require.Equal(t, pricing.TermOneYear, got.Term)
}

func TestFamilyKeyRemovesFirstSpaceOnly(t *testing.T) {
	require.Equal(t, "nitropdf", selection.FamilyKey("Nitro PDF"))
	require.Equal(t, "nitrosign", selection.FamilyKey("Nitro Sign"))
	require.Equal(t, "nitropdf pro", selection.FamilyKey("Nitro PDF Pro"))
}

func TestParseQueryLegacyForm(t *testing.T) {
	values, err := url.ParseQuery("product=Nitro+Sign&plan=Enterprise&seats=4&packages=900&apiCalls=12&term=3year&buyNow=true")
	require.NoError(t, err)

	cart := selection.ParseQuery(values)
	require.Equal(t, pricing.TermThreeYear, cart.Term)
	require.True(t, cart.BuyNow)
	require.False(t, cart.FromCalculator)
	require.True(t, cart.SalesContactRequired())
	require.Equal(t, []selection.Selection{{
		ProductFamily: selection.FamilySign,
		PlanName:      "Enterprise",
		Seats:         4,
		Packages:      900,
		APICalls:      12,
		Term:          pricing.TermThreeYear,
	}}, cart.Selections)
}

func TestParseQueryPrefixedForm(t *testing.T) {
	values, err := url.ParseQuery("fromCalculator=true&term=1year&nitropdf_plan=Plus&nitropdf_seats=12" +
		"&nitrosign_plan=Standard&nitrosign_packages=50&seats=3")
	require.NoError(t, err)

	cart := selection.ParseQuery(values)
	require.True(t, cart.FromCalculator)
	require.False(t, cart.SalesContactRequired())
	require.Len(t, cart.Selections, 2)

	pdf, ok := cart.Find(selection.FamilyPDF)
	require.True(t, ok)
	require.Equal(t, "Plus", pdf.PlanName)
	require.Equal(t, 12, pdf.Seats)

	sign, ok := cart.Find(selection.FamilySign)
	require.True(t, ok)
	require.Equal(t, 3, sign.Seats, "falls back to the unprefixed value")
	require.Equal(t, 50, sign.Packages)
	require.Len(t, cart.Items(), 2)
}

func TestParseQueryBadIntegersTakeDefaults(t *testing.T) {
	values := url.Values{}
	values.Set("nitrosign_plan", "Standard")
	values.Set("nitrosign_seats", "-2")
	values.Set("nitrosign_packages", "lots")
	values.Set("term", "5year")

	cart := selection.ParseQuery(values)
	require.Len(t, cart.Selections, 1)
	require.Equal(t, 1, cart.Selections[0].Seats)
	require.Zero(t, cart.Selections[0].Packages)
	require.Equal(t, pricing.TermOneYear, cart.Term)
}

func TestParseQueryWithoutPlansIsEmpty(t *testing.T) {
	cart := selection.ParseQuery(url.Values{"seats": {"4"}})
	require.Empty(t, cart.Selections)
	require.Empty(t, cart.Items())
}

func TestEncodeQueryRoundTripsThroughParse(t *testing.T) {
	cart := selection.Cart{
		Term: pricing.TermOneYear,
		Selections: []selection.Selection{
			{ProductFamily: selection.FamilyPDF, PlanName: "Standard", Seats: 5, Packages: 7, Term: pricing.TermOneYear},
			{ProductFamily: selection.FamilySign, PlanName: "Enterprise", Seats: 2, APICalls: 30, Term: pricing.TermOneYear},
		},
	}
	values := selection.EncodeQuery(cart)

	require.Equal(t, "true", values.Get("fromCalculator"))
	require.Equal(t, "5", values.Get("nitropdf_seats"))
	require.Empty(t, values.Get("nitropdf_packages"), "add-ons are emitted for Nitro Sign only")
	require.Empty(t, values.Get("nitrosign_packages"), "zero quantities are omitted")
	require.Equal(t, "30", values.Get("nitrosign_apiCalls"))

	parsed := selection.ParseQuery(values)
	require.True(t, parsed.FromCalculator)
	sign, ok := parsed.Find(selection.FamilySign)
	require.True(t, ok)
	require.Equal(t, cart.Selections[1], sign)
}

func TestEncodeLegacy(t *testing.T) {
	values := selection.EncodeLegacy(selection.Selection{
		ProductFamily: selection.FamilyPDF,
		PlanName:      "Plus",
		Seats:         3,
		Packages:      10,
		Term:          pricing.TermThreeYear,
	})
	require.Equal(t, url.Values{
		"product": {"Nitro PDF"},
		"plan":    {"Plus"},
		"term":    {"3year"},
		"seats":   {"3"},
	}, values)

	parsed := selection.ParseQuery(values)
	require.Len(t, parsed.Selections, 1)
	require.Equal(t, selection.FamilyPDF, parsed.Selections[0].ProductFamily)
}
