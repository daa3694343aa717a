package selection

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/noah-isme/nitro-storefront/internal/common"
	"github.com/noah-isme/nitro-storefront/internal/pricing"
)

// Query parameter names.
const (
	ParamProduct        = "product"
	ParamPlan           = "plan"
	ParamSeats          = "seats"
	ParamPackages       = "packages"
	ParamAPICalls       = "apiCalls"
	ParamTerm           = "term"
	ParamBuyNow         = "buyNow"
	ParamFromCalculator = "fromCalculator"
)

// ParseQuery reads a cart from URL parameters. Both the legacy single-product
// form (product=Nitro PDF&plan=...&seats=...) and the prefixed multi-product
// form (nitropdf_plan=...&nitrosign_seats=...) are accepted; the legacy form
// wins for a family when its product value names that family. Prefixed
// quantities fall back to the unprefixed ones. Integers are read from their
// leading digits ("3.5" is 3), missing or negative ones take their defaults,
// larger ones are capped at pricing.MaxQuantity, and every selection is normalized.
func ParseQuery(values url.Values) Cart {
	term := pricing.ParseTerm(values.Get(ParamTerm))
	cart := Cart{
		Term:           term,
		BuyNow:         values.Get(ParamBuyNow) == "true",
		FromCalculator: values.Get(ParamFromCalculator) == "true",
	}
	product := values.Get(ParamProduct)
	for _, family := range KnownFamilies {
		var (
			plan   string
			prefix string
		)
		if product != "" && values.Get(ParamPlan) != "" && strings.Contains(product, legacyMarker(family)) {
			plan = values.Get(ParamPlan)
		} else if p := values.Get(FamilyKey(family) + "_" + ParamPlan); p != "" {
			plan = p
			prefix = FamilyKey(family) + "_"
		}
		if plan == "" {
			continue
		}
		sel := Selection{
			ProductFamily: family,
			PlanName:      plan,
			Seats:         intParam(values, prefix, ParamSeats, 1),
			Packages:      intParam(values, prefix, ParamPackages, 0),
			APICalls:      intParam(values, prefix, ParamAPICalls, 0),
			Term:          term,
		}
		cart.Selections = append(cart.Selections, Normalize(sel))
	}
	return cart
}

// legacyMarker is the substring a legacy product value carries for family.
func legacyMarker(family string) string {
	return strings.TrimSpace(strings.TrimPrefix(family, "Nitro"))
}

func intParam(values url.Values, prefix, name string, def int) int {
	raw := ""
	if prefix != "" {
		raw = values.Get(prefix + name)
	}
	if raw == "" {
		raw = values.Get(name)
	}
	return common.QuantityParam(raw, def, pricing.MaxQuantity)
}

// EncodeQuery renders a cart in the prefixed multi-product form. Packages and
// API calls are emitted for metered families only, and only when positive.
func EncodeQuery(cart Cart) url.Values {
	values := url.Values{}
	values.Set(ParamTerm, string(pricing.ParseTerm(string(cart.Term))))
	values.Set(ParamFromCalculator, "true")
	if cart.BuyNow {
		values.Set(ParamBuyNow, "true")
	}
	for _, s := range cart.Selections {
		if !s.Selected() {
			continue
		}
		key := FamilyKey(s.ProductFamily) + "_"
		values.Set(key+ParamPlan, s.PlanName)
		values.Set(key+ParamSeats, strconv.Itoa(s.Seats))
		if meteredFamily(s.ProductFamily) {
			if s.Packages > 0 {
				values.Set(key+ParamPackages, strconv.Itoa(s.Packages))
			}
			if s.APICalls > 0 {
				values.Set(key+ParamAPICalls, strconv.Itoa(s.APICalls))
			}
		}
	}
	return values
}

// EncodeLegacy renders one selection in the single-product form.
func EncodeLegacy(s Selection) url.Values {
	values := url.Values{}
	values.Set(ParamProduct, s.ProductFamily)
	values.Set(ParamPlan, s.PlanName)
	values.Set(ParamTerm, string(pricing.ParseTerm(string(s.Term))))
	values.Set(ParamSeats, strconv.Itoa(s.Seats))
	if meteredFamily(s.ProductFamily) {
		if s.Packages > 0 {
			values.Set(ParamPackages, strconv.Itoa(s.Packages))
		}
		if s.APICalls > 0 {
			values.Set(ParamAPICalls, strconv.Itoa(s.APICalls))
		}
	}
	return values
}
