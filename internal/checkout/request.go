package checkout

import (
	"strings"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/nitro-storefront/internal/backend"
	"github.com/noah-isme/nitro-storefront/internal/billing"
	"github.com/noah-isme/nitro-storefront/internal/common"
	"github.com/noah-isme/nitro-storefront/internal/pricing"
	"github.com/noah-isme/nitro-storefront/internal/selection"
)

// DefaultCountry is used when the billing address has no country.
const DefaultCountry = "US"

// Address is the billing address collected at checkout.
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Details is what the buyer typed on the checkout form.
type Details struct {
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	Company         string  `json:"company"`
	Address         Address `json:"address"`
	PaymentMethodID string  `json:"paymentMethodId"`
}

// SplitName splits a full name into first and last name. A single word is used
// for both.
func SplitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], parts[0]
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}

// TaxAddress converts the billing address into the tax quote shape.
func (a Address) TaxAddress() backend.TaxAddress {
	return backend.TaxAddress{
		Line1:   strings.TrimSpace(a.Line1),
		City:    strings.TrimSpace(a.City),
		State:   strings.TrimSpace(a.State),
		Zip:     strings.TrimSpace(a.PostalCode),
		Country: country(a.Country),
	}
}

func country(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return DefaultCountry
	}
	return code
}

// Builder assembles checkout requests from a cart and the buyer's details.
type Builder struct {
	Mapper   billing.Mapper
	Validate *validator.Validate
}

// Build maps the cart to billing line items and validates the result. Invalid
// input yields a VALIDATION_FAILED AppError whose details name the failing
// fields.
func (b Builder) Build(cart selection.Cart, currency string, d Details) (backend.CheckoutRequest, error) {
	v := b.Validate
	if v == nil {
		v = validator.New(validator.WithRequiredStructEnabled())
	}
	term := pricing.ParseTerm(string(cart.Term))
	currency = pricing.NormalizeCurrency(currency)
	first, last := SplitName(d.Name)
	req := backend.CheckoutRequest{
		Customer: backend.Customer{
			FirstName: first,
			LastName:  last,
			Email:     strings.TrimSpace(d.Email),
			Company:   strings.TrimSpace(d.Company),
		},
		BillingAddress: backend.BillingAddress{
			FirstName:  first,
			LastName:   last,
			Line1:      strings.TrimSpace(d.Address.Line1),
			Line2:      strings.TrimSpace(d.Address.Line2),
			City:       strings.TrimSpace(d.Address.City),
			State:      strings.TrimSpace(d.Address.State),
			PostalCode: strings.TrimSpace(d.Address.PostalCode),
			Country:    country(d.Address.Country),
			Company:    strings.TrimSpace(d.Company),
		},
		Items:           b.Mapper.Map(cart.Items(), currency, term),
		Currency:        currency,
		BillingTerm:     string(term),
		PaymentMethodID: strings.TrimSpace(d.PaymentMethodID),
	}
	if err := v.Struct(req); err != nil {
		return backend.CheckoutRequest{}, invalid(err)
	}
	return req, nil
}

func invalid(err error) error {
	return common.Invalid("checkout details are incomplete", common.FieldErrors(err), err)
}
