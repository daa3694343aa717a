package backend

import (
	"encoding/json"

	"github.com/noah-isme/nitro-storefront/internal/billing"
	"github.com/noah-isme/nitro-storefront/internal/pricing"
)

// PricingResponse is the body of GET /pricing.
type PricingResponse struct {
	ProductFamilies     []pricing.ProductFamily `json:"productFamilies"`
	SupportedCurrencies []string                `json:"supportedCurrencies"`
	LastUpdated         string                  `json:"lastUpdated"`
}

// EstimateRequest is the body of POST /estimate.
type EstimateRequest struct {
	Items       []pricing.Item `json:"items" validate:"required,dive"`
	Currency    string         `json:"currency" validate:"omitempty,len=3,alpha"`
	BillingTerm string         `json:"billingTerm" validate:"omitempty,oneof=1year 3year"`
}

// EstimateResponse is the body returned by POST /estimate. Totals are pointers so
// a response missing them can be told apart from a zero estimate.
type EstimateResponse struct {
	Items       []pricing.LineItemEstimate `json:"items"`
	Subtotal    *float64                   `json:"subtotal"`
	Total       *float64                   `json:"total"`
	Currency    string                     `json:"currency"`
	BillingTerm string                     `json:"billingTerm"`
}

// Money is an amount in a currency's major unit.
type Money struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// TaxAddress is the customer address used for tax quotes.
type TaxAddress struct {
	Line1   string `json:"line1" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state"`
	Zip     string `json:"zip" validate:"required"`
	Country string `json:"country" validate:"required,len=2"`
}

// TaxRequest is the body of POST /taxes.
type TaxRequest struct {
	Items           []pricing.Item `json:"items"`
	CustomerAddress TaxAddress     `json:"customerAddress"`
	Currency        string         `json:"currency"`
}

// TaxResponse is the body returned by POST /taxes. The breakdown and per-line
// detail are passed through untouched.
type TaxResponse struct {
	TotalTax     *Money          `json:"totalTax"`
	TaxBreakdown json.RawMessage `json:"taxBreakdown,omitempty"`
	LineItems    json.RawMessage `json:"lineItems,omitempty"`
}

// Customer identifies the buyer at checkout.
type Customer struct {
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Company   string `json:"company"`
}

// BillingAddress is the invoice address sent with a checkout.
type BillingAddress struct {
	FirstName  string `json:"firstName" validate:"required"`
	LastName   string `json:"lastName" validate:"required"`
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode" validate:"required"`
	Country    string `json:"country" validate:"required,len=2"`
	Company    string `json:"company"`
}

// CheckoutRequest is the body of POST /checkout.
type CheckoutRequest struct {
	Customer        Customer           `json:"customer"`
	BillingAddress  BillingAddress     `json:"billingAddress"`
	Items           []billing.LineItem `json:"items" validate:"required,min=1,dive"`
	Currency        string             `json:"currency" validate:"required,len=3"`
	BillingTerm     string             `json:"billingTerm" validate:"required,oneof=1year 3year"`
	PaymentMethodID string             `json:"paymentMethodId,omitempty" validate:"required_if=BillingTerm 1year"`
}

// CheckoutResponse is the body returned by POST /checkout.
type CheckoutResponse struct {
	Success              bool   `json:"success"`
	SalesContactRequired bool   `json:"salesContactRequired,omitempty"`
	Message              string `json:"message,omitempty"`
	Error                string `json:"error,omitempty"`
	CustomerID           string `json:"customerId,omitempty"`
	SubscriptionID       string `json:"subscriptionId,omitempty"`
	InvoiceID            string `json:"invoiceId,omitempty"`
	ConfirmationNumber   string `json:"confirmationNumber,omitempty"`
	PortalSessionURL     string `json:"portalSessionUrl,omitempty"`
	PortalSessionID      string `json:"portalSessionId,omitempty"`
}
