package checkout_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nitro-storefront/internal/backend"
	"github.com/noah-isme/nitro-storefront/internal/checkout"
	"github.com/noah-isme/nitro-storefront/internal/common"
	"github.com/noah-isme/nitro-storefront/internal/estimate"
	"github.com/noah-isme/nitro-storefront/internal/obs"
	"github.com/noah-isme/nitro-storefront/internal/pricing"
	"github.com/noah-isme/nitro-storefront/internal/resilience"
	"github.com/noah-isme/nitro-storefront/internal/selection"
)

func init() {
	obs.MustRegisterDomainMetrics("test", prometheus.NewRegistry())
}

type fakeBackend struct {
	mu        sync.Mutex
	taxResp   backend.TaxResponse
	taxErr    error
	taxReq    backend.TaxRequest
	taxCalls  int
	responses []checkoutReply
	keys      []string
	requests  []backend.CheckoutRequest
}

type checkoutReply struct {
	resp backend.CheckoutResponse
	err  error
}

func (f *fakeBackend) Taxes(_ context.Context, req backend.TaxRequest) (backend.TaxResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taxCalls++
	f.taxReq = req
	return f.taxResp, f.taxErr
}

func (f *fakeBackend) Checkout(_ context.Context, req backend.CheckoutRequest, key string) (backend.CheckoutResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	f.requests = append(f.requests, req)
	idx := len(f.keys) - 1
	if idx >= len(f.responses) {
		idx = len(f.responses) - 1
	}
	return f.responses[idx].resp, f.responses[idx].err
}

func newService(t *testing.T, fb *fakeBackend, attempts int) *checkout.Service {
	t.Helper()
	svc, err := checkout.NewService(checkout.Config{
		Backend:     fb,
		MaxAttempts: attempts,
		BaseBackoff: time.Millisecond,
		NewKey:      func() string { return "key-1" },
	})
	require.NoError(t, err)
	return svc
}

func oneYearCart() selection.Cart {
	sel := selection.New(selection.FamilySign, "Nitro Sign Enterprise")
	sel.Seats = 5
	sel.Packages = 250
	return selection.Cart{Term: pricing.TermOneYear, Selections: []selection.Selection{sel}}
}

func buyer() checkout.Details {
	return checkout.Details{
		Name:  "Ada Lovelace King",
		Email: "ada@example.com",
		Address: checkout.Address{
			Line1:      "1 Analytical St",
			City:       "London",
			State:      "LDN",
			PostalCode: "N1 9GU",
			Country:    "gb",
		},
		PaymentMethodID: "pm_123",
	}
}

func TestSplitName(t *testing.T) {
	first, last := checkout.SplitName("  Grace   Brewster Hopper ")
	require.Equal(t, "Grace", first)
	require.Equal(t, "Brewster Hopper", last)

	first, last = checkout.SplitName("Cher")
	require.Equal(t, "Cher", first)
	require.Equal(t, "Cher", last)
}

func TestBuildMapsCartAndDefaultsCountry(t *testing.T) {
	d := buyer()
	d.Address.Country = ""
	req, err := checkout.Builder{}.Build(oneYearCart(), "eur", d)
	require.NoError(t, err)

	require.Equal(t, "Ada", req.Customer.FirstName)
	require.Equal(t, "Lovelace King", req.BillingAddress.LastName)
	require.Equal(t, "US", req.BillingAddress.Country)
	require.Equal(t, "EUR", req.Currency)
	require.Equal(t, "1year", req.BillingTerm)
	require.Len(t, req.Items, 2)
	require.Equal(t, "Nitro_SIGN_ENT-EUR-1_YEAR", req.Items[0].ItemPriceID)
	require.Equal(t, "Nitro_SIGN_PACKAGES-EUR-1_YEAR", req.Items[1].ItemPriceID)
}

func TestBuildRejectsIncompleteDetails(t *testing.T) {
	d := buyer()
	d.Email = "not-an-email"
	d.PaymentMethodID = ""
	d.Address.City = ""

	_, err := checkout.Builder{}.Build(oneYearCart(), "USD", d)
	var appErr *common.AppError
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, http.StatusUnprocessableEntity, appErr.HTTPStatus)
	fields, ok := appErr.Details.(map[string]string)
	require.True(t, ok)
	require.Equal(t, "email", fields["CheckoutRequest.Customer.Email"])
	require.Equal(t, "required_if", fields["CheckoutRequest.PaymentMethodID"])
	require.Equal(t, "required", fields["CheckoutRequest.BillingAddress.City"])
}

func TestBuildRejectsEmptyCart(t *testing.T) {
	_, err := checkout.Builder{}.Build(selection.Cart{}, "USD", buyer())
	require.Error(t, err)
}

func TestSubmitThreeYearNeedsSales(t *testing.T) {
	fb := &fakeBackend{}
	cart := oneYearCart()
	cart.Term = pricing.TermThreeYear

	res, err := newService(t, fb, 0).Submit(context.Background(), cart, "USD", checkout.Details{})
	require.NoError(t, err)
	require.True(t, res.SalesContactRequired)
	require.False(t, res.Success)
	require.Empty(t, fb.keys, "backend is not called")
}

func TestSubmitRetriesTransientFailuresWithSameKey(t *testing.T) {
	fb := &fakeBackend{responses: []checkoutReply{
		{err: resilience.ErrUpstreamStatus},
		{err: context.DeadlineExceeded},
		{resp: backend.CheckoutResponse{Success: true, SubscriptionID: "sub_1", CustomerID: "cus_1"}},
	}}
	before := testutil.ToFloat64(obs.CheckoutAttemptsTotal.WithLabelValues("retry"))
	cart := oneYearCart()

	res, err := newService(t, fb, 0).Submit(context.Background(), cart, "USD", buyer())
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "sub_1", res.SubscriptionID)
	require.Equal(t, 3, res.Attempts)
	require.Equal(t, []string{"key-1", "key-1", "key-1"}, fb.keys)
	require.Equal(t, before+2, testutil.ToFloat64(obs.CheckoutAttemptsTotal.WithLabelValues("retry")))
	require.Equal(t, oneYearCart(), cart, "cart is left untouched")
}

func TestSubmitGivesUpAfterMaxAttempts(t *testing.T) {
	fb := &fakeBackend{responses: []checkoutReply{{err: resilience.ErrOpenCircuit}}}
	_, err := newService(t, fb, 2).Submit(context.Background(), oneYearCart(), "USD", buyer())

	var se *checkout.SubmitError
	require.True(t, errors.As(err, &se))
	require.True(t, se.Retryable)
	require.Equal(t, 2, se.Attempts)
	require.ErrorIs(t, err, resilience.ErrOpenCircuit)
}

func TestSubmitAttemptsAreCapped(t *testing.T) {
	fb := &fakeBackend{responses: []checkoutReply{{err: resilience.ErrUpstreamStatus}}}
	svc := newService(t, fb, 50)
	require.Equal(t, checkout.MaxAttemptsCap, svc.MaxAttempts())

	_, err := svc.Submit(context.Background(), oneYearCart(), "USD", buyer())
	require.Error(t, err)
	require.Len(t, fb.keys, checkout.MaxAttemptsCap)
}

func TestSubmitDoesNotRetryPermanentFailures(t *testing.T) {
	fb := &fakeBackend{responses: []checkoutReply{{err: &backend.StatusError{Op: "checkout", Status: 400, Message: "bad card"}}}}
	_, err := newService(t, fb, 0).Submit(context.Background(), oneYearCart(), "USD", buyer())

	var se *checkout.SubmitError
	require.True(t, errors.As(err, &se))
	require.False(t, se.Retryable)
	require.Equal(t, 1, se.Attempts)
	require.Len(t, fb.keys, 1)
}

func TestSubmitDeclined(t *testing.T) {
	fb := &fakeBackend{responses: []checkoutReply{{resp: backend.CheckoutResponse{Success: false, Error: "card declined"}}}}
	_, err := newService(t, fb, 0).Submit(context.Background(), oneYearCart(), "USD", buyer())
	require.ErrorIs(t, err, checkout.ErrDeclined)
	require.Contains(t, err.Error(), "card declined")
}

func TestSubmitInvalidDetailsIsNotRetryable(t *testing.T) {
	fb := &fakeBackend{}
	_, err := newService(t, fb, 0).Submit(context.Background(), oneYearCart(), "USD", checkout.Details{})
	var se *checkout.SubmitError
	require.True(t, errors.As(err, &se))
	require.False(t, se.Retryable)
	require.True(t, common.IsAppError(err))
	require.Empty(t, fb.keys)
}

func TestQuoteTax(t *testing.T) {
	agg := estimate.Aggregate{Subtotal: 100, Total: 100, Currency: "USD"}
	items := oneYearCart().Items()

	t.Run("adds tax", func(t *testing.T) {
		fb := &fakeBackend{taxResp: backend.TaxResponse{TotalTax: &backend.Money{Amount: 8.25, Currency: "USD"}}}
		q := newService(t, fb, 0).QuoteTax(context.Background(), agg, items, buyer().Address)
		require.True(t, q.Quoted)
		require.InDelta(t, 8.25, q.Tax, 1e-9)
		require.InDelta(t, 108.25, q.FinalTotal, 1e-9)
		require.Equal(t, "N1 9GU", fb.taxReq.CustomerAddress.Zip)
		require.Equal(t, "GB", fb.taxReq.CustomerAddress.Country)
		require.Equal(t, items, fb.taxReq.Items)
	})

	t.Run("failure means no tax", func(t *testing.T) {
		fb := &fakeBackend{taxErr: errors.New("timeout")}
		q := newService(t, fb, 0).QuoteTax(context.Background(), agg, items, buyer().Address)
		require.False(t, q.Quoted)
		require.Zero(t, q.Tax)
		require.Equal(t, 100.0, q.FinalTotal)
	})

	t.Run("incomplete address skips the call", func(t *testing.T) {
		fb := &fakeBackend{}
		addr := buyer().Address
		addr.State = ""
		q := newService(t, fb, 0).QuoteTax(context.Background(), agg, items, addr)
		require.Zero(t, fb.taxCalls)
		require.Equal(t, 100.0, q.FinalTotal)
	})

	t.Run("zero subtotal skips the call", func(t *testing.T) {
		fb := &fakeBackend{}
		q := newService(t, fb, 0).QuoteTax(context.Background(), estimate.Aggregate{Currency: "USD"}, nil, buyer().Address)
		require.Zero(t, fb.taxCalls)
		require.Zero(t, q.FinalTotal)
	})
}
