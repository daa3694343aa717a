package cli

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/noah-isme/nitro-storefront/internal/catalog"
	"github.com/noah-isme/nitro-storefront/internal/checkout"
	"github.com/noah-isme/nitro-storefront/internal/estimate"
	"github.com/noah-isme/nitro-storefront/internal/pricing"
	"github.com/noah-isme/nitro-storefront/internal/recommend"
	"github.com/noah-isme/nitro-storefront/internal/selection"
)

// session is a loaded catalog plus the estimators priced against it.
type session struct {
	catalogs *catalog.Service
	catalog  pricing.Catalog
	local    estimate.Estimator
	remote   estimate.Estimator
}

func openSession(ctx context.Context, env *Env, currency string) (*session, error) {
	svc, err := catalog.NewService(catalog.ServiceConfig{
		Remote: env.Backend,
		Store:  catalog.NewStore(),
		Logger: env.Logger,
	})
	if err != nil {
		return nil, err
	}
	s := &session{catalogs: svc, catalog: svc.Fetch(ctx, currency)}
	local := estimate.LocalEstimator{Catalogs: svc.Store(), Logger: env.Logger}
	s.local = local
	if env.Backend != nil {
		s.remote = estimate.Coordinator{
			Primary:  estimate.RemoteEstimator{Client: env.Backend},
			Fallback: local,
			Logger:   env.Logger,
		}
	}
	return s, nil
}

// surface prices cart the way a cart page does: locally first, then refreshed
// from the backend when one is configured.
func (s *session) surface(ctx context.Context, env *Env, cart selection.Cart, currency string) estimate.Aggregate {
	surf := selection.NewSurface(selection.SurfaceConfig{
		Local:    s.local,
		Remote:   s.remote,
		Catalogs: s.catalogs,
		Currency: currency,
		Term:     cart.Term,
		Logger:   env.Logger,
	}, cart)
	defer surf.Close()
	if s.remote == nil {
		return surf.Estimate()
	}
	agg, _ := surf.Refresh(ctx)
	return agg
}

func newCatalogCommand(env *Env, currencyOf func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Print the product catalog and where it was loaded from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context(), env, currencyOf())
			if err != nil {
				return err
			}
			type familyView struct {
				pricing.ProductFamily
				MaxSeats int `json:"maxSeats"`
			}
			families := make([]familyView, 0, len(s.catalog.ProductFamilies))
			for _, f := range s.catalog.ProductFamilies {
				families = append(families, familyView{ProductFamily: f, MaxSeats: pricing.MaxSeats(f)})
			}
			return writeJSON(env.Out, map[string]any{
				"source":              s.catalog.Source,
				"currency":            s.catalog.Currency,
				"supportedCurrencies": s.catalogs.SupportedCurrencies(),
				"productFamilies":     families,
			})
		},
	}
}

type quoteView struct {
	Selections           []selection.Selection `json:"selections"`
	BillingTerm          pricing.BillingTerm   `json:"billingTerm"`
	BuyNow               bool                  `json:"buyNow"`
	SalesContactRequired bool                  `json:"salesContactRequired"`
	CatalogSource        pricing.Source        `json:"catalogSource"`
	Estimate             estimate.Aggregate    `json:"estimate"`
	Suggestions          recommend.Suggestions `json:"suggestions"`
}

func newQuoteCommand(env *Env, currencyOf func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "quote <cart-url-or-query>",
		Short: "Price a cart link and suggest additions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := parseCartArg(args[0])
			if err != nil {
				return err
			}
			cart := selection.ParseQuery(values)
			s, err := openSession(cmd.Context(), env, currencyOf())
			if err != nil {
				return err
			}
			return writeJSON(env.Out, quoteView{
				Selections:           cart.Selections,
				BillingTerm:          cart.Term,
				BuyNow:               cart.BuyNow,
				SalesContactRequired: cart.SalesContactRequired(),
				CatalogSource:        s.catalog.Source,
				Estimate:             s.surface(cmd.Context(), env, cart, currencyOf()),
				Suggestions:          recommend.For(s.catalog.ProductFamilies, cart.Items(), cart.Term),
			})
		},
	}
}

func newLinkCommand(env *Env) *cobra.Command {
	var (
		base                string
		pdfPlan, signPlan   string
		pdfSeats, signSeats int
		packages, apiCalls  int
		term                string
		buyNow, legacy      bool
	)
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Build a cart link for the given plans",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cart := selection.Cart{Term: pricing.ParseTerm(term), BuyNow: buyNow, FromCalculator: true}
			if pdfPlan != "" {
				sel := selection.New(selection.FamilyPDF, pdfPlan)
				sel.Seats = pdfSeats
				cart.Selections = append(cart.Selections, selection.Normalize(sel))
			}
			if signPlan != "" {
				sel := selection.New(selection.FamilySign, signPlan)
				sel.Seats, sel.Packages, sel.APICalls = signSeats, packages, apiCalls
				cart.Selections = append(cart.Selections, selection.Normalize(sel))
			}
			if len(cart.Selections) == 0 {
				return errors.New("at least one of --pdf-plan or --sign-plan is required")
			}

			var values url.Values
			if legacy {
				if len(cart.Selections) != 1 {
					return errors.New("--legacy links carry exactly one plan")
				}
				sel := cart.Selections[0]
				sel.Term = cart.Term
				values = selection.EncodeLegacy(sel)
			} else {
				values = selection.EncodeQuery(cart)
			}
			_, err := fmt.Fprintln(env.Out, strings.TrimRight(base, "?")+"?"+values.Encode())
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&base, "base", "/cart", "cart page URL the query is appended to")
	f.StringVar(&pdfPlan, "pdf-plan", "", "Nitro PDF plan name")
	f.IntVar(&pdfSeats, "pdf-seats", 1, "Nitro PDF seats")
	f.StringVar(&signPlan, "sign-plan", "", "Nitro Sign plan name")
	f.IntVar(&signSeats, "sign-seats", 1, "Nitro Sign seats")
	f.IntVar(&packages, "packages", 0, "Nitro Sign envelope packages")
	f.IntVar(&apiCalls, "api-calls", 0, "Nitro Sign API calls")
	f.StringVar(&term, "term", string(pricing.TermOneYear), "billing term: 1year or 3year")
	f.BoolVar(&buyNow, "buy-now", false, "skip the cart review step")
	f.BoolVar(&legacy, "legacy", false, "emit the single-product link form")
	return cmd
}

type checkoutView struct {
	Estimate estimate.Aggregate `json:"estimate"`
	Tax      checkout.TaxQuote  `json:"tax"`
	Result   checkout.Result    `json:"result"`
}

func newCheckoutCommand(env *Env, currencyOf func() string) *cobra.Command {
	var d checkout.Details
	cmd := &cobra.Command{
		Use:   "checkout <cart-url-or-query>",
		Short: "Quote tax and submit a checkout for a cart link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if env.Backend == nil {
				return ErrNoBackend
			}
			values, err := parseCartArg(args[0])
			if err != nil {
				return err
			}
			cart := selection.ParseQuery(values)
			currency := currencyOf()

			s, err := openSession(cmd.Context(), env, currency)
			if err != nil {
				return err
			}
			svc, err := checkout.NewService(checkout.Config{
				Backend:     env.Backend,
				MaxAttempts: env.Config.CheckoutMaxAttempts,
				BaseBackoff: env.Config.HTTPClientBackoff,
				Logger:      env.Logger,
			})
			if err != nil {
				return err
			}

			view := checkoutView{Estimate: s.surface(cmd.Context(), env, cart, currency)}
			view.Tax = svc.QuoteTax(cmd.Context(), view.Estimate, cart.Items(), d.Address)
			view.Result, err = svc.Submit(cmd.Context(), cart, currency, d)
			if err != nil {
				var se *checkout.SubmitError
				if errors.As(err, &se) && se.Retryable {
					return fmt.Errorf("checkout failed after %d attempts, try again: %w", se.Attempts, err)
				}
				return err
			}
			return writeJSON(env.Out, view)
		},
	}
	f := cmd.Flags()
	f.StringVar(&d.Name, "name", "", "billing name")
	f.StringVar(&d.Email, "email", "", "billing email")
	f.StringVar(&d.Company, "company", "", "company")
	f.StringVar(&d.Address.Line1, "line1", "", "address line 1")
	f.StringVar(&d.Address.Line2, "line2", "", "address line 2")
	f.StringVar(&d.Address.City, "city", "", "city")
	f.StringVar(&d.Address.State, "state", "", "state or region")
	f.StringVar(&d.Address.PostalCode, "zip", "", "postal code")
	f.StringVar(&d.Address.Country, "country", checkout.DefaultCountry, "ISO country code")
	f.StringVar(&d.PaymentMethodID, "payment-method", "", "tokenised payment method id")
	return cmd
}

func newHealthCommand(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the storefront backend answers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if env.Backend == nil {
				return ErrNoBackend
			}
			if !env.Backend.Health(cmd.Context()) {
				return errors.New("backend unavailable")
			}
			_, err := fmt.Fprintln(env.Out, "ok")
			return err
		},
	}
}
