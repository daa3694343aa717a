// Package cli implements the storefront command line: catalog lookups, cart
// quotes, cart links and checkout against the storefront backend.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/noah-isme/nitro-storefront/internal/backend"
	"github.com/noah-isme/nitro-storefront/internal/catalog"
	"github.com/noah-isme/nitro-storefront/internal/checkout"
	"github.com/noah-isme/nitro-storefront/internal/config"
	"github.com/noah-isme/nitro-storefront/internal/estimate"
	"github.com/noah-isme/nitro-storefront/internal/resilience"
)

// Backend is everything the commands need from the storefront API.
type Backend interface {
	catalog.Remote
	estimate.RemoteClient
	checkout.Backend
	Health(ctx context.Context) bool
}

// Env carries the shared state commands run with.
type Env struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Out     io.Writer
	Backend Backend
}

// ErrNoBackend is returned by commands that cannot work offline.
var ErrNoBackend = errors.New("STOREFRONT_API_URL is not configured")

// NewRootCommand builds the storefront command tree around env. A nil
// env.Backend is built from the configuration when STOREFRONT_API_URL is set.
func NewRootCommand(env *Env) *cobra.Command {
	var currency string
	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Price Nitro carts, build cart links and submit checkouts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if env.Config == nil {
				cfg, err := config.Load()
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				env.Config = cfg
			}
			if env.Out == nil {
				env.Out = cmd.OutOrStdout()
			}
			if env.Backend == nil && env.Config.StorefrontAPIURL != "" {
				client, err := NewBackend(env.Config, env.Logger)
				if err != nil {
					return err
				}
				env.Backend = client
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&currency, "currency", "", "ISO currency code (default DEFAULT_CURRENCY)")

	currencyOf := func() string {
		if currency != "" {
			return currency
		}
		return env.Config.DefaultCurrency
	}

	root.AddCommand(
		newCatalogCommand(env, currencyOf),
		newQuoteCommand(env, currencyOf),
		newLinkCommand(env),
		newCheckoutCommand(env, currencyOf),
		newHealthCommand(env),
	)
	return root
}

// NewBackend builds the resilient backend client from configuration.
func NewBackend(cfg *config.Config, logger zerolog.Logger) (*backend.Client, error) {
	breaker := resilience.NewBreaker(cfg.BreakerMinRequests, cfg.BreakerFailureRatio, cfg.BreakerOpenFor).
		WithTarget("storefront-api").
		WithLogger(logger)
	return backend.NewClient(backend.Config{
		BaseURL: cfg.StorefrontAPIURL,
		HTTP: resilience.HTTPClient{
			Client:      backend.NewHTTPClient(0),
			Breaker:     breaker,
			Target:      "storefront-api",
			BaseBackoff: cfg.HTTPClientBackoff,
			MaxAttempts: cfg.HTTPClientMaxAttempts,
			Jitter:      0.2,
			Timeout:     cfg.HTTPClientTimeout,
		},
		Logger: logger.With().Str("component", "backend").Logger(),
	})
}

// parseCartArg accepts a full cart URL or a bare query string.
func parseCartArg(arg string) (url.Values, error) {
	arg = strings.TrimSpace(arg)
	if i := strings.IndexByte(arg, '?'); i >= 0 {
		arg = arg[i+1:]
	}
	values, err := url.ParseQuery(arg)
	if err != nil {
		return nil, fmt.Errorf("parse cart query: %w", err)
	}
	return values, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
