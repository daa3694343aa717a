// Package catalog loads the product catalog: on the storefront side from the
// backend with a bundled fallback, on the server side from catalog files behind
// a Redis cache.
package catalog

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/noah-isme/nitro-storefront/internal/obs"
	"github.com/noah-isme/nitro-storefront/internal/pricing"
)

// Remote fetches a live catalog.
type Remote interface {
	Pricing(ctx context.Context, currency string) (pricing.Catalog, error)
}

// Service fetches catalogs with fallback and keeps the latest one in its Store.
type Service struct {
	remote Remote
	store  *Store
	static func() (pricing.Catalog, error)
	logger zerolog.Logger
}

// ServiceConfig groups Service dependencies. Remote may be nil, in which case the
// bundled catalog is always used.
type ServiceConfig struct {
	Remote Remote
	Store  *Store
	Logger zerolog.Logger
}

// NewService validates the configuration.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("catalog: store is required")
	}
	return &Service{remote: cfg.Remote, store: cfg.Store, static: Static, logger: cfg.Logger}, nil
}

// Store exposes the snapshot store for synchronous lookups.
func (s *Service) Store() *Store {
	return s.store
}

// Fetch loads the catalog for currency and never fails: the backend answer is
// preferred, then the bundled catalog, then an empty one. The result is
// committed unless a later fetch already landed, in which case that newer
// snapshot is returned instead.
func (s *Service) Fetch(ctx context.Context, currency string) pricing.Catalog {
	ticket := s.store.Begin(currency)
	log := s.logger.With().Str("currency", ticket.Currency).Logger()

	cat, err := s.fetchRemote(ctx, ticket.Currency)
	if err != nil {
		log.Warn().Err(err).Msg("catalog_remote_failed")
		cat = s.fallback(log)
	}
	if verr := pricing.Validate(cat.ProductFamilies); verr != nil {
		log.Warn().Err(verr).Str("source", string(cat.Source)).Msg("catalog_validation_failed")
	}
	obs.CountCatalogFetch(string(cat.Source))

	if !s.store.Commit(ticket, cat) {
		obs.CountStale("catalog")
		log.Debug().Msg("catalog_response_superseded")
		if newer, ok := s.store.Snapshot(); ok {
			return newer
		}
	}
	return cat
}

// Reload re-fetches the currency last requested.
func (s *Service) Reload(ctx context.Context) pricing.Catalog {
	currency := s.store.Requested()
	if currency == "" {
		currency = pricing.DefaultCurrency
	}
	return s.Fetch(ctx, currency)
}

// SupportedCurrencies returns the cached catalog's currencies or the default list.
func (s *Service) SupportedCurrencies() []string {
	cat, ok := s.store.Snapshot()
	if !ok || len(cat.SupportedCurrencies) == 0 {
		return append([]string(nil), pricing.DefaultSupportedCurrencies...)
	}
	return cat.SupportedCurrencies
}

func (s *Service) fetchRemote(ctx context.Context, currency string) (pricing.Catalog, error) {
	if s.remote == nil {
		return pricing.Catalog{}, errors.New("catalog: no backend configured")
	}
	cat, err := s.remote.Pricing(ctx, currency)
	if err != nil {
		return pricing.Catalog{}, err
	}
	cat.Source = pricing.SourceRemote
	if cat.Currency == "" {
		cat.Currency = currency
	}
	return cat, nil
}

func (s *Service) fallback(log zerolog.Logger) pricing.Catalog {
	cat, err := s.static()
	if err != nil {
		log.Error().Err(err).Msg("catalog_static_unreadable")
		return Empty()
	}
	cat.SupportedCurrencies = append([]string(nil), pricing.DefaultSupportedCurrencies...)
	return cat
}
