package selection

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/nitro-storefront/internal/estimate"
	"github.com/noah-isme/nitro-storefront/internal/obs"
	"github.com/noah-isme/nitro-storefront/internal/pricing"
)

// Surface is the selection state owned by one page (calculator, cart,
// checkout). Every mutation recomputes the estimate synchronously with the
// local estimator; Refresh asks the authoritative estimator and applies the
// answer only if no mutation happened meanwhile and the surface is still open.
type Surface struct {
	mu         sync.Mutex
	selections []Selection
	currency   string
	term       pricing.BillingTerm
	estimate   estimate.Aggregate
	seq        uint64
	closed     bool

	local    estimate.Estimator
	remote   estimate.Estimator
	catalogs CatalogFetcher
	onChange func(estimate.Aggregate)
	logger   zerolog.Logger
}

// CatalogFetcher loads the catalog for a currency into the store the local
// estimator reads. catalog.Service satisfies it.
type CatalogFetcher interface {
	Fetch(ctx context.Context, currency string) pricing.Catalog
}

// SurfaceConfig wires a Surface.
type SurfaceConfig struct {
	// Local prices mutations synchronously. Required.
	Local estimate.Estimator
	// Remote serves Refresh; when nil Refresh uses Local.
	Remote estimate.Estimator
	// Catalogs is asked for a new catalog on every currency change. When nil
	// the cached catalog stays and estimates keep its currency.
	Catalogs CatalogFetcher
	Currency string
	Term     pricing.BillingTerm
	// OnChange is called with every applied estimate, outside the lock.
	OnChange func(estimate.Aggregate)
	Logger   zerolog.Logger
}

// NewSurface builds a surface seeded with cart.
func NewSurface(cfg SurfaceConfig, cart Cart) *Surface {
	term := cart.Term
	if term == "" {
		term = cfg.Term
	}
	s := &Surface{
		currency: pricing.NormalizeCurrency(cfg.Currency),
		term:     pricing.ParseTerm(string(term)),
		local:    cfg.Local,
		remote:   cfg.Remote,
		catalogs: cfg.Catalogs,
		onChange: cfg.OnChange,
		logger:   cfg.Logger,
	}
	if s.remote == nil {
		s.remote = cfg.Local
	}
	for _, sel := range cart.Selections {
		sel.Term = s.term
		s.selections = append(s.selections, Normalize(sel))
	}
	s.mu.Lock()
	agg := s.recomputeLocked()
	s.mu.Unlock()
	s.notify(agg)
	return s
}

// Set adds or replaces the selection for its family.
func (s *Surface) Set(sel Selection) estimate.Aggregate {
	return s.mutate(func() {
		sel.Term = s.term
		sel = Normalize(sel)
		for i := range s.selections {
			if s.selections[i].ProductFamily == sel.ProductFamily {
				s.selections[i] = sel
				return
			}
		}
		s.selections = append(s.selections, sel)
	})
}

// Remove drops the selection for family.
func (s *Surface) Remove(family string) estimate.Aggregate {
	return s.mutate(func() {
		kept := s.selections[:0]
		for _, sel := range s.selections {
			if sel.ProductFamily != family {
				kept = append(kept, sel)
			}
		}
		s.selections = kept
	})
}

// SetTerm switches every selection to term.
func (s *Surface) SetTerm(term pricing.BillingTerm) estimate.Aggregate {
	return s.mutate(func() {
		s.term = pricing.ParseTerm(string(term))
		for i := range s.selections {
			s.selections[i].Term = s.term
		}
	})
}

// SetCurrency switches the surface to currency and re-fetches the catalog for
// it. The estimate is recomputed once the fetch completes, unless another
// currency change or Close happened meanwhile; the store's ticket guard keeps
// the catalog of the last-issued fetch.
func (s *Surface) SetCurrency(ctx context.Context, currency string) estimate.Aggregate {
	currency = pricing.NormalizeCurrency(currency)
	s.mu.Lock()
	if s.closed {
		agg := s.estimate
		s.mu.Unlock()
		return agg
	}
	s.mu.Unlock()
	agg := s.mutate(func() {
		s.currency = currency
	})
	if s.catalogs == nil {
		return agg
	}

	s.catalogs.Fetch(ctx, currency)

	s.mu.Lock()
	if s.closed || s.currency != currency {
		current := s.estimate
		s.mu.Unlock()
		obs.CountStale("currency")
		return current
	}
	s.seq++
	agg = s.recomputeLocked()
	s.mu.Unlock()
	s.notify(agg)
	return agg
}

// Selections returns a copy of the current selections.
func (s *Surface) Selections() []Selection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Selection(nil), s.selections...)
}

// Cart returns the current state as a cart.
func (s *Surface) Cart() Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Cart{Selections: append([]Selection(nil), s.selections...), Term: s.term}
}

// Estimate returns the last applied estimate.
func (s *Surface) Estimate() estimate.Aggregate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.estimate
}

// Refresh asks the remote estimator for the current selections. It reports
// false when the answer was discarded because the state changed or the surface
// was closed while the call was in flight.
func (s *Surface) Refresh(ctx context.Context) (estimate.Aggregate, bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return estimate.Aggregate{}, false
	}
	seq := s.seq
	req := s.requestLocked()
	s.mu.Unlock()

	agg, err := s.remote.Estimate(ctx, req)

	s.mu.Lock()
	if s.closed || seq != s.seq {
		current := s.estimate
		s.mu.Unlock()
		obs.CountStale("estimate")
		s.logger.Debug().Uint64("seq", seq).Msg("estimate_response_discarded")
		return current, false
	}
	if err != nil {
		current := s.estimate
		s.mu.Unlock()
		s.logger.Warn().Err(err).Msg("estimate_refresh_failed")
		return current, false
	}
	s.estimate = agg
	s.mu.Unlock()
	s.notify(agg)
	return agg, true
}

// Close tears the surface down. Later mutations are ignored and in-flight
// refreshes are discarded.
func (s *Surface) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *Surface) mutate(apply func()) estimate.Aggregate {
	s.mu.Lock()
	if s.closed {
		agg := s.estimate
		s.mu.Unlock()
		return agg
	}
	apply()
	s.seq++
	agg := s.recomputeLocked()
	s.mu.Unlock()
	s.notify(agg)
	return agg
}

func (s *Surface) requestLocked() estimate.Request {
	items := make([]pricing.Item, 0, len(s.selections))
	for _, sel := range s.selections {
		if sel.Selected() {
			items = append(items, sel.Item())
		}
	}
	return estimate.Request{Items: items, Currency: s.currency, Term: s.term}
}

func (s *Surface) recomputeLocked() estimate.Aggregate {
	req := s.requestLocked()
	agg, err := s.local.Estimate(context.Background(), req)
	if err != nil {
		s.logger.Warn().Err(err).Msg("estimate_local_failed")
		agg = estimate.Zero(req)
	}
	s.estimate = agg
	return agg
}

func (s *Surface) notify(agg estimate.Aggregate) {
	if s.onChange != nil {
		s.onChange(agg)
	}
}
