package catalog

import "github.com/noah-isme/nitro-storefront/internal/pricing"

// SetStatic swaps the bundled catalog loader.
func (s *Service) SetStatic(fn func() (pricing.Catalog, error)) {
	s.static = fn
}
