package catalog

import (
	"net/http"
	"time"

	"github.com/noah-isme/nitro-storefront/internal/backend"
	"github.com/noah-isme/nitro-storefront/internal/common"
)

// Handler exposes the pricing catalog endpoint.
type Handler struct {
	source *Source
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Source *Source
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{source: cfg.Source}
}

// Pricing handles GET /api/pricing?currency=CODE. The body follows the pricing
// contract directly, without the data envelope.
func (h *Handler) Pricing(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog source not configured", nil)
		return
	}
	cat, err := h.source.Load(r.Context(), r.URL.Query().Get("currency"))
	if err != nil {
		writeError(w, err)
		return
	}
	updated := ""
	if !cat.LastUpdated.IsZero() {
		updated = cat.LastUpdated.UTC().Format(time.RFC3339)
	}
	common.JSON(w, http.StatusOK, backend.PricingResponse{
		ProductFamilies:     cat.ProductFamilies,
		SupportedCurrencies: cat.SupportedCurrencies,
		LastUpdated:         updated,
	})
}

// Currencies handles GET /api/pricing/currencies.
func (h *Handler) Currencies(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog source not configured", nil)
		return
	}
	common.Data(w, h.source.Currencies())
}

func writeError(w http.ResponseWriter, err error) {
	common.WriteError(w, err, "failed to load catalog")
}
