package recommend

import (
	"context"
	"encoding/json"
	"net/http"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/nitro-storefront/internal/backend"
	"github.com/noah-isme/nitro-storefront/internal/common"
	"github.com/noah-isme/nitro-storefront/internal/pricing"
)

// Catalogs yields the catalog suggestions are priced against.
type Catalogs interface {
	Catalog(ctx context.Context, currency string) (pricing.Catalog, error)
}

// Handler serves cart suggestions.
type Handler struct {
	Catalogs  Catalogs
	Validator *validator.Validate
}

// Suggest handles POST /api/recommendations. It accepts the estimate request body.
func (h Handler) Suggest(w http.ResponseWriter, r *http.Request) {
	if h.Catalogs == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog source not configured", nil)
		return
	}
	var req backend.EstimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_JSON", "request body must be valid JSON", nil)
		return
	}
	v := h.Validator
	if v == nil {
		v = validator.New(validator.WithRequiredStructEnabled())
	}
	if err := v.Struct(req); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "recommendation request is invalid", common.FieldErrors(err))
		return
	}
	cat, err := h.Catalogs.Catalog(r.Context(), req.Currency)
	if err != nil {
		common.WriteError(w, err, "failed to load catalog")
		return
	}
	common.Data(w, For(cat.ProductFamilies, req.Items, pricing.ParseTerm(req.BillingTerm)))
}
