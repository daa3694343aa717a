package estimate

import (
	"encoding/json"
	"net/http"

	validator "github.com/go-playground/validator/v10"

	"github.com/noah-isme/nitro-storefront/internal/backend"
	"github.com/noah-isme/nitro-storefront/internal/common"
	"github.com/noah-isme/nitro-storefront/internal/pricing"
)

// Handler serves the authoritative estimate endpoint.
type Handler struct {
	estimator Estimator
	validate  *validator.Validate
}

// HandlerConfig configures the Handler dependencies.
type HandlerConfig struct {
	Estimator Estimator
	Validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	v := cfg.Validator
	if v == nil {
		v = validator.New(validator.WithRequiredStructEnabled())
	}
	return &Handler{estimator: cfg.Estimator, validate: v}
}

// Estimate handles POST /api/estimate. The response follows the estimate
// contract directly, without the data envelope.
func (h *Handler) Estimate(w http.ResponseWriter, r *http.Request) {
	if h.estimator == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "estimator not configured", nil)
		return
	}
	var req backend.EstimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_JSON", "request body must be valid JSON", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		common.JSONError(w, http.StatusUnprocessableEntity, "VALIDATION_FAILED", "estimate request is invalid", common.FieldErrors(err))
		return
	}
	agg, err := h.estimator.Estimate(r.Context(), Request{
		Items:    req.Items,
		Currency: req.Currency,
		Term:     pricing.ParseTerm(req.BillingTerm),
	})
	if err != nil {
		common.WriteError(w, err, "failed to compute estimate")
		return
	}
	common.JSON(w, http.StatusOK, agg)
}
