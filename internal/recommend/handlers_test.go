package recommend_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nitro-storefront/internal/catalog"
	"github.com/noah-isme/nitro-storefront/internal/pricing"
	"github.com/noah-isme/nitro-storefront/internal/recommend"
)

type staticCatalogs struct{}

func (staticCatalogs) Catalog(context.Context, string) (pricing.Catalog, error) {
	return catalog.Static()
}

func TestSuggestHandler(t *testing.T) {
	h := recommend.Handler{Catalogs: staticCatalogs{}}

	body := `{"items":[{"productFamily":"Nitro PDF","planName":"Nitro PDF Standard","seats":1}],"billingTerm":"1year"}`
	rr := httptest.NewRecorder()
	h.Suggest(rr, httptest.NewRequest(http.MethodPost, "/api/recommendations", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rr.Code)

	var resp struct {
		Data recommend.Suggestions `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Len(t, resp.Data.CrossSells, 1)
	require.Equal(t, "Nitro Sign Standard", resp.Data.CrossSells[0].PlanName)
	require.Len(t, resp.Data.Upsells, 1)
	require.Equal(t, "Nitro PDF Plus", resp.Data.Upsells[0].SuggestedPlan)
}

func TestSuggestHandlerRejectsBadTerm(t *testing.T) {
	rr := httptest.NewRecorder()
	recommend.Handler{Catalogs: staticCatalogs{}}.Suggest(rr, httptest.NewRequest(http.MethodPost, "/api/recommendations",
		strings.NewReader(`{"items":[],"billingTerm":"2year"}`)))
	require.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}
