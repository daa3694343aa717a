package common_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	validator "github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/nitro-storefront/internal/common"
)

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:4321"
	require.Equal(t, "192.0.2.10", common.ClientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.2")
	require.Equal(t, "198.51.100.2", common.ClientIP(req))

	req.Header.Set("X-Forwarded-For", "garbage, 10.0.0.1")
	require.Equal(t, "198.51.100.2", common.ClientIP(req), "unparsable first hop is skipped")

	req.Header.Set("X-Forwarded-For", " 203.0.113.9 , 10.0.0.1")
	require.Equal(t, "203.0.113.9", common.ClientIP(req))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "pipe"
	require.Empty(t, common.ClientIP(req))
}

func TestQuantityParam(t *testing.T) {
	cases := []struct {
		raw  string
		want int
	}{
		{" 7 ", 7},
		{"0", 0},
		{"+4", 4},
		{"3.5", 3},
		{"12abc", 12},
		{"-3", 1},
		{"abc", 1},
		{"", 1},
		{"-", 1},
		{"500", 100},
		{"99999999999999999999", 100},
		{"-99999999999999999999", 1},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, common.QuantityParam(tc.raw, 1, 100), "raw=%q", tc.raw)
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	common.WriteError(rec, common.NewAppError("CURRENCY_UNSUPPORTED", "no catalog", http.StatusNotFound, nil), "boom")
	require.Equal(t, http.StatusNotFound, rec.Code)
	var body struct {
		Error common.ErrorBody `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "CURRENCY_UNSUPPORTED", body.Error.Code)

	rec = httptest.NewRecorder()
	common.WriteError(rec, errors.New("dial tcp: refused"), "failed to load catalog")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, "failed to load catalog", body.Error.Message)
}

func TestInvalidCarriesFieldErrors(t *testing.T) {
	type form struct {
		Email string `validate:"required,email"`
	}
	verr := validator.New().Struct(form{Email: "nope"})
	err := common.Invalid("form is invalid", common.FieldErrors(verr), verr)

	appErr, ok := common.AsAppError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusUnprocessableEntity, appErr.HTTPStatus)
	require.Equal(t, map[string]string{"form.Email": "email"}, appErr.Details)
	require.Nil(t, common.FieldErrors(errors.New("other")))
	require.Nil(t, common.Invalid("x", nil, nil).Details)
}
