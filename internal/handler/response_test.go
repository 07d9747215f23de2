package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"preorder/internal/usecase"

	"github.com/cockroachdb/errors"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteError_StatusMapping(t *testing.T) {
	e := echo.New()

	cases := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"validation", usecase.NewValidationError("invalid quantity"), http.StatusBadRequest, `{"error":"invalid quantity"}`},
		{"quota", usecase.NewQuotaExceededError(3), http.StatusBadRequest, `{"error":"daily quota exceeded","remaining":3}`},
		{"quota zero", usecase.NewQuotaExceededError(0), http.StatusBadRequest, `{"error":"daily quota exceeded","remaining":0}`},
		{"not found", usecase.NewNotFoundError(), http.StatusNotFound, `{"error":"not found"}`},
		{"unauthorized", usecase.NewUnauthorizedError(), http.StatusUnauthorized, `{"error":"unauthorized"}`},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, `{"error":"internal error"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodPost, "/api/orders", nil), rec)

			require.NoError(t, writeError(c, tc.err))
			assert.Equal(t, tc.wantCode, rec.Code)
			assert.JSONEq(t, tc.wantBody, rec.Body.String())
		})
	}
}

func TestRawNumber(t *testing.T) {
	cases := map[string]string{
		`3`:     "3",
		`"3"`:   "3",
		` 2.0 `: "2.0",
		`"abc"`: "abc",
		`null`:  "",
		``:      "",
		`true`:  "true",
	}
	for raw, want := range cases {
		assert.Equal(t, want, rawNumber(json.RawMessage(raw)), "raw=%q", raw)
	}
}

func TestRawText(t *testing.T) {
	cases := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{`"010-1234-5678"`, "010-1234-5678", true},
		{`1012345678`, "1012345678", true},
		{` 42 `, "42", true},
		{`0`, "", true},
		{`false`, "", true},
		{`null`, "", true},
		{``, "", true},
		{`true`, "true", true},
		{`{"a":1}`, "", false},
		{`["x"]`, "", false},
	}
	for _, tc := range cases {
		got, ok := rawText(json.RawMessage(tc.raw))
		assert.Equal(t, tc.wantOK, ok, "raw=%q", tc.raw)
		assert.Equal(t, tc.want, got, "raw=%q", tc.raw)
	}
}
