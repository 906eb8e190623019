package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "healthexchange/pkg/domain-errors"
)

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body
}

func TestWriteErrorStatusMapping(t *testing.T) {
	cases := []struct {
		code   dErrors.Code
		status int
	}{
		{dErrors.CodeInvalidInput, http.StatusBadRequest},
		{dErrors.CodeDuplicateIdentity, http.StatusConflict},
		{dErrors.CodeIdentityNotFound, http.StatusNotFound},
		{dErrors.CodeRoleMismatch, http.StatusUnprocessableEntity},
		{dErrors.CodeUnauthorized, http.StatusForbidden},
		{dErrors.CodeAccessDenied, http.StatusForbidden},
		{dErrors.CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(string(tc.code), func(t *testing.T) {
			rr := httptest.NewRecorder()
			WriteError(rr, dErrors.New(tc.code, "some message"))

			assert.Equal(t, tc.status, rr.Code)
			assert.Equal(t, string(tc.code), decode(t, rr)["error"])
		})
	}
}

func TestWriteErrorDescriptions(t *testing.T) {
	t.Run("client errors carry the message", func(t *testing.T) {
		rr := httptest.NewRecorder()
		WriteError(rr, dErrors.New(dErrors.CodeInvalidInput, "short id must be a six-digit number"))
		assert.Equal(t, "short id must be a six-digit number", decode(t, rr)["error_description"])
	})

	t.Run("internal errors never leak detail", func(t *testing.T) {
		rr := httptest.NewRecorder()
		WriteError(rr, dErrors.Wrap(errors.New("pq: connection refused"), dErrors.CodeInternal, "failed to load user"))

		body := decode(t, rr)
		assert.NotContains(t, body, "error_description")
		assert.NotContains(t, rr.Body.String(), "connection refused")
	})

	t.Run("access denials are byte-identical regardless of message", func(t *testing.T) {
		first := httptest.NewRecorder()
		WriteError(first, dErrors.New(dErrors.CodeAccessDenied, "no access to reports"))
		second := httptest.NewRecorder()
		WriteError(second, dErrors.New(dErrors.CodeAccessDenied, "patient 123456 does not exist"))

		assert.Equal(t, first.Body.String(), second.Body.String())
		assert.Equal(t, first.Code, second.Code)
	})

	t.Run("uncoded errors map to internal", func(t *testing.T) {
		rr := httptest.NewRecorder()
		WriteError(rr, errors.New("plain"))
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Equal(t, string(dErrors.CodeInternal), decode(t, rr)["error"])
	})
}

func TestWriteJSON(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteJSON(rr, http.StatusCreated, map[string]int{"short_id": 123456})

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"short_id":123456}`, rr.Body.String())
}
