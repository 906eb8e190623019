// Package httputil centralizes JSON response writing so every handler emits
// the same envelopes.
package httputil

import (
	"encoding/json"
	"net/http"

	dErrors "healthexchange/pkg/domain-errors"
)

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a coded domain error into a JSON error response.
// Internal errors omit the description so infrastructure details never leak.
// Access denials carry a fixed envelope: the response is byte-identical
// whether the subject exists or not.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)

	body := map[string]string{"error": string(code)}
	switch code {
	case dErrors.CodeInternal, dErrors.CodeAccessDenied:
		// no description
	default:
		if msg := dErrors.MessageOf(err); msg != "" {
			body["error_description"] = msg
		}
	}

	WriteJSON(w, statusOf(code), body)
}

func statusOf(code dErrors.Code) int {
	switch code {
	case dErrors.CodeInvalidInput:
		return http.StatusBadRequest
	case dErrors.CodeDuplicateIdentity:
		return http.StatusConflict
	case dErrors.CodeIdentityNotFound:
		return http.StatusNotFound
	case dErrors.CodeRoleMismatch:
		return http.StatusUnprocessableEntity
	case dErrors.CodeUnauthorized, dErrors.CodeAccessDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
