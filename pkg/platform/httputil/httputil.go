// Package httputil maps coded domain errors to HTTP responses and provides
// the JSON writing helpers handlers share.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "sealedger/pkg/domain-errors"
)

type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteJSON serializes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into a response. Unknown errors
// surface as 500 without leaking internals.
func WriteError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := "internal"
	description := "internal error"

	var de *dErrors.Error
	if errors.As(err, &de) {
		code = string(de.Code())
		description = de.Error()
		status = statusFor(de.Code())
	}
	WriteJSON(w, status, errorBody{Error: code, Description: description})
}

func statusFor(code dErrors.Code) int {
	switch code {
	case dErrors.CodeValidation, dErrors.CodeBadRequest:
		return http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		return http.StatusForbidden
	case dErrors.CodeConflict, dErrors.CodeSelfReference:
		return http.StatusConflict
	case dErrors.CodeOutOfRange, dErrors.CodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
