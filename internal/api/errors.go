// Package api contains the chi HTTP handlers for the routing and system
// admin surface.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/payorch/payorch-backend-sqs/internal/core"
)

// ErrorResponse wraps an OrchError for JSON serialization.
type ErrorResponse struct {
	Error *core.OrchError `json:"error"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes an error response with the given status code.
func WriteError(w http.ResponseWriter, status int, err *core.OrchError) {
	WriteJSON(w, status, ErrorResponse{Error: err})
}

// HandleError maps an error to the appropriate HTTP status and writes it.
func HandleError(w http.ResponseWriter, err error) {
	var orchErr *core.OrchError
	if errors.As(err, &orchErr) {
		WriteError(w, statusForCode(orchErr.Code), orchErr)
		return
	}
	WriteError(w, http.StatusInternalServerError, core.NewInternalError("handle request", err))
}

func statusForCode(code string) int {
	switch code {
	case core.ErrCodeInvalidRequest, core.ErrCodeMissingField:
		return http.StatusBadRequest
	case core.ErrCodeValidationError:
		return http.StatusUnprocessableEntity
	case core.ErrCodeNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
