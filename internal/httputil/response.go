package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tendant/agencyhub/pkg/domain"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Error  string                    `json:"error"`
	Fields []*domain.ValidationError `json:"fields,omitempty"`
}

// JSON writes v as a JSON response.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorResponse{Error: message})
}

// WriteError maps a service error to its HTTP status. Provider and internal
// failures are logged and answered with a generic message.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var fields domain.ValidationErrors
	var field *domain.ValidationError

	switch {
	case errors.As(err, &fields):
		JSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: fields})
	case errors.As(err, &field):
		JSON(w, http.StatusBadRequest, ErrorResponse{Error: "validation failed", Fields: []*domain.ValidationError{field}})
	case errors.Is(err, domain.ErrValidation):
		Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrPermissionDenied):
		Error(w, http.StatusForbidden, "permission denied")
	case errors.Is(err, domain.ErrNotFound):
		Error(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrExternalProvider):
		logger.Warn("payment provider unavailable", "error", err)
		Error(w, http.StatusBadGateway, "payment provider is unavailable, please try again later")
	default:
		logger.Error("request failed", "error", err)
		Error(w, http.StatusInternalServerError, "internal server error")
	}
}

// DecodeJSON decodes a request body into v, rejecting unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return domain.Invalid("", "request body too large")
		}
		return domain.Invalid("", "invalid JSON body")
	}
	return nil
}
