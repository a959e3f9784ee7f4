// Package common holds helpers shared by the feature handlers.
package common

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tendant/agencyhub/internal/httputil"
	"github.com/tendant/agencyhub/pkg/access"
	"github.com/tendant/agencyhub/pkg/domain"
)

// Caller returns the resolved caller of the request, answering 401 when the
// tenant middleware did not run.
func Caller(w http.ResponseWriter, r *http.Request) (access.Caller, bool) {
	c, ok := access.CallerFromContext(r.Context())
	if !ok {
		httputil.Error(w, http.StatusUnauthorized, "missing authorization")
	}
	return c, ok
}

// PathID parses a UUID URL parameter.
func PathID(w http.ResponseWriter, r *http.Request, logger *slog.Logger, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httputil.WriteError(w, logger, domain.Invalid(name, "must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

// Decode reads a JSON body, answering 400 on failure.
func Decode(w http.ResponseWriter, r *http.Request, logger *slog.Logger, v any) bool {
	if err := httputil.DecodeJSON(r, v); err != nil {
		httputil.WriteError(w, logger, err)
		return false
	}
	return true
}

// QueryInt parses an optional integer query parameter.
func QueryInt(w http.ResponseWriter, r *http.Request, logger *slog.Logger, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		httputil.WriteError(w, logger, domain.Invalid(name, "must be an integer"))
		return 0, false
	}
	return n, true
}

// TestCaller attaches c to r the way the tenant middleware does.
func TestCaller(r *http.Request, c access.Caller) *http.Request {
	return r.WithContext(access.WithCaller(r.Context(), c))
}
