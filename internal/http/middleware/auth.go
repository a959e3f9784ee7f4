package middleware

import (
	"context"
	"net/http"

	"github.com/tendant/agencyhub/internal/httputil"
	"github.com/tendant/agencyhub/pkg/auth"
)

type contextKey string

// IdentityKey is the context key for the verified token identity.
const IdentityKey contextKey = "identity"

// Auth creates middleware that validates JWT access tokens.
// Checks Authorization header first, then falls back to cookie for web clients.
func Auth(tokens *auth.Tokens) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := httputil.BearerToken(r)
			if !ok {
				httputil.Error(w, http.StatusUnauthorized, "missing authorization")
				return
			}

			identity, err := tokens.Verify(tokenString)
			if err != nil {
				httputil.Error(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), IdentityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity extracts the token identity from the request context.
func GetIdentity(ctx context.Context) (*auth.Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(*auth.Identity)
	return identity, ok
}
