package httputil

import (
	"net/http"
	"strings"
)

// AccessTokenCookie is the cookie web clients carry the access token in.
const AccessTokenCookie = "access_token"

// BearerToken extracts the access token of a request. The Authorization
// header wins; web clients fall back to the access token cookie.
func BearerToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") && parts[1] != "" {
			return parts[1], true
		}
	}

	cookie, err := r.Cookie(AccessTokenCookie)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}
