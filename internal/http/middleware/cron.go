package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/tendant/agencyhub/internal/httputil"
)

// CronSecretHeader carries the shared secret of scheduled internal jobs.
const CronSecretHeader = "X-Cron-Secret"

// CronSecret admits requests carrying the configured secret. An empty secret
// rejects everything.
func CronSecret(secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(CronSecretHeader)
			if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
				logger.Warn("rejected internal request", "path", r.URL.Path, "ip", r.RemoteAddr)
				httputil.Error(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
