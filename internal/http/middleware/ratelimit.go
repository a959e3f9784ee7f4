package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
	"github.com/tendant/agencyhub/internal/config"
	"github.com/tendant/agencyhub/internal/httputil"
)

// Rate limiter groups returned by CreateRateLimiters.
const (
	LimitAPI      = "api"
	LimitExport   = "export"
	LimitPayments = "payments"
	LimitInternal = "internal"
)

// RateLimitConfig holds the limit of one route group.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
	Logger   *slog.Logger
}

// RateLimit limits requests per caller. Authenticated requests share a budget
// per user and agency wherever they come from; the rest are keyed by IP.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return httprate.Limit(
		cfg.Requests,
		cfg.Window,
		httprate.WithKeyFuncs(keyByIdentity),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Logger != nil {
				key, _ := keyByIdentity(r)
				cfg.Logger.Warn("rate limit exceeded",
					"key", key,
					"path", r.URL.Path,
					"method", r.Method,
				)
			}
			httputil.Error(w, http.StatusTooManyRequests, "rate limit exceeded. please try again later")
		}),
	)
}

func keyByIdentity(r *http.Request) (string, error) {
	if id, ok := GetIdentity(r.Context()); ok {
		return "agency:" + id.AgencyID.String() + ":user:" + id.UserID.String(), nil
	}
	return httprate.KeyByIP(r)
}

// NoRateLimit returns a no-op middleware when rate limiting is disabled.
func NoRateLimit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return next
	}
}

// CreateRateLimiters builds one limiter per route group.
func CreateRateLimiters(cfg config.RateLimitConfig, logger *slog.Logger) map[string]func(http.Handler) http.Handler {
	groups := map[string]struct {
		requests, windowMinutes int
	}{
		LimitAPI:      {cfg.APIRequestsPerMinute, cfg.APIWindowMinutes},
		LimitExport:   {cfg.ExportRequestsPerWindow, cfg.ExportWindowMinutes},
		LimitPayments: {cfg.PaymentsRequestsPerMinute, cfg.PaymentsWindowMinutes},
		LimitInternal: {cfg.InternalRequestsPerMinute, cfg.InternalWindowMinutes},
	}

	if logger == nil {
		logger = slog.Default()
	}
	limiters := make(map[string]func(http.Handler) http.Handler, len(groups))
	for name, g := range groups {
		if !cfg.Enabled || g.requests <= 0 {
			limiters[name] = NoRateLimit()
			continue
		}
		window := time.Duration(g.windowMinutes) * time.Minute
		if window <= 0 {
			window = time.Minute
		}
		limiters[name] = RateLimit(RateLimitConfig{
			Requests: g.requests,
			Window:   window,
			Logger:   logger.With("limiter", name),
		})
	}
	return limiters
}
