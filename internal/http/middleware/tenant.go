package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/tendant/agencyhub/internal/httputil"
	"github.com/tendant/agencyhub/pkg/access"
	"github.com/tendant/agencyhub/pkg/dispatch"
	"github.com/tendant/agencyhub/pkg/domain"
)

type TenantMemberships interface {
	GetByID(ctx context.Context, agencyID, id uuid.UUID) (*domain.Membership, error)
}

type TenantAgencies interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Agency, error)
}

type TenantUsers interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	SetLastActiveAgency(ctx context.Context, userID, agencyID uuid.UUID) error
}

// TenantConfig holds the collaborators of the tenant context resolver.
type TenantConfig struct {
	Memberships TenantMemberships
	Agencies    TenantAgencies
	Users       TenantUsers
	Logger      *slog.Logger

	// Redis, when set, shares the query cache across the requests of a
	// session for SessionTTL. Otherwise each request gets its own cache.
	Redis      *redis.Client
	SessionTTL time.Duration

	Now func() time.Time
}

// Tenant resolves the caller of an authenticated request. The membership is
// re-read on every request so role changes and suspensions apply at once.
func Tenant(cfg TenantConfig) func(http.Handler) http.Handler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			identity, ok := GetIdentity(ctx)
			if !ok {
				httputil.Error(w, http.StatusUnauthorized, "missing authorization")
				return
			}

			membership, err := cfg.Memberships.GetByID(ctx, identity.AgencyID, identity.MembershipID)
			if err != nil && !errors.Is(err, domain.ErrNotFound) {
				httputil.WriteError(w, cfg.Logger, err)
				return
			}
			if err != nil || membership.UserID != identity.UserID || !membership.IsActive() {
				httputil.Error(w, http.StatusForbidden, "membership is not active")
				return
			}

			agency, err := cfg.Agencies.GetByID(ctx, identity.AgencyID)
			if err != nil {
				httputil.WriteError(w, cfg.Logger, err)
				return
			}
			if agency.DeletedAt != nil {
				httputil.WriteError(w, cfg.Logger, domain.ErrAgencyNotFound)
				return
			}

			user, err := cfg.Users.GetByID(ctx, identity.UserID)
			if err != nil {
				httputil.WriteError(w, cfg.Logger, err)
				return
			}
			if user.LastActiveAgencyID == nil || *user.LastActiveAgencyID != agency.ID {
				if err := cfg.Users.SetLastActiveAgency(ctx, user.ID, agency.ID); err != nil {
					cfg.Logger.Warn("failed to record last active agency", "user_id", user.ID, "error", err)
				}
			}

			caller := access.Caller{
				UserID:       user.ID,
				AgencyID:     agency.ID,
				MembershipID: membership.ID,
				Role:         membership.Role,
				Email:        user.Email,
				IP:           clientIP(r),
				UserAgent:    r.UserAgent(),
				SessionID:    identity.SessionID,
				ReadOnly:     agency.IsReadOnly(cfg.Now()),
			}
			if user.Name != nil {
				caller.Name = *user.Name
			}

			ctx = access.WithCaller(ctx, caller)
			ctx = dispatch.WithCache(ctx, dispatch.New(cacheStore(cfg, identity.SessionID), cfg.Logger))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func cacheStore(cfg TenantConfig, sessionID string) dispatch.Store {
	if cfg.Redis != nil {
		return dispatch.NewRedisStore(cfg.Redis, sessionID, cfg.SessionTTL)
	}
	return dispatch.NewMemoryStore()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
