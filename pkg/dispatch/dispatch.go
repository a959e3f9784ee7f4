// Package dispatch is a read-through cache over named queries.
//
// A Query declares the entities it reads; a Command declares the entities it
// writes. When a command succeeds, every cached result of the same agency
// indexed under one of its written entities is dropped, so the next read of
// any affected query goes back to the database.
//
// A Cache is scoped to one request (MemoryStore) or one session (RedisStore);
// it is never shared across the whole server.
package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/tendant/agencyhub/internal/metrics"
)

// Entity names a kind of record a query depends on.
type Entity string

const (
	EntityAgency       Entity = "agency"
	EntityMembership   Entity = "membership"
	EntityConsultation Entity = "consultation"
	EntityPackage      Entity = "package"
	EntityInvoice      Entity = "invoice"
	EntityActivity     Entity = "activity"
	EntityTemplate     Entity = "template"
	EntityDraft        Entity = "draft"
)

// Query is an idempotent, cacheable read.
type Query[A, T any] struct {
	Name  string
	Reads []Entity
	Fetch func(ctx context.Context, args A) (T, error)
}

// Command is a mutation that invalidates the entities it writes.
type Command[A, T any] struct {
	Name   string
	Writes []Entity
	Run    func(ctx context.Context, args A) (T, error)
}

// Store keeps encoded results and the entity index for one cache scope.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value under key and indexes key under each (scope, entity).
	Set(ctx context.Context, key string, value []byte, scope string, entities []Entity) error
	// Delete drops the given keys.
	Delete(ctx context.Context, keys ...string) error
	// Invalidate drops every key indexed under (scope, entity) and returns how many were dropped.
	Invalidate(ctx context.Context, scope string, entity Entity) (int, error)
}

// Cache dispatches queries and commands through a Store.
// A nil *Cache is valid and caches nothing.
type Cache struct {
	store  Store
	logger *slog.Logger
}

// New creates a cache over store.
func New(store Store, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{store: store, logger: logger}
}

type cacheContextKey struct{}

// WithCache stores the cache in the context.
func WithCache(ctx context.Context, c *Cache) context.Context {
	return context.WithValue(ctx, cacheContextKey{}, c)
}

// FromContext returns the cache stored by WithCache, or nil.
func FromContext(ctx context.Context) *Cache {
	c, _ := ctx.Value(cacheContextKey{}).(*Cache)
	return c
}

// Key returns the cache key of a query invocation for an agency.
func Key(agencyID uuid.UUID, name string, args any) (string, error) {
	encoded, err := json.Marshal(args)
	if err != nil {
		return "", err
	}
	return agencyID.String() + "|" + name + "|" + string(encoded), nil
}

// Read returns the cached result of q(args) for the agency, fetching and
// caching it on a miss. Fetch errors are returned and never cached.
func Read[A, T any](ctx context.Context, c *Cache, agencyID uuid.UUID, q Query[A, T], args A) (T, error) {
	if c == nil || c.store == nil {
		return q.Fetch(ctx, args)
	}

	key, err := Key(agencyID, q.Name, args)
	if err != nil {
		c.logger.Warn("dispatch: args not encodable, bypassing cache", "query", q.Name, "error", err)
		return q.Fetch(ctx, args)
	}

	if raw, ok, err := c.store.Get(ctx, key); err != nil {
		c.logger.Warn("dispatch: cache get failed", "query", q.Name, "error", err)
	} else if ok {
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			metrics.DispatchLookups.WithLabelValues(q.Name, "hit").Inc()
			return cached, nil
		}
		_ = c.store.Delete(ctx, key)
	}
	metrics.DispatchLookups.WithLabelValues(q.Name, "miss").Inc()

	result, err := q.Fetch(ctx, args)
	if err != nil {
		return result, err
	}

	raw, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn("dispatch: result not encodable, not cached", "query", q.Name, "error", err)
		return result, nil
	}
	if err := c.store.Set(ctx, key, raw, agencyID.String(), q.Reads); err != nil {
		c.logger.Warn("dispatch: cache set failed", "query", q.Name, "error", err)
	}
	return result, nil
}

// Exec runs cmd and, when it succeeds, invalidates every cached query of the
// agency that reads one of the entities cmd writes.
func Exec[A, T any](ctx context.Context, c *Cache, agencyID uuid.UUID, cmd Command[A, T], args A) (T, error) {
	result, err := cmd.Run(ctx, args)
	if err != nil {
		return result, err
	}
	c.Invalidate(ctx, agencyID, cmd.Writes...)
	return result, nil
}

// Invalidate drops every cached query of the agency that reads one of entities.
func (c *Cache) Invalidate(ctx context.Context, agencyID uuid.UUID, entities ...Entity) {
	if c == nil || c.store == nil {
		return
	}
	for _, entity := range entities {
		n, err := c.store.Invalidate(ctx, agencyID.String(), entity)
		if err != nil {
			c.logger.Error("dispatch: invalidation failed", "entity", entity, "agency_id", agencyID, "error", err)
			continue
		}
		metrics.DispatchInvalidations.WithLabelValues(string(entity)).Add(float64(n))
	}
}

// InvalidateQuery drops the cached result of one query invocation.
func (c *Cache) InvalidateQuery(ctx context.Context, agencyID uuid.UUID, name string, args any) error {
	if c == nil || c.store == nil {
		return nil
	}
	key, err := Key(agencyID, name, args)
	if err != nil {
		return err
	}
	return c.store.Delete(ctx, key)
}
