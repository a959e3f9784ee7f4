package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one session's cached query results in Redis.
//
// Values live under "dispatch:<session>:v:"; the entity index is shared by
// every session of an agency ("dispatch:idx:<agency>:<entity>") and holds full
// value keys, so a command run in any session drops the results cached by all
// of them.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a store namespaced to sessionID. ttl only bounds how
// long an abandoned session's entries survive; zero keeps them until invalidated.
func NewRedisStore(client *redis.Client, sessionID string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: fmt.Sprintf("dispatch:%s:", sessionID),
		ttl:    ttl,
	}
}

func (s *RedisStore) valueKey(key string) string {
	return s.prefix + "v:" + key
}

func redisIndexKey(scope string, entity Entity) string {
	return "dispatch:idx:" + scope + ":" + string(entity)
}

// invalidateScript drops every value listed in the index and the index itself
// in one step, so no Set can slip in between reading and clearing the index.
var invalidateScript = redis.NewScript(`
local members = redis.call('SMEMBERS', KEYS[1])
for i = 1, #members, 500 do
	redis.call('DEL', unpack(members, i, math.min(i + 499, #members)))
end
redis.call('DEL', KEYS[1])
return #members
`)

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, s.valueKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	return val, true, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, scope string, entities []Entity) error {
	full := s.valueKey(key)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, full, value, s.ttl)
		for _, e := range entities {
			idx := redisIndexKey(scope, e)
			pipe.SAdd(ctx, idx, full)
			if s.ttl > 0 {
				pipe.Expire(ctx, idx, s.ttl)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, s.valueKey(k))
	}
	return s.client.Del(ctx, full...).Err()
}

// Invalidate implements Store. It drops the entries of every session of the
// agency, not only this one's.
func (s *RedisStore) Invalidate(ctx context.Context, scope string, entity Entity) (int, error) {
	idx := redisIndexKey(scope, entity)
	n, err := invalidateScript.Run(ctx, s.client, []string{idx}).Int()
	if err != nil {
		return 0, fmt.Errorf("cache invalidate %s: %w", idx, err)
	}
	return n, nil
}
