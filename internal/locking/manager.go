// Package locking implements the distributed mutual-exclusion
// primitive behind seat reservation: per-resource leases in a shared
// Redis, owned by an opaque token.
package locking

import (
	"context"
	"fmt"
	"time"

	"seatgrid/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const lockPrefix = "lock:"

// releaseScript deletes the lock only while it is still owned by the
// presented token. Running get and del as one server-side script closes
// the race where the lock expires and is re-acquired between the two.
const releaseScript = `
if redis.call('get', KEYS[1]) == ARGV[1] then
  return redis.call('del', KEYS[1])
else
  return 0
end
`

// Client is the slice of the Redis API the manager needs. *redis.Client
// satisfies it.
type Client interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type Manager struct {
	rdb Client
	log *logger.Logger
}

func NewManager(rdb Client, log *logger.Logger) *Manager {
	return &Manager{
		rdb: rdb,
		log: log,
	}
}

// Acquire takes the lock on resourceKey for at most ttl, returning the
// owner token. acquired=false with a nil error means the lock is held
// by someone else; a non-nil error means the store itself failed, so
// callers can tell contention from infrastructure failure. Acquire
// never blocks or retries; retry policy belongs to the caller.
func (m *Manager) Acquire(ctx context.Context, resourceKey string, ttl time.Duration) (token string, acquired bool, err error) {
	token = uuid.New().String()
	key := lockPrefix + resourceKey

	ok, err := m.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return "", false, fmt.Errorf("lock store unavailable for %s: %w", resourceKey, err)
	}
	if !ok {
		m.log.Debug("Lock contended", "resource", resourceKey)
		return "", false, nil
	}

	m.log.Debug("Lock acquired", "resource", resourceKey, "token", token)
	return token, true, nil
}

// Release deletes the lock only if it is still owned by token. Returns
// false when the key was absent (TTL fired) or owned by another token.
func (m *Manager) Release(ctx context.Context, resourceKey string, token string) (bool, error) {
	key := lockPrefix + resourceKey

	result, err := m.rdb.Eval(ctx, releaseScript, []string{key}, token).Result()
	if err != nil {
		return false, fmt.Errorf("lock store unavailable for %s: %w", resourceKey, err)
	}

	deleted, ok := result.(int64)
	if !ok || deleted != 1 {
		m.log.Debug("Lock release refused", "resource", resourceKey, "token", token)
		return false, nil
	}

	m.log.Debug("Lock released", "resource", resourceKey, "token", token)
	return true, nil
}
