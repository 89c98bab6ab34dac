// Package lock provides short-TTL mutual exclusion on redis, used for push
// debounce and sweep overlap guards.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// Release must only delete the key if the caller still holds it; comparing
// the token server-side keeps an expired-and-reacquired lock safe.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Locker is acquire-or-fail: a failed TryLock means another holder is active
// (or recently was) and the caller should skip, not wait.
type Locker struct {
	client *redis.Client
	script *redis.Script
	prefix string
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		script: redis.NewScript(releaseScript),
	}
}

// WithPrefix returns a locker that namespaces every key, so subsystems
// sharing one redis cannot collide on short key names.
func (l *Locker) WithPrefix(prefix string) *Locker {
	if l == nil {
		return nil
	}
	return &Locker{client: l.client, script: l.script, prefix: prefix}
}

// TryLock acquires key for ttl and returns the holder token to release with.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("lock client not configured")
	}
	if key == "" {
		return "", false, errors.New("lock key is empty")
	}
	if ttl <= 0 {
		return "", false, errors.New("lock ttl must be positive")
	}

	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.prefix+key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *Locker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil {
		return nil
	}
	if key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{l.prefix + key}, token).Err()
}
