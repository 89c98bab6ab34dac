package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Locker is the debounce primitive behind at-most-once customer pushes.
// TryLock either acquires for the TTL or reports another holder; it never
// waits.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

// MemoryLocker is the single-process fallback when redis is not configured.
// Expired entries are reclaimed lazily on the next TryLock for the same key.
type MemoryLocker struct {
	mu      sync.Mutex
	entries map[string]memoryLock
}

type memoryLock struct {
	token   string
	expires time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{entries: make(map[string]memoryLock)}
}

func (l *MemoryLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if held, ok := l.entries[key]; ok && held.expires.After(now) {
		return "", false, nil
	}
	token := uuid.NewString()
	l.entries[key] = memoryLock{token: token, expires: now.Add(ttl)}
	return token, true, nil
}

func (l *MemoryLocker) Release(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if held, ok := l.entries[key]; ok && held.token == token {
		delete(l.entries, key)
	}
	return nil
}
