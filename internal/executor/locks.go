package executor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/flowpredict/internal/domain"
)

// LocalLocks is the in-process LockManager used when Redis is not
// configured. A lock held past its ttl is considered abandoned.
type LocalLocks struct {
	held map[string]localLock
	mu   sync.Mutex
}

type localLock struct {
	token   string
	expires time.Time
}

var _ domain.LockManager = (*LocalLocks)(nil)

// NewLocalLocks creates an empty lock table.
func NewLocalLocks() *LocalLocks {
	return &LocalLocks{held: make(map[string]localLock)}
}

// Acquire takes key for ttl or fails with ErrLockHeld.
func (l *LocalLocks) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if cur, ok := l.held[key]; ok && now.Before(cur.expires) {
		return nil, domain.ErrLockHeld
	}

	token := uuid.NewString()
	l.held[key] = localLock{token: token, expires: now.Add(ttl)}

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if cur, ok := l.held[key]; ok && cur.token == token {
			delete(l.held, key)
		}
	}, nil
}

// Cleanup drops expired entries.
func (l *LocalLocks) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for key, cur := range l.held {
		if !now.Before(cur.expires) {
			delete(l.held, key)
		}
	}
}
