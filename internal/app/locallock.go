package app

import (
	"context"
	"sync"
	"time"

	"github.com/stevenchzhen/prythia/internal/domain"
)

// localLockManager is the single-process fallback for deployments without
// Redis. It only guards against overlapping cycles within one process; for
// multi-instance deployments enable the Redis lock layer.
type localLockManager struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

func newLocalLockManager() *localLockManager {
	return &localLockManager{
		held:  make(map[string]time.Time),
		clock: time.Now,
	}
}

// Acquire obtains the named lock for at most ttl, returning an unlock closure
// or domain.ErrLockHeld. An expired TTL counts as released, mirroring the
// Redis key expiry.
func (lm *localLockManager) Acquire(_ context.Context, key string, ttl time.Duration) (func(), error) {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	now := lm.clock()
	if deadline, ok := lm.held[key]; ok && deadline.After(now) {
		return nil, domain.ErrLockHeld
	}
	deadline := now.Add(ttl)
	lm.held[key] = deadline

	released := false
	unlock := func() {
		lm.mu.Lock()
		defer lm.mu.Unlock()
		if released {
			return
		}
		released = true
		// Only delete if this acquisition still owns the slot.
		if d, ok := lm.held[key]; ok && d.Equal(deadline) {
			delete(lm.held, key)
		}
	}
	return unlock, nil
}

var _ domain.LockManager = (*localLockManager)(nil)
