package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevenchzhen/prythia/internal/domain"
)

func TestLocalLockManager(t *testing.T) {
	ctx := context.Background()

	t.Run("exclusive while held", func(t *testing.T) {
		lm := newLocalLockManager()
		unlock, err := lm.Acquire(ctx, "fusion", time.Minute)
		require.NoError(t, err)

		_, err = lm.Acquire(ctx, "fusion", time.Minute)
		assert.ErrorIs(t, err, domain.ErrLockHeld)

		unlock()
		_, err = lm.Acquire(ctx, "fusion", time.Minute)
		assert.NoError(t, err)
	})

	t.Run("distinct keys independent", func(t *testing.T) {
		lm := newLocalLockManager()
		_, err := lm.Acquire(ctx, "fusion", time.Minute)
		require.NoError(t, err)
		_, err = lm.Acquire(ctx, "matcher", time.Minute)
		assert.NoError(t, err)
	})

	t.Run("ttl expiry releases", func(t *testing.T) {
		lm := newLocalLockManager()
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		lm.clock = func() time.Time { return now }

		_, err := lm.Acquire(ctx, "fusion", time.Minute)
		require.NoError(t, err)

		now = now.Add(2 * time.Minute)
		_, err = lm.Acquire(ctx, "fusion", time.Minute)
		assert.NoError(t, err)
	})

	t.Run("stale unlock no-ops after reacquire", func(t *testing.T) {
		lm := newLocalLockManager()
		now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		lm.clock = func() time.Time { return now }

		staleUnlock, err := lm.Acquire(ctx, "fusion", time.Minute)
		require.NoError(t, err)

		now = now.Add(2 * time.Minute)
		_, err = lm.Acquire(ctx, "fusion", time.Minute)
		require.NoError(t, err)

		// The expired holder must not release the new acquisition.
		staleUnlock()
		_, err = lm.Acquire(ctx, "fusion", time.Minute)
		assert.ErrorIs(t, err, domain.ErrLockHeld)
	})
}
