package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCron(t *testing.T) {
	t.Run("wildcards", func(t *testing.T) {
		c, err := parseCron("* * * * *")
		require.NoError(t, err)
		assert.True(t, c.minute.wildcard)
		assert.True(t, c.dayOfWeek.wildcard)
	})

	t.Run("value list", func(t *testing.T) {
		c, err := parseCron("0 3 1,15 * *")
		require.NoError(t, err)
		assert.True(t, c.dayOfMonth.matches(1))
		assert.True(t, c.dayOfMonth.matches(15))
		assert.False(t, c.dayOfMonth.matches(2))
	})

	t.Run("wrong field count", func(t *testing.T) {
		_, err := parseCron("0 3 * *")
		assert.Error(t, err)
	})

	t.Run("non-numeric field", func(t *testing.T) {
		_, err := parseCron("0 3 * * mon")
		assert.Error(t, err)
	})
}

func TestNextCronTime(t *testing.T) {
	after := time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC)

	t.Run("daily at 3am", func(t *testing.T) {
		next, err := nextCronTime("0 3 * * *", after)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC), next)
	})

	t.Run("same day when still ahead", func(t *testing.T) {
		next, err := nextCronTime("0 18 * * *", after)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC), next)
	})

	t.Run("every minute", func(t *testing.T) {
		next, err := nextCronTime("* * * * *", after)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 3, 1, 12, 31, 0, 0, time.UTC), next)
	})

	t.Run("first of month", func(t *testing.T) {
		next, err := nextCronTime("0 0 1 * *", after)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), next)
	})
}
