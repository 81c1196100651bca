package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stepClock struct{ now time.Time }

func (c *stepClock) Now() time.Time { return c.now }

func TestMemory_FirstCallerClaims(t *testing.T) {
	m := NewMemory(&stepClock{now: time.Unix(0, 0)}, time.Minute)
	ctx := context.Background()

	seen, err := m.Seen(ctx, CommitKey("order_1"))
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = m.Seen(ctx, CommitKey("order_1"))
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = m.Seen(ctx, CommitKey("order_2"))
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMemory_KeysExpire(t *testing.T) {
	c := &stepClock{now: time.Unix(0, 0)}
	m := NewMemory(c, time.Minute)
	ctx := context.Background()

	_, _ = m.Seen(ctx, "k")
	c.now = c.now.Add(2 * time.Minute)

	seen, err := m.Seen(ctx, "k")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "idem:order.events:3:42", MessageKey("order.events", 3, 42))
	assert.Equal(t, "idem:commit:order_X", CommitKey("order_X"))
}

func TestMemory_ReleaseAllowsReclaim(t *testing.T) {
	m := NewMemory(&stepClock{now: time.Unix(0, 0)}, time.Minute)
	ctx := context.Background()
	key := MessageKey("order.events", 0, 7)

	seen, err := m.Seen(ctx, key)
	require.NoError(t, err)
	require.False(t, seen)

	require.NoError(t, m.Release(ctx, key))

	seen, err = m.Seen(ctx, key)
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestMemory_ExpiredKeysArePruned(t *testing.T) {
	c := &stepClock{now: time.Unix(0, 0)}
	m := NewMemory(c, time.Minute)
	ctx := context.Background()

	for _, k := range []string{"a", "b", "c"} {
		_, err := m.Seen(ctx, k)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, m.Len())

	c.now = c.now.Add(2 * time.Minute)
	_, err := m.Seen(ctx, "d")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())
}
