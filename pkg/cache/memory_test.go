package cache_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zayyadi/paroll-sub001/pkg/cache"
)

func TestMemoryCache_UnreadCount(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := cache.NewMemoryCache()

	_, err := c.GetUnreadCount(ctx, "emp-1")
	require.ErrorIs(t, err, cache.ErrMiss)

	require.NoError(t, c.SetUnreadCount(ctx, "emp-1", 3))
	count, err := c.GetUnreadCount(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	require.NoError(t, c.IncrUnreadCount(ctx, "emp-1", 2))
	count, err = c.GetUnreadCount(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	// Incrementing an uncached recipient is a silent no-op: the next read
	// repopulates from the store instead.
	require.NoError(t, c.IncrUnreadCount(ctx, "emp-2", 1))
	_, err = c.GetUnreadCount(ctx, "emp-2")
	require.ErrorIs(t, err, cache.ErrMiss)
}

func TestMemoryCache_IncrNeverBelowZero(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := cache.NewMemoryCache()

	require.NoError(t, c.SetUnreadCount(ctx, "emp-1", 1))
	require.NoError(t, c.IncrUnreadCount(ctx, "emp-1", -5))

	count, err := c.GetUnreadCount(ctx, "emp-1")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMemoryCache_PreferencesAndLists(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := cache.NewMemoryCache()

	require.NoError(t, c.SetPreferences(ctx, "emp-1", []byte(`{"enabled":true}`)))
	data, err := c.GetPreferences(ctx, "emp-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"enabled":true}`, string(data))

	require.NoError(t, c.SetList(ctx, "emp-1", "unread", []byte(`[]`)))
	data, err = c.GetList(ctx, "emp-1", "unread")
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	// Different filter keys are independent entries.
	_, err = c.GetList(ctx, "emp-1", "all")
	require.ErrorIs(t, err, cache.ErrMiss)
}

func TestMemoryCache_InvalidateRecipient(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	c := cache.NewMemoryCache()

	require.NoError(t, c.SetUnreadCount(ctx, "emp-1", 3))
	require.NoError(t, c.SetPreferences(ctx, "emp-1", []byte(`{}`)))
	require.NoError(t, c.SetList(ctx, "emp-1", "all", []byte(`[]`)))
	require.NoError(t, c.SetUnreadCount(ctx, "emp-2", 7))

	require.NoError(t, c.InvalidateRecipient(ctx, "emp-1"))

	_, err := c.GetUnreadCount(ctx, "emp-1")
	require.ErrorIs(t, err, cache.ErrMiss)
	_, err = c.GetPreferences(ctx, "emp-1")
	require.ErrorIs(t, err, cache.ErrMiss)
	_, err = c.GetList(ctx, "emp-1", "all")
	require.ErrorIs(t, err, cache.ErrMiss)

	// Other recipients are untouched.
	count, err := c.GetUnreadCount(ctx, "emp-2")
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}
