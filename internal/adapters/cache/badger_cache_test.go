package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reqflow/internal/ports"
)

func newCache(t *testing.T) *BadgerCache {
	t.Helper()
	c, err := NewInMemoryBadgerCache()
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestBadgerCache_SetGetRoundTrip(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "session:s1", []byte(`{"session_id":"s1"}`), time.Minute))

	got, err := c.Get(ctx, "session:s1")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"session_id":"s1"}`), got)
}

func TestBadgerCache_MissOnAbsentKey(t *testing.T) {
	c := newCache(t)

	_, err := c.Get(context.Background(), "session:missing")
	assert.ErrorIs(t, err, ports.ErrCacheMiss)
}

func TestBadgerCache_DeleteInvalidates(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "requirements:s1", []byte("x"), time.Minute))
	require.NoError(t, c.Delete(ctx, "requirements:s1"))

	_, err := c.Get(ctx, "requirements:s1")
	assert.ErrorIs(t, err, ports.ErrCacheMiss)
}

func TestBadgerCache_DeleteAbsentKeyIsNotAnError(t *testing.T) {
	c := newCache(t)
	assert.NoError(t, c.Delete(context.Background(), "never-set"))
}

func TestBadgerCache_ExpiredKeyIsAMiss(t *testing.T) {
	c := newCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "session_state:s1", []byte("reviewing"), 50*time.Millisecond))
	time.Sleep(100 * time.Millisecond)

	_, err := c.Get(ctx, "session_state:s1")
	assert.ErrorIs(t, err, ports.ErrCacheMiss)
}

func TestBadgerCache_OnDisk(t *testing.T) {
	c, err := NewBadgerCache(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}

func TestNoopCache_AlwaysMisses(t *testing.T) {
	c := NoopCache{}
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ports.ErrCacheMiss)
}
