package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryStoreAllow(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := store.Allow(ctx, "10.0.0.1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, 3, result.Limit)
		assert.Equal(t, 2-i, result.Remaining)
	}

	result, err := store.Allow(ctx, "10.0.0.1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.False(t, result.ResetAt.IsZero())
}

func TestInMemoryStoreKeysAreIndependent(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	result, err := store.Allow(ctx, "10.0.0.1", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = store.Allow(ctx, "10.0.0.2", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed, "another key must have its own window")
}

func TestInMemoryStoreWindowExpiry(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	result, err := store.Allow(ctx, "10.0.0.1", 1, 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, result.Allowed)

	result, err = store.Allow(ctx, "10.0.0.1", 1, 10*time.Millisecond)
	require.NoError(t, err)
	require.False(t, result.Allowed)

	time.Sleep(15 * time.Millisecond)

	result, err = store.Allow(ctx, "10.0.0.1", 1, 10*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, result.Allowed, "expired entries must leave the window")
}

func TestInMemoryStoreReset(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	_, err := store.Allow(ctx, "10.0.0.1", 1, time.Minute)
	require.NoError(t, err)
	require.NoError(t, store.Reset(ctx, "10.0.0.1"))

	result, err := store.Allow(ctx, "10.0.0.1", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestResultRetryAfter(t *testing.T) {
	now := time.Now()
	assert.Equal(t, 30, Result{ResetAt: now.Add(30 * time.Second)}.RetryAfter(now))
	assert.Equal(t, 1, Result{ResetAt: now.Add(-time.Second)}.RetryAfter(now), "floor is one second")
}
