package redisclient

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("Integration test - requires TEST_REDIS_ADDR")
	}

	client, err := NewClient(addr, "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestIdempotentBooking(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	key := uuid.NewString()

	_, found, err := client.GetIdempotentBooking(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, client.SetIdempotentBooking(ctx, key, 42, time.Minute))
	require.NoError(t, client.SetIdempotentBooking(ctx, key, 43, time.Minute))

	id, found, err := client.GetIdempotentBooking(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(42), id, "first writer wins")
}

func TestLockOwnership(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()
	name := "test-" + uuid.NewString()

	token, ok, err := client.AcquireLock(ctx, name, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = client.AcquireLock(ctx, name, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "lock is held")

	extended, err := client.ExtendLock(ctx, name, "not-the-owner", time.Minute)
	require.NoError(t, err)
	assert.False(t, extended)

	require.NoError(t, client.ReleaseLock(ctx, name, "not-the-owner"))
	_, ok, err = client.AcquireLock(ctx, name, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "foreign token must not release the lock")

	extended, err = client.ExtendLock(ctx, name, token, time.Minute)
	require.NoError(t, err)
	assert.True(t, extended)

	require.NoError(t, client.ReleaseLock(ctx, name, token))
	_, ok, err = client.AcquireLock(ctx, name, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}
