package lock

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLocker(t *testing.T, ttl time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisLockerWithClient(client, ttl), mr
}

func TestTryLock_Exclusive(t *testing.T) {
	l, _ := setupLocker(t, time.Minute)
	ctx := context.Background()

	unlock, ok, err := l.TryLock(ctx, "sweep")
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, unlock)

	_, ok, err = l.TryLock(ctx, "sweep")
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be refused")

	require.NoError(t, unlock(ctx))

	_, ok, err = l.TryLock(ctx, "sweep")
	require.NoError(t, err)
	assert.True(t, ok, "lock is free after unlock")
}

func TestTryLock_Expires(t *testing.T) {
	l, mr := setupLocker(t, time.Minute)
	ctx := context.Background()

	_, ok, err := l.TryLock(ctx, "sweep")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Minute, mr.TTL("sweep"))

	mr.FastForward(2 * time.Minute)

	_, ok, err = l.TryLock(ctx, "sweep")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUnlock_LeavesTakenOverLock(t *testing.T) {
	l, mr := setupLocker(t, time.Minute)
	ctx := context.Background()

	unlockFirst, ok, err := l.TryLock(ctx, "sweep")
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Minute)
	_, ok, err = l.TryLock(ctx, "sweep")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, unlockFirst(ctx))
	assert.True(t, mr.Exists("sweep"), "stale unlock must not release the new holder")
}

func TestNewRedisLocker(t *testing.T) {
	mr := miniredis.RunT(t)

	l, err := NewRedisLocker(context.Background(), "redis://"+mr.Addr(), time.Minute)
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.Ping(context.Background()))
	_, ok, err := l.TryLock(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestNewRedisLocker_BadURL(t *testing.T) {
	_, err := NewRedisLocker(context.Background(), "not-a-url://", time.Minute)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse redis url")
}

func TestTryLock_ServerDown(t *testing.T) {
	l, mr := setupLocker(t, time.Minute)
	mr.Close()

	_, _, err := l.TryLock(context.Background(), "sweep")
	require.Error(t, err)
	assert.Error(t, l.Ping(context.Background()))
}
