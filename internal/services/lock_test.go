package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"db-schema-keeper/internal/testhelpers"
)

func TestRedisLocker(t *testing.T) {
	client := testhelpers.GetTestRedis(t)
	ctx := context.Background()
	key := "test:" + t.Name()
	t.Cleanup(func() { client.Del(context.Background(), key) })

	locker := NewRedisLocker(client, key, time.Minute)

	release, err := locker.Acquire(ctx)
	require.NoError(t, err)

	_, err = locker.Acquire(ctx)
	require.ErrorIs(t, err, ErrLockHeld)

	require.NoError(t, release(ctx))

	release, err = locker.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, release(ctx))
}

func TestRedisLocker_ExpiredOwnerCannotRelease(t *testing.T) {
	client := testhelpers.GetTestRedis(t)
	ctx := context.Background()
	key := "test:" + t.Name()
	t.Cleanup(func() { client.Del(context.Background(), key) })

	first := NewRedisLocker(client, key, 100*time.Millisecond)
	releaseFirst, err := first.Acquire(ctx)
	require.NoError(t, err)

	time.Sleep(300 * time.Millisecond)

	second := NewRedisLocker(client, key, time.Minute)
	releaseSecond, err := second.Acquire(ctx)
	require.NoError(t, err)

	require.NoError(t, releaseFirst(ctx))
	exists, err := client.Exists(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists, "stale release must not drop the new owner's lock")

	require.NoError(t, releaseSecond(ctx))
	exists, err = client.Exists(ctx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists)
}

func TestResetter_RedisLockBlocksConcurrentReset(t *testing.T) {
	client := testhelpers.GetTestRedis(t)
	ctx := context.Background()
	key := "test:" + t.Name()
	t.Cleanup(func() { client.Del(context.Background(), key) })

	other := NewRedisLocker(client, key, time.Minute)
	release, err := other.Acquire(ctx)
	require.NoError(t, err)
	defer release(ctx)

	f := blogSchema()
	r := newTestResetter(f, WithLocker(NewRedisLocker(client, key, time.Minute)))

	err = r.ResetTable(ctx, testModel("users", ""), "alter")
	require.ErrorIs(t, err, ErrResetInProgress)
	assert.Empty(t, f.callLog())
}
