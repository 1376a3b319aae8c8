package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLocker_SerializesPerKey(t *testing.T) {
	l := NewLocalLocker()
	ctx := context.Background()

	unlock, err := l.Lock(ctx, lockKey(1, "primary"))
	require.NoError(t, err)

	other, err := l.Lock(ctx, lockKey(2, "primary"))
	require.NoError(t, err, "different key is independent")
	other()

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(short, lockKey(1, "primary"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	again, err := l.Lock(ctx, lockKey(1, "primary"))
	require.NoError(t, err)
	again()
}

func TestRedisLocker_ExcludesAndReleases(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	l := NewRedisLocker(rdb, time.Minute)
	ctx := context.Background()

	unlock, err := l.Lock(ctx, lockKey(1, "primary"))
	require.NoError(t, err)
	assert.True(t, mr.Exists("dailyplan:lock:calendar-sync:1:primary"))

	short, cancel := context.WithTimeout(ctx, 120*time.Millisecond)
	defer cancel()
	_, err = l.Lock(short, lockKey(1, "primary"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	assert.False(t, mr.Exists("dailyplan:lock:calendar-sync:1:primary"))

	again, err := l.Lock(ctx, lockKey(1, "primary"))
	require.NoError(t, err)
	again()
}

func TestRedisLocker_UnlockKeepsForeignLock(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	l := NewRedisLocker(rdb, time.Minute)

	unlock, err := l.Lock(context.Background(), "k")
	require.NoError(t, err)
	require.NoError(t, mr.Set("dailyplan:lock:k", "someone-else"))

	unlock()
	got, err := mr.Get("dailyplan:lock:k")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisLocker_RefreshesTTLWhileHeld(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	l := NewRedisLocker(rdb, 300*time.Millisecond)
	const key = "dailyplan:lock:calendar-sync:1:primary"

	unlock, err := l.Lock(context.Background(), lockKey(1, "primary"))
	require.NoError(t, err)

	mr.FastForward(250 * time.Millisecond)
	require.True(t, mr.Exists(key))
	assert.Eventually(t, func() bool {
		return mr.TTL(key) > 200*time.Millisecond
	}, 2*time.Second, 10*time.Millisecond, "holder extends the TTL")

	mr.FastForward(250 * time.Millisecond)
	assert.True(t, mr.Exists(key), "a held lock outlives its initial TTL")

	unlock()
	unlock()
	assert.False(t, mr.Exists(key))
}
