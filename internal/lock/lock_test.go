package lock

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErr "github.com/pagecraft/engine/pkg/errors"
	"github.com/pagecraft/engine/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.UseNop()
	os.Exit(m.Run())
}

func exerciseMutualExclusion(t *testing.T, l Locker) {
	t.Helper()
	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		overlap atomic.Bool
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), "project-1")
			if !assert.NoError(t, err) {
				return
			}
			defer release()
			if inside.Add(1) > 1 {
				overlap.Store(true)
			}
			time.Sleep(5 * time.Millisecond)
			inside.Add(-1)
		}()
	}
	wg.Wait()
	assert.False(t, overlap.Load(), "two holders inside the same key")
}

func TestMemoryLockerSerializesSameKey(t *testing.T) {
	l := NewMemoryLocker()
	exerciseMutualExclusion(t, l)
	assert.Equal(t, 0, l.held())
}

func TestMemoryLockerIndependentKeys(t *testing.T) {
	l := NewMemoryLocker()
	releaseA, err := l.Acquire(context.Background(), "a")
	require.NoError(t, err)
	defer releaseA()

	releaseB, err := l.Acquire(context.Background(), "b")
	require.NoError(t, err)
	releaseB()
	releaseB()
}

func TestMemoryLockerHonoursContext(t *testing.T) {
	l := NewMemoryLocker()
	release, err := l.Acquire(context.Background(), "a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "a")
	require.Error(t, err)
	assert.True(t, appErr.IsCode(err, appErr.CodeUnavailable))

	release()
	assert.Equal(t, 0, l.held())
}

func newRedisLocker(t *testing.T, ttl time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, ttl), mr
}

func TestRedisLockerSerializesSameKey(t *testing.T) {
	l, mr := newRedisLocker(t, time.Minute)
	exerciseMutualExclusion(t, l)
	assert.False(t, mr.Exists(keyPrefix+"project-1"))
}

func TestRedisLockerReleaseOnlyOwnLease(t *testing.T) {
	l, mr := newRedisLocker(t, time.Minute)

	release, err := l.Acquire(context.Background(), "p")
	require.NoError(t, err)

	// simulate expiry and takeover by another holder
	mr.Del(keyPrefix + "p")
	require.NoError(t, mr.Set(keyPrefix+"p", "someone-else"))

	release()
	got, err := mr.Get(keyPrefix + "p")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisLockerLeaseExpires(t *testing.T) {
	l, mr := newRedisLocker(t, time.Second)

	_, err := l.Acquire(context.Background(), "p")
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	release, err := l.Acquire(context.Background(), "p")
	require.NoError(t, err)
	release()
}

func TestRedisLockerHonoursContext(t *testing.T) {
	l, _ := newRedisLocker(t, time.Minute)
	release, err := l.Acquire(context.Background(), "p")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(ctx, "p")
	assert.True(t, appErr.IsCode(err, appErr.CodeUnavailable))
}
