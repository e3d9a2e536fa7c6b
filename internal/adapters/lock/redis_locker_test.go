package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "github.com/zatekoja/provider-directory/internal/infrastructure/clients/redis"
	apperrors "github.com/zatekoja/provider-directory/pkg/errors"
)

func newTestLocker(t *testing.T, ttl time.Duration) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	locker := NewRedisLocker(redisclient.NewClientFromRedis(rdb), ttl)
	locker.pollInterval = 5 * time.Millisecond
	return locker, mr
}

func TestRedisLocker_LockSetsLeaseAndUnlockReleases(t *testing.T) {
	locker, mr := newTestLocker(t, 10*time.Second)

	unlock, err := locker.Lock(context.Background(), "rating:p1")
	require.NoError(t, err)

	assert.True(t, mr.Exists("lock:rating:p1"))
	assert.Equal(t, 10*time.Second, mr.TTL("lock:rating:p1"))

	unlock()
	assert.False(t, mr.Exists("lock:rating:p1"))
}

func TestRedisLocker_ReleaseKeepsAnotherHoldersLease(t *testing.T) {
	locker, mr := newTestLocker(t, time.Second)

	unlock, err := locker.Lock(context.Background(), "rating:p1")
	require.NoError(t, err)

	// our lease expires and another instance takes the key
	mr.FastForward(2 * time.Second)
	require.NoError(t, mr.Set("lock:rating:p1", "someone-else"))

	unlock()

	got, err := mr.Get("lock:rating:p1")
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got)
}

func TestRedisLocker_ExpiredLeaseCanBeTaken(t *testing.T) {
	locker, mr := newTestLocker(t, time.Second)

	_, err := locker.Lock(context.Background(), "rating:p1")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	unlock, err := locker.Lock(ctx, "rating:p1")
	require.NoError(t, err)
	unlock()
}

func TestRedisLocker_WaitsUntilContextDone(t *testing.T) {
	locker, _ := newTestLocker(t, 10*time.Second)

	unlock, err := locker.Lock(context.Background(), "rating:p1")
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "rating:p1")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnavailable), "got %v", err)

	other, err := locker.Lock(context.Background(), "rating:p2")
	require.NoError(t, err, "other keys are not blocked")
	other()
}

func TestRedisLocker_SerializesHolders(t *testing.T) {
	locker, _ := newTestLocker(t, 10*time.Second)

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			unlock, err := locker.Lock(ctx, "rating:p1")
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			atomic.AddInt32(&inside, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside)
}

func TestRedisLocker_RedisDownIsUnavailable(t *testing.T) {
	locker, mr := newTestLocker(t, time.Second)
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := locker.Lock(ctx, "rating:p1")
	assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeUnavailable), "got %v", err)
}
