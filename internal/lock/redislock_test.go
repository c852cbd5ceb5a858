package lock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/lock"
)

func TestRedisWithLockSerializes(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	assertSerialized(t, lock.Redis{R: client, RetryBackoff: 5 * time.Millisecond})
	require.False(t, mr.Exists("lock:cart:demo"), "lock key should be released")
}

func TestRedisLeaseRenewedWhileHeld(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	const key = "lock:cart:slow-submit"
	locker := lock.Redis{R: client, RenewEvery: 5 * time.Millisecond}
	err = locker.WithLock(context.Background(), key, 100*time.Millisecond, func(context.Context) error {
		// simulate a submission that outlives the initial lease
		mr.FastForward(80 * time.Millisecond)
		require.Eventually(t, func() bool {
			return mr.TTL(key) > 50*time.Millisecond
		}, time.Second, 2*time.Millisecond)
		mr.FastForward(80 * time.Millisecond)
		require.True(t, mr.Exists(key), "cart lock must survive past its first lease")
		return nil
	})
	require.NoError(t, err)
	require.False(t, mr.Exists(key))
}

func TestRedisReleaseKeepsForeignLease(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	const key = "lock:cart:expired"
	err = lock.Redis{R: client, RenewEvery: time.Hour}.WithLock(context.Background(), key, time.Second, func(context.Context) error {
		// lease expired and another instance took the cart
		mr.Del(key)
		require.NoError(t, mr.Set(key, "other-instance"))
		return nil
	})
	require.NoError(t, err)
	got, err := mr.Get(key)
	require.NoError(t, err)
	require.Equal(t, "other-instance", got)
}

func TestLocalWithLockSerializes(t *testing.T) {
	assertSerialized(t, &lock.Local{})
}

func TestLocalWithLockHonoursContext(t *testing.T) {
	locker := &lock.Local{}
	hold := make(chan struct{})
	held := make(chan struct{})
	go func() {
		_ = locker.WithLock(context.Background(), "k", 0, func(context.Context) error {
			close(held)
			<-hold
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := locker.WithLock(ctx, "k", 0, func(context.Context) error { return nil })
	require.ErrorIs(t, err, context.DeadlineExceeded)
	close(hold)
}

func TestRedisWithLockRequiresClient(t *testing.T) {
	err := lock.Redis{}.WithLock(context.Background(), "k", time.Second, func(context.Context) error { return nil })
	require.Error(t, err)
}

func assertSerialized(t *testing.T, locker lock.Locker) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var order []string
	var mu sync.Mutex
	firstDone := make(chan struct{})
	releaseFirst := make(chan struct{})
	errs := make(chan error, 2)

	go func() {
		errs <- locker.WithLock(ctx, "lock:cart:demo", 200*time.Millisecond, func(context.Context) error {
			mu.Lock()
			order = append(order, "first")
			mu.Unlock()
			close(firstDone)
			<-releaseFirst
			return nil
		})
	}()

	<-firstDone

	go func() {
		errs <- locker.WithLock(ctx, "lock:cart:demo", 200*time.Millisecond, func(context.Context) error {
			mu.Lock()
			order = append(order, "second")
			mu.Unlock()
			return nil
		})
	}()

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	require.Equal(t, []string{"first"}, order)
	mu.Unlock()
	close(releaseFirst)

	require.NoError(t, <-errs)
	require.NoError(t, <-errs)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"first", "second"}, order)
}
