package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Locker runs fn while holding an exclusive lock on key.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// DefaultLease is the lease taken on a cart when the caller passes no ttl.
const DefaultLease = 10 * time.Second

var (
	releaseScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
end
return 0`)
	renewScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0`)
)

// Redis is a lease lock shared by every API instance serving carts from
// Redis. The lease is renewed while fn runs, so a cart stays locked for the
// whole of a slow order submission.
type Redis struct {
	R            *redis.Client
	RetryBackoff time.Duration
	// RenewEvery defaults to a third of the lease.
	RenewEvery time.Duration
	Logger     zerolog.Logger
}

// WithLock waits for the lease on key, runs fn and releases the lease. It
// gives up with ctx.Err() when ctx ends before the lease is free.
func (l Redis) WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("lock: redis client not configured")
	}
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if ttl <= 0 {
		ttl = DefaultLease
	}
	retry := l.RetryBackoff
	if retry <= 0 {
		retry = 25 * time.Millisecond
	}
	token := uuid.NewString()

	for {
		ok, err := l.R.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return err
		}
		if ok {
			return l.hold(ctx, key, token, ttl, fn)
		}
		timer := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l Redis) hold(ctx context.Context, key, token string, ttl time.Duration, fn func(context.Context) error) error {
	renewCtx, stop := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	go func() {
		defer close(done)
		l.renew(renewCtx, key, token, ttl)
	}()
	defer func() {
		stop()
		<-done
		if err := releaseScript.Run(context.Background(), l.R, []string{key}, token).Err(); err != nil {
			l.Logger.Warn().Err(err).Str("key", key).Msg("release cart lock failed")
		}
	}()
	return fn(ctx)
}

func (l Redis) renew(ctx context.Context, key, token string, ttl time.Duration) {
	every := l.RenewEvery
	if every <= 0 {
		every = ttl / 3
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		kept, err := renewScript.Run(ctx, l.R, []string{key}, token, ttl.Milliseconds()).Int()
		if err != nil {
			if ctx.Err() == nil {
				l.Logger.Warn().Err(err).Str("key", key).Msg("renew cart lock failed")
			}
			continue
		}
		if kept == 0 {
			l.Logger.Error().Str("key", key).Msg("cart lock lease lost")
			return
		}
	}
}
