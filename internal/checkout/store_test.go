package checkout_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/checkout"
)

func TestSessionStores(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	stores := map[string]checkout.SessionStore{
		"memory": &checkout.MemorySessionStore{},
		"redis":  checkout.RedisSessionStore{R: client, TTL: time.Hour},
	}
	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec, err := store.Load(ctx, "cart-1")
			require.NoError(t, err)
			require.Equal(t, checkout.StateIdle, rec.State)

			sess := checkout.NewSession(newReconciler())
			require.NoError(t, sess.SelectRegion("Lagos"))
			_, err = sess.Finalize(exampleItems())
			require.NoError(t, err)
			require.NoError(t, store.Save(ctx, "cart-1", sess.Record()))

			loaded, err := store.Load(ctx, "cart-1")
			require.NoError(t, err)
			restored := checkout.Restore(newReconciler(), loaded)
			require.Equal(t, checkout.StateFinalized, restored.State())

			_, err = restored.Submit(ctx, exampleItems(), &fakeSubmitter{})
			require.NoError(t, err)
		})
	}

	require.True(t, mr.Exists("checkout:cart-1"))
	require.Equal(t, time.Hour, mr.TTL("checkout:cart-1"))
}

func TestRedisSessionStoreErrors(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, mr.Set("checkout:bad", "{not json"))
	store := checkout.RedisSessionStore{R: client}
	_, err = store.Load(context.Background(), "bad")
	require.Error(t, err)

	mr.Close()
	_, err = store.Load(context.Background(), "cart-1")
	require.Error(t, err)

	_, err = checkout.RedisSessionStore{}.Load(context.Background(), "cart-1")
	require.Error(t, err)
}
