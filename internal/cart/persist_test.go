package cart_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/cart"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisPersisterRoundTrip(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	key := cart.Key("c1")
	persister := cart.NewRedisPersister(client, key, time.Hour)

	state, err := persister.Load(ctx)
	require.NoError(t, err)
	require.Empty(t, state.Items)

	exists, err := persister.Exists(ctx)
	require.NoError(t, err)
	require.False(t, exists)

	store := cart.NewStore(persister)
	store.Add(ctx, product("A", "₦1,000.00"), 2)
	store.Add(ctx, product("B", 250.0), 1)

	require.True(t, mr.Exists(key))
	require.Equal(t, time.Hour, mr.TTL(key))

	reloaded := cart.NewStore(persister)
	reloaded.Load(ctx)
	items := reloaded.Items()
	require.Len(t, items, 2)
	require.Equal(t, 2, items[0].Quantity)
	require.Equal(t, 1000.0, items[0].UnitPrice.Amount())
	require.Equal(t, "₦1,000.00", items[0].UnitPrice.String())
	require.Equal(t, 250.0, items[1].UnitPrice.Amount())
}

func TestRedisPersisterUnavailableIsSwallowed(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	persister := cart.NewRedisPersister(client, cart.Key("c2"), time.Minute)
	store := cart.NewStore(persister)

	mr.Close()

	store.Add(ctx, product("A", 10.0), 1)
	store.SetQuantity(ctx, "A", 3)
	require.Equal(t, 3, store.TotalItemCount())

	_, err := persister.Load(ctx)
	require.Error(t, err)
}

func TestRedisPersisterCorruptDocument(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	key := cart.Key("c3")
	require.NoError(t, mr.Set(key, "{not json"))

	persister := cart.NewRedisPersister(client, key, time.Minute)
	_, err := persister.Load(ctx)
	require.Error(t, err)

	store := cart.NewStore(persister)
	store.Load(ctx)
	require.Zero(t, store.Len())
}
