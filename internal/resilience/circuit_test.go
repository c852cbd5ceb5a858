package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/resilience"
)

var errDown = errors.New("order service down")

func fail(context.Context) error { return errDown }
func ok(context.Context) error   { return nil }

func TestBreakerOpensAndRecovers(t *testing.T) {
	b := resilience.NewBreaker("orders-recover", 2, 0.5, 30*time.Millisecond, zerolog.Nop())
	ctx := context.Background()

	require.ErrorIs(t, b.Execute(ctx, fail), errDown)
	require.Equal(t, resilience.Closed, b.State())
	require.ErrorIs(t, b.Execute(ctx, fail), errDown)
	require.Equal(t, resilience.Open, b.State())

	called := false
	err := b.Execute(ctx, func(context.Context) error { called = true; return nil })
	require.ErrorIs(t, err, resilience.ErrOpen)
	require.False(t, called)

	require.Eventually(t, func() bool {
		return b.Execute(ctx, ok) == nil
	}, 200*time.Millisecond, 5*time.Millisecond)
	require.Equal(t, resilience.Closed, b.State())
}

func TestBreakerFailedTrialReopens(t *testing.T) {
	b := resilience.NewBreaker("orders-trial", 1, 0.5, 20*time.Millisecond, zerolog.Nop())
	ctx := context.Background()

	require.ErrorIs(t, b.Execute(ctx, fail), errDown)
	require.Equal(t, resilience.Open, b.State())

	time.Sleep(30 * time.Millisecond)
	require.ErrorIs(t, b.Execute(ctx, fail), errDown)
	require.Equal(t, resilience.Open, b.State())
	require.ErrorIs(t, b.Execute(ctx, ok), resilience.ErrOpen)
}

func TestBreakerIgnoresCallerCancellation(t *testing.T) {
	b := resilience.NewBreaker("orders-cancel", 1, 0.5, time.Minute, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := b.Execute(ctx, func(ctx context.Context) error { return ctx.Err() })
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, resilience.Closed, b.State())
}

func TestBreakerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, resilience.RegisterMetrics(reg))
	require.NoError(t, resilience.RegisterMetrics(reg))

	b := resilience.NewBreaker("orders-metrics", 1, 0.5, time.Minute, zerolog.Nop())
	require.ErrorIs(t, b.Execute(context.Background(), fail), errDown)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	require.True(t, names["breaker_state"])
	require.True(t, names["breaker_open_total"])

}
