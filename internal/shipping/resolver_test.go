package shipping_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/shipping"
)

func newResolver() *shipping.Resolver {
	return &shipping.Resolver{
		Rates:         shipping.RateTable{"Lagos": 2500, "Abuja": 3500, "Port Harcourt": 4000},
		DefaultFee:    3000,
		FreeThreshold: 150000,
	}
}

func TestResolveRegionalRate(t *testing.T) {
	r := newResolver()
	require.Equal(t, 2500.0, r.Resolve("Lagos", 2000))
	require.Equal(t, 4000.0, r.Resolve("  Port Harcourt ", 2000))
}

func TestResolveCaseInsensitive(t *testing.T) {
	r := newResolver()
	require.Equal(t, r.Resolve("Lagos", 1000), r.Resolve("lagos", 1000))
	require.Equal(t, 3500.0, r.Resolve("ABUJA", 1000))
}

func TestResolveFallsBackToDefault(t *testing.T) {
	r := newResolver()
	require.Equal(t, 3000.0, r.Resolve("unknown-region", 500))
	require.Equal(t, 3000.0, r.Resolve("", 500))
	require.Equal(t, 3000.0, r.Resolve("   ", 500))
}

func TestResolveFreeThresholdBoundary(t *testing.T) {
	r := newResolver()
	require.Zero(t, r.Resolve("Lagos", 150000))
	require.Zero(t, r.Resolve("unknown", 150000))
	require.Zero(t, r.Resolve("", 200000))
	require.Equal(t, 2500.0, r.Resolve("Lagos", 149999))
	require.Equal(t, 2500.0, r.Resolve("Lagos", 149999.99))
}

func TestResolveNonFiniteSubtotal(t *testing.T) {
	r := newResolver()
	require.Equal(t, 2500.0, r.Resolve("Lagos", math.Inf(1)))
	require.Equal(t, 2500.0, r.Resolve("Lagos", math.NaN()))
}

func TestResolveThresholdDisabled(t *testing.T) {
	r := newResolver()
	r.FreeThreshold = 0
	require.Equal(t, 2500.0, r.Resolve("Lagos", 1e9))
	require.False(t, r.QualifiesForFree(1e9))
}

func TestResolveSanitizesBadFees(t *testing.T) {
	r := &shipping.Resolver{Rates: shipping.RateTable{"Kano": -10}, DefaultFee: math.NaN()}
	require.Zero(t, r.Resolve("Kano", 10))
	require.Zero(t, r.Resolve("elsewhere", 10))

	var nilResolver *shipping.Resolver
	require.Zero(t, nilResolver.Resolve("Lagos", 10))
	require.Nil(t, nilResolver.Regions())
}

func TestRegionsSorted(t *testing.T) {
	require.Equal(t, []string{"Abuja", "Lagos", "Port Harcourt"}, newResolver().Regions())
}
