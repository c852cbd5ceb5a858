package money_test

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-pricing/internal/money"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   any
		want float64
	}{
		{"nil", nil, 0},
		{"float", 1200.5, 1200.5},
		{"int", 42, 42},
		{"int64", int64(7), 7},
		{"nan", math.NaN(), 0},
		{"inf", math.Inf(1), 0},
		{"negative inf", math.Inf(-1), 0},
		{"naira string", "₦1,200.50", 1200.5},
		{"dollar string", "$ 19.99", 19.99},
		{"plain string", "2500", 2500},
		{"garbage", "free!", 0},
		{"empty", "", 0},
		{"lone dot", ".", 0},
		{"double dot prefix", "12.5.3", 12.5},
		{"embedded minus", "1-2", 1},
		{"negative string", "-15", 0},
		{"negative number", -3.5, 0},
		{"json number", json.Number("99.9"), 99.9},
		{"raw text", money.Text("₦3,000"), 3000},
		{"unsupported", struct{}{}, 0},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.InDelta(t, tc.want, money.Normalize(tc.in), 1e-9)
		})
	}
}

func TestNormalizeIdempotentAndFinite(t *testing.T) {
	t.Parallel()

	inputs := []any{nil, 0, -1, 3.25, math.NaN(), math.Inf(-1), "₦1,000.00", "--", "-.5", "1e9", "12,34,56", true}
	for _, in := range inputs {
		once := money.Normalize(in)
		twice := money.Normalize(once)
		require.Equal(t, once, twice, "input %v", in)
		require.False(t, math.IsNaN(once), "input %v", in)
		require.False(t, math.IsInf(once, 0), "input %v", in)
		require.GreaterOrEqual(t, once, 0.0, "input %v", in)
	}
}

func TestRawJSON(t *testing.T) {
	t.Parallel()

	var payload struct {
		A money.Raw `json:"a"`
		B money.Raw `json:"b"`
		C money.Raw `json:"c"`
		D money.Raw `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":1500,"b":"₦1,200.50","c":null,"d":true}`), &payload))
	require.Equal(t, 1500.0, payload.A.Amount())
	require.Equal(t, 1200.5, payload.B.Amount())
	require.True(t, payload.C.Absent())
	require.Zero(t, payload.C.Amount())
	require.True(t, payload.D.Absent())

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1500,"b":"₦1,200.50","c":null,"d":null}`, string(out))
}

func TestRawJSONExponentNumbers(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want float64
	}{
		{`1.5e3`, 1500},
		{`2E2`, 200},
		{`1e+1`, 10},
		{`25e-1`, 2.5},
		{`-1e2`, 0},
		{`1e400`, 0},
	}
	for _, tc := range cases {
		var r money.Raw
		require.NoError(t, json.Unmarshal([]byte(tc.in), &r), tc.in)
		require.Equal(t, tc.want, r.Amount(), tc.in)
	}

	require.Equal(t, 200.0, money.Normalize(json.Number("2E2")))
	require.Equal(t, 1500.0, money.Normalize(json.Number("1.5e3")))
}

func TestTransportHelpers(t *testing.T) {
	t.Parallel()

	require.Equal(t, "4650.00", money.FormatFixed(4650))
	require.Equal(t, "0.10", money.FormatFixed(0.1))
	require.Equal(t, "0.00", money.FormatFixed(math.NaN()))
	require.Equal(t, int64(465000), money.MinorUnits(4650))
	require.Equal(t, int64(1999), money.MinorUnits(19.99))
	require.Equal(t, 10.13, money.Round2(10.125000001))
}

func TestRawMarshalNormalizesNumbers(t *testing.T) {
	t.Parallel()

	out, err := json.Marshal([]money.Raw{money.Number(-40), money.Number(12.5), money.Text("₦-40")})
	require.NoError(t, err)
	require.JSONEq(t, `[0,12.5,"₦-40"]`, string(out))
}
