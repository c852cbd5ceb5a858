package money

import (
	"encoding/json"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var numericPrefix = regexp.MustCompile(`^-?(\d+\.?\d*|\.\d+)`)

// Normalize coerces a price value into a finite, non-negative amount in major
// currency units. Unusable input yields 0.
func Normalize(v any) float64 {
	switch p := v.(type) {
	case nil:
		return 0
	case Raw:
		return p.Amount()
	case *Raw:
		if p == nil {
			return 0
		}
		return p.Amount()
	case float64:
		return finite(p)
	case float32:
		return finite(float64(p))
	case int:
		return finite(float64(p))
	case int8:
		return finite(float64(p))
	case int16:
		return finite(float64(p))
	case int32:
		return finite(float64(p))
	case int64:
		return finite(float64(p))
	case uint:
		return finite(float64(p))
	case uint8:
		return finite(float64(p))
	case uint16:
		return finite(float64(p))
	case uint32:
		return finite(float64(p))
	case uint64:
		return finite(float64(p))
	case json.Number:
		return parseNumber(p)
	case decimal.Decimal:
		f, _ := p.Float64()
		return finite(f)
	case string:
		return parseString(p)
	case *string:
		if p == nil {
			return 0
		}
		return parseString(*p)
	default:
		return 0
	}
}

// parseNumber reads a JSON number literal, exponent included. Overflowing
// literals are not finite and yield 0.
func parseNumber(n json.Number) float64 {
	f, err := n.Float64()
	if err == nil || errors.Is(err, strconv.ErrRange) {
		return finite(f)
	}
	return parseString(string(n))
}

func parseString(s string) float64 {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			b.WriteRune(r)
		}
	}
	stripped := b.String()
	if stripped == "" {
		return 0
	}
	if f, err := strconv.ParseFloat(stripped, 64); err == nil {
		return finite(f)
	}
	prefix := numericPrefix.FindString(stripped)
	if prefix == "" {
		return 0
	}
	f, err := strconv.ParseFloat(prefix, 64)
	if err != nil {
		return 0
	}
	return finite(f)
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0
	}
	return f
}

// FormatFixed renders an amount as a 2-decimal fixed-point string.
func FormatFixed(v float64) string {
	return decimal.NewFromFloat(finite(v)).StringFixed(2)
}

// MinorUnits converts an amount to the smallest currency denomination (kobo,
// cents) using round(v*100).
func MinorUnits(v float64) int64 {
	return int64(math.Round(finite(v) * 100))
}

// Round2 rounds an amount to 2 decimal places for display.
func Round2(v float64) float64 {
	return math.Round(finite(v)*100) / 100
}
