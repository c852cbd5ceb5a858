package pricing

import (
	"math"

	"github.com/noah-isme/toko-pricing/internal/cart"
	"github.com/noah-isme/toko-pricing/internal/money"
	"github.com/noah-isme/toko-pricing/internal/shipping"
)

// DefaultTaxRate is the VAT fraction applied when none is configured.
const DefaultTaxRate = 0.075

// Snapshot aggregates computed pricing components in major currency units.
type Snapshot struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Shipping float64 `json:"shipping"`
	Total    float64 `json:"total"`
}

// Engine derives cart totals. It holds no cart state, so every call reflects
// exactly the items and region it is given.
type Engine struct {
	TaxRate  float64
	Shipping *shipping.Resolver
}

// Subtotal sums normalized unit price times quantity over items.
func Subtotal(items []cart.LineItem) float64 {
	var subtotal float64
	for _, it := range items {
		subtotal += it.LineTotal()
	}
	return subtotal
}

// Derive calculates subtotal, tax, shipping and total for items shipped to
// region. An empty cart still pays the resolved shipping fee.
func (e *Engine) Derive(items []cart.LineItem, region string) Snapshot {
	subtotal := Subtotal(items)
	tax := e.Tax(subtotal)
	var fee float64
	if e != nil {
		fee = e.Shipping.Resolve(region, subtotal)
	}
	return Snapshot{
		Subtotal: subtotal,
		Tax:      tax,
		Shipping: fee,
		Total:    subtotal + tax + fee,
	}
}

// Tax applies the configured rate to subtotal.
func (e *Engine) Tax(subtotal float64) float64 {
	if e == nil || subtotal <= 0 || math.IsNaN(subtotal) || math.IsInf(subtotal, 0) {
		return 0
	}
	rate := e.TaxRate
	if rate < 0 || math.IsNaN(rate) {
		rate = 0
	}
	return subtotal * rate
}

// FreeShipping reports whether the snapshot's subtotal waived shipping.
func (e *Engine) FreeShipping(s Snapshot) bool {
	if e == nil {
		return false
	}
	return e.Shipping.QualifiesForFree(s.Subtotal)
}

// Rounded returns the snapshot with every figure rounded to two decimals for
// display. Total is rounded from the exact total, not re-summed.
func (s Snapshot) Rounded() Snapshot {
	return Snapshot{
		Subtotal: money.Round2(s.Subtotal),
		Tax:      money.Round2(s.Tax),
		Shipping: money.Round2(s.Shipping),
		Total:    money.Round2(s.Total),
	}
}

// AmountMinorUnits converts the exact total into minor currency units.
func (s Snapshot) AmountMinorUnits() int64 {
	return money.MinorUnits(s.Total)
}
