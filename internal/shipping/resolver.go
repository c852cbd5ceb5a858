package shipping

import (
	"math"
	"sort"
	"strings"
)

// RateTable maps a delivery region name to its flat shipping fee.
type RateTable map[string]float64

// Resolver maps a delivery region and order subtotal to a shipping fee.
type Resolver struct {
	Rates RateTable
	// DefaultFee applies when no region is selected or the region is unknown.
	DefaultFee float64
	// FreeThreshold waives shipping for subtotals at or above it. Zero or
	// less disables free shipping.
	FreeThreshold float64
}

// Resolve returns the shipping fee for region at the given subtotal. It never
// fails: free shipping wins over any regional rate, and a missing or unknown
// region falls back to DefaultFee.
func (r *Resolver) Resolve(region string, subtotal float64) float64 {
	if r == nil {
		return 0
	}
	if r.QualifiesForFree(subtotal) {
		return 0
	}
	if fee, ok := r.Lookup(region); ok {
		return fee
	}
	return r.defaultFee()
}

// QualifiesForFree reports whether subtotal meets the free-shipping threshold.
func (r *Resolver) QualifiesForFree(subtotal float64) bool {
	if r == nil || r.FreeThreshold <= 0 {
		return false
	}
	if math.IsNaN(subtotal) || math.IsInf(subtotal, 0) {
		return false
	}
	return subtotal >= r.FreeThreshold
}

// Lookup finds the regional rate, exact match first and then
// case-insensitively. Blank regions never match.
func (r *Resolver) Lookup(region string) (float64, bool) {
	if r == nil {
		return 0, false
	}
	region = strings.TrimSpace(region)
	if region == "" {
		return 0, false
	}
	if fee, ok := r.Rates[region]; ok {
		return sanitizeFee(fee), true
	}
	for _, name := range r.Regions() {
		if strings.EqualFold(name, region) {
			return sanitizeFee(r.Rates[name]), true
		}
	}
	return 0, false
}

// Regions lists the configured region names in sorted order.
func (r *Resolver) Regions() []string {
	if r == nil {
		return nil
	}
	names := make([]string, 0, len(r.Rates))
	for name := range r.Rates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Resolver) defaultFee() float64 {
	return sanitizeFee(r.DefaultFee)
}

func sanitizeFee(fee float64) float64 {
	if math.IsNaN(fee) || math.IsInf(fee, 0) || fee < 0 {
		return 0
	}
	return fee
}
