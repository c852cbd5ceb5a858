package checkout

import (
	"strings"

	"github.com/noah-isme/toko-pricing/internal/cart"
	"github.com/noah-isme/toko-pricing/internal/money"
	"github.com/noah-isme/toko-pricing/internal/pricing"
)

// PayloadItem is a line item as sent to the order boundary.
type PayloadItem struct {
	ProductID cart.ProductID `json:"productId"`
	Quantity  int            `json:"quantity"`
	UnitPrice float64        `json:"unitPrice"`
	Name      string         `json:"name"`
	LineTotal string         `json:"lineTotal"`
}

// Payload is the order submission document. Amounts are fixed-point strings
// in major units; AmountMinorUnits is the same total for payment gateways.
type Payload struct {
	Region           string        `json:"region"`
	Currency         string        `json:"currency,omitempty"`
	Items            []PayloadItem `json:"items"`
	Subtotal         string        `json:"subtotal"`
	Tax              string        `json:"tax"`
	Shipping         string        `json:"shipping"`
	Total            string        `json:"total"`
	AmountMinorUnits int64         `json:"amountMinorUnits"`
	FreeShipping     bool          `json:"freeShipping"`
}

// Reconciler builds order payloads from live cart contents.
type Reconciler struct {
	Engine   *pricing.Engine
	Currency string
}

// Build derives a fresh payload for items shipped to region. It refuses an
// empty cart and a missing region before any figure is computed.
func (r *Reconciler) Build(items []cart.LineItem, region string) (Payload, error) {
	if len(items) == 0 {
		return Payload{}, ErrEmptyCart
	}
	region = strings.TrimSpace(region)
	if region == "" {
		return Payload{}, ErrRegionRequired
	}

	out := Payload{Region: region, Currency: r.Currency, Items: make([]PayloadItem, 0, len(items))}
	for _, it := range items {
		out.Items = append(out.Items, PayloadItem{
			ProductID: it.ProductID,
			Quantity:  it.EffectiveQuantity(),
			UnitPrice: it.UnitPrice.Amount(),
			Name:      it.Name,
			LineTotal: money.FormatFixed(it.LineTotal()),
		})
	}

	snap := r.Engine.Derive(items, region)
	out.Subtotal = money.FormatFixed(snap.Subtotal)
	out.Tax = money.FormatFixed(snap.Tax)
	out.Shipping = money.FormatFixed(snap.Shipping)
	out.Total = money.FormatFixed(snap.Total)
	out.AmountMinorUnits = snap.AmountMinorUnits()
	out.FreeShipping = r.Engine.FreeShipping(snap)
	return out, nil
}

// Agrees reports whether two payloads carry the same items and totals.
func (p Payload) Agrees(other Payload) bool {
	if p.AmountMinorUnits != other.AmountMinorUnits || p.Region != other.Region || len(p.Items) != len(other.Items) {
		return false
	}
	if p.Subtotal != other.Subtotal || p.Tax != other.Tax || p.Shipping != other.Shipping || p.Total != other.Total {
		return false
	}
	for i := range p.Items {
		if p.Items[i] != other.Items[i] {
			return false
		}
	}
	return true
}
