package cart

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/noah-isme/toko-pricing/internal/money"
)

// ProductID identifies a product. Clients send it as a JSON string or number;
// it is always held in its string form.
type ProductID string

// UnmarshalJSON accepts both "A" and 42.
func (id *ProductID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*id = ""
		return nil
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("cart: decode product id: %w", err)
		}
		*id = ProductID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err != nil {
		return fmt.Errorf("cart: product id must be a string or number: %w", err)
	}
	*id = ProductID(n.String())
	return nil
}

// Product is what the catalog hands the cart when a shopper adds something.
type Product struct {
	ID        ProductID `json:"productId"`
	Name      string    `json:"name,omitempty"`
	UnitPrice money.Raw `json:"unitPrice"`
}

// LineItem is one product entry in a cart.
type LineItem struct {
	ProductID ProductID `json:"productId"`
	Name      string    `json:"name,omitempty"`
	UnitPrice money.Raw `json:"unitPrice"`
	Quantity  int       `json:"quantity"`
}

// EffectiveQuantity is the quantity used for pricing: a missing or
// non-positive quantity counts as 1.
func (li LineItem) EffectiveQuantity() int {
	if li.Quantity < 1 {
		return 1
	}
	return li.Quantity
}

// LineTotal is normalized unit price times effective quantity.
func (li LineItem) LineTotal() float64 {
	return li.UnitPrice.Amount() * float64(li.EffectiveQuantity())
}

// UnmarshalJSON reads "quantity" or the legacy "qty" field, flooring
// fractional values. Values below 1 are left as 0 and read as 1 by
// EffectiveQuantity.
func (li *LineItem) UnmarshalJSON(data []byte) error {
	var wire struct {
		ProductID ProductID       `json:"productId"`
		Name      string          `json:"name"`
		UnitPrice money.Raw       `json:"unitPrice"`
		Quantity  json.RawMessage `json:"quantity"`
		Qty       json.RawMessage `json:"qty"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	qty := lenientQuantity(wire.Quantity)
	if qty < 1 {
		qty = lenientQuantity(wire.Qty)
	}
	if qty < 1 {
		qty = 0
	}
	*li = LineItem{
		ProductID: wire.ProductID,
		Name:      wire.Name,
		UnitPrice: wire.UnitPrice,
		Quantity:  qty,
	}
	return nil
}

func lenientQuantity(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	trimmed := bytes.TrimSpace(raw)
	var f float64
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return 0
		}
		f = money.Normalize(text)
	} else {
		f = money.Normalize(json.Number(trimmed))
	}
	if f < 1 || f > math.MaxInt32 {
		return 0
	}
	return int(math.Floor(f))
}
