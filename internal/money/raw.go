package money

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// Raw holds a price exactly as it was supplied: a number, a currency
// formatted string, or nothing. Arithmetic must go through Amount.
type Raw struct {
	num  *float64
	text *string
}

// Number wraps a numeric price.
func Number(v float64) Raw {
	return Raw{num: &v}
}

// Text wraps a currency formatted price such as "₦1,200.50".
func Text(v string) Raw {
	return Raw{text: &v}
}

// Absent reports whether no price was supplied.
func (r Raw) Absent() bool {
	return r.num == nil && r.text == nil
}

// Amount returns the normalized amount.
func (r Raw) Amount() float64 {
	switch {
	case r.num != nil:
		return Normalize(*r.num)
	case r.text != nil:
		return Normalize(*r.text)
	default:
		return 0
	}
}

// String returns the original representation for logs.
func (r Raw) String() string {
	switch {
	case r.num != nil:
		return strconv.FormatFloat(*r.num, 'f', -1, 64)
	case r.text != nil:
		return *r.text
	default:
		return "null"
	}
}

// MarshalJSON writes numbers as their normalized amount and text prices
// verbatim.
func (r Raw) MarshalJSON() ([]byte, error) {
	switch {
	case r.num != nil:
		f := Normalize(*r.num)
		return json.Marshal(f)
	case r.text != nil:
		return json.Marshal(*r.text)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts null, a JSON number or a JSON string.
func (r *Raw) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	*r = Raw{}
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return fmt.Errorf("money: decode price string: %w", err)
		}
		*r = Text(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			// booleans, objects and arrays are not prices
			return nil
		}
		*r = Number(Normalize(n))
		return nil
	}
}
