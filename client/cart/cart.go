package cart

import (
	"github.com/shopspring/decimal"
)

// Item is one course held in the local cart.
type Item struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price Price  `json:"price"`
	Icon  string `json:"icon,omitempty"`
}

// Price is a decimal that tolerates the sloppy values the course catalog
// serves: JSON numbers, quoted strings, or garbage, which becomes zero.
// Exact decimal arithmetic keeps cart totals drift-free no matter how many
// items are summed.
type Price struct {
	decimal.Decimal
}

func NewPrice(d decimal.Decimal) Price {
	return Price{Decimal: d}
}

func PriceFromString(s string) Price {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Price{}
	}
	return Price{Decimal: d}
}

func (p *Price) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		// Unparsable prices become zero rather than poisoning the cart.
		p.Decimal = decimal.Decimal{}
		return nil
	}

	p.Decimal = d
	return nil
}
