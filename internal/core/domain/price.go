package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Price is the cost of one invocation of an operation.
type Price struct {
	Operation   string          `json:"operation"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Free        bool            `json:"free"`
}

// PriceTable is an immutable operation name to price mapping. A new table
// replaces the old one as a whole; a table is never mutated in place.
type PriceTable struct {
	prices map[string]Price
	order  []string
}

// NewPriceTable validates prices and builds a table preserving their order.
func NewPriceTable(prices []Price) (*PriceTable, error) {
	t := &PriceTable{
		prices: make(map[string]Price, len(prices)),
		order:  make([]string, 0, len(prices)),
	}
	for _, p := range prices {
		if p.Operation == "" {
			return nil, fmt.Errorf("price without operation name")
		}
		if p.Amount.IsNegative() {
			return nil, fmt.Errorf("operation %q: price must not be negative", p.Operation)
		}
		if _, dup := t.prices[p.Operation]; dup {
			return nil, fmt.Errorf("operation %q priced twice", p.Operation)
		}
		if p.Free {
			p.Amount = decimal.Zero
		}
		t.prices[p.Operation] = p
		t.order = append(t.order, p.Operation)
	}
	return t, nil
}

// Lookup returns the price of an operation.
func (t *PriceTable) Lookup(operation string) (Price, bool) {
	p, ok := t.prices[operation]
	return p, ok
}

// All returns the prices in table order.
func (t *PriceTable) All() []Price {
	out := make([]Price, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.prices[name])
	}
	return out
}

// Len returns the number of priced operations.
func (t *PriceTable) Len() int {
	return len(t.order)
}
