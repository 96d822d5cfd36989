package types

import "github.com/shopspring/decimal"

// Number is an unbounded decimal rendered as a bare JSON number. Allocation
// totals use it since they may legitimately exceed 100.
type Number struct {
	decimal.Decimal
}

func NewNumber(d decimal.Decimal) Number {
	return Number{Decimal: d}
}

func (n Number) MarshalJSON() ([]byte, error) {
	return []byte(n.Decimal.String()), nil
}
