package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PercentageScale matches the NUMERIC(5,2) column.
const PercentageScale = 2

var (
	minPercentage = decimal.Zero
	maxPercentage = decimal.NewFromInt(100)
)

// Percentage is a working percentage constrained to [0, 100]. It is stored as a
// numeric so sums stay exact.
type Percentage struct {
	decimal.Decimal
}

// NewPercentage validates d and wraps it. Values finer than two decimal
// places are rejected so the checked value is the stored value.
func NewPercentage(d decimal.Decimal) (Percentage, error) {
	if d.LessThan(minPercentage) || d.GreaterThan(maxPercentage) {
		return Percentage{}, fmt.Errorf("percentage %s outside [0, 100]", d.String())
	}
	if !d.Equal(d.Round(PercentageScale)) {
		return Percentage{}, fmt.Errorf("percentage %s has more than %d decimal places", d.String(), PercentageScale)
	}
	return Percentage{Decimal: d}, nil
}

// ParsePercentage parses a decimal string such as "37.5".
func ParsePercentage(value string) (Percentage, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return Percentage{}, fmt.Errorf("parse percentage %q: %w", value, err)
	}
	return NewPercentage(d)
}

// MustPercentage panics on invalid input; intended for literals.
func MustPercentage(value string) Percentage {
	p, err := ParsePercentage(value)
	if err != nil {
		panic(err)
	}
	return p
}

// MarshalJSON renders the value as a bare JSON number.
func (p Percentage) MarshalJSON() ([]byte, error) {
	return []byte(p.Decimal.String()), nil
}

// UnmarshalJSON accepts numbers or quoted numbers and enforces the range.
func (p *Percentage) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	parsed, err := NewPercentage(d)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
