// Package money provides fixed-point amounts in currency minor units.
//
// All ledger arithmetic is integer-only. Decimal strings coming from clients
// are converted at the edge with shopspring/decimal and rejected when they
// carry more precision than the currency allows.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount   = errors.New("money: invalid amount")
	ErrInvalidCurrency = errors.New("money: invalid currency")

	// ErrOverflow is an ErrInvalidAmount for sums outside the int64 range.
	ErrOverflow = fmt.Errorf("%w: overflows int64 minor units", ErrInvalidAmount)
)

// Amount is a signed count of currency minor units (cents, pence, yen).
type Amount int64

// zeroDecimal lists currencies without a minor unit.
var zeroDecimal = map[string]bool{
	"JPY": true,
	"KRW": true,
	"VND": true,
	"CLP": true,
	"PYG": true,
	"ISK": true,
	"UGX": true,
}

// threeDecimal lists currencies with three minor-unit digits.
var threeDecimal = map[string]bool{
	"BHD": true,
	"JOD": true,
	"KWD": true,
	"OMR": true,
	"TND": true,
}

// NormalizeCurrency upper-cases and validates a three-letter currency code.
func NormalizeCurrency(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if len(c) != 3 {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, code)
		}
	}
	return c, nil
}

// Exponent returns the number of minor-unit digits for a normalized currency.
func Exponent(currency string) int32 {
	switch {
	case zeroDecimal[currency]:
		return 0
	case threeDecimal[currency]:
		return 3
	default:
		return 2
	}
}

// Parse converts a decimal string in major units ("12.50") into an Amount.
func Parse(s, currency string) (Amount, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d, currency)
}

// FromDecimal converts a major-unit decimal into an Amount. Values with more
// fractional digits than the currency allows are rejected, not rounded.
func FromDecimal(d decimal.Decimal, currency string) (Amount, error) {
	exp := Exponent(currency)
	scaled := d.Shift(exp)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s has more than %d decimal places for %s", ErrInvalidAmount, d, exp, currency)
	}
	units := scaled.IntPart()
	if !decimal.NewFromInt(units).Equal(scaled) {
		return 0, fmt.Errorf("%w: %s overflows", ErrInvalidAmount, d)
	}
	return Amount(units), nil
}

// Decimal returns the amount in major units.
func (a Amount) Decimal(currency string) decimal.Decimal {
	return decimal.New(int64(a), -Exponent(currency))
}

// Format renders the amount in major units with the currency's fixed digits.
func (a Amount) Format(currency string) string {
	return a.Decimal(currency).StringFixed(Exponent(currency))
}

// Abs returns the absolute value.
func (a Amount) Abs() Amount {
	if a < 0 {
		return -a
	}
	return a
}

// Min returns the smaller of two amounts.
func Min(a, b Amount) Amount {
	if a < b {
		return a
	}
	return b
}

// Add returns a+b, or ErrOverflow if the result does not fit.
func Add(a, b Amount) (Amount, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, a, b)
	}
	return sum, nil
}

// Sum adds amounts, failing on overflow.
func Sum(values ...Amount) (Amount, error) {
	var total Amount
	for _, v := range values {
		var err error
		if total, err = Add(total, v); err != nil {
			return 0, err
		}
	}
	return total, nil
}
