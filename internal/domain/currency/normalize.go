// Package currency converts amounts between currencies with a caller-supplied rate.
// It never fetches rates itself.
package currency

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	// ErrInvalidRate is returned for a zero or negative conversion rate
	ErrInvalidRate = errors.New("exchange rate must be positive")

	// ErrInvalidCode is returned for a code that is not an ISO 4217 currency
	ErrInvalidCode = errors.New("invalid currency code")
)

// ParseCode validates an ISO 4217 code and returns it in canonical upper case
func ParseCode(code string) (string, error) {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidCode, code)
	}
	return unit.String(), nil
}

// Round2 rounds half away from zero to two decimal places. For the non-negative amounts
// this engine produces that is round-half-up.
func Round2(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// Normalize converts amount from one currency into another. When both codes are equal the
// amount is returned untouched and rate is ignored. Otherwise the result is
// Round2(amount * rate), rounded exactly once here.
func Normalize(amount decimal.Decimal, from, to string, rate decimal.Decimal) (decimal.Decimal, error) {
	fromCode, err := ParseCode(from)
	if err != nil {
		return decimal.Zero, err
	}
	toCode, err := ParseCode(to)
	if err != nil {
		return decimal.Zero, err
	}

	if fromCode == toCode {
		return amount, nil
	}

	if !rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %s->%s rate %s", ErrInvalidRate, fromCode, toCode, rate)
	}

	return Round2(amount.Mul(rate)), nil
}

// Format renders an amount with the number conventions of tag, e.g. "1.234,50 EUR" for German
func Format(tag language.Tag, amount decimal.Decimal, code string) string {
	f, _ := Round2(amount).Float64()
	return message.NewPrinter(tag).Sprintf("%.2f %s", f, strings.ToUpper(code))
}
