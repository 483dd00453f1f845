// Package billing holds the calculation and numbering core shared by invoices
// and quotes: net/tax/gross arithmetic on fixed-point decimals, and the
// per-month sequential document numbers.
package billing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidInput is returned when a line item fails validation. The wrapped
// message names the offending field.
var ErrInvalidInput = errors.New("invalid input")

var hundred = decimal.NewFromInt(100)

// LineAmounts are the derived amounts of a single line item, each rounded to
// two decimals.
type LineAmounts struct {
	Net   decimal.Decimal
	Tax   decimal.Decimal
	Gross decimal.Decimal
}

// Totals are the document-level sums of the line amounts.
type Totals struct {
	Net   decimal.Decimal
	Tax   decimal.Decimal
	Gross decimal.Decimal
}

// ComputeLine derives net, tax and gross from a quantity/unit-price/tax-rate
// triple. Net and tax are rounded to two decimals per line; gross is their
// exact sum. Totals built from these values must not round again, so that
// historical documents keep their amounts.
func ComputeLine(quantity, unitPrice, taxRatePercent decimal.Decimal) (LineAmounts, error) {
	if quantity.Sign() <= 0 {
		return LineAmounts{}, fmt.Errorf("%w: quantity must be greater than zero", ErrInvalidInput)
	}
	if unitPrice.Sign() < 0 {
		return LineAmounts{}, fmt.Errorf("%w: unit price must not be negative", ErrInvalidInput)
	}
	if taxRatePercent.Sign() < 0 || taxRatePercent.GreaterThan(hundred) {
		return LineAmounts{}, fmt.Errorf("%w: tax rate must be between 0 and 100", ErrInvalidInput)
	}
	net := quantity.Mul(unitPrice).Round(2)
	tax := net.Mul(taxRatePercent).Div(hundred).Round(2)
	return LineAmounts{Net: net, Tax: tax, Gross: net.Add(tax)}, nil
}

// ComputeTotals sums the derived amounts of all lines. No rounding happens
// here: the inputs are already rounded per line.
func ComputeTotals(lines []LineAmounts) Totals {
	var t Totals
	for _, l := range lines {
		t.Net = t.Net.Add(l.Net)
		t.Tax = t.Tax.Add(l.Tax)
		t.Gross = t.Gross.Add(l.Gross)
	}
	return t
}
