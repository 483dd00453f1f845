package billing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestComputeLine(t *testing.T) {
	tests := []struct {
		name                 string
		qty, price, rate     string
		wantNet, wantTax     string
		wantGross            string
	}{
		{"standard VAT", "2", "100.00", "20", "200.00", "40.00", "240.00"},
		{"reduced VAT", "1", "50.00", "5.5", "50.00", "2.75", "52.75"},
		{"zero rate", "3", "10.00", "0", "30.00", "0.00", "30.00"},
		{"full rate", "1", "10.00", "100", "10.00", "10.00", "20.00"},
		{"fractional quantity", "0.5", "99.99", "20", "50.00", "10.00", "60.00"},
		{"rounding per line", "1", "10.33", "19.6", "10.33", "2.02", "12.35"},
		{"zero price", "4", "0", "20", "0.00", "0.00", "0.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeLine(dec(tt.qty), dec(tt.price), dec(tt.rate))
			if err != nil {
				t.Fatalf("ComputeLine: %v", err)
			}
			if !got.Net.Equal(dec(tt.wantNet)) {
				t.Errorf("net = %s, want %s", got.Net, tt.wantNet)
			}
			if !got.Tax.Equal(dec(tt.wantTax)) {
				t.Errorf("tax = %s, want %s", got.Tax, tt.wantTax)
			}
			if !got.Gross.Equal(dec(tt.wantGross)) {
				t.Errorf("gross = %s, want %s", got.Gross, tt.wantGross)
			}
		})
	}
}

func TestComputeLineRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name             string
		qty, price, rate string
	}{
		{"zero quantity", "0", "10", "20"},
		{"negative quantity", "-1", "10", "20"},
		{"negative price", "1", "-0.01", "20"},
		{"negative rate", "1", "10", "-1"},
		{"rate above 100", "1", "10", "100.01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeLine(dec(tt.qty), dec(tt.price), dec(tt.rate))
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("err = %v, want ErrInvalidInput", err)
			}
		})
	}
}

func TestComputeTotalsSumsRoundedLines(t *testing.T) {
	// Two lines whose tax each rounds individually; the total is the sum of
	// the rounded values, not a re-rounded exact sum.
	l1, err := ComputeLine(dec("1"), dec("10.33"), dec("19.6"))
	if err != nil {
		t.Fatal(err)
	}
	l2, err := ComputeLine(dec("1"), dec("10.38"), dec("19.6"))
	if err != nil {
		t.Fatal(err)
	}
	totals := ComputeTotals([]LineAmounts{l1, l2})
	if !totals.Net.Equal(dec("20.71")) {
		t.Errorf("net total = %s, want 20.71", totals.Net)
	}
	// 2.02 + 2.03, not round(20.71 * 0.196) = 4.06
	if !totals.Tax.Equal(dec("4.05")) {
		t.Errorf("tax total = %s, want 4.05", totals.Tax)
	}
	if !totals.Gross.Equal(totals.Net.Add(totals.Tax)) {
		t.Errorf("gross total = %s, want net+tax = %s", totals.Gross, totals.Net.Add(totals.Tax))
	}
}

func TestComputeTotalsEmpty(t *testing.T) {
	totals := ComputeTotals(nil)
	if !totals.Net.IsZero() || !totals.Tax.IsZero() || !totals.Gross.IsZero() {
		t.Errorf("totals of no lines = %+v, want zeros", totals)
	}
}
