package services

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/diewo77/facturation/internal/billing"
	"github.com/diewo77/facturation/internal/models"
)

// LineInput is one requested line item, common to invoices and quotes.
type LineInput struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
}

// computeLines validates every requested line and derives its amounts. All
// violations are collected so the caller gets one ValidationError naming each
// offending field, not just the first.
func computeLines(inputs []LineInput) ([]billing.LineAmounts, *ValidationError) {
	verr := newValidationError()
	if len(inputs) == 0 {
		verr.Fields["lines"] = "at least one line is required"
		return nil, verr
	}
	amounts := make([]billing.LineAmounts, 0, len(inputs))
	for i, in := range inputs {
		if strings.TrimSpace(in.Description) == "" {
			verr.Fields[fmt.Sprintf("lines[%d].description", i)] = "required"
		}
		a, err := billing.ComputeLine(in.Quantity, in.UnitPrice, in.TaxRate)
		if err != nil {
			verr.Fields[fmt.Sprintf("lines[%d]", i)] = err.Error()
			continue
		}
		amounts = append(amounts, a)
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}
	return amounts, nil
}

func buildInvoiceLines(inputs []LineInput, amounts []billing.LineAmounts) []models.InvoiceLine {
	lines := make([]models.InvoiceLine, len(inputs))
	for i, in := range inputs {
		lines[i] = models.InvoiceLine{
			Description: in.Description,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			TaxRate:     in.TaxRate,
			AmountNet:   amounts[i].Net,
			AmountTax:   amounts[i].Tax,
			AmountGross: amounts[i].Gross,
		}
	}
	return lines
}

func buildQuoteLines(inputs []LineInput, amounts []billing.LineAmounts) []models.QuoteLine {
	lines := make([]models.QuoteLine, len(inputs))
	for i, in := range inputs {
		lines[i] = models.QuoteLine{
			Description: in.Description,
			Quantity:    in.Quantity,
			UnitPrice:   in.UnitPrice,
			TaxRate:     in.TaxRate,
			AmountNet:   amounts[i].Net,
			AmountTax:   amounts[i].Tax,
			AmountGross: amounts[i].Gross,
		}
	}
	return lines
}
