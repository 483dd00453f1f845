package pdf

import (
	"fmt"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/diewo77/facturation/internal/models"
)

const dateLayout = "02/01/2006"

// Seller is the issuing business printed in the document header.
type Seller struct {
	Name    string
	Address string
	Email   string
	SIRET   string
}

// DefaultSeller is used when no company settings are configured.
var DefaultSeller = Seller{
	Name:  "Ezles",
	Email: "contact@ezles.dev",
}

func euro(d decimal.Decimal) string {
	return strings.Replace(d.StringFixed(2), ".", ",", 1) + " EUR"
}

// InvoiceFilename names the download for an invoice document.
func InvoiceFilename(inv *models.Invoice) string {
	return fmt.Sprintf("Facture_%s_%s.pdf", inv.Number, inv.IssueDate.Format("2006-01-02"))
}

// QuoteFilename names the download for a quote document.
func QuoteFilename(q *models.Quote) string {
	return fmt.Sprintf("Devis_%s_%s.pdf", q.Number, q.IssueDate.Format("2006-01-02"))
}

type docLine struct {
	description string
	quantity    decimal.Decimal
	unitPrice   decimal.Decimal
	taxRate     decimal.Decimal
	amountNet   decimal.Decimal
}

type docData struct {
	kind          string
	number        string
	issueDate     string
	deadline      string
	deadlineLabel string
	client        *models.Client
	lines         []docLine
	totalNet      decimal.Decimal
	totalTax      decimal.Decimal
	totalGross    decimal.Decimal
	notes         string
	legal         string
}

// InvoicePDF renders an A4 portrait invoice.
func InvoicePDF(inv *models.Invoice, seller Seller) ([]byte, error) {
	lines := make([]docLine, len(inv.Lines))
	for i, l := range inv.Lines {
		lines[i] = docLine{l.Description, l.Quantity, l.UnitPrice, l.TaxRate, l.AmountNet}
	}
	return render(seller, docData{
		kind:          "FACTURE",
		number:        inv.Number,
		issueDate:     inv.IssueDate.Format(dateLayout),
		deadline:      inv.DueDate.Format(dateLayout),
		deadlineLabel: "Date d'échéance",
		client:        inv.Client,
		lines:         lines,
		totalNet:      inv.TotalNet,
		totalTax:      inv.TotalTax,
		totalGross:    inv.TotalGross,
		notes:         inv.Notes,
		legal:         inv.LegalNotice,
	})
}

// QuotePDF renders an A4 portrait quote.
func QuotePDF(q *models.Quote, seller Seller) ([]byte, error) {
	lines := make([]docLine, len(q.Lines))
	for i, l := range q.Lines {
		lines[i] = docLine{l.Description, l.Quantity, l.UnitPrice, l.TaxRate, l.AmountNet}
	}
	return render(seller, docData{
		kind:          "DEVIS",
		number:        q.Number,
		issueDate:     q.IssueDate.Format(dateLayout),
		deadline:      q.ValidUntil.Format(dateLayout),
		deadlineLabel: "Valable jusqu'au",
		client:        q.Client,
		lines:         lines,
		totalNet:      q.TotalNet,
		totalTax:      q.TotalTax,
		totalGross:    q.TotalGross,
		notes:         q.Notes,
		legal:         q.LegalNotice,
	})
}

func render(seller Seller, d docData) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(15).
		WithRightMargin(15).
		WithTopMargin(15).
		Build()
	m := maroto.New(cfg)

	m.AddRows(headerRows(seller, d)...)
	m.AddRows(clientRows(d)...)
	m.AddRows(lineRows(d)...)
	m.AddRows(totalRows(d)...)
	m.AddRows(footerRows(d)...)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("render %s %s: %w", strings.ToLower(d.kind), d.number, err)
	}
	return doc.GetBytes(), nil
}

func headerRows(seller Seller, d docData) []core.Row {
	rows := []core.Row{
		row.New(12).Add(
			text.NewCol(6, seller.Name, props.Text{Size: 14, Style: fontstyle.Bold}),
			text.NewCol(6, d.kind+" "+d.number, props.Text{Size: 14, Style: fontstyle.Bold, Align: align.Right}),
		),
	}
	left := []string{}
	if seller.Address != "" {
		left = append(left, seller.Address)
	}
	if seller.Email != "" {
		left = append(left, seller.Email)
	}
	if seller.SIRET != "" {
		left = append(left, "SIRET : "+seller.SIRET)
	}
	right := []string{
		"Date d'émission : " + d.issueDate,
		d.deadlineLabel + " : " + d.deadline,
	}
	n := len(left)
	if len(right) > n {
		n = len(right)
	}
	for i := 0; i < n; i++ {
		var l, r string
		if i < len(left) {
			l = left[i]
		}
		if i < len(right) {
			r = right[i]
		}
		rows = append(rows, row.New(5).Add(
			text.NewCol(6, l, props.Text{Size: 9}),
			text.NewCol(6, r, props.Text{Size: 9, Align: align.Right}),
		))
	}
	rows = append(rows, row.New(6).Add(line.NewCol(12)))
	return rows
}

func clientRows(d docData) []core.Row {
	if d.client == nil {
		return nil
	}
	rows := []core.Row{
		row.New(6).Add(text.NewCol(12, "Facturé à", props.Text{Size: 10, Style: fontstyle.Bold})),
		row.New(5).Add(text.NewCol(12, d.client.Name, props.Text{Size: 9})),
	}
	for _, part := range strings.Split(d.client.FullAddress(), "\n") {
		if part == "" {
			continue
		}
		rows = append(rows, row.New(5).Add(text.NewCol(12, part, props.Text{Size: 9})))
	}
	if d.client.SIRET != "" {
		rows = append(rows, row.New(5).Add(text.NewCol(12, "SIRET : "+d.client.SIRET, props.Text{Size: 9})))
	}
	if d.client.VATNumber != "" {
		rows = append(rows, row.New(5).Add(text.NewCol(12, "TVA : "+d.client.VATNumber, props.Text{Size: 9})))
	}
	rows = append(rows, row.New(6).Add(col.New(12)))
	return rows
}

func lineRows(d docData) []core.Row {
	head := props.Text{Size: 9, Style: fontstyle.Bold}
	cell := props.Text{Size: 9}
	num := props.Text{Size: 9, Align: align.Right}
	rows := []core.Row{
		row.New(7).Add(
			text.NewCol(5, "Description", head),
			text.NewCol(2, "Quantité", props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
			text.NewCol(2, "Prix unitaire HT", props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
			text.NewCol(1, "TVA", props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
			text.NewCol(2, "Montant HT", props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Right}),
		),
		row.New(2).Add(line.NewCol(12)),
	}
	for _, l := range d.lines {
		rows = append(rows, row.New(6).Add(
			text.NewCol(5, l.description, cell),
			text.NewCol(2, l.quantity.String(), num),
			text.NewCol(2, euro(l.unitPrice), num),
			text.NewCol(1, l.taxRate.StringFixed(0)+" %", num),
			text.NewCol(2, euro(l.amountNet), num),
		))
	}
	return rows
}

func totalRows(d docData) []core.Row {
	label := props.Text{Size: 9, Align: align.Right}
	value := props.Text{Size: 9, Align: align.Right}
	return []core.Row{
		row.New(4).Add(line.NewCol(12)),
		row.New(5).Add(
			text.NewCol(10, "Total HT", label),
			text.NewCol(2, euro(d.totalNet), value),
		),
		row.New(5).Add(
			text.NewCol(10, "TVA", label),
			text.NewCol(2, euro(d.totalTax), value),
		),
		row.New(6).Add(
			text.NewCol(10, "Total TTC", props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
			text.NewCol(2, euro(d.totalGross), props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Right}),
		),
	}
}

func footerRows(d docData) []core.Row {
	var rows []core.Row
	if d.notes != "" {
		rows = append(rows,
			row.New(8).Add(col.New(12)),
			row.New(5).Add(text.NewCol(12, "Notes", props.Text{Size: 9, Style: fontstyle.Bold})),
			row.New(5).Add(text.NewCol(12, d.notes, props.Text{Size: 8})),
		)
	}
	if d.legal != "" {
		rows = append(rows,
			row.New(8).Add(col.New(12)),
			row.New(5).Add(text.NewCol(12, d.legal, props.Text{Size: 7})),
		)
	}
	return rows
}
