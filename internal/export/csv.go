// Package export renders CSV downloads the way French spreadsheet users
// expect them: semicolon separated, UTF-8 BOM for Excel, d/m/Y dates and
// comma decimals.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/diewo77/facturation/internal/models"
)

const dateLayout = "02/01/2006"

var bom = []byte{0xEF, 0xBB, 0xBF}

// InvoiceStatusLabel maps a status to its French display label.
func InvoiceStatusLabel(s models.InvoiceStatus) string {
	switch s {
	case models.InvoiceStatusPaid:
		return "Payée"
	case models.InvoiceStatusOverdue:
		return "En retard"
	default:
		return "En attente"
	}
}

// QuoteStatusLabel maps a status to its French display label.
func QuoteStatusLabel(s models.QuoteStatus) string {
	switch s {
	case models.QuoteStatusAccepted:
		return "Accepté"
	case models.QuoteStatusRejected:
		return "Refusé"
	case models.QuoteStatusExpired:
		return "Expiré"
	case models.QuoteStatusInvoiced:
		return "Facturé"
	default:
		return "En attente"
	}
}

// frMoney formats an amount with a comma decimal separator and spaces
// grouping thousands, e.g. "1 234,50".
func frMoney(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, fracPart, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	out := b.String() + "," + fracPart
	if neg {
		out = "-" + out
	}
	return out
}

func clientName(c *models.Client) string {
	if c == nil {
		return ""
	}
	return c.Name
}

func newWriter(w io.Writer) (*csv.Writer, error) {
	if _, err := w.Write(bom); err != nil {
		return nil, err
	}
	cw := csv.NewWriter(w)
	cw.Comma = ';'
	return cw, nil
}

// InvoicesFilename names the full invoice export download.
func InvoicesFilename(now time.Time) string {
	return fmt.Sprintf("factures_%s.csv", now.Format("2006-01-02_150405"))
}

// UnpaidFilename names the unpaid invoice export download.
func UnpaidFilename(now time.Time) string {
	return fmt.Sprintf("factures_impayees_%s.csv", now.Format("2006-01-02_150405"))
}

// QuotesFilename names the quote export download.
func QuotesFilename(now time.Time) string {
	return fmt.Sprintf("devis_%s.csv", now.Format("2006-01-02_150405"))
}

// Invoices writes every invoice as one CSV row.
func Invoices(w io.Writer, invs []models.Invoice) error {
	cw, err := newWriter(w)
	if err != nil {
		return err
	}
	header := []string{
		"Numéro de facture", "Client", "Date d'émission", "Date d'échéance",
		"Statut", "Montant HT", "Montant TVA", "Montant TTC",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, inv := range invs {
		rec := []string{
			inv.Number,
			clientName(inv.Client),
			inv.IssueDate.Format(dateLayout),
			inv.DueDate.Format(dateLayout),
			InvoiceStatusLabel(inv.Status),
			frMoney(inv.TotalNet),
			frMoney(inv.TotalTax),
			frMoney(inv.TotalGross),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// UnpaidInvoices writes pending and overdue invoices with a trailing
// days-late column. Invoices not yet due show zero.
func UnpaidInvoices(w io.Writer, invs []models.Invoice, now time.Time) error {
	cw, err := newWriter(w)
	if err != nil {
		return err
	}
	header := []string{
		"Numéro de facture", "Client", "Date d'émission", "Date d'échéance",
		"Statut", "Montant HT", "Montant TVA", "Montant TTC", "Jours de retard",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	for _, inv := range invs {
		due := time.Date(inv.DueDate.Year(), inv.DueDate.Month(), inv.DueDate.Day(), 0, 0, 0, 0, time.UTC)
		daysLate := int(today.Sub(due).Hours() / 24)
		if daysLate < 0 {
			daysLate = 0
		}
		rec := []string{
			inv.Number,
			clientName(inv.Client),
			inv.IssueDate.Format(dateLayout),
			inv.DueDate.Format(dateLayout),
			InvoiceStatusLabel(inv.Status),
			frMoney(inv.TotalNet),
			frMoney(inv.TotalTax),
			frMoney(inv.TotalGross),
			strconv.Itoa(daysLate),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Quotes writes every quote as one CSV row.
func Quotes(w io.Writer, quotes []models.Quote) error {
	cw, err := newWriter(w)
	if err != nil {
		return err
	}
	header := []string{
		"Numéro de devis", "Client", "Date d'émission", "Valable jusqu'au",
		"Statut", "Montant HT", "Montant TVA", "Montant TTC",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, q := range quotes {
		rec := []string{
			q.Number,
			clientName(q.Client),
			q.IssueDate.Format(dateLayout),
			q.ValidUntil.Format(dateLayout),
			QuoteStatusLabel(q.Status),
			frMoney(q.TotalNet),
			frMoney(q.TotalTax),
			frMoney(q.TotalGross),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
