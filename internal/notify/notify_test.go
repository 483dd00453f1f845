package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/diewo77/facturation/internal/mail"
	"github.com/diewo77/facturation/internal/models"
	"github.com/diewo77/facturation/internal/pdf"
)

func testInvoice() *models.Invoice {
	return &models.Invoice{
		Number:     "F-202506-001",
		IssueDate:  time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC),
		DueDate:    time.Date(2025, time.July, 10, 0, 0, 0, 0, time.UTC),
		TotalNet:   decimal.RequireFromString("200"),
		TotalTax:   decimal.RequireFromString("40"),
		TotalGross: decimal.RequireFromString("240"),
		Client:     &models.Client{Name: "ACME SARL", Email: "compta@acme.example"},
		Lines: []models.InvoiceLine{{
			Description: "Prestation",
			Quantity:    decimal.RequireFromString("2"),
			UnitPrice:   decimal.RequireFromString("100"),
			TaxRate:     decimal.RequireFromString("20"),
			AmountNet:   decimal.RequireFromString("200"),
			AmountTax:   decimal.RequireFromString("40"),
			AmountGross: decimal.RequireFromString("240"),
		}},
	}
}

func TestDispatcherSendsInvoiceWithAttachment(t *testing.T) {
	sink := &mail.Memory{}
	d := NewDispatcher(sink, pdf.DefaultSeller, zerolog.Nop())

	d.InvoiceIssued(testInvoice())
	d.Close()

	if len(sink.Outbox) != 1 {
		t.Fatalf("outbox = %d, want 1", len(sink.Outbox))
	}
	msg := sink.Outbox[0]
	if msg.To != "compta@acme.example" {
		t.Errorf("to = %s", msg.To)
	}
	if msg.Attachment == nil {
		t.Fatal("missing pdf attachment")
	}
	if !strings.HasPrefix(msg.Attachment.Filename, "Facture_F-202506-001_") {
		t.Errorf("attachment filename = %s", msg.Attachment.Filename)
	}
	if len(msg.Attachment.Content) == 0 {
		t.Error("empty pdf attachment")
	}
}

func TestDispatcherSendsPaymentReceipt(t *testing.T) {
	sink := &mail.Memory{}
	d := NewDispatcher(sink, pdf.DefaultSeller, zerolog.Nop())

	d.InvoicePaid(testInvoice())
	d.Close()

	if len(sink.Outbox) != 1 {
		t.Fatalf("outbox = %d, want 1", len(sink.Outbox))
	}
	if !strings.Contains(sink.Outbox[0].Subject, "Paiement") {
		t.Errorf("subject = %s", sink.Outbox[0].Subject)
	}
}

func TestSendQuoteSynchronous(t *testing.T) {
	sink := &mail.Memory{}
	d := NewDispatcher(sink, pdf.DefaultSeller, zerolog.Nop())
	defer d.Close()

	q := &models.Quote{
		Number:     "D-202506-001",
		IssueDate:  time.Date(2025, time.June, 5, 0, 0, 0, 0, time.UTC),
		ValidUntil: time.Date(2025, time.July, 5, 0, 0, 0, 0, time.UTC),
		TotalNet:   decimal.RequireFromString("100"),
		TotalTax:   decimal.RequireFromString("20"),
		TotalGross: decimal.RequireFromString("120"),
		Client:     &models.Client{Name: "ACME SARL", Email: "compta@acme.example"},
	}
	if err := d.SendQuote(q, "autre@acme.example"); err != nil {
		t.Fatalf("send quote: %v", err)
	}
	if len(sink.Outbox) != 1 || sink.Outbox[0].To != "autre@acme.example" {
		t.Fatalf("outbox = %+v", sink.Outbox)
	}
}
