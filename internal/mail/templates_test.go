package mail

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/diewo77/facturation/internal/models"
)

func sampleInvoice() *models.Invoice {
	return &models.Invoice{
		Number:     "EZLES-202506-001",
		IssueDate:  time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC),
		DueDate:    time.Date(2025, time.July, 10, 0, 0, 0, 0, time.UTC),
		TotalNet:   decimal.RequireFromString("200"),
		TotalTax:   decimal.RequireFromString("40"),
		TotalGross: decimal.RequireFromString("240"),
		Client:     &models.Client{Name: "ACME SARL"},
	}
}

func TestInvoiceIssuedMessage(t *testing.T) {
	subject, html := InvoiceIssuedMessage(sampleInvoice())
	if subject != "Merci pour votre confiance - Ezles" {
		t.Errorf("subject = %q", subject)
	}
	for _, want := range []string{"EZLES-202506-001", "ACME SARL", "10/06/2025", "10/07/2025", "240,00"} {
		if !strings.Contains(html, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestInvoicePaidMessage(t *testing.T) {
	subject, html := InvoicePaidMessage(sampleInvoice())
	if !strings.Contains(subject, "EZLES-202506-001") {
		t.Errorf("subject = %q, want invoice number", subject)
	}
	if !strings.Contains(html, "240,00") {
		t.Errorf("body missing settled amount")
	}
}

func TestQuoteIssuedMessage(t *testing.T) {
	q := &models.Quote{
		Number:     "EZLES-DEVIS-202506-001",
		IssueDate:  time.Date(2025, time.June, 5, 0, 0, 0, 0, time.UTC),
		ValidUntil: time.Date(2025, time.July, 5, 0, 0, 0, 0, time.UTC),
		TotalNet:   decimal.RequireFromString("100"),
		TotalTax:   decimal.RequireFromString("20"),
		TotalGross: decimal.RequireFromString("120"),
		Client:     &models.Client{Name: "ACME SARL"},
	}
	subject, html := QuoteIssuedMessage(q)
	if subject != "Devis EZLES-DEVIS-202506-001 - Ezles" {
		t.Errorf("subject = %q", subject)
	}
	if !strings.Contains(html, "05/07/2025") {
		t.Errorf("body missing validity date")
	}
}

func TestMemoryRecordsMessages(t *testing.T) {
	m := &Memory{}
	if err := m.Send("a@example.com", "s", "<p>b</p>"); err != nil {
		t.Fatal(err)
	}
	if err := m.SendWithAttachment("a@example.com", "s", "<p>b</p>", Attachment{Filename: "f.pdf", Content: []byte("x")}); err != nil {
		t.Fatal(err)
	}
	if len(m.Outbox) != 2 {
		t.Fatalf("outbox = %d, want 2", len(m.Outbox))
	}
	if m.Outbox[1].Attachment == nil || m.Outbox[1].Attachment.Filename != "f.pdf" {
		t.Errorf("attachment not captured: %+v", m.Outbox[1])
	}
}
