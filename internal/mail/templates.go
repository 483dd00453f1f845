package mail

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/diewo77/facturation/internal/models"
)

// Messages keep the sender's French wording. Amounts are formatted with the
// French decimal comma and a euro suffix.

const dateLayout = "02/01/2006"

func euro(d decimal.Decimal) string {
	return strings.Replace(d.StringFixed(2), ".", ",", 1) + " €"
}

var bodyTmpl = template.Must(template.New("body").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body style="font-family: 'Helvetica Neue', Helvetica, Arial, sans-serif; color: #333;">
  <div style="max-width: 600px; margin: 0 auto;">
    <h1 style="color: #026fe5;">{{.Heading}}</h1>
    <p>Bonjour{{if .ClientName}} {{.ClientName}}{{end}},</p>
    {{range .Paragraphs}}<p>{{.}}</p>
    {{end}}<table style="width: 100%; border-collapse: collapse; background-color: #f9fafb;">
      {{range .Rows}}<tr><th style="text-align: left; padding: 8px;">{{.Label}}</th><td style="padding: 8px;">{{.Value}}</td></tr>
      {{end}}
    </table>
    <p>Cordialement,<br>L'équipe Ezles</p>
  </div>
</body>
</html>`))

type bodyData struct {
	Title      string
	Heading    string
	ClientName string
	Paragraphs []string
	Rows       []row
}

type row struct {
	Label string
	Value string
}

func render(data bodyData) string {
	var b strings.Builder
	if err := bodyTmpl.Execute(&b, data); err != nil {
		// The template is static and the data is plain strings; execution
		// cannot fail at runtime.
		panic(err)
	}
	return b.String()
}

// InvoiceIssuedMessage builds the subject and body announcing a new invoice.
func InvoiceIssuedMessage(inv *models.Invoice) (subject, html string) {
	subject = "Merci pour votre confiance - Ezles"
	var name string
	if inv.Client != nil {
		name = inv.Client.Name
	}
	html = render(bodyData{
		Title:      subject,
		Heading:    "Votre facture " + inv.Number,
		ClientName: name,
		Paragraphs: []string{
			"Veuillez trouver ci-dessous le détail de votre facture.",
		},
		Rows: []row{
			{"Numéro", inv.Number},
			{"Date d'émission", inv.IssueDate.Format(dateLayout)},
			{"Date d'échéance", inv.DueDate.Format(dateLayout)},
			{"Total HT", euro(inv.TotalNet)},
			{"TVA", euro(inv.TotalTax)},
			{"Total TTC", euro(inv.TotalGross)},
		},
	})
	return subject, html
}

// InvoicePaidMessage builds the payment receipt for a settled invoice.
func InvoicePaidMessage(inv *models.Invoice) (subject, html string) {
	subject = fmt.Sprintf("Paiement reçu pour la facture %s - Ezles", inv.Number)
	var name string
	if inv.Client != nil {
		name = inv.Client.Name
	}
	html = render(bodyData{
		Title:      subject,
		Heading:    "Paiement reçu",
		ClientName: name,
		Paragraphs: []string{
			fmt.Sprintf("Nous vous confirmons la réception du paiement de la facture %s.", inv.Number),
		},
		Rows: []row{
			{"Numéro", inv.Number},
			{"Montant réglé", euro(inv.TotalGross)},
		},
	})
	return subject, html
}

// QuoteIssuedMessage builds the subject and body announcing a new quote.
func QuoteIssuedMessage(q *models.Quote) (subject, html string) {
	subject = fmt.Sprintf("Devis %s - Ezles", q.Number)
	var name string
	if q.Client != nil {
		name = q.Client.Name
	}
	html = render(bodyData{
		Title:      subject,
		Heading:    "Votre devis " + q.Number,
		ClientName: name,
		Paragraphs: []string{
			"Veuillez trouver ci-dessous le détail de votre devis.",
			fmt.Sprintf("Ce devis est valable jusqu'au %s.", q.ValidUntil.Format(dateLayout)),
		},
		Rows: []row{
			{"Numéro", q.Number},
			{"Date d'émission", q.IssueDate.Format(dateLayout)},
			{"Total HT", euro(q.TotalNet)},
			{"TVA", euro(q.TotalTax)},
			{"Total TTC", euro(q.TotalGross)},
		},
	})
	return subject, html
}
