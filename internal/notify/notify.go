// Package notify delivers client-facing emails for document events. Delivery
// is decoupled from persistence: a failed send is logged and degrades the
// operation's outcome message, it never rolls anything back.
package notify

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/diewo77/facturation/internal/mail"
	"github.com/diewo77/facturation/internal/models"
	"github.com/diewo77/facturation/internal/pdf"
)

// Dispatcher queues document events and sends the matching email from a
// single worker goroutine. It implements the services.Notifier contract.
type Dispatcher struct {
	sender mail.Sender
	seller pdf.Seller
	log    zerolog.Logger

	mu     sync.Mutex
	closed bool
	tasks  chan func()
	done   chan struct{}
}

func NewDispatcher(sender mail.Sender, seller pdf.Seller, log zerolog.Logger) *Dispatcher {
	d := &Dispatcher{
		sender: sender,
		seller: seller,
		log:    log.With().Str("component", "notify").Logger(),
		tasks:  make(chan func(), 64),
		done:   make(chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	for task := range d.tasks {
		task()
	}
	close(d.done)
}

// Close stops accepting events and waits for queued sends to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.tasks)
	}
	d.mu.Unlock()
	<-d.done
}

func (d *Dispatcher) enqueue(task func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	select {
	case d.tasks <- task:
	default:
		// A saturated queue means the relay is down or drowning. Dropping the
		// event keeps document writes unaffected.
		d.log.Warn().Msg("notification queue full, dropping event")
	}
}

func (d *Dispatcher) InvoiceIssued(inv *models.Invoice) {
	snap := *inv
	d.enqueue(func() {
		if err := d.SendInvoice(&snap, snap.Client.Email); err != nil {
			d.log.Error().Err(err).Str("invoice", snap.Number).Msg("invoice email failed")
		}
	})
}

func (d *Dispatcher) InvoicePaid(inv *models.Invoice) {
	snap := *inv
	d.enqueue(func() {
		subject, body := mail.InvoicePaidMessage(&snap)
		if err := d.sender.Send(snap.Client.Email, subject, body); err != nil {
			d.log.Error().Err(err).Str("invoice", snap.Number).Msg("payment receipt email failed")
		}
	})
}

func (d *Dispatcher) QuoteIssued(q *models.Quote) {
	snap := *q
	d.enqueue(func() {
		if err := d.SendQuote(&snap, snap.Client.Email); err != nil {
			d.log.Error().Err(err).Str("quote", snap.Number).Msg("quote email failed")
		}
	})
}

// SendInvoice sends the invoice email synchronously to an explicit address,
// attaching the rendered PDF when the sender supports attachments. Used by
// the send endpoint and the CLI; the async path reuses it.
func (d *Dispatcher) SendInvoice(inv *models.Invoice, to string) error {
	subject, body := mail.InvoiceIssuedMessage(inv)
	if as, ok := d.sender.(mail.AttachmentSender); ok {
		data, err := pdf.InvoicePDF(inv, d.seller)
		if err != nil {
			// The mail still goes out, just without the document.
			d.log.Error().Err(err).Str("invoice", inv.Number).Msg("pdf generation failed, sending without attachment")
		} else {
			return as.SendWithAttachment(to, subject, body, mail.Attachment{
				Filename: pdf.InvoiceFilename(inv),
				Content:  data,
			})
		}
	}
	return d.sender.Send(to, subject, body)
}

// SendQuote sends the quote email synchronously to an explicit address.
func (d *Dispatcher) SendQuote(q *models.Quote, to string) error {
	subject, body := mail.QuoteIssuedMessage(q)
	if as, ok := d.sender.(mail.AttachmentSender); ok {
		data, err := pdf.QuotePDF(q, d.seller)
		if err != nil {
			d.log.Error().Err(err).Str("quote", q.Number).Msg("pdf generation failed, sending without attachment")
		} else {
			return as.SendWithAttachment(to, subject, body, mail.Attachment{
				Filename: pdf.QuoteFilename(q),
				Content:  data,
			})
		}
	}
	return d.sender.Send(to, subject, body)
}
