package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/diewo77/facturation/internal/billing"
	"github.com/diewo77/facturation/internal/models"
)

// invoiceDueTerm is the payment window granted to invoices produced by quote
// conversion.
const invoiceDueTerm = 30 * 24 * time.Hour

// QuoteInput is the payload for creating or updating a quote.
type QuoteInput struct {
	ClientID     uint        `json:"client_id"`
	IssueDate    time.Time   `json:"issue_date"`
	ValidUntil   time.Time   `json:"valid_until"`
	PaymentTerms string      `json:"payment_terms"`
	Notes        string      `json:"notes"`
	LegalNotice  string      `json:"legal_notice"`
	Lines        []LineInput `json:"lines"`
}

// QuoteStats counts a user's quotes per status.
type QuoteStats struct {
	Pending  int64 `json:"pending"`
	Accepted int64 `json:"accepted"`
	Rejected int64 `json:"rejected"`
	Expired  int64 `json:"expired"`
	Invoiced int64 `json:"invoiced"`
}

// QuoteService owns the quote lifecycle, including expiry and conversion into
// an invoice.
type QuoteService struct {
	db         *gorm.DB
	prefix     string
	invoiceSvc *InvoiceService
	notifier   Notifier
	log        zerolog.Logger
}

func NewQuoteService(db *gorm.DB, prefix string, invoices *InvoiceService, notifier Notifier, log zerolog.Logger) *QuoteService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &QuoteService{db: db, prefix: prefix, invoiceSvc: invoices, notifier: notifier, log: log.With().Str("component", "quotes").Logger()}
}

func (s *QuoteService) validate(in QuoteInput) ([]billing.LineAmounts, error) {
	amounts, verr := computeLines(in.Lines)
	if verr == nil {
		verr = newValidationError()
	}
	if in.ClientID == 0 {
		verr.Fields["client_id"] = "required"
	}
	if in.IssueDate.IsZero() {
		verr.Fields["issue_date"] = "required"
	}
	if in.ValidUntil.IsZero() {
		verr.Fields["valid_until"] = "required"
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}
	return amounts, nil
}

func (s *QuoteService) clientFor(ctx context.Context, userID, clientID uint) (*models.Client, error) {
	var client models.Client
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", clientID, userID).First(&client).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &ValidationError{Fields: map[string]string{"client_id": "unknown client"}}
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

// Create builds a quote from the input, allocates its number and persists
// document and lines in one transaction.
func (s *QuoteService) Create(ctx context.Context, userID uint, in QuoteInput) (*models.Quote, error) {
	amounts, err := s.validate(in)
	if err != nil {
		return nil, err
	}
	client, err := s.clientFor(ctx, userID, in.ClientID)
	if err != nil {
		return nil, err
	}
	totals := billing.ComputeTotals(amounts)

	var q models.Quote
	for attempt := 0; ; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			number, err := billing.Allocate(tx, &models.Quote{}, s.prefix, in.IssueDate)
			if err != nil {
				return err
			}
			q = models.Quote{
				UserID:       userID,
				Number:       number,
				ClientID:     client.ID,
				IssueDate:    in.IssueDate,
				ValidUntil:   in.ValidUntil,
				Status:       models.QuoteStatusPending,
				PaymentTerms: in.PaymentTerms,
				Notes:        in.Notes,
				LegalNotice:  in.LegalNotice,
				TotalNet:     totals.Net,
				TotalTax:     totals.Tax,
				TotalGross:   totals.Gross,
				Lines:        buildQuoteLines(in.Lines, amounts),
			}
			return tx.Create(&q).Error
		})
		if err == nil {
			break
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) && attempt < allocRetries {
			s.log.Warn().Int("attempt", attempt+1).Msg("quote number collision, retrying allocation")
			continue
		}
		return nil, err
	}
	q.Client = client
	if client.Email != "" {
		s.notifier.QuoteIssued(&q)
	}
	return &q, nil
}

// Get loads a quote by number with its client and lines.
func (s *QuoteService) Get(ctx context.Context, userID uint, number string) (*models.Quote, error) {
	var q models.Quote
	err := s.db.WithContext(ctx).
		Preload("Client").Preload("Lines").
		Where("user_id = ? AND number = ?", userID, number).
		First(&q).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// List returns the user's quotes newest first, optionally filtered by status.
func (s *QuoteService) List(ctx context.Context, userID uint, status models.QuoteStatus) ([]models.Quote, error) {
	qr := s.db.WithContext(ctx).Preload("Client").Where("user_id = ?", userID)
	if status != "" {
		qr = qr.Where("status = ?", status)
	}
	var quotes []models.Quote
	if err := qr.Order("created_at DESC").Find(&quotes).Error; err != nil {
		return nil, err
	}
	return quotes, nil
}

// Stats counts quotes per status for the dashboard.
func (s *QuoteService) Stats(ctx context.Context, userID uint) (QuoteStats, error) {
	type row struct {
		Status models.QuoteStatus
		N      int64
	}
	var rows []row
	err := s.db.WithContext(ctx).Model(&models.Quote{}).
		Select("status, COUNT(*) AS n").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return QuoteStats{}, err
	}
	var stats QuoteStats
	for _, r := range rows {
		switch r.Status {
		case models.QuoteStatusPending:
			stats.Pending = r.N
		case models.QuoteStatusAccepted:
			stats.Accepted = r.N
		case models.QuoteStatusRejected:
			stats.Rejected = r.N
		case models.QuoteStatusExpired:
			stats.Expired = r.N
		case models.QuoteStatusInvoiced:
			stats.Invoiced = r.N
		}
	}
	return stats, nil
}

// Update replaces the quote's mutable fields and all of its lines, then
// recomputes the totals, atomically. Number and status stay as they are.
func (s *QuoteService) Update(ctx context.Context, userID uint, number string, in QuoteInput) (*models.Quote, error) {
	amounts, err := s.validate(in)
	if err != nil {
		return nil, err
	}
	client, err := s.clientFor(ctx, userID, in.ClientID)
	if err != nil {
		return nil, err
	}
	totals := billing.ComputeTotals(amounts)

	var q models.Quote
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND number = ?", userID, number).First(&q).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		q.ClientID = client.ID
		q.IssueDate = in.IssueDate
		q.ValidUntil = in.ValidUntil
		q.PaymentTerms = in.PaymentTerms
		q.Notes = in.Notes
		q.LegalNotice = in.LegalNotice
		q.TotalNet = totals.Net
		q.TotalTax = totals.Tax
		q.TotalGross = totals.Gross
		if err := tx.Save(&q).Error; err != nil {
			return err
		}
		if err := tx.Where("quote_id = ?", q.ID).Delete(&models.QuoteLine{}).Error; err != nil {
			return err
		}
		lines := buildQuoteLines(in.Lines, amounts)
		for i := range lines {
			lines[i].QuoteID = q.ID
		}
		if err := tx.Create(&lines).Error; err != nil {
			return err
		}
		q.Lines = lines
		return nil
	})
	if err != nil {
		return nil, err
	}
	q.Client = client
	if client.Email != "" {
		s.notifier.QuoteIssued(&q)
	}
	return &q, nil
}

// Delete removes the quote unless it has been converted into an invoice.
func (s *QuoteService) Delete(ctx context.Context, userID uint, number string) error {
	q, err := s.Get(ctx, userID, number)
	if err != nil {
		return err
	}
	if q.Status == models.QuoteStatusInvoiced {
		return fmt.Errorf("%w: quote %s has been invoiced", ErrConflict, q.Number)
	}
	// Line deletion is explicit, the cascade constraint is not enforced on
	// sqlite.
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("quote_id = ?", q.ID).Delete(&models.QuoteLine{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Quote{}, q.ID).Error
	})
}

// MarkAccepted transitions a pending quote to accepted.
func (s *QuoteService) MarkAccepted(ctx context.Context, userID uint, number string) (*models.Quote, error) {
	return s.mark(ctx, userID, number, (*models.Quote).MarkAccepted)
}

// MarkRejected transitions a pending quote to rejected.
func (s *QuoteService) MarkRejected(ctx context.Context, userID uint, number string) (*models.Quote, error) {
	return s.mark(ctx, userID, number, (*models.Quote).MarkRejected)
}

func (s *QuoteService) mark(ctx context.Context, userID uint, number string, move func(*models.Quote) error) (*models.Quote, error) {
	q, err := s.Get(ctx, userID, number)
	if err != nil {
		return nil, err
	}
	if err := move(q); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(q).Update("status", q.Status).Error; err != nil {
		return nil, err
	}
	return q, nil
}

// ConvertToInvoice turns an accepted quote into a pending invoice in one
// transaction: the invoice gets a fresh number and copies of the quote's
// lines, the quote moves to invoiced and records the invoice it produced.
// The new invoice is due thirty days after its issue date.
func (s *QuoteService) ConvertToInvoice(ctx context.Context, userID uint, number string, now time.Time) (*models.Invoice, error) {
	q, err := s.Get(ctx, userID, number)
	if err != nil {
		return nil, err
	}
	if err := q.MarkInvoiced(); err != nil {
		return nil, err
	}

	var inv models.Invoice
	for attempt := 0; ; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			invNumber, err := billing.Allocate(tx, &models.Invoice{}, s.invoiceSvc.prefix, now)
			if err != nil {
				return err
			}
			lines := make([]models.InvoiceLine, len(q.Lines))
			for i, l := range q.Lines {
				lines[i] = models.InvoiceLine{
					Description: l.Description,
					Quantity:    l.Quantity,
					UnitPrice:   l.UnitPrice,
					TaxRate:     l.TaxRate,
					AmountNet:   l.AmountNet,
					AmountTax:   l.AmountTax,
					AmountGross: l.AmountGross,
				}
			}
			inv = models.Invoice{
				UserID:       userID,
				Number:       invNumber,
				ClientID:     q.ClientID,
				IssueDate:    now,
				DueDate:      now.Add(invoiceDueTerm),
				Status:       models.InvoiceStatusPending,
				PaymentTerms: q.PaymentTerms,
				Notes:        q.Notes,
				LegalNotice:  q.LegalNotice,
				TotalNet:     q.TotalNet,
				TotalTax:     q.TotalTax,
				TotalGross:   q.TotalGross,
				Lines:        lines,
			}
			if err := tx.Create(&inv).Error; err != nil {
				return err
			}
			return tx.Model(q).Updates(map[string]any{
				"status":     models.QuoteStatusInvoiced,
				"invoice_id": inv.ID,
			}).Error
		})
		if err == nil {
			break
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) && attempt < allocRetries {
			s.log.Warn().Int("attempt", attempt+1).Msg("invoice number collision during conversion, retrying")
			continue
		}
		return nil, err
	}
	inv.Client = q.Client
	if q.Client != nil && q.Client.Email != "" {
		s.notifier.InvoiceIssued(&inv)
	}
	return &inv, nil
}

// SweepExpired transitions the user's pending quotes whose validity date lies
// strictly before now's date to expired. userID zero sweeps every owner.
func (s *QuoteService) SweepExpired(ctx context.Context, userID uint, now time.Time) (int64, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	qr := s.db.WithContext(ctx).Model(&models.Quote{}).
		Where("status = ? AND valid_until < ?", models.QuoteStatusPending, today)
	if userID != 0 {
		qr = qr.Where("user_id = ?", userID)
	}
	res := qr.Update("status", models.QuoteStatusExpired)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		s.log.Info().Int64("count", res.RowsAffected).Msg("quotes moved to expired")
	}
	return res.RowsAffected, nil
}
