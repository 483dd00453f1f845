package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/diewo77/facturation/internal/billing"
	"github.com/diewo77/facturation/internal/models"
)

// allocRetries bounds the retry loop around number allocation. A retry only
// happens when a concurrent creation won the same number and the unique index
// rejected ours.
const allocRetries = 3

// Notifier receives document events after the owning transaction committed.
// Implementations must not block; delivery failures are theirs to report.
type Notifier interface {
	InvoiceIssued(inv *models.Invoice)
	InvoicePaid(inv *models.Invoice)
	QuoteIssued(q *models.Quote)
}

// NopNotifier discards every event.
type NopNotifier struct{}

func (NopNotifier) InvoiceIssued(*models.Invoice) {}
func (NopNotifier) InvoicePaid(*models.Invoice)   {}
func (NopNotifier) QuoteIssued(*models.Quote)     {}

// InvoiceInput is the payload for creating or updating an invoice. The number
// and status are never part of it: the number is allocated once, the status
// moves only through explicit transitions or the sweep.
type InvoiceInput struct {
	ClientID      uint        `json:"client_id"`
	IssueDate     time.Time   `json:"issue_date"`
	DueDate       time.Time   `json:"due_date"`
	PaymentTerms  string      `json:"payment_terms"`
	PaymentMethod string      `json:"payment_method"`
	Notes         string      `json:"notes"`
	LegalNotice   string      `json:"legal_notice"`
	Lines         []LineInput `json:"lines"`
}

// InvoiceStats summarizes a user's invoices for the dashboard.
type InvoiceStats struct {
	Total        decimal.Decimal `json:"total"`
	Paid         decimal.Decimal `json:"paid"`
	Pending      decimal.Decimal `json:"pending"`
	PaidCount    int             `json:"paid_count"`
	PendingCount int             `json:"pending_count"`
}

// InvoiceService owns invoice lifecycle: creation with number allocation,
// wholesale line replacement on edit, status transitions and the overdue
// sweep. Every operation takes the owning user explicitly.
type InvoiceService struct {
	db       *gorm.DB
	prefix   string
	notifier Notifier
	log      zerolog.Logger
}

func NewInvoiceService(db *gorm.DB, prefix string, notifier Notifier, log zerolog.Logger) *InvoiceService {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &InvoiceService{db: db, prefix: prefix, notifier: notifier, log: log.With().Str("component", "invoices").Logger()}
}

func (s *InvoiceService) validate(in InvoiceInput) ([]billing.LineAmounts, error) {
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
	if in.DueDate.IsZero() {
		verr.Fields["due_date"] = "required"
	}
	if len(verr.Fields) > 0 {
		return nil, verr
	}
	return amounts, nil
}

// Create builds an invoice from the input, allocates its number and persists
// document and lines in one transaction. The client notification is queued
// after commit and never affects the result.
func (s *InvoiceService) Create(ctx context.Context, userID uint, in InvoiceInput) (*models.Invoice, error) {
	amounts, err := s.validate(in)
	if err != nil {
		return nil, err
	}
	var client models.Client
	if err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", in.ClientID, userID).First(&client).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &ValidationError{Fields: map[string]string{"client_id": "unknown client"}}
		}
		return nil, err
	}
	totals := billing.ComputeTotals(amounts)

	var inv models.Invoice
	for attempt := 0; ; attempt++ {
		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			number, err := billing.Allocate(tx, &models.Invoice{}, s.prefix, in.IssueDate)
			if err != nil {
				return err
			}
			inv = models.Invoice{
				UserID:        userID,
				Number:        number,
				ClientID:      client.ID,
				IssueDate:     in.IssueDate,
				DueDate:       in.DueDate,
				Status:        models.InvoiceStatusPending,
				PaymentTerms:  in.PaymentTerms,
				PaymentMethod: in.PaymentMethod,
				Notes:         in.Notes,
				LegalNotice:   in.LegalNotice,
				TotalNet:      totals.Net,
				TotalTax:      totals.Tax,
				TotalGross:    totals.Gross,
				Lines:         buildInvoiceLines(in.Lines, amounts),
			}
			return tx.Create(&inv).Error
		})
		if err == nil {
			break
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) && attempt < allocRetries {
			s.log.Warn().Int("attempt", attempt+1).Msg("invoice number collision, retrying allocation")
			continue
		}
		return nil, err
	}
	inv.Client = &client
	if client.Email != "" {
		s.notifier.InvoiceIssued(&inv)
	}
	return &inv, nil
}

// Get loads an invoice by number with its client and lines.
func (s *InvoiceService) Get(ctx context.Context, userID uint, number string) (*models.Invoice, error) {
	var inv models.Invoice
	err := s.db.WithContext(ctx).
		Preload("Client").Preload("Lines").
		Where("user_id = ? AND number = ?", userID, number).
		First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// List returns the user's invoices newest first, optionally filtered by
// status.
func (s *InvoiceService) List(ctx context.Context, userID uint, status models.InvoiceStatus) ([]models.Invoice, error) {
	q := s.db.WithContext(ctx).Preload("Client").Where("user_id = ?", userID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var invs []models.Invoice
	if err := q.Order("created_at DESC").Find(&invs).Error; err != nil {
		return nil, err
	}
	return invs, nil
}

// Stats aggregates gross totals and counts by payment state.
func (s *InvoiceService) Stats(ctx context.Context, userID uint) (InvoiceStats, error) {
	var invs []models.Invoice
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&invs).Error; err != nil {
		return InvoiceStats{}, err
	}
	stats := InvoiceStats{}
	for _, inv := range invs {
		stats.Total = stats.Total.Add(inv.TotalGross)
		if inv.Status == models.InvoiceStatusPaid {
			stats.Paid = stats.Paid.Add(inv.TotalGross)
			stats.PaidCount++
		} else {
			stats.Pending = stats.Pending.Add(inv.TotalGross)
			stats.PendingCount++
		}
	}
	return stats, nil
}

// Update replaces the invoice's mutable fields and all of its lines, then
// recomputes the totals, atomically. The number and status are left alone.
func (s *InvoiceService) Update(ctx context.Context, userID uint, number string, in InvoiceInput) (*models.Invoice, error) {
	amounts, err := s.validate(in)
	if err != nil {
		return nil, err
	}
	totals := billing.ComputeTotals(amounts)
	var cnt int64
	if err := s.db.WithContext(ctx).Model(&models.Client{}).
		Where("id = ? AND user_id = ?", in.ClientID, userID).Count(&cnt).Error; err != nil {
		return nil, err
	}
	if cnt == 0 {
		return nil, &ValidationError{Fields: map[string]string{"client_id": "unknown client"}}
	}

	var inv models.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND number = ?", userID, number).First(&inv).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		inv.ClientID = in.ClientID
		inv.IssueDate = in.IssueDate
		inv.DueDate = in.DueDate
		inv.PaymentTerms = in.PaymentTerms
		inv.PaymentMethod = in.PaymentMethod
		inv.Notes = in.Notes
		inv.LegalNotice = in.LegalNotice
		inv.TotalNet = totals.Net
		inv.TotalTax = totals.Tax
		inv.TotalGross = totals.Gross
		if err := tx.Save(&inv).Error; err != nil {
			return err
		}
		// Wholesale replacement: delete-all-then-insert keeps line identity
		// simple and the totals trivially consistent.
		if err := tx.Where("invoice_id = ?", inv.ID).Delete(&models.InvoiceLine{}).Error; err != nil {
			return err
		}
		lines := buildInvoiceLines(in.Lines, amounts)
		for i := range lines {
			lines[i].InvoiceID = inv.ID
		}
		if err := tx.Create(&lines).Error; err != nil {
			return err
		}
		inv.Lines = lines
		return nil
	})
	if err != nil {
		return nil, err
	}
	var client models.Client
	if err := s.db.WithContext(ctx).First(&client, inv.ClientID).Error; err == nil {
		inv.Client = &client
		if client.Email != "" {
			s.notifier.InvoiceIssued(&inv)
		}
	}
	return &inv, nil
}

// Delete removes the invoice and its line items in one transaction. The line
// delete is explicit: the schema's cascade constraint is not enforced on
// sqlite, where foreign keys are off.
func (s *InvoiceService) Delete(ctx context.Context, userID uint, number string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var inv models.Invoice
		err := tx.Select("id").Where("user_id = ? AND number = ?", userID, number).First(&inv).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := tx.Where("invoice_id = ?", inv.ID).Delete(&models.InvoiceLine{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Invoice{}, inv.ID).Error
	})
}

// MarkPaid transitions a pending invoice to paid and queues the payment
// receipt for the client.
func (s *InvoiceService) MarkPaid(ctx context.Context, userID uint, number string) (*models.Invoice, error) {
	inv, err := s.Get(ctx, userID, number)
	if err != nil {
		return nil, err
	}
	if err := inv.MarkPaid(); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(inv).Update("status", inv.Status).Error; err != nil {
		return nil, err
	}
	if inv.Client != nil && inv.Client.Email != "" {
		s.notifier.InvoicePaid(inv)
	}
	return inv, nil
}

// SweepOverdue transitions the user's pending invoices whose due date lies
// strictly before now's date to overdue, and reports how many moved. The
// status predicate makes the pass idempotent. userID zero sweeps every owner;
// that form is reserved for the scheduler and the CLI.
func (s *InvoiceService) SweepOverdue(ctx context.Context, userID uint, now time.Time) (int64, error) {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	q := s.db.WithContext(ctx).Model(&models.Invoice{}).
		Where("status = ? AND due_date < ?", models.InvoiceStatusPending, today)
	if userID != 0 {
		q = q.Where("user_id = ?", userID)
	}
	res := q.Update("status", models.InvoiceStatusOverdue)
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		s.log.Info().Int64("count", res.RowsAffected).Msg("invoices moved to overdue")
	}
	return res.RowsAffected, nil
}
