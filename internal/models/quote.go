package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// QuoteStatus represents the status of a quote.
type QuoteStatus string

const (
	QuoteStatusPending  QuoteStatus = "pending"
	QuoteStatusAccepted QuoteStatus = "accepted"
	QuoteStatusRejected QuoteStatus = "rejected"
	QuoteStatusExpired  QuoteStatus = "expired"
	QuoteStatusInvoiced QuoteStatus = "invoiced"
)

// Valid reports whether s is a member of the closed quote status set.
func (s QuoteStatus) Valid() bool {
	switch s {
	case QuoteStatusPending, QuoteStatusAccepted, QuoteStatusRejected, QuoteStatusExpired, QuoteStatusInvoiced:
		return true
	}
	return false
}

// Quote represents a quote ("devis"). It shares the numbering and calculation
// core with Invoice but carries a validity date instead of a due date.
type Quote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID uint `gorm:"index;not null" json:"user_id"`
	User   User `gorm:"foreignKey:UserID" json:"-"`

	// Number is assigned once at creation and never changes.
	Number string `gorm:"size:50;uniqueIndex;not null" json:"number"`

	ClientID uint    `gorm:"index;not null" json:"client_id"`
	Client   *Client `gorm:"foreignKey:ClientID" json:"client,omitempty"`

	IssueDate  time.Time `gorm:"not null" json:"issue_date"`
	ValidUntil time.Time `gorm:"not null" json:"valid_until"`

	Status QuoteStatus `gorm:"size:20;not null;default:'pending'" json:"status"`

	// InvoiceID references the invoice produced by conversion, if any.
	InvoiceID *uint    `gorm:"index" json:"invoice_id,omitempty"`
	Invoice   *Invoice `gorm:"foreignKey:InvoiceID" json:"-"`

	PaymentTerms string `gorm:"size:500" json:"payment_terms,omitempty"`
	Notes        string `gorm:"type:text" json:"notes,omitempty"`
	LegalNotice  string `gorm:"type:text" json:"legal_notice,omitempty"`

	TotalNet   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_net"`
	TotalTax   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_tax"`
	TotalGross decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_gross"`

	Lines []QuoteLine `gorm:"foreignKey:QuoteID;constraint:OnDelete:CASCADE" json:"lines,omitempty"`
}

// GetUserID implements the Ownable interface for authorization.
func (q *Quote) GetUserID() uint {
	return q.UserID
}

// MarkAccepted transitions pending -> accepted.
func (q *Quote) MarkAccepted() error {
	return q.transition(QuoteStatusPending, QuoteStatusAccepted)
}

// MarkRejected transitions pending -> rejected.
func (q *Quote) MarkRejected() error {
	return q.transition(QuoteStatusPending, QuoteStatusRejected)
}

// MarkExpired transitions pending -> expired. Applied by the expiry sweep.
func (q *Quote) MarkExpired() error {
	return q.transition(QuoteStatusPending, QuoteStatusExpired)
}

// MarkInvoiced transitions accepted -> invoiced. An invoiced quote refuses
// deletion: the invoice it produced must keep its provenance.
func (q *Quote) MarkInvoiced() error {
	return q.transition(QuoteStatusAccepted, QuoteStatusInvoiced)
}

func (q *Quote) transition(from, to QuoteStatus) error {
	if q.Status != from {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, q.Status, to)
	}
	q.Status = to
	return nil
}

// QuoteLine is one line item on a quote.
type QuoteLine struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	QuoteID uint   `gorm:"index;not null" json:"quote_id"`
	Quote   *Quote `gorm:"foreignKey:QuoteID" json:"-"`

	Description string          `gorm:"size:500;not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	TaxRate     decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"tax_rate"`

	AmountNet   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount_net"`
	AmountTax   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount_tax"`
	AmountGross decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount_gross"`
}
