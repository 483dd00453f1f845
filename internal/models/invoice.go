package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidTransition is returned by status transition methods when the
// document is not in the expected source state.
var ErrInvalidTransition = errors.New("invalid status transition")

// InvoiceStatus represents the status of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusOverdue InvoiceStatus = "overdue"
)

// Valid reports whether s is a member of the closed invoice status set.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusPaid, InvoiceStatusOverdue:
		return true
	}
	return false
}

// Invoice represents a billing invoice ("facture").
// Implements the Ownable interface for ownership-based authorization.
type Invoice struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// UserID is the owner of this invoice (for multi-tenant isolation)
	UserID uint `gorm:"index;not null" json:"user_id"`
	User   User `gorm:"foreignKey:UserID" json:"-"`

	// Number is assigned once at creation and never changes.
	// Format: PREFIX-YYYYMM-NNN (e.g. EZLES-202506-001).
	Number string `gorm:"size:50;uniqueIndex;not null" json:"number"`

	ClientID uint    `gorm:"index;not null" json:"client_id"`
	Client   *Client `gorm:"foreignKey:ClientID" json:"client,omitempty"`

	IssueDate time.Time `gorm:"not null" json:"issue_date"`
	DueDate   time.Time `gorm:"not null" json:"due_date"`

	Status InvoiceStatus `gorm:"size:20;not null;default:'pending'" json:"status"`

	PaymentTerms  string `gorm:"size:500" json:"payment_terms,omitempty"`
	PaymentMethod string `gorm:"size:100" json:"payment_method,omitempty"`
	Notes         string `gorm:"type:text" json:"notes,omitempty"`
	LegalNotice   string `gorm:"type:text" json:"legal_notice,omitempty"`

	// Totals are always the sums of the lines' derived amounts, recomputed on
	// every create/update inside the same transaction that writes the lines.
	TotalNet   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_net"`
	TotalTax   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_tax"`
	TotalGross decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_gross"`

	Lines []InvoiceLine `gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE" json:"lines,omitempty"`
}

// GetUserID implements the Ownable interface for authorization.
func (i *Invoice) GetUserID() uint {
	return i.UserID
}

// IsPaid returns true once payment has been recorded.
func (i *Invoice) IsPaid() bool {
	return i.Status == InvoiceStatusPaid
}

// MarkPaid transitions pending -> paid.
func (i *Invoice) MarkPaid() error {
	if i.Status != InvoiceStatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, i.Status, InvoiceStatusPaid)
	}
	i.Status = InvoiceStatusPaid
	return nil
}

// MarkOverdue transitions pending -> overdue. Applied by the sweep, never by
// an explicit user action.
func (i *Invoice) MarkOverdue() error {
	if i.Status != InvoiceStatusPending {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, i.Status, InvoiceStatusOverdue)
	}
	i.Status = InvoiceStatusOverdue
	return nil
}

// InvoiceLine is one line item on an invoice. Lines are owned by their invoice
// and replaced wholesale on edit.
type InvoiceLine struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	InvoiceID uint     `gorm:"index;not null" json:"invoice_id"`
	Invoice   *Invoice `gorm:"foreignKey:InvoiceID" json:"-"`

	Description string          `gorm:"size:500;not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	// TaxRate is a percentage in [0,100], e.g. 20.00 for standard French VAT.
	TaxRate decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"tax_rate"`

	// Derived amounts, computed once by the calculator and persisted.
	AmountNet   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount_net"`
	AmountTax   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount_tax"`
	AmountGross decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount_gross"`
}
