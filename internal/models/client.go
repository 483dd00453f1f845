package models

import (
	"strings"
	"time"
)

// Client is a billed party. Clients are referenced by invoices and quotes but
// owned by neither; deleting a document never touches its client.
type Client struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// UserID is the owner of this client (for multi-tenant isolation)
	UserID uint `gorm:"index;not null" json:"user_id"`
	User   User `gorm:"foreignKey:UserID" json:"-"`

	Name  string `gorm:"size:255;not null;index" json:"name"`
	Email string `gorm:"size:255" json:"email,omitempty"`
	Phone string `gorm:"size:50" json:"phone,omitempty"`

	Address    string `gorm:"size:500" json:"address,omitempty"`
	PostalCode string `gorm:"size:20" json:"postal_code,omitempty"`
	City       string `gorm:"size:100" json:"city,omitempty"`

	// French registration identifiers
	SIRET     string `gorm:"size:20" json:"siret,omitempty"`
	VATNumber string `gorm:"size:20" json:"vat_number,omitempty"`

	Invoices []Invoice `gorm:"foreignKey:ClientID" json:"invoices,omitempty"`
	Quotes   []Quote   `gorm:"foreignKey:ClientID" json:"quotes,omitempty"`
}

// GetUserID implements the Ownable interface for authorization.
func (c *Client) GetUserID() uint {
	return c.UserID
}

// FullAddress renders the postal address block used on documents.
func (c *Client) FullAddress() string {
	var parts []string
	if c.Address != "" {
		parts = append(parts, c.Address)
	}
	line := strings.TrimSpace(c.PostalCode + " " + c.City)
	if line != "" {
		parts = append(parts, line)
	}
	return strings.Join(parts, "\n")
}
