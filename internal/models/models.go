// Package models defines the persisted entities: users, clients, and the two
// document kinds (invoices and quotes) with their line items.
package models

// Ownable is implemented by every entity scoped to a single user.
type Ownable interface {
	GetUserID() uint
}

// All returns the set of models registered with AutoMigrate, in dependency
// order.
func All() []any {
	return []any{
		&User{}, &Client{},
		&Invoice{}, &InvoiceLine{},
		&Quote{}, &QuoteLine{},
	}
}
