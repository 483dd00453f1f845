package billing

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/diewo77/facturation/internal/models"
)

func setupAllocatorDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedInvoiceNumber(t *testing.T, db *gorm.DB, number string) {
	t.Helper()
	inv := models.Invoice{
		UserID:    1,
		ClientID:  1,
		Number:    number,
		IssueDate: time.Now(),
		DueDate:   time.Now(),
		Status:    models.InvoiceStatusPending,
	}
	if err := db.Create(&inv).Error; err != nil {
		t.Fatalf("seed invoice %s: %v", number, err)
	}
}

func TestAllocateFirstOfPeriod(t *testing.T) {
	db := setupAllocatorDB(t)
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

	got, err := Allocate(db, &models.Invoice{}, "EZLES", now)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if got != "EZLES-202506-001" {
		t.Errorf("Allocate = %s, want EZLES-202506-001", got)
	}
}

func TestAllocateIncrementsWithinPeriod(t *testing.T) {
	db := setupAllocatorDB(t)
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	seedInvoiceNumber(t, db, "EZLES-202506-001")
	seedInvoiceNumber(t, db, "EZLES-202506-002")

	got, err := Allocate(db, &models.Invoice{}, "EZLES", now)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if got != "EZLES-202506-003" {
		t.Errorf("Allocate = %s, want EZLES-202506-003", got)
	}
}

func TestAllocateResetsPerPeriod(t *testing.T) {
	db := setupAllocatorDB(t)
	seedInvoiceNumber(t, db, "EZLES-202506-017")

	july := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	got, err := Allocate(db, &models.Invoice{}, "EZLES", july)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if got != "EZLES-202507-001" {
		t.Errorf("Allocate = %s, want EZLES-202507-001", got)
	}
}

func TestAllocatePrefixesAreIndependent(t *testing.T) {
	db := setupAllocatorDB(t)
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	seedInvoiceNumber(t, db, "EZLES-202506-005")

	// The quote prefix keeps its own sequence even in the same period.
	got, err := Allocate(db, &models.Quote{}, "EZLES-DEVIS", now)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if got != "EZLES-DEVIS-202506-001" {
		t.Errorf("Allocate = %s, want EZLES-DEVIS-202506-001", got)
	}
}
