package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/diewo77/facturation/internal/models"
)

// ClientInput is the payload for creating or updating a client.
type ClientInput struct {
	Name       string `json:"name" validate:"required,max=255"`
	Email      string `json:"email" validate:"omitempty,email"`
	Phone      string `json:"phone" validate:"max=50"`
	Address    string `json:"address" validate:"max=500"`
	PostalCode string `json:"postal_code" validate:"max=20"`
	City       string `json:"city" validate:"max=255"`
	SIRET      string `json:"siret" validate:"max=20"`
	VATNumber  string `json:"vat_number" validate:"max=30"`
}

// ClientService owns the client directory. Every lookup is scoped to the
// owning user.
type ClientService struct {
	db *gorm.DB
}

func NewClientService(db *gorm.DB) *ClientService {
	return &ClientService{db: db}
}

func (s *ClientService) validate(in ClientInput) error {
	verr := newValidationError()
	if strings.TrimSpace(in.Name) == "" {
		verr.Fields["name"] = "required"
	}
	if len(verr.Fields) > 0 {
		return verr
	}
	return nil
}

func (s *ClientService) apply(c *models.Client, in ClientInput) {
	c.Name = in.Name
	c.Email = in.Email
	c.Phone = in.Phone
	c.Address = in.Address
	c.PostalCode = in.PostalCode
	c.City = in.City
	c.SIRET = in.SIRET
	c.VATNumber = in.VATNumber
}

func (s *ClientService) Create(ctx context.Context, userID uint, in ClientInput) (*models.Client, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}
	c := models.Client{UserID: userID}
	s.apply(&c, in)
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *ClientService) Get(ctx context.Context, userID, id uint) (*models.Client, error) {
	var c models.Client
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns the user's clients ordered by name. A non-empty search term
// filters on name, email and city.
func (s *ClientService) List(ctx context.Context, userID uint, search string) ([]models.Client, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if search = strings.TrimSpace(search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(city) LIKE ?", like, like, like)
	}
	var clients []models.Client
	if err := q.Order("name ASC").Find(&clients).Error; err != nil {
		return nil, err
	}
	return clients, nil
}

func (s *ClientService) Update(ctx context.Context, userID, id uint, in ClientInput) (*models.Client, error) {
	if err := s.validate(in); err != nil {
		return nil, err
	}
	c, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	s.apply(c, in)
	if err := s.db.WithContext(ctx).Save(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// Delete removes the client unless documents still reference it.
func (s *ClientService) Delete(ctx context.Context, userID, id uint) error {
	c, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	var invoices, quotes int64
	if err := s.db.WithContext(ctx).Model(&models.Invoice{}).Where("client_id = ?", c.ID).Count(&invoices).Error; err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(&models.Quote{}).Where("client_id = ?", c.ID).Count(&quotes).Error; err != nil {
		return err
	}
	if invoices+quotes > 0 {
		return fmt.Errorf("%w: client %s still has documents", ErrConflict, c.Name)
	}
	return s.db.WithContext(ctx).Delete(c).Error
}
