package persistence

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/craftshop/backend/internal/domain/integration"
	"github.com/craftshop/backend/internal/domain/sales"
	"github.com/craftshop/backend/internal/infrastructure/persistence/models"
)

// GormCustomerDirectory implements CustomerDirectory using GORM.
type GormCustomerDirectory struct {
	db *gorm.DB
}

// NewGormCustomerDirectory creates a new GormCustomerDirectory.
func NewGormCustomerDirectory(db *gorm.DB) *GormCustomerDirectory {
	return &GormCustomerDirectory{db: db}
}

// FindByEmail finds a customer by email, or returns ErrCustomerNotFound.
// Emails are matched case-insensitively.
func (r *GormCustomerDirectory) FindByEmail(ctx context.Context, email string) (*sales.Customer, error) {
	if email == "" {
		return nil, integration.ErrCustomerNotFound
	}
	var model models.CustomerModel
	if err := r.db.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(email)).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrCustomerNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create stores a new customer and returns it with its assigned id.
func (r *GormCustomerDirectory) Create(ctx context.Context, customer *sales.Customer) (*sales.Customer, error) {
	var model models.CustomerModel
	model.FromDomain(customer)
	model.ID = 0
	if model.Status == "" {
		model.Status = sales.CustomerStatusActive
	}
	if model.Tier == "" {
		model.Tier = sales.CustomerTierStandard
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// Ensure GormCustomerDirectory implements the customer directory port.
var _ integration.CustomerDirectory = (*GormCustomerDirectory)(nil)
