package models

import (
	"time"

	"github.com/craftshop/backend/internal/domain/integration"
	"github.com/craftshop/backend/internal/domain/sales"
)

// IdentityMappingModel is the persistence model for identity mappings. The
// unique index over (platform, kind, remote_id) is what makes concurrent
// syncs converge on one local id per remote object.
type IdentityMappingModel struct {
	ID           int64                   `gorm:"primaryKey;autoIncrement"`
	Platform     integration.Platform    `gorm:"type:varchar(20);not null;uniqueIndex:idx_identity_mapping_remote,priority:1;index:idx_identity_mapping_internal,priority:1"`
	Kind         integration.MappingKind `gorm:"type:varchar(20);not null;uniqueIndex:idx_identity_mapping_remote,priority:2;index:idx_identity_mapping_internal,priority:2"`
	RemoteID     string                  `gorm:"type:varchar(100);not null;uniqueIndex:idx_identity_mapping_remote,priority:3"`
	InternalID   int64                   `gorm:"not null;index:idx_identity_mapping_internal,priority:3"`
	LastSyncedAt time.Time               `gorm:"not null"`
	CreatedAt    time.Time               `gorm:"not null"`
	UpdatedAt    time.Time               `gorm:"not null"`
}

// TableName returns the table name for GORM.
func (IdentityMappingModel) TableName() string {
	return "identity_mappings"
}

// ToDomain converts the persistence model to a domain IdentityMapping.
func (m *IdentityMappingModel) ToDomain() *integration.IdentityMapping {
	return &integration.IdentityMapping{
		RemoteID:     m.RemoteID,
		InternalID:   m.InternalID,
		LastSyncedAt: m.LastSyncedAt,
	}
}

// FromDomain populates the persistence model from a domain IdentityMapping.
func (m *IdentityMappingModel) FromDomain(platform integration.Platform, kind integration.MappingKind, mapping *integration.IdentityMapping) {
	m.Platform = platform
	m.Kind = kind
	m.RemoteID = mapping.RemoteID
	m.InternalID = mapping.InternalID
	m.LastSyncedAt = mapping.LastSyncedAt
}

// CustomerModel is the persistence model for the Customer domain entity.
type CustomerModel struct {
	ID        int64                `gorm:"primaryKey;autoIncrement"`
	Name      string               `gorm:"type:varchar(255)"`
	Email     string               `gorm:"type:varchar(255);index:idx_customers_email"`
	Phone     string               `gorm:"type:varchar(50)"`
	Status    sales.CustomerStatus `gorm:"type:varchar(20);not null;default:'active'"`
	Tier      sales.CustomerTier   `gorm:"type:varchar(20);not null;default:'standard'"`
	Source    string               `gorm:"type:varchar(50)"`
	CreatedAt time.Time            `gorm:"not null"`
	UpdatedAt time.Time            `gorm:"not null"`
}

// TableName returns the table name for GORM.
func (CustomerModel) TableName() string {
	return "customers"
}

// ToDomain converts the persistence model to a domain Customer.
func (m *CustomerModel) ToDomain() *sales.Customer {
	return &sales.Customer{
		ID:     m.ID,
		Name:   m.Name,
		Email:  m.Email,
		Phone:  m.Phone,
		Status: m.Status,
		Tier:   m.Tier,
		Source: m.Source,
	}
}

// FromDomain populates the persistence model from a domain Customer.
func (m *CustomerModel) FromDomain(c *sales.Customer) {
	m.ID = c.ID
	m.Name = c.Name
	m.Email = c.Email
	m.Phone = c.Phone
	m.Status = c.Status
	m.Tier = c.Tier
	m.Source = c.Source
}
