package persistence

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/craftshop/backend/internal/domain/integration"
	"github.com/craftshop/backend/internal/infrastructure/persistence/models"
)

// GormMappingStore implements MappingStore using GORM.
type GormMappingStore struct {
	db *gorm.DB
}

// NewGormMappingStore creates a new GormMappingStore.
func NewGormMappingStore(db *gorm.DB) *GormMappingStore {
	return &GormMappingStore{db: db}
}

// Find returns the mapping for a remote id, or ErrMappingNotFound.
func (r *GormMappingStore) Find(ctx context.Context, platform integration.Platform, kind integration.MappingKind, remoteID string) (*integration.IdentityMapping, error) {
	var model models.IdentityMappingModel
	if err := r.db.WithContext(ctx).
		Where("platform = ? AND kind = ? AND remote_id = ?", platform, kind, remoteID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrMappingNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByInternalID returns the mapping for a local id, or ErrMappingNotFound.
func (r *GormMappingStore) FindByInternalID(ctx context.Context, platform integration.Platform, kind integration.MappingKind, internalID int64) (*integration.IdentityMapping, error) {
	var model models.IdentityMappingModel
	if err := r.db.WithContext(ctx).
		Where("platform = ? AND kind = ? AND internal_id = ?", platform, kind, internalID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrMappingNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save persists a mapping. The unique index over (platform, kind, remote_id)
// plus DO NOTHING on conflict means the first writer wins; racing syncs
// converge on one local id.
func (r *GormMappingStore) Save(ctx context.Context, platform integration.Platform, kind integration.MappingKind, mapping *integration.IdentityMapping) error {
	var model models.IdentityMappingModel
	model.FromDomain(platform, kind, mapping)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "platform"}, {Name: "kind"}, {Name: "remote_id"}},
			DoNothing: true,
		}).
		Create(&model).Error
}

// Ensure GormMappingStore implements the mapping store port.
var _ integration.MappingStore = (*GormMappingStore)(nil)
