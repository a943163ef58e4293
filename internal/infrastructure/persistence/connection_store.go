package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/craftshop/backend/internal/domain/integration"
)

// ErrConnectionNotFound is returned when no stored connection matches.
var ErrConnectionNotFound = errors.New("persistence: connection not found")

// ConnectionModel stores one marketplace connection. Credentials are kept as
// a JSON document so token rotation never needs a schema change.
type ConnectionModel struct {
	ID         int64                `gorm:"primaryKey;autoIncrement"`
	Platform   integration.Platform `gorm:"type:varchar(20);not null;uniqueIndex:idx_connections_account,priority:1"`
	AccountKey string               `gorm:"type:varchar(100);not null;uniqueIndex:idx_connections_account,priority:2"`
	Payload    string               `gorm:"type:jsonb;not null"`
	CreatedAt  time.Time            `gorm:"not null"`
	UpdatedAt  time.Time            `gorm:"not null"`
}

// TableName returns the table name for GORM.
func (ConnectionModel) TableName() string {
	return "marketplace_connections"
}

// GormConnectionStore persists marketplace connections for the background
// sync loop.
type GormConnectionStore struct {
	db *gorm.DB
}

// NewGormConnectionStore creates a new GormConnectionStore.
func NewGormConnectionStore(db *gorm.DB) *GormConnectionStore {
	return &GormConnectionStore{db: db}
}

// Connections returns all stored marketplace connections.
func (r *GormConnectionStore) Connections(ctx context.Context) ([]integration.Connection, error) {
	var rows []ConnectionModel
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	conns := make([]integration.Connection, 0, len(rows))
	for _, row := range rows {
		var conn integration.Connection
		if err := json.Unmarshal([]byte(row.Payload), &conn); err != nil {
			return nil, fmt.Errorf("decoding connection %d: %w", row.ID, err)
		}
		conns = append(conns, conn)
	}
	return conns, nil
}

// UpdateConnection upserts a connection keyed by platform and account.
func (r *GormConnectionStore) UpdateConnection(ctx context.Context, conn integration.Connection) error {
	payload, err := json.Marshal(conn)
	if err != nil {
		return fmt.Errorf("encoding connection: %w", err)
	}
	row := ConnectionModel{
		Platform:   conn.Platform,
		AccountKey: conn.AccountKey(),
		Payload:    string(payload),
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "platform"}, {Name: "account_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
		}).
		Create(&row).Error
}

// DeleteConnection removes a stored connection.
func (r *GormConnectionStore) DeleteConnection(ctx context.Context, platform integration.Platform, accountKey string) error {
	result := r.db.WithContext(ctx).
		Where("platform = ? AND account_key = ?", platform, accountKey).
		Delete(&ConnectionModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrConnectionNotFound
	}
	return nil
}
