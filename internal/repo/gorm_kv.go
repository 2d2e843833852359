package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-trademark-backend/internal/domain"
)

// GormKV stores gateway records in the kv_records table.
type GormKV struct {
	DB *gorm.DB
}

// NewGormKV returns a gateway backed by db. The kv_records table must exist
// (see AutoMigrate).
func NewGormKV(db *gorm.DB) *GormKV { return &GormKV{DB: db} }

// Get implements KVGateway.
func (g *GormKV) Get(ctx context.Context, key string) ([]byte, error) {
	var rec domain.KVRecord
	err := g.DB.WithContext(ctx).First(&rec, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec.Value, nil
}

// Put implements KVGateway with an upsert on the primary key.
func (g *GormKV) Put(ctx context.Context, key string, value []byte) error {
	now := time.Now().UTC()
	rec := domain.KVRecord{
		Key:           key,
		SchemaVersion: SchemaVersion,
		Value:         value,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return g.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"schema_version", "value", "updated_at"}),
	}).Create(&rec).Error
}

// Delete implements KVGateway.
func (g *GormKV) Delete(ctx context.Context, key string) error {
	return g.DB.WithContext(ctx).Where("key = ?", key).Delete(&domain.KVRecord{}).Error
}

// Stats implements Stater.
func (g *GormKV) Stats(ctx context.Context, prefix string) (int64, *time.Time, error) {
	return RecordStats(ctx, g.DB, prefix)
}
