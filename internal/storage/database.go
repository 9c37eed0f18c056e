package storage

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StorageEntry is the database row behind one key.
type StorageEntry struct {
	gorm.Model
	Key   string `gorm:"uniqueIndex;column:entry_key"`
	Value string `gorm:"column:entry_value"`
}

// DatabaseStore keeps keys in Postgres. Used as the server-grade persistent
// slot when the engine runs as a shared service instead of per device.
type DatabaseStore struct {
	db *gorm.DB
}

// NewDatabaseStore creates a Postgres-backed key-value store and migrates
// its table.
func NewDatabaseStore(db *gorm.DB) (*DatabaseStore, error) {
	if db == nil {
		return nil, ErrInvalidConfig
	}
	if err := db.AutoMigrate(&StorageEntry{}); err != nil {
		return nil, err
	}
	return &DatabaseStore{db: db}, nil
}

func (d *DatabaseStore) Get(ctx context.Context, key string) (string, error) {
	var entry StorageEntry
	err := d.db.WithContext(ctx).Where("entry_key = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return entry.Value, nil
}

func (d *DatabaseStore) Set(ctx context.Context, key, value string) error {
	entry := StorageEntry{Key: key, Value: value}
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "entry_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"entry_value", "updated_at"}),
	}).Create(&entry).Error
}

func (d *DatabaseStore) Delete(ctx context.Context, key string) error {
	return d.db.WithContext(ctx).Where("entry_key = ?", key).Delete(&StorageEntry{}).Error
}

func (d *DatabaseStore) DeletePrefix(ctx context.Context, prefix string) error {
	return d.db.WithContext(ctx).
		Where("entry_key LIKE ?", escapeLike(prefix)+"%").
		Delete(&StorageEntry{}).Error
}

func (d *DatabaseStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := d.db.WithContext(ctx).Model(&StorageEntry{}).
		Where("entry_key LIKE ?", escapeLike(prefix)+"%").
		Pluck("entry_key", &keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (d *DatabaseStore) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	return strings.ReplaceAll(s, "_", `\_`)
}
