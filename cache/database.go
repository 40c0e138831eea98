package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/demos-sh/demos/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DBStore keeps entries in the cache_entries table so several processes
// (server and CLI) see the same leases.
type DBStore struct {
	db  *gorm.DB
	now Clock
}

func NewDBStore(database *gorm.DB) *DBStore {
	return NewDBStoreWithClock(database, time.Now)
}

func NewDBStoreWithClock(database *gorm.DB, now Clock) *DBStore {
	return &DBStore{db: database, now: now}
}

func (s *DBStore) Get(ctx context.Context, key string) (string, bool, error) {
	var entry db.CacheEntryModel
	err := s.db.WithContext(ctx).
		Where("cache_key = ? AND expires_at > ?", key, s.now()).
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache get %s: %w", key, err)
	}
	return entry.Value, true, nil
}

func (s *DBStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	entry := db.CacheEntryModel{Key: key, Value: value, ExpiresAt: s.now().Add(ttl)}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cache_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

func (s *DBStore) Add(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	now := s.now()
	added := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// An expired row must not block the insert below
		if err := tx.Where("cache_key = ? AND expires_at <= ?", key, now).
			Delete(&db.CacheEntryModel{}).Error; err != nil {
			return err
		}

		entry := db.CacheEntryModel{Key: key, Value: value, ExpiresAt: now.Add(ttl)}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry)
		if res.Error != nil {
			return res.Error
		}
		added = res.RowsAffected == 1
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("cache add %s: %w", key, err)
	}
	return added, nil
}

func (s *DBStore) Delete(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).Where("cache_key = ?", key).Delete(&db.CacheEntryModel{}).Error
	if err != nil {
		return fmt.Errorf("cache delete %s: %w", key, err)
	}
	return nil
}

// Purge drops every expired entry and returns how many were removed.
func (s *DBStore) Purge(ctx context.Context) (int, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", s.now()).Delete(&db.CacheEntryModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("cache purge: %w", res.Error)
	}
	return int(res.RowsAffected), nil
}
