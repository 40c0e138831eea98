package db

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Migration represents a single data migration applied after AutoMigrate
type Migration struct {
	ID   int
	Name string
	Up   func(*gorm.DB) error
}

// allMigrations is the ordered list of all migrations
var allMigrations = []Migration{
	{
		ID:   1,
		Name: "0001_lowercase_usernames_and_domains",
		Up:   migration0001LowercaseUsernamesAndDomains,
	},
	{
		ID:   2,
		Name: "0002_purge_expired_cache_entries",
		Up:   migration0002PurgeExpiredCacheEntries,
	},
}

// AllModels returns all the models that need to be migrated
func AllModels() []any {
	return []any{
		&MigrationModel{},
		&UserModel{},
		&ProjectModel{},
		&CacheEntryModel{},
	}
}

// AutoMigrateAll creates or updates every table and applies pending data migrations
func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return err
	}
	return RunMigrations(db, len(allMigrations))
}

// RunMigrations runs all migrations up to and including the specified ID
// If targetID is 0 or negative, all migrations are run
func RunMigrations(db *gorm.DB, targetID int) error {
	if targetID <= 0 {
		targetID = len(allMigrations)
	}

	for _, migration := range allMigrations {
		if migration.ID > targetID {
			break
		}

		applied, err := migrationApplied(db, migration.Name)
		if err != nil {
			return fmt.Errorf("failed to check migration %s: %w", migration.Name, err)
		}
		if applied {
			continue
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if err := migration.Up(tx); err != nil {
				return err
			}
			return recordMigration(tx, migration.Name)
		})
		if err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Name, err)
		}
	}

	return nil
}

// AppliedMigrations returns the names of applied migrations in order
func AppliedMigrations(db *gorm.DB) ([]string, error) {
	var names []string
	err := db.Model(&MigrationModel{}).Order("id").Pluck("name", &names).Error
	return names, err
}

func migrationApplied(db *gorm.DB, name string) (bool, error) {
	var count int64
	err := db.Model(&MigrationModel{}).Where("name = ?", name).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func recordMigration(db *gorm.DB, name string) error {
	return db.Create(&MigrationModel{Name: name, AppliedAt: time.Now()}).Error
}

// migration0001LowercaseUsernamesAndDomains normalizes rows written before
// usernames and domains were lower-cased on input
func migration0001LowercaseUsernamesAndDomains(db *gorm.DB) error {
	var users []UserModel
	if err := db.Find(&users).Error; err != nil {
		return err
	}
	for _, u := range users {
		if lower := strings.ToLower(u.Username); lower != u.Username {
			if err := db.Model(&UserModel{}).Where("id = ?", u.ID).Update("username", lower).Error; err != nil {
				return err
			}
		}
	}

	var projects []ProjectModel
	if err := db.Find(&projects).Error; err != nil {
		return err
	}
	for _, p := range projects {
		if lower := strings.ToLower(p.Domain); lower != p.Domain {
			if err := db.Model(&ProjectModel{}).Where("id = ?", p.ID).Update("domain", lower).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

// migration0002PurgeExpiredCacheEntries drops leases and flags left over from a previous run
func migration0002PurgeExpiredCacheEntries(db *gorm.DB) error {
	return db.Where("expires_at <= ?", time.Now()).Delete(&CacheEntryModel{}).Error
}
