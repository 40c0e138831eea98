// Package db provides database models and utilities for demos.
package db

import (
	"time"

	"github.com/google/uuid"
)

type BaseModel struct {
	ID        uuid.UUID `gorm:"type:char(36);primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type UserModel struct {
	BaseModel
	Username    string `gorm:"not null;unique;check:username <> ''"` // lower-cased
	IsActive    bool   `gorm:"not null;default:true"`
	IsSuperuser bool   `gorm:"not null"`
}

func (UserModel) TableName() string {
	return "users"
}

type ProjectModel struct {
	BaseModel
	Domain          string    `gorm:"not null;unique;check:domain <> ''"`
	OwnerID         uuid.UUID `gorm:"type:char(36);not null;index"`
	SecretKey       string    `gorm:"not null;type:text"`         // Encrypted with the service key
	State           string    `gorm:"not null;check:state <> ''"` // placeholder, connected
	Port            int       `gorm:"not null;default:0"`         // upstream port while connected
	LastConnectedAt *time.Time

	Owner *UserModel `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE"`
}

func (ProjectModel) TableName() string {
	return "projects"
}

// CacheEntryModel backs the expiring key/value store used for port leases
// and connection liveness flags.
type CacheEntryModel struct {
	Key       string    `gorm:"primaryKey;column:cache_key"`
	Value     string    `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

func (CacheEntryModel) TableName() string {
	return "cache_entries"
}

type MigrationModel struct {
	ID        uint      `gorm:"primaryKey"`
	Name      string    `gorm:"not null;unique"`
	AppliedAt time.Time `gorm:"not null"`
}

func (MigrationModel) TableName() string {
	return "schema_migrations"
}
