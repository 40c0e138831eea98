// Package repository provides data access layer for users and projects.
package repository

import (
	"fmt"
	"log/slog"

	"github.com/demos-sh/demos/db"
	"github.com/demos-sh/demos/domain"
	"github.com/demos-sh/demos/encryption"
)

type ProjectMapper struct {
	encryption *encryption.EncryptionService
	users      *UserMapper
}

func NewProjectMapper(encryptionSvc *encryption.EncryptionService) *ProjectMapper {
	return &ProjectMapper{encryption: encryptionSvc, users: &UserMapper{}}
}

func (m *ProjectMapper) ToDomain(p *db.ProjectModel) (*domain.Project, error) {
	state, err := domain.ParseConnectionState(p.State)
	if err != nil {
		state = domain.ConnectionStateUnknown
	}

	secret := p.SecretKey
	if m.encryption != nil {
		secret, err = m.encryption.Decrypt(p.SecretKey)
		if err != nil {
			// Usually means the encryption key changed since the project was created
			slog.Error("Failed to decrypt project secret key",
				"layer", "repository",
				"project_id", p.ID,
				"domain", p.Domain,
				"error", err)
			return nil, fmt.Errorf("failed to decrypt secret key for %s: %w", p.Domain, err)
		}
	}

	project := &domain.Project{
		ID:              p.ID,
		Domain:          p.Domain,
		OwnerID:         p.OwnerID,
		SecretKey:       secret,
		State:           state,
		Port:            p.Port,
		LastConnectedAt: p.LastConnectedAt,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
	if p.Owner != nil {
		project.Owner = m.users.ToDomain(p.Owner)
	}
	return project, nil
}

func (m *ProjectMapper) ToModel(p *domain.Project) (*db.ProjectModel, error) {
	secret := p.SecretKey
	if m.encryption != nil {
		encrypted, err := m.encryption.Encrypt(p.SecretKey)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt secret key for %s: %w", p.Domain, err)
		}
		secret = encrypted
	}

	return &db.ProjectModel{
		BaseModel: db.BaseModel{
			ID:        p.ID,
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		},
		Domain:          p.Domain,
		OwnerID:         p.OwnerID,
		SecretKey:       secret,
		State:           p.State.String(),
		Port:            p.Port,
		LastConnectedAt: p.LastConnectedAt,
	}, nil
}

type UserMapper struct{}

func (m *UserMapper) ToDomain(u *db.UserModel) *domain.User {
	return &domain.User{
		ID:          u.ID,
		Username:    u.Username,
		IsActive:    u.IsActive,
		IsSuperuser: u.IsSuperuser,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func (m *UserMapper) ToModel(u *domain.User) *db.UserModel {
	return &db.UserModel{
		BaseModel: db.BaseModel{
			ID:        u.ID,
			CreatedAt: u.CreatedAt,
			UpdatedAt: u.UpdatedAt,
		},
		Username:    u.Username,
		IsActive:    u.IsActive,
		IsSuperuser: u.IsSuperuser,
	}
}
