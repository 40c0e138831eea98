package mocks

import (
	"context"

	"github.com/demos-sh/demos/domain"
	"github.com/demos-sh/demos/project"
	"github.com/google/uuid"
)

// MockUserManager implements user.UserManager for testing.
// No compile-time assertion: the user package tests import mocks.
type MockUserManager struct {
	ListFunc                func() ([]*domain.User, error)
	GetFunc                 func(id uuid.UUID) (*domain.User, error)
	GetByUsernameFunc       func(username string) (*domain.User, error)
	CreateFunc              func(ctx context.Context, rawUsername string, superuser bool) (*domain.User, error)
	RemoveFunc              func(ctx context.Context, userID uuid.UUID) error
	ReprovisionAccountsFunc func(ctx context.Context) []project.ItemResult
}

func (m *MockUserManager) List() ([]*domain.User, error) {
	if m.ListFunc != nil {
		return m.ListFunc()
	}
	return []*domain.User{}, nil
}

func (m *MockUserManager) Get(id uuid.UUID) (*domain.User, error) {
	if m.GetFunc != nil {
		return m.GetFunc(id)
	}
	return &domain.User{ID: id}, nil
}

func (m *MockUserManager) GetByUsername(username string) (*domain.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(username)
	}
	u := domain.NewUser(username, false)
	return &u, nil
}

func (m *MockUserManager) Create(ctx context.Context, rawUsername string, superuser bool) (*domain.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, rawUsername, superuser)
	}
	u := domain.NewUser(rawUsername, superuser)
	return &u, nil
}

func (m *MockUserManager) Remove(ctx context.Context, userID uuid.UUID) error {
	if m.RemoveFunc != nil {
		return m.RemoveFunc(ctx, userID)
	}
	return nil
}

func (m *MockUserManager) ReprovisionAccounts(ctx context.Context) []project.ItemResult {
	if m.ReprovisionAccountsFunc != nil {
		return m.ReprovisionAccountsFunc(ctx)
	}
	return nil
}
