// Package mocks provides mock implementations for testing.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockAccountProvisioner implements user.AccountProvisioner for testing
type MockAccountProvisioner struct {
	mock.Mock
}

func (m *MockAccountProvisioner) Provision(ctx context.Context, username string) error {
	args := m.Called(ctx, username)
	return args.Error(0)
}

func (m *MockAccountProvisioner) Deprovision(ctx context.Context, username string) error {
	args := m.Called(ctx, username)
	return args.Error(0)
}
