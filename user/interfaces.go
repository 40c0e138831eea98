package user

import (
	"context"

	"github.com/demos-sh/demos/domain"
	"github.com/demos-sh/demos/project"
	"github.com/google/uuid"
)

// UserManager defines the contract for account management operations
type UserManager interface {
	List() ([]*domain.User, error)
	Get(id uuid.UUID) (*domain.User, error)
	GetByUsername(username string) (*domain.User, error)
	Create(ctx context.Context, rawUsername string, superuser bool) (*domain.User, error)
	Remove(ctx context.Context, userID uuid.UUID) error
	ReprovisionAccounts(ctx context.Context) []project.ItemResult
}

// AccountProvisioner manages the OS account behind a user.
type AccountProvisioner interface {
	Provision(ctx context.Context, username string) error
	Deprovision(ctx context.Context, username string) error
}

// ProjectCleaner removes the projects of a user being deleted.
type ProjectCleaner interface {
	ListOwned(ownerID uuid.UUID) ([]*domain.Project, error)
	Remove(ctx context.Context, projectID uuid.UUID) error
}
