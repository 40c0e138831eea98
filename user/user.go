// Package user manages accounts and the OS users that back them.
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/demos-sh/demos/config"
	"github.com/demos-sh/demos/domain"
	"github.com/demos-sh/demos/project"
	"github.com/demos-sh/demos/repository"
	"github.com/demos-sh/demos/validation"
	"github.com/google/uuid"
)

// UserService keeps users and their OS accounts in step.
type UserService struct {
	userRepository repository.UserRepository
	projects       ProjectCleaner
	provisioner    AccountProvisioner
	config         *config.Config
}

// Ensure UserService implements UserManager
var _ UserManager = (*UserService)(nil)

// List returns all users
func (s *UserService) List() ([]*domain.User, error) {
	users, err := s.userRepository.List()
	if err != nil {
		slog.Error("Service operation failed",
			"layer", "service",
			"operation", "list_users",
			"error", err)
		return nil, err
	}
	return users, nil
}

// Get retrieves a user by ID
func (s *UserService) Get(id uuid.UUID) (*domain.User, error) {
	u, err := s.userRepository.FindByID(id)
	if err != nil {
		slog.Error("Service operation failed",
			"layer", "service",
			"operation", "get_user",
			"user_id", id,
			"error", err)
		return nil, err
	}
	return u, nil
}

// GetByUsername retrieves a user by username, case-insensitively
func (s *UserService) GetByUsername(username string) (*domain.User, error) {
	u, err := s.userRepository.FindByUsername(normalize(username))
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Create validates rawUsername and stores the user. Regular users also get
// an OS account that may only forward ports. The exclusion list only
// restricts regular users.
func (s *UserService) Create(ctx context.Context, rawUsername string, superuser bool) (*domain.User, error) {
	excluded := s.config.UsernameExcludeList
	if superuser {
		excluded = nil
	}

	username, err := validation.ValidateUsername(rawUsername, s.userRepository.Exists, excluded)
	if err != nil {
		return nil, err
	}

	u := domain.NewUser(username, superuser)
	created, err := s.userRepository.Create(&u)
	if err != nil {
		slog.Error("Service operation failed",
			"layer", "service",
			"operation", "create_user",
			"username", username,
			"error", err)
		return nil, err
	}

	if created.NeedsOSAccount() {
		if err := s.provisioner.Provision(ctx, created.Username); err != nil {
			slog.Error("Service operation failed",
				"layer", "service",
				"operation", "create_user_provision",
				"username", username,
				"error", err)

			if delErr := s.userRepository.Delete(created.ID); delErr != nil {
				slog.Error("Failed to remove user after provisioning failure",
					"user_id", created.ID,
					"error", delErr)
			}
			return nil, err
		}
	}

	slog.Info("User created",
		"user_id", created.ID,
		"username", created.Username,
		"superuser", created.IsSuperuser)
	return created, nil
}

// Remove deletes the user's projects, the user and then its OS account.
func (s *UserService) Remove(ctx context.Context, userID uuid.UUID) error {
	u, err := s.userRepository.FindByID(userID)
	if err != nil {
		slog.Error("Service operation failed",
			"layer", "service",
			"operation", "remove_user",
			"user_id", userID,
			"error", err)
		return err
	}

	owned, err := s.projects.ListOwned(u.ID)
	if err != nil {
		return err
	}
	for _, p := range owned {
		if err := s.projects.Remove(ctx, p.ID); err != nil {
			return fmt.Errorf("failed to remove project %s of %s: %w", p.Domain, u.Username, err)
		}
	}

	if err := s.userRepository.Delete(u.ID); err != nil {
		slog.Error("Service operation failed",
			"layer", "service",
			"operation", "remove_user",
			"user_id", userID,
			"error", err)
		return err
	}

	if u.NeedsOSAccount() {
		if err := s.provisioner.Deprovision(ctx, u.Username); err != nil {
			slog.Error("Service operation failed",
				"layer", "service",
				"operation", "remove_user_deprovision",
				"username", u.Username,
				"error", err)
			return err
		}
	}

	slog.Info("User removed",
		"user_id", u.ID,
		"username", u.Username,
		"projects_removed", len(owned))
	return nil
}

// ReprovisionAccounts provisions the OS account of every regular user.
// Provisioning is not idempotent, so accounts that already exist are
// reported as failures and the loop moves on.
func (s *UserService) ReprovisionAccounts(ctx context.Context) []project.ItemResult {
	users, err := s.userRepository.List()
	if err != nil {
		slog.Error("Service operation failed",
			"layer", "service",
			"operation", "reprovision_accounts",
			"error", err)
		return []project.ItemResult{{Name: "users", Err: err}}
	}

	var results []project.ItemResult
	for _, u := range users {
		if !u.NeedsOSAccount() {
			continue
		}
		err := s.provisioner.Provision(ctx, u.Username)
		if err != nil {
			slog.Warn("Failed to provision account",
				"username", u.Username,
				"error", err)
		}
		results = append(results, project.ItemResult{Name: u.Username, Err: err})
	}
	return results
}

// NewUserService creates a new UserService with dependency injection
func NewUserService(
	userRepository repository.UserRepository,
	projects ProjectCleaner,
	provisioner AccountProvisioner,
	cfg *config.Config,
) *UserService {
	return &UserService{
		userRepository: userRepository,
		projects:       projects,
		provisioner:    provisioner,
		config:         cfg,
	}
}

func normalize(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
