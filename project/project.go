// Package project provides project management services for demos.
package project

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/demos-sh/demos/config"
	"github.com/demos-sh/demos/connection"
	"github.com/demos-sh/demos/domain"
	"github.com/demos-sh/demos/repository"
	"github.com/demos-sh/demos/secret"
	"github.com/demos-sh/demos/validation"
	"github.com/google/uuid"
)

const revokeTimeout = 30 * time.Second

// ProjectService creates and removes projects, keeps their proxy
// configuration in step with the database and serves the agent operations.
type ProjectService struct {
	projectRepository repository.ProjectRepository
	userRepository    repository.UserRepository
	renderer          Renderer
	keys              KeyIssuer
	lifecycle         *connection.Lifecycle
	config            *config.Config

	revocations *connection.Scheduler
	issuedMu    sync.Mutex
	issued      map[string]struct{}
}

// Ensure ProjectService implements ProjectManager
var _ ProjectManager = (*ProjectService)(nil)

// List returns the projects caller may see. A nil caller sees all of them.
func (s *ProjectService) List(caller *domain.User) ([]*domain.Project, error) {
	var (
		projects []*domain.Project
		err      error
	)
	if domain.PolicyFor(caller) == domain.AdminView {
		projects, err = s.projectRepository.List()
	} else {
		projects, err = s.projectRepository.ListByOwner(caller.ID)
	}
	if err != nil {
		slog.Error("Service operation failed",
			"layer", "service",
			"operation", "list_projects",
			"error", err)
		return nil, err
	}
	return projects, nil
}

// ListOwned returns the projects owned by ownerID
func (s *ProjectService) ListOwned(ownerID uuid.UUID) ([]*domain.Project, error) {
	projects, err := s.projectRepository.ListByOwner(ownerID)
	if err != nil {
		slog.Error("Service operation failed",
			"layer", "service",
			"operation", "list_owned_projects",
			"owner_id", ownerID,
			"error", err)
		return nil, err
	}
	return projects, nil
}

// Get retrieves a project by ID
func (s *ProjectService) Get(id uuid.UUID) (*domain.Project, error) {
	project, err := s.projectRepository.FindByID(id)
	if err != nil {
		slog.Error("Service operation failed",
			"layer", "service",
			"operation", "get_project",
			"project_id", id,
			"error", err)
		return nil, err // Pass through as-is
	}
	return project, nil
}

// GetByDomain retrieves a project by its fully-qualified domain
func (s *ProjectService) GetByDomain(domainName string) (*domain.Project, error) {
	project, err := s.projectRepository.FindByDomain(domainName)
	if err != nil {
		if !errors.Is(err, domain.ErrProjectNotFound) {
			slog.Error("Service operation failed",
				"layer", "service",
				"operation", "get_project_by_domain",
				"domain", domainName,
				"error", err)
		}
		return nil, err
	}
	return project, nil
}

// Create validates rawDomain, stores a new project for owner with a fresh
// secret key and publishes its placeholder page and vhost.
func (s *ProjectService) Create(ctx context.Context, owner *domain.User, rawDomain string) (*domain.Project, error) {
	if owner == nil {
		return nil, fmt.Errorf("owner is required")
	}

	domainName, err := validation.ValidateDomain(rawDomain, s.config.BaseHost, s.config.SubdomainExcludeList)
	if err != nil {
		return nil, err
	}

	if !owner.IsSuperuser {
		count, err := s.projectRepository.CountByOwner(owner.ID)
		if err != nil {
			slog.Error("Service operation failed",
				"layer", "service",
				"operation", "create_project_count",
				"owner_id", owner.ID,
				"error", err)
			return nil, err
		}
		if count > 0 {
			return nil, domain.ErrProjectLimit
		}
	}

	token, err := secret.NewToken()
	if err != nil {
		return nil, err
	}

	project := domain.NewProject(domainName, owner.ID, token)
	project.Owner = owner

	created, err := s.projectRepository.Create(&project)
	if err != nil {
		slog.Error("Service operation failed",
			"layer", "service",
			"operation", "create_project",
			"project_id", project.ID,
			"domain", domainName,
			"error", err)
		return nil, err
	}

	if err := s.publish(ctx, created.Domain); err != nil {
		slog.Error("Service operation failed",
			"layer", "service",
			"operation", "create_project_publish",
			"project_id", created.ID,
			"domain", created.Domain,
			"error", err)

		// Roll back so the database never lists a domain nginx does not serve
		if delErr := s.projectRepository.Delete(created.ID); delErr != nil {
			slog.Error("Failed to remove project after publish failure",
				"project_id", created.ID,
				"error", delErr)
		}
		if cleanupErr := s.unpublish(ctx, created.Domain); cleanupErr != nil {
			slog.Error("Failed to remove project files after publish failure",
				"domain", created.Domain,
				"error", cleanupErr)
		}
		return nil, err
	}

	slog.Info("Project created",
		"project_id", created.ID,
		"domain", created.Domain,
		"owner", owner.Username)
	return created, nil
}

// Remove deletes a project together with its vhost, placeholder page and
// liveness state.
func (s *ProjectService) Remove(ctx context.Context, projectID uuid.UUID) error {
	project, err := s.projectRepository.FindByID(projectID)
	if err != nil {
		slog.Error("Service operation failed",
			"layer", "service",
			"operation", "remove_project",
			"project_id", projectID,
			"error", err)
		return err
	}

	if err := s.lifecycle.Forget(ctx, project.Domain); err != nil {
		slog.Warn("Failed to clear liveness state",
			"project_id", projectID,
			"domain", project.Domain,
			"error", err)
	}

	if err := s.projectRepository.Delete(projectID); err != nil {
		slog.Error("Service operation failed",
			"layer", "service",
			"operation", "remove_project",
			"project_id", projectID,
			"error", err)
		return err
	}

	if err := s.unpublish(ctx, project.Domain); err != nil {
		slog.Error("Service operation failed",
			"layer", "service",
			"operation", "remove_project_files",
			"project_id", projectID,
			"domain", project.Domain,
			"error", err)
		return err
	}

	slog.Info("Project removed",
		"project_id", projectID,
		"domain", project.Domain)
	return nil
}

// RegenerateConfig moves every project onto the configured base host and
// rewrites its placeholder page and vhost. Connected projects that are still
// alive keep proxying to their port. Failures are reported per project.
func (s *ProjectService) RegenerateConfig(ctx context.Context) []ItemResult {
	projects, err := s.projectRepository.List()
	if err != nil {
		slog.Error("Service operation failed",
			"layer", "service",
			"operation", "regenerate_config",
			"error", err)
		return []ItemResult{{Name: "projects", Err: err}}
	}

	results := make([]ItemResult, 0, len(projects))
	for _, p := range projects {
		err := s.regenerate(ctx, p)
		if err != nil {
			slog.Error("Service operation failed",
				"layer", "service",
				"operation", "regenerate_project",
				"project_id", p.ID,
				"domain", p.Domain,
				"error", err)
		}
		results = append(results, ItemResult{Name: p.Domain, Err: err})
	}
	return results
}

func (s *ProjectService) regenerate(ctx context.Context, p *domain.Project) error {
	oldDomain := p.Domain
	p.Rehost(s.config.BaseHost)

	if p.Domain != oldDomain {
		if err := s.projectRepository.Update(p); err != nil {
			p.Domain = oldDomain
			return err
		}
		if err := s.lifecycle.Forget(ctx, oldDomain); err != nil {
			return err
		}
		if err := s.unpublish(ctx, oldDomain); err != nil {
			return err
		}
		slog.Info("Project moved to new base host",
			"project_id", p.ID,
			"from", oldDomain,
			"to", p.Domain)
	}

	if err := s.renderer.RenderPlaceholderPage(p.Domain); err != nil {
		return err
	}

	if p.State == domain.ConnectionStateConnected && p.Port != 0 {
		alive, err := s.lifecycle.IsAlive(ctx, p.Domain)
		if err != nil {
			return err
		}
		if alive {
			return s.renderer.RenderVhost(ctx, p.Domain, p.Port)
		}
	}
	return s.lifecycle.Revert(ctx, p)
}

// ConnectionInfo returns the OS account and a freshly leased port for the
// project's agent.
func (s *ProjectService) ConnectionInfo(ctx context.Context, domainName string) (*ConnectionInfo, error) {
	project, err := s.GetByDomain(domainName)
	if err != nil {
		return nil, err
	}

	owner, err := s.owner(project)
	if err != nil {
		return nil, err
	}

	port, err := s.lifecycle.Reserve(ctx, project)
	if err != nil {
		slog.Error("Service operation failed",
			"layer", "service",
			"operation", "connection_info",
			"domain", domainName,
			"error", err)
		return nil, err
	}

	return &ConnectionInfo{User: owner.Username, Port: port}, nil
}

// KeyFile installs a new forwarding key for the project owner and returns
// its private half. The key is revoked after the configured key TTL.
func (s *ProjectService) KeyFile(ctx context.Context, domainName, secretKey string) ([]byte, error) {
	project, err := s.GetByDomain(domainName)
	if err != nil {
		return nil, err
	}
	if !secret.Equal(project.SecretKey, secretKey) {
		return nil, &domain.ProjectError{Domain: project.Domain, Op: "key_file", Err: domain.ErrForbidden}
	}

	owner, err := s.owner(project)
	if err != nil {
		return nil, err
	}
	if !owner.NeedsOSAccount() {
		return nil, &domain.ProjectError{Domain: project.Domain, Op: "key_file", Err: domain.ErrNoSSHAccount}
	}

	key, err := s.keys.IssueKey(ctx, owner.Username)
	if err != nil {
		slog.Error("Service operation failed",
			"layer", "service",
			"operation", "key_file",
			"domain", domainName,
			"username", owner.Username,
			"error", err)
		return nil, err
	}

	s.scheduleRevocation(owner.Username)
	return key, nil
}

// Connect points the project's vhost at a port leased through ConnectionInfo.
func (s *ProjectService) Connect(ctx context.Context, domainName, secretKey string, port int) error {
	project, err := s.GetByDomain(domainName)
	if err != nil {
		return err
	}
	return s.lifecycle.Connect(ctx, project, secretKey, port)
}

// Disconnect reverts the project to its placeholder page.
func (s *ProjectService) Disconnect(ctx context.Context, domainName, secretKey string) error {
	project, err := s.GetByDomain(domainName)
	if err != nil {
		return err
	}
	return s.lifecycle.Disconnect(ctx, project, secretKey)
}

// KeepAlive extends the project's connection.
func (s *ProjectService) KeepAlive(ctx context.Context, domainName string) error {
	project, err := s.GetByDomain(domainName)
	if err != nil {
		return err
	}
	return s.lifecycle.KeepAlive(ctx, project)
}

// Stop revokes every key still waiting for its scheduled revocation.
func (s *ProjectService) Stop(ctx context.Context) {
	s.revocations.Stop()

	s.issuedMu.Lock()
	pending := make([]string, 0, len(s.issued))
	for username := range s.issued {
		pending = append(pending, username)
	}
	s.issued = make(map[string]struct{})
	s.issuedMu.Unlock()

	for _, username := range pending {
		if err := s.keys.RevokeKey(ctx, username); err != nil {
			slog.Error("Failed to revoke key on shutdown",
				"username", username,
				"error", err)
		}
	}
}

func (s *ProjectService) scheduleRevocation(username string) {
	s.issuedMu.Lock()
	s.issued[username] = struct{}{}
	s.issuedMu.Unlock()

	s.revocations.Schedule(username, s.config.KeyTTL, func() {
		s.issuedMu.Lock()
		delete(s.issued, username)
		s.issuedMu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), revokeTimeout)
		defer cancel()

		if err := s.keys.RevokeKey(ctx, username); err != nil {
			slog.Error("Failed to revoke key",
				"username", username,
				"error", err)
			return
		}
		slog.Debug("Key revoked", "username", username)
	})
}

func (s *ProjectService) owner(project *domain.Project) (*domain.User, error) {
	if project.Owner != nil {
		return project.Owner, nil
	}
	return s.userRepository.FindByID(project.OwnerID)
}

func (s *ProjectService) publish(ctx context.Context, domainName string) error {
	if err := s.renderer.RenderPlaceholderPage(domainName); err != nil {
		return err
	}
	return s.renderer.RenderVhost(ctx, domainName, 0)
}

func (s *ProjectService) unpublish(ctx context.Context, domainName string) error {
	return errors.Join(
		s.renderer.RemoveVhost(ctx, domainName),
		s.renderer.RemovePlaceholderPage(domainName),
	)
}

// NewProjectService creates a new ProjectService with dependency injection
func NewProjectService(
	projectRepository repository.ProjectRepository,
	userRepository repository.UserRepository,
	renderer Renderer,
	keys KeyIssuer,
	lifecycle *connection.Lifecycle,
	cfg *config.Config,
) *ProjectService {
	return &ProjectService{
		projectRepository: projectRepository,
		userRepository:    userRepository,
		renderer:          renderer,
		keys:              keys,
		lifecycle:         lifecycle,
		config:            cfg,
		revocations:       connection.NewScheduler(),
		issued:            make(map[string]struct{}),
	}
}
