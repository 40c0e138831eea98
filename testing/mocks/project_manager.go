package mocks

import (
	"context"

	"github.com/demos-sh/demos/domain"
	"github.com/demos-sh/demos/project"
	"github.com/google/uuid"
)

// MockProjectManager implements the ProjectManager interface for testing
type MockProjectManager struct {
	ListFunc             func(caller *domain.User) ([]*domain.Project, error)
	ListOwnedFunc        func(ownerID uuid.UUID) ([]*domain.Project, error)
	GetFunc              func(id uuid.UUID) (*domain.Project, error)
	GetByDomainFunc      func(domainName string) (*domain.Project, error)
	CreateFunc           func(ctx context.Context, owner *domain.User, rawDomain string) (*domain.Project, error)
	RemoveFunc           func(ctx context.Context, projectID uuid.UUID) error
	RegenerateConfigFunc func(ctx context.Context) []project.ItemResult
	ConnectionInfoFunc   func(ctx context.Context, domainName string) (*project.ConnectionInfo, error)
	KeyFileFunc          func(ctx context.Context, domainName, secretKey string) ([]byte, error)
	ConnectFunc          func(ctx context.Context, domainName, secretKey string, port int) error
	DisconnectFunc       func(ctx context.Context, domainName, secretKey string) error
	KeepAliveFunc        func(ctx context.Context, domainName string) error
}

var _ project.ProjectManager = (*MockProjectManager)(nil)

func (m *MockProjectManager) List(caller *domain.User) ([]*domain.Project, error) {
	if m.ListFunc != nil {
		return m.ListFunc(caller)
	}
	return []*domain.Project{}, nil
}

func (m *MockProjectManager) ListOwned(ownerID uuid.UUID) ([]*domain.Project, error) {
	if m.ListOwnedFunc != nil {
		return m.ListOwnedFunc(ownerID)
	}
	return []*domain.Project{}, nil
}

func (m *MockProjectManager) Get(id uuid.UUID) (*domain.Project, error) {
	if m.GetFunc != nil {
		return m.GetFunc(id)
	}
	return &domain.Project{ID: id}, nil
}

func (m *MockProjectManager) GetByDomain(domainName string) (*domain.Project, error) {
	if m.GetByDomainFunc != nil {
		return m.GetByDomainFunc(domainName)
	}
	return &domain.Project{ID: uuid.New(), Domain: domainName}, nil
}

func (m *MockProjectManager) Create(ctx context.Context, owner *domain.User, rawDomain string) (*domain.Project, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, owner, rawDomain)
	}
	p := domain.NewProject(rawDomain, owner.ID, "secret")
	return &p, nil
}

func (m *MockProjectManager) Remove(ctx context.Context, projectID uuid.UUID) error {
	if m.RemoveFunc != nil {
		return m.RemoveFunc(ctx, projectID)
	}
	return nil
}

func (m *MockProjectManager) RegenerateConfig(ctx context.Context) []project.ItemResult {
	if m.RegenerateConfigFunc != nil {
		return m.RegenerateConfigFunc(ctx)
	}
	return nil
}

func (m *MockProjectManager) ConnectionInfo(ctx context.Context, domainName string) (*project.ConnectionInfo, error) {
	if m.ConnectionInfoFunc != nil {
		return m.ConnectionInfoFunc(ctx, domainName)
	}
	return &project.ConnectionInfo{}, nil
}

func (m *MockProjectManager) KeyFile(ctx context.Context, domainName, secretKey string) ([]byte, error) {
	if m.KeyFileFunc != nil {
		return m.KeyFileFunc(ctx, domainName, secretKey)
	}
	return []byte{}, nil
}

func (m *MockProjectManager) Connect(ctx context.Context, domainName, secretKey string, port int) error {
	if m.ConnectFunc != nil {
		return m.ConnectFunc(ctx, domainName, secretKey, port)
	}
	return nil
}

func (m *MockProjectManager) Disconnect(ctx context.Context, domainName, secretKey string) error {
	if m.DisconnectFunc != nil {
		return m.DisconnectFunc(ctx, domainName, secretKey)
	}
	return nil
}

func (m *MockProjectManager) KeepAlive(ctx context.Context, domainName string) error {
	if m.KeepAliveFunc != nil {
		return m.KeepAliveFunc(ctx, domainName)
	}
	return nil
}
