package project

import (
	"context"

	"github.com/demos-sh/demos/domain"
	"github.com/google/uuid"
)

// ProjectManager defines the contract for project management operations
type ProjectManager interface {
	List(caller *domain.User) ([]*domain.Project, error)
	ListOwned(ownerID uuid.UUID) ([]*domain.Project, error)
	Get(id uuid.UUID) (*domain.Project, error)
	GetByDomain(domainName string) (*domain.Project, error)
	Create(ctx context.Context, owner *domain.User, rawDomain string) (*domain.Project, error)
	Remove(ctx context.Context, projectID uuid.UUID) error
	RegenerateConfig(ctx context.Context) []ItemResult

	ConnectionInfo(ctx context.Context, domainName string) (*ConnectionInfo, error)
	KeyFile(ctx context.Context, domainName, secretKey string) ([]byte, error)
	Connect(ctx context.Context, domainName, secretKey string, port int) error
	Disconnect(ctx context.Context, domainName, secretKey string) error
	KeepAlive(ctx context.Context, domainName string) error
}

// Renderer manages the nginx vhost and placeholder page of a domain.
type Renderer interface {
	RenderVhost(ctx context.Context, domain string, port int) error
	RemoveVhost(ctx context.Context, domain string) error
	RenderPlaceholderPage(domain string) error
	RemovePlaceholderPage(domain string) error
}

// KeyIssuer installs and revokes the forwarding key of an OS account.
type KeyIssuer interface {
	IssueKey(ctx context.Context, username string) ([]byte, error)
	RevokeKey(ctx context.Context, username string) error
}

// ConnectionInfo is what an agent needs to open its reverse tunnel.
type ConnectionInfo struct {
	User string `json:"user"`
	Port int    `json:"port"`
}

// ItemResult reports the outcome of a bulk operation for one item.
type ItemResult struct {
	Name string
	Err  error
}
