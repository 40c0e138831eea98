// Package domain provides core domain types and entities for demos.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Project struct {
	ID              uuid.UUID
	Domain          string // fully-qualified, label.basehost
	OwnerID         uuid.UUID
	Owner           *User // populated by the repository when loaded
	SecretKey       string
	State           ConnectionState
	Port            int // upstream port while connected, 0 otherwise
	LastConnectedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func NewProject(domain string, ownerID uuid.UUID, secretKey string) Project {
	return Project{
		ID:        uuid.New(),
		Domain:    domain,
		OwnerID:   ownerID,
		SecretKey: secretKey,
		State:     ConnectionStatePlaceholder,
	}
}

// Label returns the subdomain part of Domain.
func (p *Project) Label() string {
	label, _, _ := strings.Cut(p.Domain, ".")
	return label
}

// OwnerUsername returns the owner's username, or an empty string when the owner was not loaded.
func (p *Project) OwnerUsername() string {
	if p.Owner == nil {
		return ""
	}
	return p.Owner.Username
}

func (p *Project) LastConnectedStr() string {
	if p.LastConnectedAt == nil {
		return "never"
	}
	return p.LastConnectedAt.Format("2006-01-02 15:04:05")
}

// Rehost moves the project onto baseHost, keeping its label.
func (p *Project) Rehost(baseHost string) {
	p.Domain = fmt.Sprintf("%s.%s", p.Label(), baseHost)
}
