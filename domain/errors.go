package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the service, repository and HTTP layers.
// Callers match them with errors.Is.
var (
	ErrProjectNotFound = errors.New("project not found")
	ErrUserNotFound    = errors.New("user not found")

	// ErrForbidden means the presented secret key does not match the project.
	ErrForbidden = errors.New("invalid secret_key")

	// ErrPortNotLeased means the port is not currently leased to the project.
	ErrPortNotLeased = errors.New("port not available")

	// ErrPortsExhausted means every candidate port is bound or leased.
	ErrPortsExhausted = errors.New("no free port")

	// ErrProjectLimit means a regular user already owns a project.
	ErrProjectLimit = errors.New("each user can't have more than one project simultaneously")

	// ErrNoSSHAccount means the project owner has no OS account to install keys for.
	ErrNoSSHAccount = errors.New("project owner has no ssh account")

	ErrDomainInUse   = errors.New("this domain is already in use")
	ErrUsernameInUse = errors.New("this username is already in use")
)

// ProjectError wraps an underlying error with the project domain and operation.
type ProjectError struct {
	Domain string
	Op     string
	Err    error
}

func (e *ProjectError) Error() string {
	if e.Domain != "" {
		return fmt.Sprintf("project %s: %s: %v", e.Domain, e.Op, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProjectError) Unwrap() error {
	return e.Err
}
