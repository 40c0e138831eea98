package project

import (
	"errors"
	"strings"

	"github.com/demos-sh/demos/domain"
	"github.com/demos-sh/demos/validation"
)

// FormatErrorForUser converts technical errors to user-friendly messages
// This should only be called at the handler level
func FormatErrorForUser(err error) string {
	if err == nil {
		return ""
	}

	var verr *validation.ValidationError
	if errors.As(err, &verr) {
		return verr.Message
	}

	for _, known := range []error{
		domain.ErrProjectNotFound,
		domain.ErrUserNotFound,
		domain.ErrForbidden,
		domain.ErrPortNotLeased,
		domain.ErrPortsExhausted,
		domain.ErrProjectLimit,
		domain.ErrNoSSHAccount,
		domain.ErrDomainInUse,
		domain.ErrUsernameInUse,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "unique constraint"):
		return "this entry already exists"
	case strings.Contains(errStr, "record not found"):
		return "not found"
	case strings.Contains(errStr, "database is locked"):
		return "database is busy, try again"
	case strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded"):
		return "operation timed out"
	case strings.Contains(errStr, "nginx"):
		return "failed to apply proxy configuration"
	case strings.Contains(errStr, "sshd"):
		return "failed to apply ssh configuration"
	case strings.Contains(errStr, "permission denied"):
		return "permission denied"
	default:
		return "an unexpected error occurred"
	}
}
