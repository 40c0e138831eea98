// Package utils provides utility functions for CLI commands in demos.
package utils

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/demos-sh/demos/app"
	"github.com/demos-sh/demos/cmd/output"
	"github.com/demos-sh/demos/domain"
	"github.com/demos-sh/demos/project"
	"github.com/google/uuid"
)

// HandleCommandError provides consistent error handling for CLI commands
func HandleCommandError(operation string, err error, context ...any) {
	slog.Error("Command failed", append([]any{"operation", operation, "error", err}, context...)...)
	fmt.Fprintln(os.Stderr, output.PrintMessage(output.Error, "Error: %s failed: %s", operation, project.FormatErrorForUser(err)))
	os.Exit(1)
}

// ResolveProject looks a project up by UUID or by domain name.
func ResolveProject(ref string) (*domain.Project, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return app.GetProjectService().Get(id)
	}
	return app.GetProjectService().GetByDomain(ref)
}

// ResolveUser looks a user up by UUID or by username.
func ResolveUser(ref string) (*domain.User, error) {
	if id, err := uuid.Parse(ref); err == nil {
		return app.GetUserService().Get(id)
	}
	return app.GetUserService().GetByUsername(ref)
}
