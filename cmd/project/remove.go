package project

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/demos-sh/demos/app"
	"github.com/demos-sh/demos/cmd/output"
	"github.com/demos-sh/demos/cmd/utils"
	"github.com/demos-sh/demos/domain"
	"github.com/spf13/cobra"
)

func NewCmdProjectRemove() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <project-id|domain>",
		Short: "Remove a project and unpublish its subdomain",
		Long: `Remove a project.

This deletes the project record, its nginx vhost and its placeholder
page. A connected agent loses its route immediately.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProjectRemove(cmd, args)
		},
	}

	cmd.Flags().BoolP("confirm", "y", false, "Skip confirmation prompt and proceed with deletion")
	return cmd
}

func runProjectRemove(cmd *cobra.Command, args []string) error {
	skipConfirmation, _ := cmd.Flags().GetBool("confirm")

	project, err := utils.ResolveProject(args[0])
	if err != nil {
		return fmt.Errorf("failed to find project %s: %w", args[0], err)
	}

	if err := output.FprintWarning(cmd, "\nWARNING: You are about to DELETE the following project:\n"); err != nil {
		return err
	}

	projectInfo, err := output.PrintProjectDetails(project, domain.AdminView)
	if err != nil {
		return fmt.Errorf("failed to format project details: %w", err)
	}
	if err := output.FprintPlain(cmd, "%s\n", projectInfo); err != nil {
		return err
	}

	if !skipConfirmation {
		if !promptConfirmation(cmd, project.Domain) {
			return output.FprintPlain(cmd, "Project removal cancelled.\n")
		}
	}

	if err := app.GetProjectService().Remove(cmd.Context(), project.ID); err != nil {
		return fmt.Errorf("failed to remove project: %w", err)
	}

	return output.FprintSuccess(cmd, "Project '%s' removed successfully\n", project.Domain)
}

// promptConfirmation asks the user to type the domain back
func promptConfirmation(cmd *cobra.Command, domainName string) bool {
	if err := output.FprintWarning(cmd, "Type the domain '%s' to confirm deletion: ", domainName); err != nil {
		return false
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	input, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	return strings.TrimSpace(input) == domainName
}
