package project

import (
	"fmt"

	"github.com/demos-sh/demos/cmd/output"
	"github.com/demos-sh/demos/cmd/utils"
	"github.com/demos-sh/demos/domain"
	"github.com/spf13/cobra"
)

func NewCmdProjectShow() *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id|domain>",
		Short: "Show detailed project information",
		Long:  "Display a project's domain, owner, secret key and connection state.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return cmd.Help()
			}

			project, err := utils.ResolveProject(args[0])
			if err != nil {
				return fmt.Errorf("failed to retrieve project %s: %w", args[0], err)
			}

			out, err := output.PrintProjectDetails(project, domain.AdminView)
			if err != nil {
				return fmt.Errorf("failed to format project details: %w", err)
			}

			if err := output.FprintPlain(cmd, "%s", out); err != nil {
				return fmt.Errorf("failed to print project details: %w", err)
			}

			return nil
		},
	}
}
