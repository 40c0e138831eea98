// Package generateconfig re-applies host configuration for every user and project.
package generateconfig

import (
	"fmt"
	"log/slog"

	"github.com/demos-sh/demos/app"
	"github.com/demos-sh/demos/cmd/output"
	"github.com/spf13/cobra"
)

func NewCmdGenerateConfig() *cobra.Command {
	return &cobra.Command{
		Use:   "generate-config",
		Short: "Regenerate SSH accounts, vhosts and placeholder pages",
		Long: `Re-provision the OS account and sshd drop-in of every regular user,
then re-render the placeholder page and nginx vhost of every project.

Projects whose domain no longer ends with the configured base host are
moved onto it. Failures are reported per item and do not stop the run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if err := output.FprintPlain(cmd, "Accounts:\n"); err != nil {
				return err
			}
			accounts, failedAccounts := output.PrintResults(app.GetUserService().ReprovisionAccounts(ctx))
			if err := output.FprintPlain(cmd, "%s", accounts); err != nil {
				return err
			}

			if err := output.FprintPlain(cmd, "Projects:\n"); err != nil {
				return err
			}
			projects, failedProjects := output.PrintResults(app.GetProjectService().RegenerateConfig(ctx))
			if err := output.FprintPlain(cmd, "%s", projects); err != nil {
				return err
			}

			if failed := failedAccounts + failedProjects; failed > 0 {
				slog.Warn("Configuration regenerated with failures", "failed", failed)
				return fmt.Errorf("%d item(s) failed", failed)
			}
			return output.FprintSuccess(cmd, "Configuration regenerated\n")
		},
	}
}
