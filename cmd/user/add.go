package user

import (
	"fmt"

	"github.com/demos-sh/demos/app"
	"github.com/demos-sh/demos/cmd/output"
	"github.com/spf13/cobra"
)

func NewCmdUserAdd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create a user",
		Long: `Create a user. Regular users get a locked-down OS account that
can only open reverse tunnels; superusers get no OS account.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			superuser, _ := cmd.Flags().GetBool("superuser")

			u, err := app.GetUserService().Create(cmd.Context(), args[0], superuser)
			if err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}

			return output.FprintSuccess(cmd, "User '%s' created (%s)\n", u.Username, u.ID)
		},
	}

	cmd.Flags().Bool("superuser", false, "Create an administrator without an OS account")
	return cmd
}
