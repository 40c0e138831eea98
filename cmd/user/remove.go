package user

import (
	"fmt"

	"github.com/demos-sh/demos/app"
	"github.com/demos-sh/demos/cmd/output"
	"github.com/demos-sh/demos/cmd/utils"
	"github.com/spf13/cobra"
)

func NewCmdUserRemove() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <user-id|username>",
		Short: "Remove a user, their projects and their OS account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			skipConfirmation, _ := cmd.Flags().GetBool("confirm")

			u, err := utils.ResolveUser(args[0])
			if err != nil {
				return fmt.Errorf("failed to find user %s: %w", args[0], err)
			}

			if !skipConfirmation {
				if err := output.FprintWarning(cmd, "User '%s' and all of their projects will be deleted. Re-run with --confirm to proceed.\n", u.Username); err != nil {
					return err
				}
				return nil
			}

			if err := app.GetUserService().Remove(cmd.Context(), u.ID); err != nil {
				return fmt.Errorf("failed to remove user: %w", err)
			}

			return output.FprintSuccess(cmd, "User '%s' removed successfully\n", u.Username)
		},
	}

	cmd.Flags().BoolP("confirm", "y", false, "Proceed with deletion")
	return cmd
}
