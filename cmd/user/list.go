package user

import (
	"fmt"

	"github.com/demos-sh/demos/app"
	"github.com/demos-sh/demos/cmd/output"
	"github.com/spf13/cobra"
)

func NewCmdUserList() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all users",
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := app.GetUserService().List()
			if err != nil {
				return fmt.Errorf("failed to list users: %w", err)
			}

			out, err := output.PrintUserList(users)
			if err != nil {
				return err
			}
			return output.FprintPlain(cmd, "%s", out)
		},
	}
}
