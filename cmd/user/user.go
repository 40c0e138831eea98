// Package user provides commands for managing the accounts that own demos.
package user

import "github.com/spf13/cobra"

func NewCmdUser() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users and their SSH accounts",
	}

	cmd.AddCommand(NewCmdUserAdd())
	cmd.AddCommand(NewCmdUserList())
	cmd.AddCommand(NewCmdUserRemove())
	return cmd
}
