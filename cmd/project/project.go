// Package project provides commands for managing demo subdomains.
package project

import "github.com/spf13/cobra"

func NewCmdProject() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage demo subdomains",
	}

	cmd.AddCommand(NewCmdProjectList())
	cmd.AddCommand(NewCmdProjectAdd())
	cmd.AddCommand(NewCmdProjectRemove())
	cmd.AddCommand(NewCmdProjectShow())
	return cmd
}
