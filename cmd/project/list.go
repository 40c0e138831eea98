package project

import (
	"github.com/demos-sh/demos/app"
	"github.com/demos-sh/demos/cmd/output"
	"github.com/demos-sh/demos/cmd/utils"
	"github.com/demos-sh/demos/domain"
	"github.com/spf13/cobra"
)

func NewCmdProjectList() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List demo subdomains",
		Long: `Display demo subdomains in a table.

Without --as every project is shown with the administrator columns.
With --as <username> only the projects that user can see are listed,
using the columns available to that user.`,
		Run: func(cmd *cobra.Command, args []string) {
			as, _ := cmd.Flags().GetString("as")

			var caller *domain.User
			if as != "" {
				u, err := utils.ResolveUser(as)
				if err != nil {
					utils.HandleCommandError("resolving user", err, "user", as)
					return
				}
				caller = u
			}

			projects, err := app.GetProjectService().List(caller)
			if err != nil {
				utils.HandleCommandError("listing projects", err)
				return
			}

			out, err := output.PrintProjectList(projects, domain.PolicyFor(caller))
			if err != nil {
				utils.HandleCommandError("printing project list table", err)
				return
			}

			if err := output.FprintPlain(cmd, "%s", out); err != nil {
				utils.HandleCommandError("printing project list output", err)
			}
		},
	}

	cmd.Flags().String("as", "", "List projects as seen by this user")
	return cmd
}
