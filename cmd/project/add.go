package project

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/demos-sh/demos/app"
	"github.com/demos-sh/demos/cmd/output"
	"github.com/demos-sh/demos/cmd/utils"
	"github.com/demos-sh/demos/domain"
	"github.com/demos-sh/demos/validation"
	"github.com/spf13/cobra"
)

func NewCmdProjectAdd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [domain]",
		Short: "Register a demo subdomain for a user",
		Long: `Register a new demo subdomain and assign it to a user.

The domain may be given as a bare label ("demo1") or fully qualified
("demo1.example.com"). Without a domain, --title is turned into a label.
A placeholder page and a default nginx vhost are published immediately
and a secret key is generated for the agent.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("user")
			title, _ := cmd.Flags().GetString("title")

			var ref string
			if len(args) == 1 {
				ref = args[0]
			}
			domainName, err := resolveDomain(ref, title)
			if err != nil {
				return err
			}

			owner, err := utils.ResolveUser(username)
			if err != nil {
				return fmt.Errorf("failed to find user %s: %w", username, err)
			}

			created, err := app.GetProjectService().Create(cmd.Context(), owner, domainName)
			if err != nil {
				return fmt.Errorf("failed to create project: %w", err)
			}

			out, err := output.PrintProjectDetails(created, domain.AdminView)
			if err != nil {
				return fmt.Errorf("failed to format project details: %w", err)
			}

			return output.FprintPlain(cmd, "%s", out)
		},
	}

	cmd.Flags().StringP("user", "u", "", "Owner username or ID")
	cmd.Flags().StringP("title", "t", "", "Derive the subdomain from this title when no domain is given")
	if err := cmd.MarkFlagRequired("user"); err != nil {
		slog.Error("Failed to mark user flag as required", "error", err)
		panic(fmt.Sprintf("CLI setup error: %v", err))
	}
	return cmd
}

// resolveDomain qualifies a bare label with the configured base host.
func resolveDomain(ref, title string) (string, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		ref = validation.SuggestLabel(title)
		if ref == "" {
			return "", errors.New("a domain or a usable --title is required")
		}
	}
	if strings.Contains(ref, ".") {
		return ref, nil
	}
	cfg := app.GetConfig()
	if cfg == nil || cfg.BaseHost == "" {
		return "", errors.New("base host is not configured")
	}
	return ref + "." + cfg.BaseHost, nil
}
