// Package root implements the command line interface for demos.
package root

import (
	"fmt"
	"os"
	"slices"

	"github.com/demos-sh/demos/app"
	"github.com/demos-sh/demos/cmd/generateconfig"
	"github.com/demos-sh/demos/cmd/keygen"
	"github.com/demos-sh/demos/cmd/output"
	"github.com/demos-sh/demos/cmd/project"
	"github.com/demos-sh/demos/cmd/server"
	"github.com/demos-sh/demos/cmd/user"
	"github.com/demos-sh/demos/cmd/version"
	"github.com/demos-sh/demos/config"
	"github.com/demos-sh/demos/logging"
	"github.com/spf13/cobra"
)

// Commands that must work without a valid configuration or database
var skipInit = []string{"version", "keygen", "help", "completion"}

func Execute() {
	if err := NewCmdRoot().Execute(); err != nil {
		os.Exit(1)
	}
}

func NewCmdRoot() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "demos",
		Short: "Publish local development servers on demo subdomains",
		Long: `demos hands out subdomains of a base host to users. A tunnel agent on
the user's machine opens an SSH reverse tunnel to a leased port and the
subdomain's nginx vhost is switched from a placeholder page to that port
for as long as the agent keeps the connection alive.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if slices.Contains(skipInit, cmd.Name()) {
				return nil
			}
			return initialize(configPath)
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "f", "", "Path to configuration file")
	cmd.PersistentFlags().VarP(logging.LogLevel, "log-level", "l", "Set log verbosity level")
	cmd.PersistentFlags().VarP(output.NoColor, "no-color", "c", "Disable colored terminal output")
	cmd.PersistentFlags().Lookup("no-color").NoOptDefVal = "true"

	cmd.AddCommand(server.NewCmdServer())
	cmd.AddCommand(project.NewCmdProject())
	cmd.AddCommand(user.NewCmdUser())
	cmd.AddCommand(generateconfig.NewCmdGenerateConfig())
	cmd.AddCommand(keygen.NewCmdKeygen())
	cmd.AddCommand(version.NewCmdVersion())
	return cmd
}

// initialize loads configuration and wires the application. CLI flags
// override the configured color and log level.
func initialize(configPath string) error {
	cfg, err := config.NewConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	output.InitColors(!cfg.ColorEnabled || output.NoColor.IsSet())
	logging.InitLogging(logging.LogLevel.Resolve(cfg.LogLevel))

	if err := app.InitializeWithConfig(cfg); err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return nil
}
