// Package keygen provides a command that prints a fresh encryption key.
package keygen

import (
	"fmt"

	"github.com/demos-sh/demos/cmd/output"
	"github.com/demos-sh/demos/encryption"
	"github.com/spf13/cobra"
)

func NewCmdKeygen() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate an encryption key for project secrets",
		Long: `Print a new base64 key suitable for DEMOS_ENCRYPTION_KEY.
Project secret keys are encrypted at rest with it; changing the key
makes stored secrets unreadable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := encryption.GenerateKey()
			if err != nil {
				return fmt.Errorf("failed to generate key: %w", err)
			}
			return output.FprintPlain(cmd, "%s\n", key)
		},
	}
}
