package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jingjing529/ai-calendar-agent/internal/session"
)

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate a session cookie encryption key",
		Long: `Generate a random AES-256 key for encrypting session cookies. Set it as
SESSION_ENCRYPTION_KEY (or session.encryption_key in the config file) and keep
it stable: cookies sealed under one key cannot be read with another.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := session.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), session.KeyToBase64(key))
			return nil
		},
	}
}
