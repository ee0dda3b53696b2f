package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jingjing529/ai-calendar-agent/internal/google"
)

func newLoginCmd() *cobra.Command {
	var (
		account string
		addr    string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with Google and store the token for mcp and chat",
		Long: `Sign in with Google from the terminal. A loopback listener receives the
OAuth redirect, so the OAuth client must allow http://127.0.0.1 redirect URIs
(a "Desktop app" client does).

The token is stored in the user cache directory and refreshed automatically.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			conf, err := localOAuthConfig(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			out := cmd.OutOrStdout()
			flow := &google.LoopbackFlow{
				Config: conf,
				Addr:   addr,
				OnAuthURL: func(url string) {
					fmt.Fprintf(out, "Visit this URL in your browser to sign in:\n\n  %s\n\nWaiting for the redirect...\n", url)
				},
			}
			tok, err := flow.Run(ctx)
			if err != nil {
				return fmt.Errorf("sign-in failed: %w", err)
			}
			if err := google.SaveToken(account, tok); err != nil {
				return err
			}

			fmt.Fprintf(out, "Signed in. Token saved to %s\n", google.TokenFilePath(account))
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "default", "Name to store the token under")
	cmd.Flags().StringVar(&addr, "listen-addr", "127.0.0.1:0", "Loopback address that receives the OAuth redirect")

	return cmd
}

func newLogoutCmd() *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored Google token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !google.HasToken(account) {
				fmt.Fprintf(cmd.OutOrStdout(), "No token stored for account %q\n", account)
				return nil
			}
			if err := google.DeleteToken(account); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed token for account %q\n", account)
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "default", "Name of the stored token")

	return cmd
}
