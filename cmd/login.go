package cmd

import (
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"tokenwarden/internal/provider"
	"tokenwarden/pkg/logging"
)

// Login-specific flags
var (
	loginForce     bool
	loginNoBrowser bool
)

// loginCmd represents the login command
var loginCmd = &cobra.Command{
	Use:   "login <provider>",
	Short: "Sign in to a provider",
	Long: `Sign in to an OAuth2 provider in the browser.

A listener on 127.0.0.1 receives the redirect, the authorization code is
exchanged with PKCE and the resulting tokens are stored.

Examples:
  tokenwarden login google
  tokenwarden login github --force       # Sign in again even with a valid token
  tokenwarden login generic --no-browser # Print the URL instead of opening it`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().BoolVar(&loginForce, "force", false, "Sign in even if a usable token is stored")
	loginCmd.Flags().BoolVar(&loginNoBrowser, "no-browser", false, "Print the authorization URL instead of opening a browser")
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.ErrOrStderr()

	name, err := provider.ParseName(args[0])
	if err != nil {
		return err
	}

	client, err := newProviderClient(name, true, loginNoBrowser, out)
	if err != nil {
		return err
	}
	defer client.Close()

	if !loginForce && client.IsAuthenticated(ctx) {
		printf(out, "%s Already signed in to %s\n", text.FgGreen.Sprint("✓"), name)
		return nil
	}

	authURL, err := client.CreateAuthURL()
	if err != nil {
		return err
	}

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(out))
	s.Suffix = fmt.Sprintf(" Waiting for %s authorization in your browser...", name)
	if !quiet {
		s.Start()
	}

	result, err := client.loopback.Launch(ctx, authURL)
	s.Stop()
	if err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}

	record, err := client.Validate(ctx, result.Code, result.State)
	if err != nil {
		return err
	}

	logging.Info("Login", "Stored new credential for %s", name)
	printf(out, "%s Signed in to %s\n", text.FgGreen.Sprint("✓"), name)
	if identity := idTokenIdentity(record.IDToken); identity != "" {
		printf(out, "  Identity: %s\n", identity)
	}
	if record.ExpiresAt != 0 {
		printf(out, "  Expires:  %s\n", record.Expiry().Local().Format(time.RFC1123))
	}
	return nil
}
