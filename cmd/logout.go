package cmd

import (
	"errors"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"tokenwarden/pkg/logging"
)

// Logout-specific flags
var logoutAll bool

// logoutCmd represents the logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [provider...]",
	Short: "Revoke and remove stored tokens",
	Long: `Sign out of one or more providers. Tokens are revoked at the provider
when it supports revocation, then removed locally. A failed revocation is
reported but does not keep the local token.

Examples:
  tokenwarden logout google
  tokenwarden logout --all`,
	RunE: runLogout,
}

func init() {
	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "Sign out of every configured provider")
}

func runLogout(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.ErrOrStderr()

	if len(args) == 0 && !logoutAll {
		return errors.New("name a provider or pass --all")
	}

	names, err := providerNames(args)
	if err != nil {
		return err
	}

	for _, name := range names {
		client, err := newProviderClient(name, false, false, out)
		if err != nil {
			if logoutAll {
				logging.Warn("Logout", "Skipping %s: %v", name, err)
				continue
			}
			return err
		}
		client.Deauthenticate(ctx)
		client.Close()
		printf(out, "%s Signed out of %s\n", text.FgGreen.Sprint("✓"), name)
	}
	return nil
}
