package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tokenwarden/internal/provider"
	"tokenwarden/pkg/oauth"
)

// Token-specific flags
var (
	tokenInteractive bool
	tokenJSON        bool
)

// tokenCmd represents the token command
var tokenCmd = &cobra.Command{
	Use:   "token <provider>",
	Short: "Print a usable access token",
	Long: `Print an access token for the provider, refreshing it first when it
expires within the next minute.

Without --interactive the command never opens a browser. When no usable
token exists it exits with code 2.

Examples:
  curl -H "Authorization: Bearer $(tokenwarden token google)" ...
  tokenwarden token github --interactive
  tokenwarden token spotify --json`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().BoolVarP(&tokenInteractive, "interactive", "i", false, "Sign in through the browser when no usable token exists")
	tokenCmd.Flags().BoolVar(&tokenJSON, "json", false, "Print the token, its type and expiry as JSON")
}

type tokenOutput struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Expiry      string `json:"expiry,omitempty"`
}

func runToken(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	name, err := provider.ParseName(args[0])
	if err != nil {
		return err
	}

	client, err := newProviderClient(name, tokenInteractive, false, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer client.Close()

	if tokenInteractive {
		if _, err := client.Authenticate(ctx); err != nil {
			return err
		}
	}

	if tokenJSON {
		token, err := client.TokenSource(ctx).Token()
		if errors.Is(err, oauth.ErrNoToken) {
			return notSignedIn(name)
		}
		if err != nil {
			return err
		}
		output := tokenOutput{AccessToken: token.AccessToken, TokenType: token.Type()}
		if !token.Expiry.IsZero() {
			output.Expiry = token.Expiry.UTC().Format("2006-01-02T15:04:05Z")
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(output)
	}

	token, err := client.GetAuthToken(ctx, false)
	if err != nil {
		return err
	}
	if token == "" {
		return notSignedIn(name)
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func notSignedIn(name provider.Name) error {
	return fmt.Errorf("no usable token for %s, run 'tokenwarden login %s': %w", name, name, oauth.ErrInteractionRequired)
}
