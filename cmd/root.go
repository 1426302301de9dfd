package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"tokenwarden/internal/config"
	"tokenwarden/internal/launcher"
	"tokenwarden/pkg/logging"
	"tokenwarden/pkg/oauth"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates a token is not available without signing in.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the OAuth flow failed.
	ExitCodeAuthFailed = 3
)

// Global flags
var (
	configPath string
	logLevel   string
	logJSON    bool
	quiet      bool
)

// loadedConfig is populated by the root command before any subcommand runs.
var loadedConfig config.Config

// rootCmd represents the base command for the tokenwarden application.
var rootCmd = &cobra.Command{
	Use:   "tokenwarden",
	Short: "Obtain and keep OAuth2 access tokens for local tools",
	Long: `tokenwarden signs you in to OAuth2 providers with the Authorization Code
flow and PKCE, stores the resulting tokens and refreshes them before they
expire.

Scripts read a fresh access token with "tokenwarden token <provider>" and
exit code 2 tells them the user has to sign in again.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfigAndLogging,
}

// SetVersion sets the version for the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute runs the root command and exits with a code derived from the error.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "tokenwarden version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode maps errors onto the documented exit codes so scripts can tell
// "sign in again" apart from other failures.
func getExitCode(err error) int {
	switch {
	case err == nil:
		return ExitCodeSuccess
	case errors.Is(err, oauth.ErrInteractionRequired), errors.Is(err, oauth.ErrInvalidGrant):
		return ExitCodeAuthRequired
	case errors.Is(err, oauth.ErrTokenExchangeFailed), errors.Is(err, oauth.ErrStateMismatch):
		return ExitCodeAuthFailed
	}

	var authErr *launcher.AuthorizationError
	if errors.As(err, &authErr) {
		return ExitCodeAuthFailed
	}
	return ExitCodeError
}

func loadConfigAndLogging(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	loadedConfig = cfg

	levelName := cfg.LogLevel
	if logLevel != "" {
		levelName = logLevel
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return err
	}

	format := logging.FormatText
	if logJSON {
		format = logging.FormatJSON
	}
	logging.InitForCLIWithFormat(level, format, cmd.ErrOrStderr())
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config-path", "", "Configuration directory (default ~/.config/tokenwarden)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides the config file)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "Write logs as JSON")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(providersCmd)
}
