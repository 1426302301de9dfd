package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"tokenwarden/internal/auth"
	"tokenwarden/pkg/logging"
	"tokenwarden/pkg/oauth"
	twstrings "tokenwarden/pkg/strings"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status [provider...]",
	Short: "Show stored credentials",
	Long: `Show the stored credential of each configured provider, or of the
named ones. Nothing is refreshed and no network call is made.

Examples:
  tokenwarden status
  tokenwarden status google github`,
	RunE: runStatus,
}

// statusRow is one line of status output.
type statusRow struct {
	Provider string
	State    auth.AuthState
	Expires  string
	Refresh  bool
	Identity string
	Scope    string
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	names, err := providerNames(args)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		printf(cmd.ErrOrStderr(), "%s\n", text.FgYellow.Sprint("No providers configured. Add one to config.yaml or set TOKENWARDEN_<NAME>_CLIENT_ID."))
		return nil
	}

	rows := make([]statusRow, 0, len(names))
	for _, name := range names {
		client, err := newProviderClient(name, false, false, cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		row := statusRow{Provider: string(name), State: client.State(ctx)}
		record, err := client.StoredRecord(ctx)
		client.Close()
		switch {
		case err != nil:
			logging.Error("Status", err, "Failed to read stored token for %s", name)
			row.Expires = "unreadable"
		case record != nil:
			row.Expires = describeExpiry(record, time.Now())
			row.Refresh = record.HasRefreshToken()
			row.Identity = twstrings.Truncate(idTokenIdentity(record.IDToken), twstrings.DefaultColumnWidth)
			row.Scope = twstrings.Truncate(strings.Join(record.Scopes(), ", "), twstrings.DefaultColumnWidth)
		}
		rows = append(rows, row)
	}

	renderStatus(cmd, rows)
	return nil
}

func renderStatus(cmd *cobra.Command, rows []statusRow) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("PROVIDER"),
		text.FgHiCyan.Sprint("STATE"),
		text.FgHiCyan.Sprint("EXPIRES"),
		text.FgHiCyan.Sprint("REFRESH"),
		text.FgHiCyan.Sprint("IDENTITY"),
		text.FgHiCyan.Sprint("SCOPE"),
	})

	for _, row := range rows {
		refresh := "no"
		if row.Refresh {
			refresh = "yes"
		}
		t.AppendRow(table.Row{row.Provider, colorState(row.State), row.Expires, refresh, row.Identity, row.Scope})
	}
	t.Render()
}

func colorState(state auth.AuthState) string {
	switch state {
	case auth.StateAuthenticated:
		return text.FgGreen.Sprint(state.String())
	case auth.StatePendingAuthorization:
		return text.FgYellow.Sprint(state.String())
	default:
		return text.FgRed.Sprint(state.String())
	}
}

// describeExpiry renders the access token lifetime relative to now.
func describeExpiry(record *oauth.TokenRecord, now time.Time) string {
	if record.ExpiresAt == 0 {
		return "unknown"
	}
	remaining := record.Expiry().Sub(now)
	if remaining <= 0 {
		return text.FgYellow.Sprintf("expired %s ago", formatDuration(-remaining))
	}
	return fmt.Sprintf("in %s", formatDuration(remaining))
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	default:
		return fmt.Sprintf("%dd%dh", int(d.Hours())/24, int(d.Hours())%24)
	}
}
