package cmd

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"tokenwarden/internal/provider"
)

// providersCmd represents the providers command
var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List supported providers",
	Args:  cobra.NoArgs,
	RunE:  runProviders,
}

func runProviders(cmd *cobra.Command, _ []string) error {
	configured := make(map[provider.Name]bool)
	for _, name := range loadedConfig.Configured() {
		configured[name] = true
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("PROVIDER"),
		text.FgHiCyan.Sprint("CLIENT"),
		text.FgHiCyan.Sprint("REVOCATION"),
		text.FgHiCyan.Sprint("CONFIGURED"),
	})

	for _, name := range append(provider.Known(), provider.Generic) {
		client, revocation := "public", "no"
		if template, ok := provider.Builtin(name); ok {
			if template.Confidential {
				client = "confidential"
			}
			if template.CanRevoke() {
				revocation = "yes"
			}
		} else {
			client, revocation = "from config", "from config"
		}

		status := text.FgYellow.Sprint("no")
		if configured[name] {
			status = text.FgGreen.Sprint("yes")
		}
		t.AppendRow(table.Row{string(name), client, revocation, status})
	}

	t.Render()
	return nil
}
