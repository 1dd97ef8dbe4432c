package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docfind/internal/telemetry"
	"github.com/Aman-CERP/docfind/internal/ui"
)

func newStatsCmd(root *rootOptions) *cobra.Command {
	var days int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show recorded query statistics",
		Long: `Show statistics for searches run through the CLI, API and MCP server:
query modes, latency distribution, frequent terms and recent queries that
matched nothing. Statistics stay on this machine.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := root.cfg.Telemetry.DBPath
			out := cmd.OutOrStdout()
			if _, err := os.Stat(path); os.IsNotExist(err) {
				_, _ = fmt.Fprintln(out, "No query statistics recorded yet.")
				return nil
			}

			st, err := telemetry.OpenSQLiteStore(path)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			snap, err := telemetry.LoadSnapshot(st, days, time.Now())
			if err != nil {
				return err
			}
			if jsonOutput {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}
			noColor := !ui.IsTTY(out) || ui.DetectNoColor()
			ui.NewResultsRenderer(out, noColor).RenderStats(snap)
			return nil
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", 7, "Number of days to include")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}
