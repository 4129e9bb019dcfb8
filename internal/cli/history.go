package cli

import (
	"fmt"
	"log/slog"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/askdb/internal/config"
	"github.com/leapstack-labs/askdb/internal/history"
)

// newHistoryCommand creates the history command.
func newHistoryCommand(getCfg func() *config.Config, getLogger func() *slog.Logger) *cobra.Command {
	var (
		limit  int
		format string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent query history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger := getCfg(), getLogger()

			hist := history.NewStore(logger)
			if err := hist.Open(cfg.History.Path); err != nil {
				return err
			}
			defer hist.Close()
			if err := hist.InitSchema(); err != nil {
				return err
			}

			records, err := hist.ListRecent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if format == "json" {
				return renderJSON(out, records)
			}

			if len(records) == 0 {
				fmt.Fprintln(out, "(no history)")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(out)
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"When", "Question", "Rows", "Time", "OK"})
			for _, rec := range records {
				status := "yes"
				if !rec.Success {
					status = "no"
				}
				t.AppendRow(table.Row{
					rec.CreatedAt.Format("2006-01-02 15:04:05"),
					rec.Question,
					rec.RowCount,
					fmt.Sprintf("%.3fs", rec.ExecutionTime),
					status,
				})
			}
			t.Render()

			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum entries to show")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (table|json)")

	return cmd
}
