package cli

import (
	"fmt"
	"log/slog"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/askdb/internal/config"
)

// newTablesCommand creates the tables command.
func newTablesCommand(getCfg func() *config.Config, getLogger func() *slog.Logger) *cobra.Command {
	var showSchema bool

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List database tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger := getCfg(), getLogger()

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			tables, err := a.store.ListTables(cmd.Context())
			if err != nil {
				return err
			}

			if !showSchema {
				for _, name := range tables {
					fmt.Fprintln(out, name)
				}
				return nil
			}

			schemas, err := a.store.SchemaInfo(cmd.Context(), tables)
			if err != nil {
				return err
			}

			for _, name := range tables {
				schema, ok := schemas[name]
				if !ok {
					continue
				}

				fmt.Fprintf(out, "%s\n", name)
				t := table.NewWriter()
				t.SetOutputMirror(out)
				t.SetStyle(table.StyleLight)
				t.AppendHeader(table.Row{"Column", "Type", "Nullable", "Default"})
				for _, col := range schema.Columns {
					t.AppendRow(table.Row{col.Name, col.Type, col.Nullable, col.Default})
				}
				t.Render()
				fmt.Fprintln(out)
			}

			return nil
		},
	}

	cmd.Flags().BoolVarP(&showSchema, "schema", "s", false, "Show columns for each table")

	return cmd
}
