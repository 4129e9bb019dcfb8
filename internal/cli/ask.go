package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/askdb/internal/config"
	"github.com/leapstack-labs/askdb/internal/optimize"
	"github.com/leapstack-labs/askdb/internal/pipeline"
)

// newAskCommand creates the ask command.
func newAskCommand(getCfg func() *config.Config, getLogger func() *slog.Logger) *cobra.Command {
	var (
		format     string
		explain    bool
		maxResults int
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a natural language question with SQL",
		Long: `Ask runs one question through the full pipeline and prints the
generated SQL, the result rows, and run metadata.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger := getCfg(), getLogger()
			question := strings.Join(args, " ")

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			result := a.pipeline.Run(cmd.Context(), pipeline.Request{
				Question:           question,
				IncludeExplanation: explain,
				MaxResults:         maxResults,
			})

			out := cmd.OutOrStdout()

			if format == "json" {
				return renderJSON(out, result)
			}

			fmt.Fprintf(out, "SQL: %s\n\n", result.SQLQuery)
			if err := renderRows(out, result.Results); err != nil {
				return err
			}

			if explain && result.Explanation != "" {
				fmt.Fprintf(out, "\nExplanation: %s\n", result.Explanation)
			}

			meta := result.Metadata
			fmt.Fprintf(out, "\nconfidence=%.2f complexity=%s retries=%d time=%.3fs\n",
				result.ConfidenceScore, meta.Complexity, meta.RetryCount, result.ExecutionTime)

			if cfg.Verbose {
				analysis := optimize.AnalyzeComplexity(result.SQLQuery)
				fmt.Fprintf(out, "complexity score=%d level=%s\n", analysis.Score, analysis.Level)
				for _, factor := range analysis.Factors {
					fmt.Fprintf(out, "  - %s\n", factor)
				}
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (table|json)")
	cmd.Flags().BoolVarP(&explain, "explain", "e", true, "Include the query explanation")
	cmd.Flags().IntVar(&maxResults, "limit", 0, "Result row cap for this question")

	return cmd
}
