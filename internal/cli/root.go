// Package cli provides the command-line interface for askdb.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/askdb/internal/config"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfg *config.Config
	var logger *slog.Logger

	rootCmd := &cobra.Command{
		Use:   "askdb",
		Short: "askdb - Natural language to SQL",
		Long: `askdb answers natural language questions against a relational database.

It retrieves schema context, generates SQL through a language model, then
validates, optimizes, and executes the query with a bounded retry budget.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			var err error
			cfg, err = config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			level := slog.LevelInfo
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
Natural language to SQL, built with Go
`)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./askdb.yaml)")
	rootCmd.PersistentFlags().String("database", "", "Path to SQLite database (use :memory: for in-memory)")
	rootCmd.PersistentFlags().String("db-type", "", "Database type (sqlite|postgres)")
	rootCmd.PersistentFlags().String("dsn", "", "Connection string for network databases")
	rootCmd.PersistentFlags().String("history", "", "Path to query history database")
	rootCmd.PersistentFlags().String("provider", "", "LLM provider (openai|mock)")
	rootCmd.PersistentFlags().String("model", "", "Model name for the openai provider")
	rootCmd.PersistentFlags().String("base-url", "", "Base URL for OpenAI-compatible endpoints")
	rootCmd.PersistentFlags().Int("max-retries", 0, "Generation retry budget")
	rootCmd.PersistentFlags().Int("max-results", 0, "Default result row cap")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Verbose output")

	getCfg := func() *config.Config { return cfg }
	getLogger := func() *slog.Logger { return logger }

	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newServeCommand(getCfg, getLogger))
	rootCmd.AddCommand(newAskCommand(getCfg, getLogger))
	rootCmd.AddCommand(newTablesCommand(getCfg, getLogger))
	rootCmd.AddCommand(newHistoryCommand(getCfg, getLogger))

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
