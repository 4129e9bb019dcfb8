package cli

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/askdb/internal/config"
	"github.com/leapstack-labs/askdb/internal/server"
)

// newServeCommand creates the serve command.
func newServeCommand(getCfg func() *config.Config, getLogger func() *slog.Logger) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Serve exposes the pipeline over HTTP: a blocking JSON query
endpoint, SSE streaming with stage progress, and read endpoints for
tables, schema, and query history.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger := getCfg(), getLogger()
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := server.New(server.Config{
				Pipeline:        a.pipeline,
				Store:           a.store,
				History:         a.history,
				Addr:            cfg.Server.Addr,
				ShutdownTimeout: cfg.Server.ShutdownTimeout,
				Logger:          logger,
			})

			return srv.Serve(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")

	return cmd
}
