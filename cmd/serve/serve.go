// Package serve runs the HTTP API and the background job worker.
package serve

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/ecoledger/carbon-engine/internal/api"
	"github.com/ecoledger/carbon-engine/internal/config"
)

// Command creates the serve command.
func Command(ctx *config.Context) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the calculation API and process submitted jobs until interrupted.
Prometheus metrics are exposed on /metrics when api.metrics is enabled.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := ctx.Service()
			if err != nil {
				return err
			}

			cfg := api.ConfigFromSettings(ctx.Settings)
			if listen != "" {
				cfg.Listen = listen
			}

			opts := []api.ServerOption{api.WithBuildInfo(ctx.Build)}
			if cfg.Metrics {
				opts = append(opts, api.WithMetricsHandler(svc.Metrics().Handler()))
			}
			server, err := api.New(cfg, svc, ctx.Logger("api"), opts...)
			if err != nil {
				return err
			}

			runCtx := cmd.Context()
			svc.Start(runCtx)

			errCh := make(chan error, 1)
			go func() { errCh <- server.Start() }()

			select {
			case err := <-errCh:
				return err
			case <-runCtx.Done():
			}

			// The run context is already cancelled; give in-flight requests a fresh one.
			if err := server.Shutdown(context.WithoutCancel(runCtx)); err != nil {
				return err
			}
			return <-errCh
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "Override api.listen, e.g. 0.0.0.0:8080")
	return cmd
}
