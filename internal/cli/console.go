package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/divviup/divviup-console/internal/config"
	"github.com/divviup/divviup-console/internal/console"
	"github.com/divviup/divviup-console/internal/metrics"
)

func (a *app) consoleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "console",
		Short: "Run console origin services",
	}

	var (
		host string
		port int
	)
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve the /api_url discovery document, health and metrics",
		Long: `Serve the console origin: /api_url tells browser and CLI clients
where the API lives, /health reports liveness and /metrics exposes
Prometheus metrics.

The configuration file is watched; changes to console.api_url apply
without a restart. When Telegram notifications are configured, failed
jobs are reported while the server runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if cmd.Flags().Changed("host") {
				cfg.Console.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Console.Port = port
			}

			a.metrics = metrics.NewMetrics("divviup_console")
			server := console.NewServer(cfg.Console,
				console.WithMetrics(a.metrics),
				console.WithLogger(a.logger.With("component", "console")),
			)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if path := a.configPath(); fileExists(path) {
				loader := config.NewLoader(path)
				loader.SetOnChange(server.ApplyConfig)
				loader.SetOnError(server.ReloadFailed)
				if err := loader.Watch(ctx); err != nil {
					a.logger.Warn("config watch disabled", "path", path, "error", err.Error())
				}
			}

			var components []console.Shutdownable
			if cfg.Notify.Telegram.Enabled() {
				started, err := a.startNotifier(ctx, a.metrics)
				if err != nil {
					return err
				}
				components = started
			}

			serveErr := make(chan error, 1)
			go func() {
				serveErr <- server.Run()
			}()

			signals := console.SetupSignalHandler()
			select {
			case err := <-serveErr:
				_ = console.ShutdownWithComponents(server, cfg.Console.ShutdownTimeout, components...)
				return err
			case sig := <-signals:
				a.logger.Info("received signal, shutting down", "signal", sig.String())
			case <-ctx.Done():
			}

			if err := console.ShutdownWithComponents(server, cfg.Console.ShutdownTimeout, components...); err != nil {
				return err
			}
			return <-serveErr
		},
	}
	serve.Flags().StringVar(&host, "host", "", "Listen host (overrides console.host)")
	serve.Flags().IntVar(&port, "port", 0, "Listen port (overrides console.port)")

	cmd.AddCommand(serve)
	return cmd
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
