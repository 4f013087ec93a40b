package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aretw0/warden/internal/cli"
	httpAdapter "github.com/aretw0/warden/pkg/adapters/http"
	"github.com/aretw0/warden/pkg/domain"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the engine behind a JSON API validated against its OpenAPI document.
Prometheus metrics are served on /metrics and engine events on /events (SSE).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cli.NewSignalContext(context.Background())
		defer ctx.Cancel()

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTPAddr = addr
		}

		var streams *httpAdapter.StreamManager
		app, err := cli.NewApp(ctx, cfg, cli.WithHooksFrom(func(logger *slog.Logger) domain.LifecycleHooks {
			streams = httpAdapter.NewStreamManager(logger.With("component", "streams"))
			return streams.Hooks()
		}))
		if err != nil {
			return err
		}
		defer app.Close()

		handler, err := httpAdapter.NewHandler(app.Engine,
			httpAdapter.WithLogger(app.Logger.With("component", "http")),
			httpAdapter.WithStreams(streams),
			httpAdapter.WithMetrics(app.Gatherer()),
		)
		if err != nil {
			return err
		}

		srv := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			app.Logger.Info("Warden server listening", "address", srv.Addr, "store", app.Backend.Name)
			serverErrors <- srv.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}
			return nil
		case <-ctx.Done():
			app.Logger.Info("Shutting down", "signal", ctx.Signal())
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				_ = srv.Close()
				return fmt.Errorf("graceful shutdown did not complete in %v: %w", shutdownTimeout, err)
			}
			app.Logger.Info("Warden server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (overrides http_addr)")
}
