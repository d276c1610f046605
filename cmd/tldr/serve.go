package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexiqai/tldr/internal/config"
	"github.com/lexiqai/tldr/internal/observability"
	"github.com/lexiqai/tldr/internal/server"
	"github.com/lexiqai/tldr/internal/static"
)

const shutdownTimeout = 30 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	var host, port string
	var workers int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("host") {
				cfg.Host = host
			}
			if flags.Changed("port") {
				cfg.Port = port
			}
			if flags.Changed("workers") {
				cfg.Workers = workers
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Address to bind (overrides TLDR_HOST)")
	cmd.Flags().StringVarP(&port, "port", "p", "", "Port to bind (overrides TLDR_PORT)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Worker goroutines (overrides TLDR_WORKERS)")
	return cmd
}

func runServe(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	initLogger(cfg, os.Stdout)
	logger := observability.GetLogger()

	logger.Info().
		Str("addr", cfg.Addr()).
		Int("workers", cfg.Workers).
		Int("queue_capacity", cfg.QueueCapacity).
		Str("admin_addr", cfg.AdminAddr).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("tldr starting")

	assets, err := static.New(cfg.StaticDir)
	if err != nil {
		return fmt.Errorf("load static assets: %w", err)
	}
	defer assets.Close()
	go func() {
		if err := assets.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("Static asset watcher stopped")
		}
	}()

	u := newUpstreams(cfg)
	srv := server.New(cfg, server.Deps{
		Pipeline: newPipeline(cfg, u),
		Static:   assets,
		Checks:   u.checks(),
	})

	admin := srv.AdminServer()
	go func() {
		logger.Info().Str("addr", admin.Addr).Msg("Admin server listening")
		if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("Admin server failed")
		}
	}()

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := admin.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("Admin server forced to shutdown")
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	if err := <-errc; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info().Msg("Server exited gracefully")
	return nil
}
