// Copyright (c) 2024, 0x0BSoD. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/0x0BSoD/xbot/internal/config"
	"github.com/0x0BSoD/xbot/internal/logger"
)

func main() {
	root := &cobra.Command{
		Use:           "xbot",
		Short:         "Posts today's feed headlines to X",
		Long:          "Fetches today's items from RSS/CSV/JSON feeds, filters them, optionally rewrites them with an LLM and posts them to X within daily limits.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runOnce,
	}
	root.PersistentFlags().Bool("dry-run", false, "Log what would be posted instead of posting")

	root.AddCommand(
		runCmd(),
		daemonCmd(),
		statusCmd(),
		checkCmd(),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := root.ExecuteContext(ctx); err != nil {
		slog.Error("xbot failed", "err", err)
		cancel()
		os.Exit(1)
	}
}

// loadConfig applies command-line overrides to the loaded config and sets up
// logging.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Get()

	if cmd.Flags().Changed("dry-run") {
		dryRun, err := cmd.Flags().GetBool("dry-run")
		if err != nil {
			return cfg, err
		}
		cfg.DryRun = dryRun
	}

	if err := logger.Init(cfg.LogLevel, cfg.LogPath()); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run a single fetch, filter and post pass",
		RunE:  runOnce,
	}
}

func runOnce(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	_, err = a.runner.Run(cmd.Context())
	return err
}

func daemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run passes on an interval and serve /healthz",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("interval") {
				if cfg.RunInterval, err = cmd.Flags().GetDuration("interval"); err != nil {
					return err
				}
			}
			if cfg.RunInterval <= 0 {
				return errors.New("interval must be positive")
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			a, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			return serve(cmd.Context(), a, cfg)
		},
	}
	cmd.Flags().Duration("interval", 30*time.Minute, "Time between passes")
	return cmd
}

func serve(ctx context.Context, a *app, cfg config.Config) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	srv := &http.Server{Addr: cfg.HealthAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				slog.Error("failed to run http server", "err", err)
				return
			}

			slog.Info("http server stopped")
		}
	}()

	slog.Info("daemon started", "interval", cfg.RunInterval, "health_addr", cfg.HealthAddr)
	err := a.runner.Start(ctx, cfg.RunInterval)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http server shutdown", "err", err)
	}

	if errors.Is(err, context.Canceled) {
		slog.Info("daemon stopped")
		return nil
	}
	return err
}
