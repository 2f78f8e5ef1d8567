// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/danielhkuo/agm-proxy/cliparse"
	"github.com/danielhkuo/agm-proxy/db"
	"github.com/danielhkuo/agm-proxy/router"
)

const programName = "agm-proxy"

func newLogger(cfg cliparse.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if strings.EqualFold(cfg.LogFormat, "json") {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(h).With("component", programName)
}

func openDB(ctx context.Context, cfg cliparse.Config) (*sql.DB, error) {
	conn, err := db.Open(ctx, cfg.Dialect(), cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.CreateSchema(conn, cfg.Dialect()); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}
	return conn, nil
}

func serveRun(ctx context.Context, cfg cliparse.Config) error {
	dbConn, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()
	slog.Info("database schema ready", "dialect", cfg.Dialect())

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(dbConn, programName),
	)

	server := &http.Server{
		Handler:           router.NewRouter(dbConn, cfg, reg),
		Addr:              ":" + strconv.Itoa(cfg.Port),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "port", cfg.Port, "group_bounds", cfg.Policy.GroupBounds)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("server closed")
	return nil
}

func migrateRun(ctx context.Context, cfg cliparse.Config) error {
	dbConn, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	version, err := db.SchemaVersion(dbConn, cfg.Dialect())
	if err != nil {
		return err
	}
	slog.Info("migrations applied", "version", version)
	return nil
}

func main() {
	var cfg cliparse.Config

	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Proxy vote delegation service for the AGM employee awards",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = cliparse.Load(cmd.Flags())
			if err != nil {
				return err
			}
			slog.SetDefault(newLogger(cfg))
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveRun(cmd.Context(), cfg)
		},
	}
	rootCmd.PersistentFlags().AddFlagSet(cliparse.NewFlagSet())

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API (default)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return serveRun(cmd.Context(), cfg)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply database migrations and exit",
			RunE: func(cmd *cobra.Command, args []string) error {
				return migrateRun(cmd.Context(), cfg)
			},
		},
	)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		slog.Error("exiting", "error", err)
		os.Exit(1)
	}
}
