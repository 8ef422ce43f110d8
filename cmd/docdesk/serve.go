package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/docdesk/internal/adapters/driving/http"
)

// Run modes for serve
const (
	modeAPI    = "api"
	modeWorker = "worker"
	modeAll    = "all"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve [api|worker|all]",
		Short: "Run the HTTP API, the background worker, or both",
		Long: `Run docdesk as a long-lived service.

Modes:
  api    - HTTP API for reviewers, no task processing
  worker - task worker and scheduler, no HTTP server
  all    - both in one process (default)`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{modeAPI, modeWorker, modeAll},
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := envOrDefault("RUN_MODE", modeAll)
			if len(args) == 1 {
				mode = args[0]
			}
			if mode != modeAPI && mode != modeWorker && mode != modeAll {
				return fmt.Errorf("unknown mode %q (use: api, worker, or all)", mode)
			}
			return runServe(cmd.Context(), mode)
		},
	}
}

func runServe(parent context.Context, mode string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	logger.Info("docdesk starting", "version", version, "mode", mode)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)
	extraChecks := map[string]http.Pinger{}

	if mode == modeWorker || mode == modeAll {
		w, err := a.newWorker(gctx)
		if err != nil {
			return err
		}
		extraChecks["worker"] = w
		g.Go(func() error {
			w.Start(gctx)
			health := w.Health(gctx)
			logger.Info("worker running", "queue_health", health.QueueHealth, "queue_error", health.Error)
			<-gctx.Done()
			logger.Info("stopping worker")
			w.Stop()
			return nil
		})
	}

	if mode == modeAPI || mode == modeAll {
		server := a.newServer(extraChecks)
		g.Go(func() error {
			return server.Start(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("docdesk stopped with error", "error", err)
		return err
	}
	logger.Info("docdesk stopped")
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
