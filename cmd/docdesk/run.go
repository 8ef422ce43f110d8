package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/docdesk/internal/core/domain"
)

func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index [root]",
		Short: "Index documents once and report expired ones",
		Long: `Walk the document source under root (default: source.root_path), analyze new
or changed files and print the run result, including documents that have expired.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), func(ctx context.Context, a *app) (any, error) {
				if a.indexer == nil {
					return nil, fmt.Errorf("indexing: %w: configure the analyzer", domain.ErrServiceUnavailable)
				}
				root := a.cfg.Source.RootPath
				if len(args) == 1 {
					root = args[0]
				}
				return a.indexer.IndexAll(ctx, root)
			})
		},
	}
}

func newIntakeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "intake",
		Short: "Process the inbox once",
		Long:  `Fetch every inbox message, store new document requests and draft replies.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), func(ctx context.Context, a *app) (any, error) {
				if a.intake == nil {
					return nil, fmt.Errorf("intake: %w: configure the analyzer and mail.imap", domain.ErrServiceUnavailable)
				}
				return a.intake.ProcessIncoming(ctx)
			})
		},
	}
}

func newRetryDraftsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry-drafts",
		Short: "Draft replies for requests left pending",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), func(ctx context.Context, a *app) (any, error) {
				if a.intake == nil {
					return nil, fmt.Errorf("draft retry: %w: configure the analyzer and mail.imap", domain.ErrServiceUnavailable)
				}
				return a.intake.RetryPending(ctx)
			})
		},
	}
}

// runOnce wires the app, runs fn and prints its result as JSON.
// A partial result is still printed when fn fails.
func runOnce(parent context.Context, fn func(ctx context.Context, a *app) (any, error)) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	result, runErr := fn(ctx, a)
	if result != nil && !isNilResult(result) {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return errors.Join(runErr, fmt.Errorf("encode result: %w", err))
		}
	}
	return runErr
}

func isNilResult(v any) bool {
	switch r := v.(type) {
	case *domain.IndexResult:
		return r == nil
	case *domain.IntakeResult:
		return r == nil
	case *domain.RetryResult:
		return r == nil
	case *domain.Task:
		return r == nil
	}
	return false
}
