package main

import (
	"context"

	"github.com/spf13/cobra"
)

func newSchedulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedules",
		Short: "List the recurring pipeline tasks",
		Long: `Seed the recurring tasks from the configured intervals and print them with
their last and next run times.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), func(ctx context.Context, a *app) (any, error) {
				scheduler, err := a.newScheduler(ctx)
				if err != nil {
					return nil, err
				}
				return scheduler.ListScheduledTasks(ctx)
			})
		},
	}
	cmd.AddCommand(newScheduleRunCmd())
	return cmd
}

func newScheduleRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <id>",
		Short: "Enqueue a recurring task now",
		Long:  `Enqueue the task for a schedule immediately. A running worker picks it up.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd.Context(), func(ctx context.Context, a *app) (any, error) {
				scheduler, err := a.newScheduler(ctx)
				if err != nil {
					return nil, err
				}
				return scheduler.TriggerNow(ctx, args[0])
			})
		},
	}
}
