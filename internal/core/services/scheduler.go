package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
)

const lockScheduler = "scheduler"

// Scheduler enqueues recurring pipeline runs (indexing, intake, draft retry).
// With a DistributedLock configured, only one instance enqueues per tick.
type Scheduler struct {
	store     driven.SchedulerStore
	taskQueue driven.TaskQueue
	lock      driven.DistributedLock
	logger    *slog.Logger

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	interval time.Duration
	lockTTL  time.Duration
}

// SchedulerConfig holds configuration for the scheduler.
type SchedulerConfig struct {
	Store        driven.SchedulerStore
	TaskQueue    driven.TaskQueue
	Lock         driven.DistributedLock // Optional
	Logger       *slog.Logger
	PollInterval time.Duration // default: 30s
	LockTTL      time.Duration // default: 2x poll interval
}

// NewScheduler creates a new scheduler.
func NewScheduler(cfg SchedulerConfig) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = 2 * interval
	}

	return &Scheduler{
		store:     cfg.Store,
		taskQueue: cfg.TaskQueue,
		lock:      cfg.Lock,
		logger:    logger.With("component", "scheduler"),
		interval:  interval,
		lockTTL:   lockTTL,
	}
}

// Start launches the polling loop. It is a no-op if already running.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	s.logger.Info("scheduler starting", "poll_interval", s.interval)
	go s.loop(ctx, s.stopCh, s.doneCh)
}

// Stop ends the polling loop and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	done := s.doneCh
	s.running = false
	s.mu.Unlock()

	<-done
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick enqueues every due scheduled task once. Returns the number enqueued.
func (s *Scheduler) Tick(ctx context.Context) int {
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, lockScheduler, s.lockTTL)
		if err != nil {
			s.logger.Warn("failed to acquire scheduler lock, skipping tick", "error", err)
			return 0
		}
		if !acquired {
			s.logger.Debug("scheduler lock held by another instance, skipping tick")
			return 0
		}
		defer func() {
			if err := s.lock.Release(context.WithoutCancel(ctx), lockScheduler); err != nil {
				s.logger.Warn("failed to release scheduler lock", "error", err)
			}
		}()
	}

	due, err := s.store.GetDueScheduledTasks(ctx)
	if err != nil {
		s.logger.Error("failed to get due scheduled tasks", "error", err)
		return 0
	}

	enqueued := 0
	for _, scheduled := range due {
		if !scheduled.IsDue() {
			continue
		}

		task := domain.NewTaskFromSchedule(scheduled)
		if err := s.taskQueue.Enqueue(ctx, task); err != nil {
			s.logger.Error("failed to enqueue scheduled task", "scheduled_id", scheduled.ID, "error", err)
			_ = s.store.UpdateLastRun(ctx, scheduled.ID, err.Error())
			continue
		}
		enqueued++
		s.logger.Info("enqueued scheduled task",
			"scheduled_id", scheduled.ID,
			"task_id", task.ID,
			"task_type", task.Type,
		)

		if err := s.store.UpdateLastRun(ctx, scheduled.ID, ""); err != nil {
			s.logger.Warn("failed to update scheduled task", "scheduled_id", scheduled.ID, "error", err)
		}
	}
	return enqueued
}

// Seed registers the configured recurring tasks. Existing tasks keep their
// run bookkeeping; stored tasks missing from schedules are disabled.
func (s *Scheduler) Seed(ctx context.Context, schedules []*domain.ScheduledTask) error {
	wanted := make(map[string]bool, len(schedules))
	for _, scheduled := range schedules {
		wanted[scheduled.ID] = true
		if err := s.store.SaveScheduledTask(ctx, scheduled); err != nil {
			return fmt.Errorf("save scheduled task %s: %w", scheduled.ID, err)
		}
	}

	existing, err := s.store.ListScheduledTasks(ctx)
	if err != nil {
		return fmt.Errorf("list scheduled tasks: %w", err)
	}
	for _, scheduled := range existing {
		if wanted[scheduled.ID] || !scheduled.Enabled {
			continue
		}
		scheduled.Enabled = false
		if err := s.store.SaveScheduledTask(ctx, scheduled); err != nil {
			return fmt.Errorf("disable scheduled task %s: %w", scheduled.ID, err)
		}
	}
	return nil
}

// ListScheduledTasks lists all scheduled tasks.
func (s *Scheduler) ListScheduledTasks(ctx context.Context) ([]*domain.ScheduledTask, error) {
	return s.store.ListScheduledTasks(ctx)
}

// TriggerNow enqueues a scheduled task immediately, ignoring its schedule.
func (s *Scheduler) TriggerNow(ctx context.Context, id string) (*domain.Task, error) {
	scheduled, err := s.store.GetScheduledTask(ctx, id)
	if err != nil {
		return nil, err
	}

	task := domain.NewTaskFromSchedule(scheduled)
	if err := s.taskQueue.Enqueue(ctx, task); err != nil {
		return nil, err
	}

	s.logger.Info("manually triggered scheduled task", "scheduled_id", scheduled.ID, "task_id", task.ID)
	return task, nil
}
