package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
	"github.com/custodia-labs/docdesk/internal/core/ports/driving"
	"github.com/custodia-labs/docdesk/internal/core/services"
)

// Worker processes pipeline tasks from the task queue.
// Each task type maps to one pipeline run: indexing, intake or draft retry.
type Worker struct {
	taskQueue   driven.TaskQueue
	indexing    driving.IndexingService
	intake      driving.IntakeService
	scheduler   *services.Scheduler
	defaultRoot string
	logger      *slog.Logger

	concurrency    int
	dequeueTimeout int // seconds
	errorBackoff   time.Duration

	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WorkerConfig holds configuration for the worker.
type WorkerConfig struct {
	TaskQueue      driven.TaskQueue
	Indexing       driving.IndexingService
	Intake         driving.IntakeService
	Scheduler      *services.Scheduler // Optional
	DefaultRoot    string              // Used when an index task carries no root_path
	Logger         *slog.Logger
	Concurrency    int           // Number of concurrent task processors
	DequeueTimeout int           // Seconds to wait for a task before checking again
	ErrorBackoff   time.Duration // Pause after a dequeue error, default 1s
}

// NewWorker creates a new task worker.
func NewWorker(cfg WorkerConfig) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	dequeueTimeout := cfg.DequeueTimeout
	if dequeueTimeout <= 0 {
		dequeueTimeout = 5
	}

	backoff := cfg.ErrorBackoff
	if backoff <= 0 {
		backoff = time.Second
	}

	return &Worker{
		taskQueue:      cfg.TaskQueue,
		indexing:       cfg.Indexing,
		intake:         cfg.Intake,
		scheduler:      cfg.Scheduler,
		defaultRoot:    cfg.DefaultRoot,
		logger:         logger.With("component", "worker"),
		concurrency:    concurrency,
		dequeueTimeout: dequeueTimeout,
		errorBackoff:   backoff,
	}
}

// Start launches the processing goroutines and returns immediately.
// They run until Stop is called or ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	w.logger.Info("worker starting",
		"concurrency", w.concurrency,
		"dequeue_timeout", w.dequeueTimeout,
	)

	if w.scheduler != nil {
		w.scheduler.Start(ctx)
	}

	// Stop interrupts a blocking dequeue but lets a running task finish
	dequeueCtx, cancelDequeue := context.WithCancel(ctx)

	var wg sync.WaitGroup
	for i := 0; i < w.concurrency; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			w.processLoop(ctx, dequeueCtx, workerID)
		}(i)
	}

	go func() {
		select {
		case <-stopCh:
		case <-ctx.Done():
		}
		cancelDequeue()
		wg.Wait()
		close(doneCh)
	}()
}

// Stop signals the goroutines to exit after their current task and waits for them.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	close(w.stopCh)
	doneCh := w.doneCh
	w.running = false
	w.mu.Unlock()

	if w.scheduler != nil {
		w.scheduler.Stop()
	}

	<-doneCh
	w.logger.Info("worker stopped")
}

// Wait blocks until the worker goroutines have exited.
func (w *Worker) Wait() {
	w.mu.RLock()
	doneCh := w.doneCh
	w.mu.RUnlock()
	if doneCh != nil {
		<-doneCh
	}
}

func (w *Worker) processLoop(ctx, dequeueCtx context.Context, workerID int) {
	logger := w.logger.With("worker_id", workerID)
	logger.Debug("worker goroutine started")

	for {
		if dequeueCtx.Err() != nil {
			return
		}

		task, err := w.taskQueue.DequeueWithTimeout(dequeueCtx, w.dequeueTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				continue
			}
			logger.Error("failed to dequeue task", "error", err)
			select {
			case <-time.After(w.errorBackoff):
			case <-dequeueCtx.Done():
			}
			continue
		}

		if task == nil {
			continue
		}

		w.processTask(ctx, task, logger)
	}
}

// processTask runs one task and acks or nacks it.
func (w *Worker) processTask(ctx context.Context, task *domain.Task, logger *slog.Logger) {
	logger = logger.With("task_id", task.ID, "task_type", task.Type, "attempt", task.Attempts)
	logger.Info("processing task")

	startTime := time.Now()
	err := w.dispatch(ctx, task, logger)
	duration := time.Since(startTime)

	// A concurrent run of the same pipeline covers this task's work
	if errors.Is(err, domain.ErrRunInProgress) {
		logger.Info("pipeline already running, task skipped", "duration", duration)
		err = nil
	}

	if err != nil {
		logger.Error("task failed", "duration", duration, "error", err)
		if nackErr := w.taskQueue.Nack(ctx, task.ID, err.Error()); nackErr != nil {
			logger.Error("failed to nack task", "nack_error", nackErr)
		}
		return
	}

	logger.Info("task completed", "duration", duration)
	if ackErr := w.taskQueue.Ack(ctx, task.ID); ackErr != nil {
		logger.Error("failed to ack task", "ack_error", ackErr)
	}
}

func (w *Worker) dispatch(ctx context.Context, task *domain.Task, logger *slog.Logger) error {
	switch task.Type {
	case domain.TaskTypeIndexDocuments:
		return w.handleIndex(ctx, task, logger)
	case domain.TaskTypeProcessEmails:
		return w.handleIntake(ctx, logger)
	case domain.TaskTypeRetryDrafts:
		return w.handleRetryDrafts(ctx, logger)
	default:
		return fmt.Errorf("unknown task type: %s", task.Type)
	}
}

func (w *Worker) handleIndex(ctx context.Context, task *domain.Task, logger *slog.Logger) error {
	if w.indexing == nil {
		return fmt.Errorf("indexing: %w", domain.ErrServiceUnavailable)
	}
	root := task.RootPath()
	if root == "" {
		root = w.defaultRoot
	}
	if root == "" {
		return fmt.Errorf("root_path not found in task payload")
	}

	result, err := w.indexing.IndexAll(ctx, root)
	if err != nil {
		return err
	}
	for _, doc := range result.Expired {
		logger.Warn("document expired",
			"document_id", doc.ID,
			"filename", doc.Filename,
			"expiry_date", doc.ExpiryDate,
		)
	}
	return nil
}

func (w *Worker) handleIntake(ctx context.Context, logger *slog.Logger) error {
	if w.intake == nil {
		return fmt.Errorf("intake: %w", domain.ErrServiceUnavailable)
	}
	result, err := w.intake.ProcessIncoming(ctx)
	if err != nil {
		return err
	}
	if result.Stats.DraftFailures > 0 {
		logger.Warn("some drafts failed, requests left pending", "count", result.Stats.DraftFailures)
	}
	return nil
}

func (w *Worker) handleRetryDrafts(ctx context.Context, logger *slog.Logger) error {
	if w.intake == nil {
		return fmt.Errorf("draft retry: %w", domain.ErrServiceUnavailable)
	}
	result, err := w.intake.RetryPending(ctx)
	if err != nil {
		return err
	}
	logger.Info("draft retry finished",
		"pending", result.Pending,
		"drafted", result.Drafted,
		"repaired", result.Repaired,
		"failed", result.Failed,
	)
	return nil
}

// Health reports whether the worker is running and its queue reachable.
type Health struct {
	Running     bool   `json:"running"`
	QueueHealth bool   `json:"queue_health"`
	Error       string `json:"error,omitempty"`
}

// Health returns the health status of the worker.
func (w *Worker) Health(ctx context.Context) Health {
	w.mu.RLock()
	running := w.running
	w.mu.RUnlock()

	health := Health{Running: running}
	if err := w.taskQueue.Ping(ctx); err != nil {
		health.Error = err.Error()
	} else {
		health.QueueHealth = true
	}
	return health
}

// Ping fails when the worker is stopped or its queue is unreachable,
// so a running worker can sit among the server's readiness checks.
func (w *Worker) Ping(ctx context.Context) error {
	health := w.Health(ctx)
	if !health.Running {
		return errors.New("worker not running")
	}
	if !health.QueueHealth {
		return fmt.Errorf("task queue: %s", health.Error)
	}
	return nil
}
