package driven

import (
	"context"

	"github.com/custodia-labs/docdesk/internal/core/domain"
)

// TaskQueue carries pipeline tasks (index_documents, process_emails,
// retry_drafts) from triggers and the scheduler to the workers.
// Redis Streams back it when Redis is configured, a Postgres table otherwise.
type TaskQueue interface {
	Enqueue(ctx context.Context, task *domain.Task) error

	// DequeueWithTimeout claims the next ready task for this worker, waiting
	// up to timeout seconds. It returns nil, nil when nothing arrived.
	DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error)

	Ack(ctx context.Context, taskID string) error

	// Nack records reason and reschedules the task with backoff, or marks it
	// failed once its attempts are used up.
	Nack(ctx context.Context, taskID string, reason string) error

	// GetTask returns domain.ErrNotFound for unknown tasks
	GetTask(ctx context.Context, taskID string) (*domain.Task, error)

	Stats(ctx context.Context) (*QueueStats, error)
	Ping(ctx context.Context) error
	Close() error
}

// QueueStats contains queue statistics
type QueueStats struct {
	PendingCount    int64 `json:"pending_count"`
	ProcessingCount int64 `json:"processing_count"`
	CompletedCount  int64 `json:"completed_count"`
	FailedCount     int64 `json:"failed_count"`
}

// SchedulerStore persists the recurring pipeline runs seeded from config
type SchedulerStore interface {
	GetScheduledTask(ctx context.Context, id string) (*domain.ScheduledTask, error)
	ListScheduledTasks(ctx context.Context) ([]*domain.ScheduledTask, error)

	// SaveScheduledTask creates or updates a scheduled task.
	// Run bookkeeping (next_run, last_run, last_error) of an existing task is preserved.
	SaveScheduledTask(ctx context.Context, task *domain.ScheduledTask) error

	// GetDueScheduledTasks returns enabled schedules whose next run has passed
	GetDueScheduledTasks(ctx context.Context) ([]*domain.ScheduledTask, error)

	// UpdateLastRun stamps the run with lastError ("" on success) and
	// moves next_run one interval ahead
	UpdateLastRun(ctx context.Context, id string, lastError string) error
}
