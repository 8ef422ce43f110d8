package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
	"github.com/custodia-labs/docdesk/internal/core/ports/driving"
)

var _ driving.PipelineTrigger = (*pipelineTrigger)(nil)

// pipelineTrigger turns on-demand run requests into queued tasks
type pipelineTrigger struct {
	queue       driven.TaskQueue
	defaultRoot string
	logger      *slog.Logger
}

// NewPipelineTrigger creates a trigger that enqueues onto queue.
// defaultRoot is indexed when a trigger names no root path.
func NewPipelineTrigger(queue driven.TaskQueue, defaultRoot string, logger *slog.Logger) driving.PipelineTrigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &pipelineTrigger{queue: queue, defaultRoot: defaultRoot, logger: logger}
}

func (p *pipelineTrigger) TriggerIndexing(ctx context.Context, rootPath string) (*domain.Task, error) {
	if rootPath == "" {
		rootPath = p.defaultRoot
	}
	return p.enqueue(ctx, domain.NewIndexTask(rootPath))
}

func (p *pipelineTrigger) TriggerIntake(ctx context.Context) (*domain.Task, error) {
	return p.enqueue(ctx, domain.NewIntakeTask())
}

func (p *pipelineTrigger) TriggerDraftRetry(ctx context.Context) (*domain.Task, error) {
	return p.enqueue(ctx, domain.NewRetryDraftsTask())
}

func (p *pipelineTrigger) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	return p.queue.GetTask(ctx, id)
}

func (p *pipelineTrigger) enqueue(ctx context.Context, task *domain.Task) (*domain.Task, error) {
	// Manual runs jump ahead of scheduled ones
	task.Priority = 10
	if err := p.queue.Enqueue(ctx, task); err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", task.Type, err)
	}
	p.logger.Info("pipeline run enqueued", "task_id", task.ID, "task_type", task.Type)
	return task, nil
}
