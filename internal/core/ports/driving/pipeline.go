package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/docdesk/internal/core/domain"
)

// IndexingService runs the document indexing pipeline
type IndexingService interface {
	// IndexAll indexes every supported file under rootPath and returns the
	// documents that are expired once the run completes.
	// Per-file failures are counted in the result, not returned.
	IndexAll(ctx context.Context, rootPath string) (*domain.IndexResult, error)

	// ListExpired returns documents whose expiry date is before the date of asOf
	ListExpired(ctx context.Context, asOf time.Time) ([]*domain.Document, error)
}

// IntakeService runs the email intake pipeline
type IntakeService interface {
	// ProcessIncoming fetches the inbox, stores new requests and drafts replies.
	// Per-message failures are counted in the result, not returned.
	ProcessIncoming(ctx context.Context) (*domain.IntakeResult, error)

	// RetryPending drafts replies for requests left pending by an earlier run
	RetryPending(ctx context.Context) (*domain.RetryResult, error)
}

// PipelineTrigger enqueues pipeline runs for background workers
type PipelineTrigger interface {
	// TriggerIndexing enqueues an indexing run over rootPath (empty = configured default)
	TriggerIndexing(ctx context.Context, rootPath string) (*domain.Task, error)

	// TriggerIntake enqueues an intake run
	TriggerIntake(ctx context.Context) (*domain.Task, error)

	// TriggerDraftRetry enqueues a retry of pending drafts
	TriggerDraftRetry(ctx context.Context) (*domain.Task, error)

	// GetTask reports the status of an enqueued run
	GetTask(ctx context.Context, id string) (*domain.Task, error)
}
