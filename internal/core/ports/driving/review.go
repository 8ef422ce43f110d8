package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
)

// DocumentService provides read-only access to indexed documents
type DocumentService interface {
	Get(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context) ([]*domain.Document, error)
	ListExpired(ctx context.Context, asOf time.Time) ([]*domain.Document, error)
}

// ReviewService exposes requests and responses to reviewers and drives the
// draft -> approved -> sent lifecycle.
type ReviewService interface {
	ListRequests(ctx context.Context, filter driven.RequestFilter) ([]*domain.EmailRequest, error)
	GetRequest(ctx context.Context, id int64) (*domain.EmailRequest, error)

	ListResponses(ctx context.Context, filter driven.ResponseFilter) ([]*domain.EmailResponse, error)
	GetResponse(ctx context.Context, id int64) (*domain.EmailResponse, error)
	GetResponseForRequest(ctx context.Context, requestID int64) (*domain.EmailResponse, error)

	// EditDraft replaces the body of a draft response
	EditDraft(ctx context.Context, id int64, body string) (*domain.EmailResponse, error)

	// Approve moves a draft to approved. Nothing is sent.
	Approve(ctx context.Context, id int64) (*domain.EmailResponse, error)

	// Send dispatches an approved response and marks it sent.
	// On dispatch failure the response stays approved and the call may be retried.
	Send(ctx context.Context, id int64) (*domain.EmailResponse, error)
}
