package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/docdesk/internal/core/domain"
)

// DocumentStore handles indexed document persistence (PostgreSQL).
// List operations return documents in store iteration order: first indexed first.
type DocumentStore interface {
	// Get retrieves a document by internal ID
	Get(ctx context.Context, id string) (*domain.Document, error)

	// GetBySourceID retrieves a document by its external source ID.
	// Returns domain.ErrNotFound if the source file was never indexed.
	GetBySourceID(ctx context.Context, sourceID string) (*domain.Document, error)

	// Upsert creates or updates the document keyed by SourceID.
	// An existing row keeps its internal ID and IndexedAt; doc is updated to match.
	Upsert(ctx context.Context, doc *domain.Document) error

	// List returns all documents
	List(ctx context.Context) ([]*domain.Document, error)

	// ListExpired returns documents whose expiry date is strictly before the date of asOf
	ListExpired(ctx context.Context, asOf time.Time) ([]*domain.Document, error)

	// ListActive returns documents without expiry or expiring strictly after the date of asOf
	ListActive(ctx context.Context, asOf time.Time) ([]*domain.Document, error)

	// Count returns total document count
	Count(ctx context.Context) (int, error)
}

// RequestFilter narrows request listings
type RequestFilter struct {
	Status domain.RequestStatus
	Limit  int
	Offset int
}

// RequestStore handles inbound email request persistence (PostgreSQL)
type RequestStore interface {
	// Get retrieves a request by ID
	Get(ctx context.Context, id int64) (*domain.EmailRequest, error)

	// GetByMessageID retrieves a request by its message identifier.
	// Returns domain.ErrNotFound if the message was never ingested.
	GetByMessageID(ctx context.Context, messageID string) (*domain.EmailRequest, error)

	// Insert persists a new request and sets its ID.
	// Returns domain.ErrAlreadyExists if the message ID is already stored.
	Insert(ctx context.Context, req *domain.EmailRequest) error

	// List returns requests newest first
	List(ctx context.Context, filter RequestFilter) ([]*domain.EmailRequest, error)

	// ListPending returns pending requests oldest first
	ListPending(ctx context.Context) ([]*domain.EmailRequest, error)

	// MarkProcessed sets the request status to processed
	MarkProcessed(ctx context.Context, id int64, at time.Time) error
}

// ResponseFilter narrows response listings
type ResponseFilter struct {
	Status domain.ResponseStatus
	Limit  int
	Offset int
}

// ResponseStore handles drafted response persistence (PostgreSQL)
type ResponseStore interface {
	// Get retrieves a response by ID
	Get(ctx context.Context, id int64) (*domain.EmailResponse, error)

	// GetByRequest retrieves the most recent response for a request.
	// Returns domain.ErrNotFound if none was drafted.
	GetByRequest(ctx context.Context, requestID int64) (*domain.EmailResponse, error)

	// Insert persists a new response and sets its ID
	Insert(ctx context.Context, resp *domain.EmailResponse) error

	// List returns responses newest first
	List(ctx context.Context, filter ResponseFilter) ([]*domain.EmailResponse, error)

	// UpdateBody replaces the body of a response that is still a draft.
	// Returns domain.ErrInvalidTransition if the stored response is not a draft.
	UpdateBody(ctx context.Context, id int64, body string) error

	// UpdateStatus persists resp.Status and its timestamps, only if the stored
	// status still equals from. Returns domain.ErrInvalidTransition otherwise.
	UpdateStatus(ctx context.Context, resp *domain.EmailResponse, from domain.ResponseStatus) error
}
