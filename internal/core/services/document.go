package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
	"github.com/custodia-labs/docdesk/internal/core/ports/driving"
)

var _ driving.DocumentService = (*documentService)(nil)

// documentService is the read side of the document index used by reviewers
type documentService struct {
	documents driven.DocumentStore
	now       func() time.Time
}

// NewDocumentService creates a DocumentService over the document store
func NewDocumentService(documents driven.DocumentStore) driving.DocumentService {
	return &documentService{documents: documents, now: time.Now}
}

func (s *documentService) Get(ctx context.Context, id string) (*domain.Document, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}
	return s.documents.Get(ctx, id)
}

func (s *documentService) List(ctx context.Context) ([]*domain.Document, error) {
	return s.documents.List(ctx)
}

// ListExpired returns documents whose expiry date is before the day of asOf.
// A zero asOf means today.
func (s *documentService) ListExpired(ctx context.Context, asOf time.Time) ([]*domain.Document, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	return s.documents.ListExpired(ctx, asOf)
}
