package services

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
)

// Drafter writes a reply for a request and stores it as a draft response
type Drafter struct {
	analyzer  *ContentAnalyzer
	responses driven.ResponseStore
	now       func() time.Time
}

// NewDrafter creates a drafter
func NewDrafter(analyzer *ContentAnalyzer, responses driven.ResponseStore, now func() time.Time) *Drafter {
	if now == nil {
		now = time.Now
	}
	return &Drafter{analyzer: analyzer, responses: responses, now: now}
}

// Draft makes one analyzer call and persists the result. The response
// attaches exactly the matched documents, in matcher order.
// Nothing is stored when the analyzer call fails.
func (d *Drafter) Draft(ctx context.Context, req *domain.EmailRequest, matched []*domain.Document) (*domain.EmailResponse, error) {
	body, err := d.analyzer.DraftReply(ctx, req, matched)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(matched))
	for i, doc := range matched {
		ids[i] = doc.ID
	}

	resp := domain.NewDraftResponse(req, body, ids, d.now())
	if err := d.responses.Insert(ctx, resp); err != nil {
		return nil, fmt.Errorf("save draft: %w", err)
	}
	return resp, nil
}
