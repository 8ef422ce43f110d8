package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
)

// MatchDocuments returns the documents whose search surface contains at least
// one of the phrases, in the order of docs. No phrases means no matches.
//
// Both the phrase and the surface are lowercased and have '_' and '-' folded
// to spaces before the substring test. Folding applies in both directions:
// "insurance certificate" finds insurance_certificate.pdf, and
// "insurance-certificate" finds a summary that only says "insurance certificate".
func MatchDocuments(docs []*domain.Document, phrases []string) []*domain.Document {
	needles := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if p = strings.TrimSpace(normalizeForMatch(p)); p != "" {
			needles = append(needles, p)
		}
	}
	if len(needles) == 0 {
		return []*domain.Document{}
	}

	matched := make([]*domain.Document, 0)
	seen := make(map[string]bool)
	for _, doc := range docs {
		if seen[doc.ID] {
			continue
		}
		surface := normalizeForMatch(doc.SearchSurface())
		for _, needle := range needles {
			if strings.Contains(surface, needle) {
				matched = append(matched, doc)
				seen[doc.ID] = true
				break
			}
		}
	}
	return matched
}

var matchSeparators = strings.NewReplacer("_", " ", "-", " ")

func normalizeForMatch(s string) string {
	return matchSeparators.Replace(strings.ToLower(s))
}

// Matcher matches requested phrases against the documents that are still active
type Matcher struct {
	documents driven.DocumentStore
	now       func() time.Time
}

// NewMatcher creates a matcher reading from documents
func NewMatcher(documents driven.DocumentStore, now func() time.Time) *Matcher {
	if now == nil {
		now = time.Now
	}
	return &Matcher{documents: documents, now: now}
}

// Match returns active documents matching any of the phrases
func (m *Matcher) Match(ctx context.Context, phrases []string) ([]*domain.Document, error) {
	if len(phrases) == 0 {
		return []*domain.Document{}, nil
	}
	docs, err := m.documents.ListActive(ctx, m.now())
	if err != nil {
		return nil, fmt.Errorf("list active documents: %w", err)
	}
	return MatchDocuments(docs, phrases), nil
}
