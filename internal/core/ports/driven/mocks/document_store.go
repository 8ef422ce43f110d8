package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
)

var _ driven.DocumentStore = (*MockDocumentStore)(nil)

// MockDocumentStore is an in-memory DocumentStore for testing.
// Returned documents are copies so callers cannot mutate stored state.
type MockDocumentStore struct {
	mu       sync.RWMutex
	byID     map[string]*domain.Document
	bySource map[string]string // sourceID -> id

	// UpsertFn overrides Upsert when set
	UpsertFn func(doc *domain.Document) error
}

// NewMockDocumentStore creates a new MockDocumentStore
func NewMockDocumentStore() *MockDocumentStore {
	return &MockDocumentStore{
		byID:     make(map[string]*domain.Document),
		bySource: make(map[string]string),
	}
}

func (m *MockDocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyDocument(doc), nil
}

func (m *MockDocumentStore) GetBySourceID(ctx context.Context, sourceID string) (*domain.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.bySource[sourceID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyDocument(m.byID[id]), nil
}

func (m *MockDocumentStore) Upsert(ctx context.Context, doc *domain.Document) error {
	if m.UpsertFn != nil {
		return m.UpsertFn(doc)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.bySource[doc.SourceID]; ok {
		existing := m.byID[id]
		doc.ID = existing.ID
		doc.IndexedAt = existing.IndexedAt
	} else {
		if doc.ID == "" {
			doc.ID = domain.GenerateID()
		}
		if doc.IndexedAt.IsZero() {
			doc.IndexedAt = time.Now()
		}
		m.bySource[doc.SourceID] = doc.ID
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now()
	}
	m.byID[doc.ID] = copyDocument(doc)
	return nil
}

func (m *MockDocumentStore) List(ctx context.Context) ([]*domain.Document, error) {
	return m.filter(func(*domain.Document) bool { return true }), nil
}

func (m *MockDocumentStore) ListExpired(ctx context.Context, asOf time.Time) ([]*domain.Document, error) {
	return m.filter(func(d *domain.Document) bool { return d.IsExpired(asOf) }), nil
}

func (m *MockDocumentStore) ListActive(ctx context.Context, asOf time.Time) ([]*domain.Document, error) {
	return m.filter(func(d *domain.Document) bool { return d.IsActive(asOf) }), nil
}

func (m *MockDocumentStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byID), nil
}

// Add stores a document as-is (for test setup)
func (m *MockDocumentStore) Add(doc *domain.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID[doc.ID] = copyDocument(doc)
	m.bySource[doc.SourceID] = doc.ID
}

// Reset clears all documents
func (m *MockDocumentStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byID = make(map[string]*domain.Document)
	m.bySource = make(map[string]string)
}

// filter returns matching documents in indexing order
func (m *MockDocumentStore) filter(keep func(*domain.Document) bool) []*domain.Document {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*domain.Document, 0, len(m.byID))
	for _, doc := range m.byID {
		if keep(doc) {
			result = append(result, copyDocument(doc))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].IndexedAt.Equal(result[j].IndexedAt) {
			return result[i].IndexedAt.Before(result[j].IndexedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

func copyDocument(d *domain.Document) *domain.Document {
	c := *d
	if d.ExpiryDate != nil {
		t := *d.ExpiryDate
		c.ExpiryDate = &t
	}
	return &c
}
