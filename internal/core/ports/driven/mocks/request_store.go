package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
)

var _ driven.RequestStore = (*MockRequestStore)(nil)

// MockRequestStore is an in-memory RequestStore for testing
type MockRequestStore struct {
	mu        sync.RWMutex
	nextID    int64
	byID      map[int64]*domain.EmailRequest
	byMessage map[string]int64

	// InsertFn overrides Insert when set
	InsertFn func(req *domain.EmailRequest) error
}

// NewMockRequestStore creates a new MockRequestStore
func NewMockRequestStore() *MockRequestStore {
	return &MockRequestStore{
		byID:      make(map[int64]*domain.EmailRequest),
		byMessage: make(map[string]int64),
	}
}

func (m *MockRequestStore) Get(ctx context.Context, id int64) (*domain.EmailRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyRequest(req), nil
}

func (m *MockRequestStore) GetByMessageID(ctx context.Context, messageID string) (*domain.EmailRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byMessage[messageID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyRequest(m.byID[id]), nil
}

func (m *MockRequestStore) Insert(ctx context.Context, req *domain.EmailRequest) error {
	if m.InsertFn != nil {
		return m.InsertFn(req)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byMessage[req.MessageID]; ok {
		return domain.ErrAlreadyExists
	}
	m.nextID++
	req.ID = m.nextID
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}
	m.byID[req.ID] = copyRequest(req)
	m.byMessage[req.MessageID] = req.ID
	return nil
}

func (m *MockRequestStore) List(ctx context.Context, filter driven.RequestFilter) ([]*domain.EmailRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*domain.EmailRequest, 0, len(m.byID))
	for _, req := range m.byID {
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		result = append(result, copyRequest(req))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return paginate(result, filter.Limit, filter.Offset), nil
}

func (m *MockRequestStore) ListPending(ctx context.Context) ([]*domain.EmailRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*domain.EmailRequest
	for _, req := range m.byID {
		if req.IsPending() {
			result = append(result, copyRequest(req))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MockRequestStore) MarkProcessed(ctx context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	req.Status = domain.RequestStatusProcessed
	req.ProcessedAt = &at
	return nil
}

// Reset clears all requests
func (m *MockRequestStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID = 0
	m.byID = make(map[int64]*domain.EmailRequest)
	m.byMessage = make(map[string]int64)
}

func copyRequest(r *domain.EmailRequest) *domain.EmailRequest {
	c := *r
	if r.ProcessedAt != nil {
		t := *r.ProcessedAt
		c.ProcessedAt = &t
	}
	if r.Analysis != nil {
		a := *r.Analysis
		a.RequestedDocuments = append([]string(nil), r.Analysis.RequestedDocuments...)
		a.RequiredActions = append([]string(nil), r.Analysis.RequiredActions...)
		c.Analysis = &a
	}
	return &c
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
