package mocks

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
)

var _ driven.ResponseStore = (*MockResponseStore)(nil)

// MockResponseStore is an in-memory ResponseStore for testing
type MockResponseStore struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*domain.EmailResponse

	// InsertFn overrides Insert when set
	InsertFn func(resp *domain.EmailResponse) error
}

// NewMockResponseStore creates a new MockResponseStore
func NewMockResponseStore() *MockResponseStore {
	return &MockResponseStore{
		byID: make(map[int64]*domain.EmailResponse),
	}
}

func (m *MockResponseStore) Get(ctx context.Context, id int64) (*domain.EmailResponse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	resp, ok := m.byID[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return copyResponse(resp), nil
}

func (m *MockResponseStore) GetByRequest(ctx context.Context, requestID int64) (*domain.EmailResponse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *domain.EmailResponse
	for _, resp := range m.byID {
		if resp.RequestID == requestID && (latest == nil || resp.ID > latest.ID) {
			latest = resp
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return copyResponse(latest), nil
}

func (m *MockResponseStore) Insert(ctx context.Context, resp *domain.EmailResponse) error {
	if m.InsertFn != nil {
		return m.InsertFn(resp)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	resp.ID = m.nextID
	if resp.CreatedAt.IsZero() {
		resp.CreatedAt = time.Now()
	}
	m.byID[resp.ID] = copyResponse(resp)
	return nil
}

func (m *MockResponseStore) List(ctx context.Context, filter driven.ResponseFilter) ([]*domain.EmailResponse, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*domain.EmailResponse, 0, len(m.byID))
	for _, resp := range m.byID {
		if filter.Status != "" && resp.Status != filter.Status {
			continue
		}
		result = append(result, copyResponse(resp))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return paginate(result, filter.Limit, filter.Offset), nil
}

func (m *MockResponseStore) UpdateBody(ctx context.Context, id int64, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	resp, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	return resp.EditBody(body)
}

func (m *MockResponseStore) UpdateStatus(ctx context.Context, resp *domain.EmailResponse, from domain.ResponseStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.byID[resp.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if stored.Status != from {
		return fmt.Errorf("%w: stored status is %s", domain.ErrInvalidTransition, stored.Status)
	}
	stored.Status = resp.Status
	stored.ApprovedAt = copyTime(resp.ApprovedAt)
	stored.SentAt = copyTime(resp.SentAt)
	return nil
}

// Reset clears all responses
func (m *MockResponseStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID = 0
	m.byID = make(map[int64]*domain.EmailResponse)
}

func copyResponse(r *domain.EmailResponse) *domain.EmailResponse {
	c := *r
	c.AttachedDocuments = append([]string{}, r.AttachedDocuments...)
	c.ApprovedAt = copyTime(r.ApprovedAt)
	c.SentAt = copyTime(r.SentAt)
	return &c
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
