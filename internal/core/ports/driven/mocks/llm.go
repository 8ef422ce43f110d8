package mocks

import (
	"context"
	"sync"

	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
)

var _ driven.LLMService = (*MockLLMService)(nil)

// MockLLMService is a scripted LLMService for testing.
// CompleteFn takes precedence; otherwise Responses are returned in order
// and the last one repeats.
type MockLLMService struct {
	mu        sync.Mutex
	Requests  []driven.CompletionRequest
	Responses []string

	CompleteFn func(req driven.CompletionRequest) (string, error)
	PingFn     func() error
}

// NewMockLLMService creates a mock that answers with the given responses
func NewMockLLMService(responses ...string) *MockLLMService {
	return &MockLLMService{Responses: responses}
}

func (m *MockLLMService) Complete(ctx context.Context, req driven.CompletionRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	n := len(m.Requests)
	m.mu.Unlock()

	if m.CompleteFn != nil {
		return m.CompleteFn(req)
	}
	if len(m.Responses) == 0 {
		return "{}", nil
	}
	if n > len(m.Responses) {
		return m.Responses[len(m.Responses)-1], nil
	}
	return m.Responses[n-1], nil
}

func (m *MockLLMService) Model() string {
	return "mock-model"
}

func (m *MockLLMService) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn()
	}
	return nil
}

func (m *MockLLMService) Close() error {
	return nil
}

// Calls returns the number of completions requested
func (m *MockLLMService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}
