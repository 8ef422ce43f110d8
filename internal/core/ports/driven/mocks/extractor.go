package mocks

import (
	"context"

	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
)

var (
	_ driven.ContentExtractor  = (*MockExtractor)(nil)
	_ driven.ExtractorRegistry = (*MockExtractorRegistry)(nil)
)

// MockExtractor returns the raw bytes as text, or ExtractFn's result
type MockExtractor struct {
	Types     []string
	ExtractFn func(data []byte) (string, error)
}

func (m *MockExtractor) Extract(ctx context.Context, data []byte) (string, error) {
	if m.ExtractFn != nil {
		return m.ExtractFn(data)
	}
	return string(data), nil
}

func (m *MockExtractor) SupportedTypes() []string { return m.Types }

func (m *MockExtractor) Priority() int { return 50 }

// MockExtractorRegistry looks extractors up by exact MIME type
type MockExtractorRegistry struct {
	byType map[string]driven.ContentExtractor
}

// NewMockExtractorRegistry registers a pass-through extractor for each type
func NewMockExtractorRegistry(types ...string) *MockExtractorRegistry {
	r := &MockExtractorRegistry{byType: make(map[string]driven.ContentExtractor)}
	if len(types) > 0 {
		r.Register(&MockExtractor{Types: types})
	}
	return r
}

func (r *MockExtractorRegistry) Get(mimeType string) driven.ContentExtractor {
	return r.byType[mimeType]
}

func (r *MockExtractorRegistry) Register(e driven.ContentExtractor) {
	for _, t := range e.SupportedTypes() {
		r.byType[t] = e
	}
}

func (r *MockExtractorRegistry) List() []string {
	types := make([]string, 0, len(r.byType))
	for t := range r.byType {
		types = append(types, t)
	}
	return types
}
