package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
)

var _ driven.DocumentSource = (*MockDocumentSource)(nil)

// MockDocumentSource serves a fixed file listing from memory
type MockDocumentSource struct {
	mu        sync.RWMutex
	files     []domain.RemoteFile
	content   map[string][]byte
	downloads map[string]int

	ListFn     func(path string) ([]domain.RemoteFile, error)
	DownloadFn func(fileID string) ([]byte, error)
}

// NewMockDocumentSource creates an empty source
func NewMockDocumentSource() *MockDocumentSource {
	return &MockDocumentSource{
		content:   make(map[string][]byte),
		downloads: make(map[string]int),
	}
}

// AddFile appends a file to the listing
func (m *MockDocumentSource) AddFile(f domain.RemoteFile, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.files {
		if existing.ID == f.ID {
			m.files[i] = f
			m.content[f.ID] = data
			return
		}
	}
	m.files = append(m.files, f)
	m.content[f.ID] = data
}

func (m *MockDocumentSource) Name() string {
	return "mock"
}

func (m *MockDocumentSource) List(ctx context.Context, path string) ([]domain.RemoteFile, error) {
	if m.ListFn != nil {
		return m.ListFn(path)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.RemoteFile(nil), m.files...), nil
}

func (m *MockDocumentSource) Download(ctx context.Context, fileID string) ([]byte, error) {
	m.mu.Lock()
	m.downloads[fileID]++
	m.mu.Unlock()

	if m.DownloadFn != nil {
		return m.DownloadFn(fileID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.content[fileID]
	if !ok {
		return nil, fmt.Errorf("file %s: %w", fileID, domain.ErrNotFound)
	}
	return data, nil
}

// Downloads returns how many times fileID was downloaded
func (m *MockDocumentSource) Downloads(fileID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.downloads[fileID]
}
