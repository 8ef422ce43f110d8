package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
)

var _ driven.DistributedLock = (*MockDistributedLock)(nil)

// MockDistributedLock keeps lock names and their deadlines in memory.
// Every successful Acquire is recorded so tests can assert which runs
// took which lock.
type MockDistributedLock struct {
	mu       sync.Mutex
	held     map[string]time.Time
	acquired []string

	// Err, when set, is returned by every operation
	Err error
}

// NewMockDistributedLock creates an empty lock table
func NewMockDistributedLock() *MockDistributedLock {
	return &MockDistributedLock{held: make(map[string]time.Time)}
}

func (m *MockDistributedLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	if m.heldLocked(name) {
		return false, nil
	}
	m.held[name] = time.Now().Add(ttl)
	m.acquired = append(m.acquired, name)
	return true, nil
}

func (m *MockDistributedLock) Release(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	delete(m.held, name)
	return nil
}

func (m *MockDistributedLock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if !m.heldLocked(name) {
		return fmt.Errorf("lock %q is not held", name)
	}
	m.held[name] = time.Now().Add(ttl)
	return nil
}

func (m *MockDistributedLock) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Err
}

// IsHeld reports whether name is currently locked
func (m *MockDistributedLock) IsHeld(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.heldLocked(name)
}

// SetLockHeld marks name as held by another instance for ttl
func (m *MockDistributedLock) SetLockHeld(name string, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.held[name] = time.Now().Add(ttl)
}

// Acquired lists the names of every successful Acquire, in order
func (m *MockDistributedLock) Acquired() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.acquired...)
}

func (m *MockDistributedLock) heldLocked(name string) bool {
	deadline, ok := m.held[name]
	return ok && time.Now().Before(deadline)
}
