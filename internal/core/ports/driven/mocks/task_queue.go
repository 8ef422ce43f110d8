package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
)

var (
	_ driven.TaskQueue      = (*MockTaskQueue)(nil)
	_ driven.SchedulerStore = (*MockSchedulerStore)(nil)
)

// MockTaskQueue is an in-memory TaskQueue for testing
type MockTaskQueue struct {
	mu      sync.Mutex
	tasks   map[string]*domain.Task
	pending []string

	EnqueueFn func(task *domain.Task) error
}

// NewMockTaskQueue creates an empty queue
func NewMockTaskQueue() *MockTaskQueue {
	return &MockTaskQueue{tasks: make(map[string]*domain.Task)}
}

func (m *MockTaskQueue) Enqueue(ctx context.Context, task *domain.Task) error {
	if m.EnqueueFn != nil {
		if err := m.EnqueueFn(task); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *task
	m.tasks[task.ID] = &c
	m.pending = append(m.pending, task.ID)
	return nil
}

// DequeueWithTimeout returns immediately when the queue is empty unless
// the context ends first; timeout is honoured as a short sleep.
func (m *MockTaskQueue) DequeueWithTimeout(ctx context.Context, timeout int) (*domain.Task, error) {
	m.mu.Lock()
	for i, id := range m.pending {
		task := m.tasks[id]
		if !task.IsReady() {
			continue
		}
		m.pending = append(m.pending[:i], m.pending[i+1:]...)
		task.MarkProcessing()
		c := *task
		m.mu.Unlock()
		return &c, nil
	}
	m.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(10 * time.Millisecond):
		return nil, nil
	}
}

func (m *MockTaskQueue) Ack(ctx context.Context, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	task.MarkCompleted()
	return nil
}

func (m *MockTaskQueue) Nack(ctx context.Context, taskID string, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return domain.ErrNotFound
	}
	if task.CanRetry() {
		task.Retry(reason)
		m.pending = append(m.pending, taskID)
		return nil
	}
	task.MarkFailed(reason)
	return nil
}

func (m *MockTaskQueue) GetTask(ctx context.Context, taskID string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *task
	return &c, nil
}

func (m *MockTaskQueue) Stats(ctx context.Context) (*driven.QueueStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &driven.QueueStats{}
	for _, task := range m.tasks {
		switch task.Status {
		case domain.TaskStatusPending:
			stats.PendingCount++
		case domain.TaskStatusProcessing:
			stats.ProcessingCount++
		case domain.TaskStatusCompleted:
			stats.CompletedCount++
		case domain.TaskStatusFailed:
			stats.FailedCount++
		}
	}
	return stats, nil
}

func (m *MockTaskQueue) Ping(ctx context.Context) error { return nil }

func (m *MockTaskQueue) Close() error { return nil }

// Tasks returns a snapshot of all tasks ever enqueued
func (m *MockTaskQueue) Tasks() []*domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*domain.Task, 0, len(m.tasks))
	for _, task := range m.tasks {
		c := *task
		result = append(result, &c)
	}
	return result
}

// MockSchedulerStore is an in-memory SchedulerStore for testing
type MockSchedulerStore struct {
	mu    sync.Mutex
	tasks map[string]*domain.ScheduledTask
}

// NewMockSchedulerStore creates an empty store
func NewMockSchedulerStore() *MockSchedulerStore {
	return &MockSchedulerStore{tasks: make(map[string]*domain.ScheduledTask)}
}

func (m *MockSchedulerStore) GetScheduledTask(ctx context.Context, id string) (*domain.ScheduledTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c := *task
	return &c, nil
}

func (m *MockSchedulerStore) ListScheduledTasks(ctx context.Context) ([]*domain.ScheduledTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*domain.ScheduledTask, 0, len(m.tasks))
	for _, task := range m.tasks {
		c := *task
		result = append(result, &c)
	}
	return result, nil
}

func (m *MockSchedulerStore) SaveScheduledTask(ctx context.Context, task *domain.ScheduledTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *task
	if existing, ok := m.tasks[task.ID]; ok {
		c.LastRun = existing.LastRun
		c.NextRun = existing.NextRun
		c.LastError = existing.LastError
	}
	m.tasks[task.ID] = &c
	return nil
}

func (m *MockSchedulerStore) GetDueScheduledTasks(ctx context.Context) ([]*domain.ScheduledTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.ScheduledTask
	for _, task := range m.tasks {
		if task.IsDue() {
			c := *task
			result = append(result, &c)
		}
	}
	return result, nil
}

func (m *MockSchedulerStore) UpdateLastRun(ctx context.Context, id string, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return domain.ErrNotFound
	}
	task.UpdateNextRun()
	task.LastError = lastError
	return nil
}

// ForceDue makes a scheduled task due immediately (for test setup)
func (m *MockSchedulerStore) ForceDue(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if task, ok := m.tasks[id]; ok {
		task.NextRun = time.Now().Add(-time.Second)
	}
}
