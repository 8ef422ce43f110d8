package domain

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// GenerateID creates a unique random ID.
func GenerateID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}

// TaskType identifies the type of background task
type TaskType string

const (
	// TaskTypeIndexDocuments indexes every file under a root path
	TaskTypeIndexDocuments TaskType = "index_documents"
	// TaskTypeProcessEmails runs email intake over the inbox
	TaskTypeProcessEmails TaskType = "process_emails"
	// TaskTypeRetryDrafts re-drafts requests still pending
	TaskTypeRetryDrafts TaskType = "retry_drafts"
)

// IsValid reports whether t is a known task type
func (t TaskType) IsValid() bool {
	switch t {
	case TaskTypeIndexDocuments, TaskTypeProcessEmails, TaskTypeRetryDrafts:
		return true
	}
	return false
}

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task represents a background job to be processed by workers
type Task struct {
	ID   string   `json:"id"`
	Type TaskType `json:"type"`

	// Payload contains task-specific data
	// For index_documents: {"root_path": "/Shared Documents/KYC"}
	Payload map[string]string `json:"payload"`

	Status TaskStatus `json:"status"`

	// Priority determines processing order (higher = more urgent)
	Priority int `json:"priority"`

	Attempts    int    `json:"attempts"`
	MaxAttempts int    `json:"max_attempts"`
	Error       string `json:"error,omitempty"`

	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ScheduledFor time.Time  `json:"scheduled_for"`
}

// NewTask creates a new task with default values
func NewTask(taskType TaskType, payload map[string]string) *Task {
	now := time.Now()
	return &Task{
		ID:           GenerateID(),
		Type:         taskType,
		Payload:      payload,
		Status:       TaskStatusPending,
		MaxAttempts:  3,
		CreatedAt:    now,
		UpdatedAt:    now,
		ScheduledFor: now,
	}
}

// NewIndexTask creates a task that indexes the tree under rootPath
func NewIndexTask(rootPath string) *Task {
	return NewTask(TaskTypeIndexDocuments, map[string]string{
		"root_path": rootPath,
	})
}

// NewIntakeTask creates a task that processes the inbox
func NewIntakeTask() *Task {
	return NewTask(TaskTypeProcessEmails, nil)
}

// NewRetryDraftsTask creates a task that re-drafts pending requests
func NewRetryDraftsTask() *Task {
	return NewTask(TaskTypeRetryDrafts, nil)
}

// RootPath extracts the root_path from the payload (for index_documents tasks)
func (t *Task) RootPath() string {
	if t.Payload == nil {
		return ""
	}
	return t.Payload["root_path"]
}

// CanRetry returns true if the task can be retried
func (t *Task) CanRetry() bool {
	return t.Attempts < t.MaxAttempts
}

// IsReady returns true if the task is ready to be processed
func (t *Task) IsReady() bool {
	return t.Status == TaskStatusPending && !time.Now().Before(t.ScheduledFor)
}

// MarkProcessing updates the task to processing state
func (t *Task) MarkProcessing() {
	now := time.Now()
	t.Status = TaskStatusProcessing
	t.StartedAt = &now
	t.UpdatedAt = now
	t.Attempts++
}

// MarkCompleted updates the task to completed state
func (t *Task) MarkCompleted() {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
	t.Error = ""
}

// MarkFailed updates the task to failed state
func (t *Task) MarkFailed(err string) {
	t.Status = TaskStatusFailed
	t.UpdatedAt = time.Now()
	t.Error = err
}

// Retry resets the task for retry with exponential backoff
func (t *Task) Retry(err string) {
	now := time.Now()
	t.Status = TaskStatusPending
	t.UpdatedAt = now
	t.Error = err

	// 2s, 4s, 8s, ... capped at 5 minutes
	backoff := time.Duration(1<<t.Attempts) * time.Second
	if backoff > 5*time.Minute {
		backoff = 5 * time.Minute
	}
	t.ScheduledFor = now.Add(backoff)
}

// ScheduledTask represents a recurring task configuration
type ScheduledTask struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Type      TaskType          `json:"type"`
	Payload   map[string]string `json:"payload,omitempty"`
	Interval  time.Duration     `json:"interval"`
	Enabled   bool              `json:"enabled"`
	LastRun   *time.Time        `json:"last_run,omitempty"`
	NextRun   time.Time         `json:"next_run"`
	LastError string            `json:"last_error,omitempty"`
}

// NewScheduledTask creates a new scheduled task
func NewScheduledTask(id, name string, taskType TaskType, payload map[string]string, interval time.Duration) *ScheduledTask {
	return &ScheduledTask{
		ID:       id,
		Name:     name,
		Type:     taskType,
		Payload:  payload,
		Interval: interval,
		Enabled:  true,
		NextRun:  time.Now().Add(interval),
	}
}

// IsDue returns true if the scheduled task should be triggered
func (s *ScheduledTask) IsDue() bool {
	return s.Enabled && !time.Now().Before(s.NextRun)
}

// UpdateNextRun calculates the next run time after execution
func (s *ScheduledTask) UpdateNextRun() {
	now := time.Now()
	s.LastRun = &now
	s.NextRun = now.Add(s.Interval)
}

// NewTaskFromSchedule creates a queue task from a scheduled task
func NewTaskFromSchedule(s *ScheduledTask) *Task {
	var payload map[string]string
	if len(s.Payload) > 0 {
		payload = make(map[string]string, len(s.Payload))
		for k, v := range s.Payload {
			payload[k] = v
		}
	}
	return NewTask(s.Type, payload)
}
