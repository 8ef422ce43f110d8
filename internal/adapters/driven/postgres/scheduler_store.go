package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SchedulerStore = (*SchedulerStore)(nil)

const scheduledTaskColumns = `id, name, type, payload, interval_ns, enabled, next_run, last_run, last_error`

// SchedulerStore implements driven.SchedulerStore using PostgreSQL
type SchedulerStore struct {
	db *DB
}

// NewSchedulerStore creates a new SchedulerStore
func NewSchedulerStore(db *DB) *SchedulerStore {
	return &SchedulerStore{db: db}
}

// GetScheduledTask retrieves a scheduled task by ID
func (s *SchedulerStore) GetScheduledTask(ctx context.Context, id string) (*domain.ScheduledTask, error) {
	query := `SELECT ` + scheduledTaskColumns + ` FROM scheduled_tasks WHERE id = $1`

	task, err := scanScheduledTask(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ListScheduledTasks retrieves all scheduled tasks
func (s *SchedulerStore) ListScheduledTasks(ctx context.Context) ([]*domain.ScheduledTask, error) {
	query := `SELECT ` + scheduledTaskColumns + ` FROM scheduled_tasks ORDER BY next_run ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanScheduledTasks(rows)
}

// SaveScheduledTask creates or updates a scheduled task.
// Run bookkeeping of an existing row is left alone so restarts do not reset it.
func (s *SchedulerStore) SaveScheduledTask(ctx context.Context, task *domain.ScheduledTask) error {
	payload, err := json.Marshal(task.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	query := `
		INSERT INTO scheduled_tasks (` + scheduledTaskColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			type = EXCLUDED.type,
			payload = EXCLUDED.payload,
			interval_ns = EXCLUDED.interval_ns,
			enabled = EXCLUDED.enabled
	`

	_, err = s.db.ExecContext(ctx, query,
		task.ID,
		task.Name,
		string(task.Type),
		payload,
		int64(task.Interval),
		task.Enabled,
		task.NextRun,
		NullTime(task.LastRun),
		task.LastError,
	)
	return err
}

// GetDueScheduledTasks retrieves enabled scheduled tasks that are due to run
func (s *SchedulerStore) GetDueScheduledTasks(ctx context.Context) ([]*domain.ScheduledTask, error) {
	query := `
		SELECT ` + scheduledTaskColumns + `
		FROM scheduled_tasks
		WHERE enabled = true AND next_run <= $1
		ORDER BY next_run ASC
	`

	rows, err := s.db.QueryContext(ctx, query, time.Now())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanScheduledTasks(rows)
}

// UpdateLastRun records a run and pushes next_run one interval ahead
func (s *SchedulerStore) UpdateLastRun(ctx context.Context, id string, lastError string) error {
	query := `
		UPDATE scheduled_tasks
		SET last_run = $1,
			next_run = $1 + make_interval(secs => interval_ns::double precision / 1000000000),
			last_error = $2
		WHERE id = $3
	`

	result, err := s.db.ExecContext(ctx, query, time.Now(), lastError, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanScheduledTasks(rows *sql.Rows) ([]*domain.ScheduledTask, error) {
	var tasks []*domain.ScheduledTask
	for rows.Next() {
		task, err := scanScheduledTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func scanScheduledTask(row rowScanner) (*domain.ScheduledTask, error) {
	var task domain.ScheduledTask
	var payload []byte
	var lastRun sql.NullTime
	var intervalNs int64

	err := row.Scan(
		&task.ID,
		&task.Name,
		&task.Type,
		&payload,
		&intervalNs,
		&task.Enabled,
		&task.NextRun,
		&lastRun,
		&task.LastError,
	)
	if err != nil {
		return nil, err
	}

	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &task.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
	}
	task.Interval = time.Duration(intervalNs)
	task.LastRun = TimePtr(lastRun)
	return &task, nil
}
