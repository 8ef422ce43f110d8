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
var _ driven.ResponseStore = (*ResponseStore)(nil)

const responseColumns = `id, request_id, draft_subject, draft_body, attached_documents, approved_at, sent_at, status, created_at`

// ResponseStore implements driven.ResponseStore using PostgreSQL
type ResponseStore struct {
	db *DB
}

// NewResponseStore creates a new ResponseStore
func NewResponseStore(db *DB) *ResponseStore {
	return &ResponseStore{db: db}
}

// Insert persists a new response and sets its ID
func (s *ResponseStore) Insert(ctx context.Context, resp *domain.EmailResponse) error {
	attachments := resp.AttachedDocuments
	if attachments == nil {
		attachments = []string{}
	}
	attachmentsJSON, err := json.Marshal(attachments)
	if err != nil {
		return fmt.Errorf("failed to encode attachments: %w", err)
	}
	if resp.Status == "" {
		resp.Status = domain.ResponseStatusDraft
	}
	if resp.CreatedAt.IsZero() {
		resp.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO email_responses (request_id, draft_subject, draft_body, attached_documents, approved_at, sent_at, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err = s.db.QueryRowContext(ctx, query,
		resp.RequestID,
		resp.DraftSubject,
		resp.DraftBody,
		attachmentsJSON,
		NullTime(resp.ApprovedAt),
		NullTime(resp.SentAt),
		resp.Status,
		resp.CreatedAt,
	).Scan(&resp.ID)
	if err != nil {
		return fmt.Errorf("failed to insert response: %w", err)
	}
	return nil
}

// Get retrieves a response by ID
func (s *ResponseStore) Get(ctx context.Context, id int64) (*domain.EmailResponse, error) {
	return s.getOne(ctx, `SELECT `+responseColumns+` FROM email_responses WHERE id = $1`, id)
}

// GetByRequest retrieves the most recent response for a request
func (s *ResponseStore) GetByRequest(ctx context.Context, requestID int64) (*domain.EmailResponse, error) {
	query := `SELECT ` + responseColumns + ` FROM email_responses WHERE request_id = $1 ORDER BY id DESC LIMIT 1`
	return s.getOne(ctx, query, requestID)
}

func (s *ResponseStore) getOne(ctx context.Context, query string, arg any) (*domain.EmailResponse, error) {
	resp, err := scanResponse(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// List returns responses newest first
func (s *ResponseStore) List(ctx context.Context, filter driven.ResponseFilter) ([]*domain.EmailResponse, error) {
	query := `SELECT ` + responseColumns + ` FROM email_responses`
	var args []any
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += ` WHERE status = $1`
	}
	query += ` ORDER BY created_at DESC, id DESC`
	query, args = paginate(query, args, filter.Limit, filter.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	resps := make([]*domain.EmailResponse, 0)
	for rows.Next() {
		resp, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		resps = append(resps, resp)
	}
	return resps, rows.Err()
}

// UpdateBody replaces the body of a response that is still a draft
func (s *ResponseStore) UpdateBody(ctx context.Context, id int64, body string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE email_responses SET draft_body = $1 WHERE id = $2 AND status = $3`,
		body, id, domain.ResponseStatusDraft,
	)
	if err != nil {
		return fmt.Errorf("failed to update response body: %w", err)
	}
	return s.checkConditional(ctx, result, id)
}

// UpdateStatus persists the status and timestamps of resp if the stored
// status is still from. Concurrent reviewers therefore cannot both advance it.
func (s *ResponseStore) UpdateStatus(ctx context.Context, resp *domain.EmailResponse, from domain.ResponseStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE email_responses SET status = $1, approved_at = $2, sent_at = $3 WHERE id = $4 AND status = $5`,
		resp.Status, NullTime(resp.ApprovedAt), NullTime(resp.SentAt), resp.ID, from,
	)
	if err != nil {
		return fmt.Errorf("failed to update response status: %w", err)
	}
	return s.checkConditional(ctx, result, resp.ID)
}

// checkConditional distinguishes a missing row from a failed status guard
func (s *ResponseStore) checkConditional(ctx context.Context, result sql.Result, id int64) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows > 0 {
		return nil
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: response %d is %s", domain.ErrInvalidTransition, id, current.Status)
}

func scanResponse(row rowScanner) (*domain.EmailResponse, error) {
	var resp domain.EmailResponse
	var attachments []byte
	var approvedAt, sentAt sql.NullTime

	err := row.Scan(
		&resp.ID,
		&resp.RequestID,
		&resp.DraftSubject,
		&resp.DraftBody,
		&attachments,
		&approvedAt,
		&sentAt,
		&resp.Status,
		&resp.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	resp.ApprovedAt = TimePtr(approvedAt)
	resp.SentAt = TimePtr(sentAt)

	resp.AttachedDocuments = []string{}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &resp.AttachedDocuments); err != nil {
			return nil, fmt.Errorf("failed to decode attachments of response %d: %w", resp.ID, err)
		}
	}
	return &resp, nil
}
