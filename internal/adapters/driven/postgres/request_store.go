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
var _ driven.RequestStore = (*RequestStore)(nil)

const requestColumns = `id, message_id, from_email, subject, body, received_at, processed_at, status, ai_analysis, created_at`

// RequestStore implements driven.RequestStore using PostgreSQL
type RequestStore struct {
	db *DB
}

// NewRequestStore creates a new RequestStore
func NewRequestStore(db *DB) *RequestStore {
	return &RequestStore{db: db}
}

// Insert persists a new request. A duplicate message_id is reported as
// domain.ErrAlreadyExists so overlapping intake runs resolve first writer wins.
func (s *RequestStore) Insert(ctx context.Context, req *domain.EmailRequest) error {
	analysis, err := encodeRequestAnalysis(req.Analysis)
	if err != nil {
		return err
	}
	if req.Status == "" {
		req.Status = domain.RequestStatusPending
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO email_requests (message_id, from_email, subject, body, received_at, processed_at, status, ai_analysis, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err = s.db.QueryRowContext(ctx, query,
		req.MessageID,
		req.FromEmail,
		req.Subject,
		req.Body,
		req.ReceivedAt,
		NullTime(req.ProcessedAt),
		req.Status,
		analysis,
		req.CreatedAt,
	).Scan(&req.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: message %s", domain.ErrAlreadyExists, req.MessageID)
	}
	if err != nil {
		return fmt.Errorf("failed to insert request: %w", err)
	}
	return nil
}

// Get retrieves a request by ID
func (s *RequestStore) Get(ctx context.Context, id int64) (*domain.EmailRequest, error) {
	return s.getOne(ctx, `SELECT `+requestColumns+` FROM email_requests WHERE id = $1`, id)
}

// GetByMessageID retrieves a request by its message identifier
func (s *RequestStore) GetByMessageID(ctx context.Context, messageID string) (*domain.EmailRequest, error) {
	return s.getOne(ctx, `SELECT `+requestColumns+` FROM email_requests WHERE message_id = $1`, messageID)
}

func (s *RequestStore) getOne(ctx context.Context, query string, arg any) (*domain.EmailRequest, error) {
	req, err := scanRequest(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// List returns requests newest first
func (s *RequestStore) List(ctx context.Context, filter driven.RequestFilter) ([]*domain.EmailRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM email_requests`
	var args []any
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += ` WHERE status = $1`
	}
	query += ` ORDER BY created_at DESC, id DESC`
	query, args = paginate(query, args, filter.Limit, filter.Offset)
	return s.query(ctx, query, args...)
}

// ListPending returns pending requests oldest first
func (s *RequestStore) ListPending(ctx context.Context) ([]*domain.EmailRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM email_requests WHERE status = $1 ORDER BY created_at, id`
	return s.query(ctx, query, domain.RequestStatusPending)
}

// MarkProcessed sets the request status to processed
func (s *RequestStore) MarkProcessed(ctx context.Context, id int64, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE email_requests SET status = $1, processed_at = $2 WHERE id = $3`,
		domain.RequestStatusProcessed, at, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark request processed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *RequestStore) query(ctx context.Context, query string, args ...any) ([]*domain.EmailRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reqs := make([]*domain.EmailRequest, 0)
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

func scanRequest(row rowScanner) (*domain.EmailRequest, error) {
	var req domain.EmailRequest
	var processedAt sql.NullTime
	var analysis []byte

	err := row.Scan(
		&req.ID,
		&req.MessageID,
		&req.FromEmail,
		&req.Subject,
		&req.Body,
		&req.ReceivedAt,
		&processedAt,
		&req.Status,
		&analysis,
		&req.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	req.ProcessedAt = TimePtr(processedAt)

	if req.Analysis, err = decodeRequestAnalysis(analysis); err != nil {
		return nil, fmt.Errorf("request %d: %w", req.ID, err)
	}
	return &req, nil
}

// encodeRequestAnalysis stores the analysis with its kind tag
func encodeRequestAnalysis(a *domain.RequestAnalysis) ([]byte, error) {
	if a == nil {
		return nil, nil
	}
	data, err := json.Marshal(domain.NewRequestAnalysis(a))
	if err != nil {
		return nil, fmt.Errorf("failed to encode analysis: %w", err)
	}
	return data, nil
}

func decodeRequestAnalysis(data []byte) (*domain.RequestAnalysis, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var a domain.Analysis
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to decode analysis: %w", err)
	}
	if a.Kind != domain.AnalysisKindRequest {
		return nil, fmt.Errorf("%w: stored analysis is %s", domain.ErrMalformedAnalysis, a.Kind)
	}
	return a.Request, nil
}
