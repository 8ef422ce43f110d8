package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DocumentStore = (*DocumentStore)(nil)

const documentColumns = `id, source_id, filename, filepath, summary, content_hash, expiry_date, document_type, language, indexed_at, updated_at`

// DocumentStore implements driven.DocumentStore using PostgreSQL
type DocumentStore struct {
	db *DB
}

// NewDocumentStore creates a new DocumentStore
func NewDocumentStore(db *DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Upsert creates or updates a document keyed by source_id.
// The existing row keeps its id and indexed_at, which are written back to doc.
func (s *DocumentStore) Upsert(ctx context.Context, doc *domain.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if doc.IndexedAt.IsZero() {
		doc.IndexedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = now
	}

	query := `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7::date, $8, $9, $10, $11)
		ON CONFLICT (source_id) DO UPDATE SET
			filename = EXCLUDED.filename,
			filepath = EXCLUDED.filepath,
			summary = EXCLUDED.summary,
			content_hash = EXCLUDED.content_hash,
			expiry_date = EXCLUDED.expiry_date,
			document_type = EXCLUDED.document_type,
			language = EXCLUDED.language,
			updated_at = EXCLUDED.updated_at
		RETURNING id, indexed_at
	`

	err := s.db.QueryRowContext(ctx, query,
		doc.ID,
		doc.SourceID,
		doc.Filename,
		doc.FilePath,
		doc.Summary,
		doc.ContentHash,
		dateParam(doc.ExpiryDate),
		doc.DocumentType,
		doc.Language,
		doc.IndexedAt,
		doc.UpdatedAt,
	).Scan(&doc.ID, &doc.IndexedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", doc.SourceID, err)
	}
	return nil
}

// Get retrieves a document by ID
func (s *DocumentStore) Get(ctx context.Context, id string) (*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE id = $1`
	return s.getOne(ctx, query, id)
}

// GetBySourceID retrieves a document by its external source ID
func (s *DocumentStore) GetBySourceID(ctx context.Context, sourceID string) (*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents WHERE source_id = $1`
	return s.getOne(ctx, query, sourceID)
}

func (s *DocumentStore) getOne(ctx context.Context, query string, arg any) (*domain.Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// List returns all documents, first indexed first
func (s *DocumentStore) List(ctx context.Context) ([]*domain.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents ORDER BY indexed_at, id`
	return s.query(ctx, query)
}

// ListExpired returns documents whose expiry date is before the date of asOf
func (s *DocumentStore) ListExpired(ctx context.Context, asOf time.Time) ([]*domain.Document, error) {
	query := `
		SELECT ` + documentColumns + ` FROM documents
		WHERE expiry_date IS NOT NULL AND expiry_date < $1::date
		ORDER BY indexed_at, id
	`
	return s.query(ctx, query, domain.Today(asOf).Format(domain.DateLayout))
}

// ListActive returns documents without expiry or expiring after the date of asOf
func (s *DocumentStore) ListActive(ctx context.Context, asOf time.Time) ([]*domain.Document, error) {
	query := `
		SELECT ` + documentColumns + ` FROM documents
		WHERE expiry_date IS NULL OR expiry_date > $1::date
		ORDER BY indexed_at, id
	`
	return s.query(ctx, query, domain.Today(asOf).Format(domain.DateLayout))
}

// Count returns total document count
func (s *DocumentStore) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

func (s *DocumentStore) query(ctx context.Context, query string, args ...any) ([]*domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]*domain.Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var expiry sql.NullTime

	err := row.Scan(
		&doc.ID,
		&doc.SourceID,
		&doc.Filename,
		&doc.FilePath,
		&doc.Summary,
		&doc.ContentHash,
		&expiry,
		&doc.DocumentType,
		&doc.Language,
		&doc.IndexedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.ExpiryDate = datePtr(expiry)
	return &doc, nil
}

// dateParam formats an optional calendar date for a DATE column
func dateParam(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(domain.DateLayout)
}
