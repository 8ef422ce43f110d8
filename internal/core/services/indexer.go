package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
	"github.com/custodia-labs/docdesk/internal/core/ports/driving"
)

var _ driving.IndexingService = (*Indexer)(nil)

// Indexer walks the document source, analyzes new or changed files and
// upserts them into the document store.
type Indexer struct {
	source     driven.DocumentSource
	documents  driven.DocumentStore
	extractors driven.ExtractorRegistry
	analyzer   *ContentAnalyzer
	lock       driven.DistributedLock
	lockTTL    time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// IndexerConfig holds dependencies for Indexer.
type IndexerConfig struct {
	Source     driven.DocumentSource
	Documents  driven.DocumentStore
	Extractors driven.ExtractorRegistry
	Analyzer   *ContentAnalyzer
	Lock       driven.DistributedLock // Optional: prevents overlapping runs
	LockTTL    time.Duration
	Now        func() time.Time
	Logger     *slog.Logger
}

// NewIndexer creates a new indexer.
func NewIndexer(cfg IndexerConfig) *Indexer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Indexer{
		source:     cfg.Source,
		documents:  cfg.Documents,
		extractors: cfg.Extractors,
		analyzer:   cfg.Analyzer,
		lock:       cfg.Lock,
		lockTTL:    cfg.LockTTL,
		now:        now,
		logger:     logger.With("component", "indexer"),
	}
}

type fileOutcome int

const (
	fileSkipped fileOutcome = iota
	fileUnchanged
	fileAdded
	fileUpdated
)

// IndexAll indexes the files under rootPath in listing order.
// A listing failure aborts the run; the expired set is still computed.
func (x *Indexer) IndexAll(ctx context.Context, rootPath string) (*domain.IndexResult, error) {
	start := time.Now()
	result := &domain.IndexResult{RootPath: rootPath, Expired: []*domain.Document{}}

	release, err := acquireRunLock(ctx, x.lock, lockIndexing, x.lockTTL, x.logger)
	if err != nil {
		return nil, err
	}
	defer release()

	x.logger.Info("starting indexing", "source", x.source.Name(), "root_path", rootPath)

	runErr := x.indexFiles(ctx, rootPath, &result.Stats)
	if runErr != nil {
		result.Error = runErr.Error()
		x.logger.Error("indexing aborted", "root_path", rootPath, "error", runErr)
	}

	expired, err := x.ListExpired(ctx, x.now())
	if err != nil {
		x.logger.Error("failed to list expired documents", "error", err)
		if runErr == nil {
			runErr = err
			result.Error = err.Error()
		}
	} else {
		result.Expired = expired
	}

	if total, err := x.documents.Count(ctx); err != nil {
		x.logger.Warn("failed to count documents", "error", err)
	} else {
		result.TotalDocuments = total
	}

	result.Finish(start)
	x.logger.Info("indexing finished",
		"root_path", rootPath,
		"listed", result.Stats.FilesListed,
		"added", result.Stats.DocumentsAdded,
		"updated", result.Stats.DocumentsUpdated,
		"unchanged", result.Stats.FilesUnchanged,
		"skipped", result.Stats.FilesSkipped,
		"errors", result.Stats.Errors,
		"expired", len(result.Expired),
		"total", result.TotalDocuments,
		"duration", result.Duration,
	)
	return result, runErr
}

// ListExpired returns documents whose expiry date is before the date of asOf
func (x *Indexer) ListExpired(ctx context.Context, asOf time.Time) ([]*domain.Document, error) {
	docs, err := x.documents.ListExpired(ctx, asOf)
	if err != nil {
		return nil, fmt.Errorf("list expired documents: %w", err)
	}
	return docs, nil
}

func (x *Indexer) indexFiles(ctx context.Context, rootPath string, stats *domain.IndexStats) error {
	files, err := x.source.List(ctx, rootPath)
	if err != nil {
		return fmt.Errorf("list %s: %w", rootPath, err)
	}
	stats.FilesListed = len(files)

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return err
		}

		outcome, err := x.indexFile(ctx, file)
		if err != nil {
			stats.Errors++
			x.logger.Warn("failed to index file",
				"source_id", file.ID,
				"filename", file.Name,
				"error", err,
			)
			continue
		}

		switch outcome {
		case fileSkipped:
			stats.FilesSkipped++
		case fileUnchanged:
			stats.FilesUnchanged++
		case fileAdded:
			stats.DocumentsAdded++
		case fileUpdated:
			stats.DocumentsUpdated++
		}
	}
	return nil
}

func (x *Indexer) indexFile(ctx context.Context, file domain.RemoteFile) (fileOutcome, error) {
	extractor := x.extractors.Get(mimeTypeOf(file))
	if extractor == nil {
		x.logger.Debug("skipping unsupported file", "filename", file.Name)
		return fileSkipped, nil
	}

	data, err := x.source.Download(ctx, file.ID)
	if err != nil {
		return 0, fmt.Errorf("download: %w", err)
	}
	hash := Fingerprint(data)

	existing, err := x.documents.GetBySourceID(ctx, file.ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return 0, fmt.Errorf("lookup: %w", err)
	}
	if existing != nil && existing.ContentHash == hash {
		x.logger.Debug("skipping unchanged file", "filename", file.Name)
		return fileUnchanged, nil
	}

	text, err := extractor.Extract(ctx, data)
	if err != nil {
		return 0, fmt.Errorf("extract: %w", err)
	}

	analysis, err := x.analyzer.AnalyzeDocument(ctx, file.Name, text)
	if err != nil {
		return 0, err
	}

	now := x.now()
	doc := existing
	outcome := fileUpdated
	if doc == nil {
		doc = &domain.Document{
			ID:        uuid.NewString(),
			SourceID:  file.ID,
			IndexedAt: now,
		}
		outcome = fileAdded
	}
	doc.Filename = file.Name
	doc.FilePath = file.WebURL
	doc.ContentHash = hash
	doc.UpdatedAt = now
	doc.ApplyAnalysis(analysis)

	if err := x.documents.Upsert(ctx, doc); err != nil {
		return 0, fmt.Errorf("save: %w", err)
	}
	x.logger.Info("indexed document", "source_id", file.ID, "filename", file.Name, "document_id", doc.ID)
	return outcome, nil
}

// Fingerprint returns the hex SHA-256 of data
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

var extensionTypes = map[string]string{
	".pdf":      "application/pdf",
	".txt":      "text/plain",
	".text":     "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
}

// mimeTypeOf resolves a file's MIME type from the listing or its extension
func mimeTypeOf(file domain.RemoteFile) string {
	if file.MimeType != "" {
		if mt, _, err := mime.ParseMediaType(file.MimeType); err == nil && mt != "application/octet-stream" {
			return mt
		}
	}
	ext := strings.ToLower(path.Ext(file.Name))
	if mt, ok := extensionTypes[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		if parsed, _, err := mime.ParseMediaType(mt); err == nil {
			return parsed
		}
	}
	return "application/octet-stream"
}
