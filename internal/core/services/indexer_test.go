package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven/mocks"
)

type indexerFixture struct {
	source *mocks.MockDocumentSource
	store  *mocks.MockDocumentStore
	llm    *routedLLM
	lock   *mocks.MockDistributedLock
	clock  time.Time
	idx    *Indexer
}

func newIndexerFixture(docJSON string) *indexerFixture {
	f := &indexerFixture{
		source: mocks.NewMockDocumentSource(),
		store:  mocks.NewMockDocumentStore(),
		llm:    newRoutedLLM(docJSON, requestAnalysisOutput, replyText),
		lock:   mocks.NewMockDistributedLock(),
		clock:  testNow,
	}
	f.idx = NewIndexer(IndexerConfig{
		Source:     f.source,
		Documents:  f.store,
		Extractors: mocks.NewMockExtractorRegistry("application/pdf", "text/plain"),
		Analyzer:   NewContentAnalyzer(f.llm),
		Lock:       f.lock,
		Now:        func() time.Time { return f.clock },
	})
	return f
}

func TestIndexer_IndexesNewFile(t *testing.T) {
	f := newIndexerFixture(docAnalysisJSON)
	f.source.AddFile(pdfFile("sp-1", "insurance_certificate.pdf"), []byte("Insurance certificate. Expiry: 2026-06-30"))

	result, err := f.idx.IndexAll(context.Background(), "/KYC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Stats.DocumentsAdded != 1 || result.Stats.FilesListed != 1 {
		t.Errorf("stats = %+v", result.Stats)
	}

	doc, err := f.store.GetBySourceID(context.Background(), "sp-1")
	if err != nil {
		t.Fatalf("document not stored: %v", err)
	}
	if doc.ID == "" || doc.ID == doc.SourceID {
		t.Errorf("expected generated internal id, got %q", doc.ID)
	}
	if doc.Summary != "Certificate of insurance for the fleet." || doc.DocumentType != "certificate" || doc.Language != "en" {
		t.Errorf("analysis not applied: %+v", doc)
	}
	if doc.ExpiryDate == nil || doc.ExpiryDate.Format(domain.DateLayout) != "2026-06-30" {
		t.Errorf("expiry = %v", doc.ExpiryDate)
	}
	if doc.ContentHash != Fingerprint([]byte("Insurance certificate. Expiry: 2026-06-30")) {
		t.Error("content hash mismatch")
	}
	if doc.FilePath != "https://example.sharepoint.com/docs/insurance_certificate.pdf" {
		t.Errorf("filepath = %q", doc.FilePath)
	}
	if f.lock.IsHeld(lockIndexing) {
		t.Error("indexing lock should be released after the run")
	}
	if got := f.lock.Acquired(); len(got) != 1 || got[0] != lockIndexing {
		t.Errorf("locks acquired = %v", got)
	}
}

func TestIndexer_UnchangedFileIsIdempotent(t *testing.T) {
	f := newIndexerFixture(docAnalysisJSON)
	f.source.AddFile(pdfFile("sp-1", "insurance_certificate.pdf"), []byte("v1"))

	if _, err := f.idx.IndexAll(context.Background(), "/"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	before, _ := f.store.GetBySourceID(context.Background(), "sp-1")

	f.clock = testNow.Add(time.Hour)
	result, err := f.idx.IndexAll(context.Background(), "/")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if f.llm.docCalls != 1 {
		t.Errorf("analyzer called %d times, want 1", f.llm.docCalls)
	}
	if result.Stats.FilesUnchanged != 1 || result.Stats.DocumentsUpdated != 0 {
		t.Errorf("stats = %+v", result.Stats)
	}
	if n, _ := f.store.Count(context.Background()); n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
	after, _ := f.store.GetBySourceID(context.Background(), "sp-1")
	if !after.UpdatedAt.Equal(before.UpdatedAt) || !after.IndexedAt.Equal(before.IndexedAt) {
		t.Error("unchanged file must not touch timestamps")
	}
}

func TestIndexer_ChangedFileUpdatesSameRow(t *testing.T) {
	f := newIndexerFixture(docAnalysisJSON)
	f.source.AddFile(pdfFile("sp-1", "certificate.pdf"), []byte("v1"))
	if _, err := f.idx.IndexAll(context.Background(), "/"); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first, _ := f.store.GetBySourceID(context.Background(), "sp-1")

	// Renamed on the source, same id, new content
	f.source.AddFile(pdfFile("sp-1", "certificate_2025.pdf"), []byte("v2"))
	f.clock = testNow.Add(time.Hour)
	result, err := f.idx.IndexAll(context.Background(), "/")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if result.Stats.DocumentsUpdated != 1 {
		t.Errorf("stats = %+v", result.Stats)
	}
	if n, _ := f.store.Count(context.Background()); n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
	if result.TotalDocuments != 1 {
		t.Errorf("total documents = %d, want 1", result.TotalDocuments)
	}
	second, _ := f.store.GetBySourceID(context.Background(), "sp-1")
	if second.ID != first.ID {
		t.Errorf("internal id changed: %s -> %s", first.ID, second.ID)
	}
	if second.Filename != "certificate_2025.pdf" {
		t.Errorf("filename = %q", second.Filename)
	}
	if !second.IndexedAt.Equal(first.IndexedAt) || !second.UpdatedAt.Equal(testNow.Add(time.Hour)) {
		t.Errorf("timestamps: indexed %v updated %v", second.IndexedAt, second.UpdatedAt)
	}
	if f.llm.docCalls != 2 {
		t.Errorf("analyzer called %d times, want 2", f.llm.docCalls)
	}
}

func TestIndexer_PerFileFailuresDoNotAbort(t *testing.T) {
	f := newIndexerFixture(docAnalysisJSON)
	f.source.AddFile(pdfFile("sp-1", "broken.pdf"), []byte("a"))
	f.source.AddFile(domain.RemoteFile{ID: "sp-2", Name: "photo.jpg"}, []byte("jpeg"))
	f.source.AddFile(pdfFile("sp-3", "good.pdf"), []byte("b"))
	f.source.DownloadFn = func(id string) ([]byte, error) {
		if id == "sp-1" {
			return nil, errors.New("connection reset")
		}
		return []byte(id), nil
	}

	result, err := f.idx.IndexAll(context.Background(), "/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Stats.Errors != 1 || result.Stats.FilesSkipped != 1 || result.Stats.DocumentsAdded != 1 {
		t.Errorf("stats = %+v", result.Stats)
	}
	if f.source.Downloads("sp-2") != 0 {
		t.Error("unsupported files should not be downloaded")
	}
	if _, err := f.store.GetBySourceID(context.Background(), "sp-3"); err != nil {
		t.Errorf("good file not indexed: %v", err)
	}
}

func TestIndexer_MalformedAnalysisSkipsFile(t *testing.T) {
	f := newIndexerFixture(`{"summary":"x","expiryDate":"soon"}`)
	f.source.AddFile(pdfFile("sp-1", "a.pdf"), []byte("a"))

	result, err := f.idx.IndexAll(context.Background(), "/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Stats.Errors != 1 {
		t.Errorf("stats = %+v", result.Stats)
	}
	if n, _ := f.store.Count(context.Background()); n != 0 {
		t.Errorf("count = %d, want 0", n)
	}
}

func TestIndexer_ListingFailureStillReportsExpired(t *testing.T) {
	f := newIndexerFixture(docAnalysisJSON)
	f.store.Add(&domain.Document{ID: "old", SourceID: "sp-old", ExpiryDate: datePtr("2024-06-01")})
	f.source.ListFn = func(string) ([]domain.RemoteFile, error) {
		return nil, errors.New("graph unavailable")
	}

	result, err := f.idx.IndexAll(context.Background(), "/")
	if err == nil {
		t.Fatal("expected listing error")
	}
	if result == nil || len(result.Expired) != 1 || result.Expired[0].ID != "old" {
		t.Fatalf("expected expired set despite failure, got %+v", result)
	}
	if result.Error == "" {
		t.Error("result should carry the error")
	}
}

func TestIndexer_ExpirySet(t *testing.T) {
	f := newIndexerFixture(docAnalysisJSON)
	f.store.Add(&domain.Document{ID: "yesterday", SourceID: "s1", ExpiryDate: datePtr("2024-12-31")})
	f.store.Add(&domain.Document{ID: "tomorrow", SourceID: "s2", ExpiryDate: datePtr("2025-01-02")})
	f.store.Add(&domain.Document{ID: "never", SourceID: "s3"})

	result, err := f.idx.IndexAll(context.Background(), "/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ids(result.Expired) != "yesterday" {
		t.Errorf("expired = %q, want yesterday", ids(result.Expired))
	}
}

func TestIndexer_ScenarioExpiredPDF(t *testing.T) {
	f := newIndexerFixture(`{"summary":"Old permit.","expiryDate":"2024-01-01","documentType":"permit","language":"en"}`)
	f.source.AddFile(pdfFile("sp-9", "permit.pdf"), []byte("Permit. Expiry: 2024-01-01"))

	if _, err := f.idx.IndexAll(context.Background(), "/"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc, _ := f.store.GetBySourceID(context.Background(), "sp-9")
	if doc.ExpiryDate.Format(domain.DateLayout) != "2024-01-01" {
		t.Errorf("expiry = %v", doc.ExpiryDate)
	}

	expired, err := f.idx.ListExpired(context.Background(), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(expired) != 1 || expired[0].SourceID != "sp-9" {
		t.Errorf("expired = %v", expired)
	}
}

func TestIndexer_OverlappingRunRejected(t *testing.T) {
	f := newIndexerFixture(docAnalysisJSON)
	f.lock.SetLockHeld(lockIndexing, time.Minute)

	_, err := f.idx.IndexAll(context.Background(), "/")
	if !errors.Is(err, domain.ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
}

func TestMimeTypeOf(t *testing.T) {
	tests := map[string]domain.RemoteFile{
		"application/pdf": {Name: "A.PDF"},
		"text/plain":      {Name: "notes.txt"},
		"text/markdown":   {Name: "readme.md"},
		"text/csv":        {Name: "x.bin", MimeType: "text/csv; charset=utf-8"},
	}
	for want, file := range tests {
		if got := mimeTypeOf(file); got != want {
			t.Errorf("mimeTypeOf(%+v) = %q, want %q", file, got, want)
		}
	}
	if got := mimeTypeOf(domain.RemoteFile{Name: "scan.pdf", MimeType: "application/octet-stream"}); got != "application/pdf" {
		t.Errorf("generic listing type should fall back to extension, got %q", got)
	}
}
