package postgres

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/suite"

	postgresqueue "github.com/custodia-labs/docdesk/internal/adapters/driven/queue/postgres"
	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
)

const (
	testPostgresUser     = "docdesk"
	testPostgresPassword = "docdesk_pwd"
	testPostgresDB       = "docdesk_test"
)

func TestStores(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration tests in short mode")
	}
	suite.Run(t, new(StoresSuite))
}

type StoresSuite struct {
	suite.Suite
	pool     *dockertest.Pool
	resource *dockertest.Resource
	db       *DB

	documents *DocumentStore
	requests  *RequestStore
	responses *ResponseStore
	schedules *SchedulerStore
}

func (s *StoresSuite) SetupSuite() {
	pool, err := dockertest.NewPool("")
	if err != nil {
		s.T().Skipf("docker unavailable: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		s.T().Skipf("docker unavailable: %v", err)
	}
	s.pool = pool
	pool.MaxWait = 2 * time.Minute

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "16-alpine",
		Env: []string{
			"POSTGRES_USER=" + testPostgresUser,
			"POSTGRES_PASSWORD=" + testPostgresPassword,
			"POSTGRES_DB=" + testPostgresDB,
		},
	})
	s.Require().NoError(err, "could not start postgres")
	s.resource = resource
	_ = resource.Expire(300)

	url := fmt.Sprintf("postgres://%s:%s@localhost:%s/%s?sslmode=disable",
		testPostgresUser, testPostgresPassword, resource.GetPort("5432/tcp"), testPostgresDB)

	err = pool.Retry(func() error {
		db, err := Connect(context.Background(), DefaultConfig(url))
		if err != nil {
			return err
		}
		s.db = db
		return nil
	})
	s.Require().NoError(err, "could not connect to postgres")

	s.documents = NewDocumentStore(s.db)
	s.requests = NewRequestStore(s.db)
	s.responses = NewResponseStore(s.db)
	s.schedules = NewSchedulerStore(s.db)
}

func (s *StoresSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.db.InitSchema(ctx))
	// Running it twice proves the schema is idempotent
	s.Require().NoError(s.db.InitSchema(ctx))
	_, err := s.db.ExecContext(ctx, `TRUNCATE documents, email_responses, email_requests, scheduled_tasks, tasks RESTART IDENTITY CASCADE`)
	s.Require().NoError(err)
}

func (s *StoresSuite) TearDownSuite() {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.pool != nil && s.resource != nil {
		_ = s.pool.Purge(s.resource)
	}
}

func date(v string) *time.Time {
	t, _ := time.Parse(domain.DateLayout, v)
	return &t
}

func (s *StoresSuite) TestDocumentUpsertKeepsIdentity() {
	ctx := context.Background()
	first := &domain.Document{
		ID:          "doc-1",
		SourceID:    "sp-1",
		Filename:    "insurance_certificate.pdf",
		ContentHash: "aaa",
		Summary:     "Fleet insurance.",
		ExpiryDate:  date("2026-06-30"),
		IndexedAt:   time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC),
	}
	s.Require().NoError(s.documents.Upsert(ctx, first))

	second := &domain.Document{
		ID:          "doc-ignored",
		SourceID:    "sp-1",
		Filename:    "insurance_certificate_2026.pdf",
		ContentHash: "bbb",
		Summary:     "Renewed fleet insurance.",
		IndexedAt:   time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC),
	}
	s.Require().NoError(s.documents.Upsert(ctx, second))
	s.Equal("doc-1", second.ID, "upsert must keep the existing id")
	s.True(second.IndexedAt.Equal(first.IndexedAt), "upsert must keep indexed_at")

	count, err := s.documents.Count(ctx)
	s.Require().NoError(err)
	s.Equal(1, count)

	stored, err := s.documents.GetBySourceID(ctx, "sp-1")
	s.Require().NoError(err)
	s.Equal("insurance_certificate_2026.pdf", stored.Filename)
	s.Equal("bbb", stored.ContentHash)
	s.Nil(stored.ExpiryDate)

	_, err = s.documents.Get(ctx, "missing")
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *StoresSuite) TestDocumentExpiry() {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 23, 30, 0, 0, time.UTC)
	for i, d := range []struct {
		source string
		expiry *time.Time
	}{
		{"yesterday", date("2024-12-31")},
		{"today", date("2025-01-01")},
		{"tomorrow", date("2025-01-02")},
		{"never", nil},
	} {
		doc := &domain.Document{SourceID: d.source, Filename: d.source + ".pdf", ContentHash: "h", ExpiryDate: d.expiry,
			IndexedAt: now.Add(time.Duration(i) * time.Second)}
		s.Require().NoError(s.documents.Upsert(ctx, doc))
	}

	expired, err := s.documents.ListExpired(ctx, now)
	s.Require().NoError(err)
	s.Equal([]string{"yesterday"}, sourceIDs(expired))
	s.Equal("2024-12-31", expired[0].ExpiryDate.Format(domain.DateLayout))

	active, err := s.documents.ListActive(ctx, now)
	s.Require().NoError(err)
	s.Equal([]string{"tomorrow", "never"}, sourceIDs(active))

	all, err := s.documents.List(ctx)
	s.Require().NoError(err)
	s.Len(all, 4)
}

func sourceIDs(docs []*domain.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.SourceID
	}
	return out
}

func (s *StoresSuite) newRequest(messageID string) *domain.EmailRequest {
	return &domain.EmailRequest{
		MessageID:  messageID,
		FromEmail:  "buyer@example.com",
		Subject:    "Documents",
		Body:       "Please send your insurance certificate",
		ReceivedAt: time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC),
		Status:     domain.RequestStatusPending,
		Analysis: &domain.RequestAnalysis{
			RequestedDocuments: []string{"insurance certificate"},
			RequiredActions:    []string{},
			Language:           "en",
			Urgency:            domain.UrgencyMedium,
		},
	}
}

func (s *StoresSuite) TestRequestDedupAndAnalysis() {
	ctx := context.Background()
	req := s.newRequest("<m1@example.com>")
	s.Require().NoError(s.requests.Insert(ctx, req))
	s.NotZero(req.ID)

	err := s.requests.Insert(ctx, s.newRequest("<m1@example.com>"))
	s.ErrorIs(err, domain.ErrAlreadyExists)

	stored, err := s.requests.GetByMessageID(ctx, "<m1@example.com>")
	s.Require().NoError(err)
	s.Equal(req.ID, stored.ID)
	s.Require().NotNil(stored.Analysis)
	s.Equal([]string{"insurance certificate"}, stored.Analysis.RequestedDocuments)
	s.Equal(domain.UrgencyMedium, stored.Analysis.Urgency)

	_, err = s.requests.GetByMessageID(ctx, "<unknown@example.com>")
	s.ErrorIs(err, domain.ErrNotFound)
}

func (s *StoresSuite) TestRequestConcurrentInsertFirstWriterWins() {
	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.requests.Insert(ctx, s.newRequest("<race@example.com>"))
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		s.ErrorIs(err, domain.ErrAlreadyExists)
	}
	s.Equal(1, succeeded)
}

func (s *StoresSuite) TestRequestListingAndProcessing() {
	ctx := context.Background()
	a := s.newRequest("<a@example.com>")
	b := s.newRequest("<b@example.com>")
	s.Require().NoError(s.requests.Insert(ctx, a))
	s.Require().NoError(s.requests.Insert(ctx, b))

	pending, err := s.requests.ListPending(ctx)
	s.Require().NoError(err)
	s.Require().Len(pending, 2)
	s.Equal(a.ID, pending[0].ID)

	s.Require().NoError(s.requests.MarkProcessed(ctx, a.ID, time.Now()))
	s.ErrorIs(s.requests.MarkProcessed(ctx, 999, time.Now()), domain.ErrNotFound)

	processed, err := s.requests.List(ctx, driven.RequestFilter{Status: domain.RequestStatusProcessed})
	s.Require().NoError(err)
	s.Require().Len(processed, 1)
	s.Equal(a.ID, processed[0].ID)
	s.NotNil(processed[0].ProcessedAt)

	page, err := s.requests.List(ctx, driven.RequestFilter{Limit: 1})
	s.Require().NoError(err)
	s.Require().Len(page, 1)
	s.Equal(b.ID, page[0].ID, "newest first")
}

func (s *StoresSuite) TestResponseLifecycle() {
	ctx := context.Background()
	req := s.newRequest("<r@example.com>")
	s.Require().NoError(s.requests.Insert(ctx, req))

	draft := domain.NewDraftResponse(req, "Please find attached.", []string{"doc-2", "doc-1"}, time.Now().UTC())
	s.Require().NoError(s.responses.Insert(ctx, draft))

	s.Require().NoError(s.responses.UpdateBody(ctx, draft.ID, "Edited body"))

	stored, err := s.responses.GetByRequest(ctx, req.ID)
	s.Require().NoError(err)
	s.Equal("Edited body", stored.DraftBody)
	s.Equal("Re: Documents", stored.DraftSubject)
	s.Equal([]string{"doc-2", "doc-1"}, stored.AttachedDocuments)

	s.Require().NoError(stored.Approve(time.Now().UTC()))
	s.Require().NoError(s.responses.UpdateStatus(ctx, stored, domain.ResponseStatusDraft))

	// A second reviewer racing on a stale copy loses
	stale := *stored
	stale.Status = domain.ResponseStatusApproved
	err = s.responses.UpdateStatus(ctx, &stale, domain.ResponseStatusDraft)
	s.ErrorIs(err, domain.ErrInvalidTransition)

	s.ErrorIs(s.responses.UpdateBody(ctx, draft.ID, "too late"), domain.ErrInvalidTransition)
	s.ErrorIs(s.responses.UpdateBody(ctx, 999, "nobody"), domain.ErrNotFound)

	s.Require().NoError(stored.MarkSent(time.Now().UTC()))
	s.Require().NoError(s.responses.UpdateStatus(ctx, stored, domain.ResponseStatusApproved))

	sent, err := s.responses.List(ctx, driven.ResponseFilter{Status: domain.ResponseStatusSent})
	s.Require().NoError(err)
	s.Require().Len(sent, 1)
	s.NotNil(sent[0].ApprovedAt)
	s.NotNil(sent[0].SentAt)
}

func (s *StoresSuite) TestScheduledTasksKeepBookkeeping() {
	ctx := context.Background()
	task := domain.NewScheduledTask("index-documents", "Index documents", domain.TaskTypeIndexDocuments,
		map[string]string{"root_path": "/KYC"}, time.Hour)
	s.Require().NoError(s.schedules.SaveScheduledTask(ctx, task))
	s.Require().NoError(s.schedules.UpdateLastRun(ctx, task.ID, "boom"))

	task.Interval = 2 * time.Hour
	s.Require().NoError(s.schedules.SaveScheduledTask(ctx, task))

	stored, err := s.schedules.GetScheduledTask(ctx, task.ID)
	s.Require().NoError(err)
	s.Equal(2*time.Hour, stored.Interval)
	s.Equal("boom", stored.LastError)
	s.NotNil(stored.LastRun)
	s.Equal("/KYC", stored.Payload["root_path"])

	due, err := s.schedules.GetDueScheduledTasks(ctx)
	s.Require().NoError(err)
	s.Empty(due)

	s.ErrorIs(s.schedules.UpdateLastRun(ctx, "missing", ""), domain.ErrNotFound)
}

func (s *StoresSuite) TestAdvisoryLock() {
	ctx := context.Background()
	first := NewAdvisoryLock(s.db)
	second := NewAdvisoryLock(s.db)

	ok, err := first.Acquire(ctx, "pipeline:indexing", time.Minute)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = second.Acquire(ctx, "pipeline:indexing", time.Minute)
	s.Require().NoError(err)
	s.False(ok)

	ok, err = first.Acquire(ctx, "pipeline:indexing", time.Minute)
	s.Require().NoError(err)
	s.False(ok, "the holder must not stack the lock")

	s.NoError(first.Extend(ctx, "pipeline:indexing", time.Minute))
	s.Error(second.Extend(ctx, "pipeline:indexing", time.Minute))

	s.Require().NoError(first.Release(ctx, "pipeline:indexing"))
	ok, err = second.Acquire(ctx, "pipeline:indexing", time.Minute)
	s.Require().NoError(err)
	s.True(ok)
	s.NoError(second.Release(ctx, "pipeline:indexing"))
	s.NoError(second.Release(ctx, "never-held"))
}

func (s *StoresSuite) TestTaskQueueLifecycle() {
	ctx := context.Background()
	queue := postgresqueue.NewQueue(s.db.DB)
	s.NoError(queue.Ping(ctx))

	index := domain.NewIndexTask("/KYC")
	s.Require().NoError(queue.Enqueue(ctx, index))

	task, err := queue.DequeueWithTimeout(ctx, 1)
	s.Require().NoError(err)
	s.Require().NotNil(task)
	s.Equal(index.ID, task.ID)
	s.Equal("/KYC", task.RootPath())
	s.Equal(domain.TaskStatusProcessing, task.Status)
	s.Equal(1, task.Attempts)

	// A claimed task is not handed out twice
	empty, err := queue.DequeueWithTimeout(ctx, 1)
	s.Require().NoError(err)
	s.Nil(empty)

	s.Require().NoError(queue.Nack(ctx, task.ID, "sharepoint: 503"))
	retried, err := queue.GetTask(ctx, task.ID)
	s.Require().NoError(err)
	s.Equal(domain.TaskStatusPending, retried.Status)
	s.Equal("sharepoint: 503", retried.Error)
	s.True(retried.ScheduledFor.After(time.Now()))

	intake := domain.NewIntakeTask()
	s.Require().NoError(queue.Enqueue(ctx, intake))
	task, err = queue.DequeueWithTimeout(ctx, 1)
	s.Require().NoError(err)
	s.Require().NotNil(task)
	s.Equal(intake.ID, task.ID, "the backed-off task waits for its slot")
	s.Require().NoError(queue.Ack(ctx, task.ID))

	stats, err := queue.Stats(ctx)
	s.Require().NoError(err)
	s.Equal(int64(1), stats.PendingCount)
	s.Equal(int64(1), stats.CompletedCount)

	s.ErrorIs(queue.Ack(ctx, "missing"), domain.ErrNotFound)
	_, err = queue.GetTask(ctx, "missing")
	s.ErrorIs(err, domain.ErrNotFound)
}
