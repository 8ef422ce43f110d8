package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven/mocks"
)

type intakeFixture struct {
	mail      *mocks.MockMailSource
	parser    *mocks.MockMailParser
	requests  *mocks.MockRequestStore
	responses *mocks.MockResponseStore
	documents *mocks.MockDocumentStore
	llm       *routedLLM
	lock      *mocks.MockDistributedLock
	engine    *IntakeEngine
}

func newIntakeFixture(reply string) *intakeFixture {
	f := &intakeFixture{
		mail:      mocks.NewMockMailSource(),
		parser:    mocks.NewMockMailParser(),
		requests:  mocks.NewMockRequestStore(),
		responses: mocks.NewMockResponseStore(),
		documents: mocks.NewMockDocumentStore(),
		llm:       newRoutedLLM(docAnalysisJSON, requestAnalysisOutput, reply),
		lock:      mocks.NewMockDistributedLock(),
	}
	f.engine = NewIntakeEngine(IntakeEngineConfig{
		Source:    f.mail,
		Parser:    f.parser,
		Requests:  f.requests,
		Responses: f.responses,
		Documents: f.documents,
		Analyzer:  NewContentAnalyzer(f.llm),
		Lock:      f.lock,
		Now:       fixedClock,
	})
	f.documents.Add(&domain.Document{
		ID:           "doc-ins",
		SourceID:     "sp-ins",
		Filename:     "insurance_certificate.pdf",
		Summary:      "Certificate of insurance for the fleet.",
		DocumentType: "certificate",
		ExpiryDate:   datePtr("2026-06-30"),
		IndexedAt:    testNow.Add(-time.Hour),
	})
	f.documents.Add(&domain.Document{
		ID:        "doc-lic",
		SourceID:  "sp-lic",
		Filename:  "trade_license.pdf",
		IndexedAt: testNow.Add(-time.Minute),
	})
	return f
}

// addMessage queues a raw message whose parse result is email
func (f *intakeFixture) addMessage(seq uint32, email *domain.InboundEmail) {
	raw := []byte("raw-" + email.MessageID + "-" + string(rune('a'+seq)))
	f.parser.Register(raw, email)
	f.mail.Messages = append(f.mail.Messages, &domain.RawMessage{SeqNum: seq, Data: raw})
}

func insuranceEmail(id string) *domain.InboundEmail {
	return &domain.InboundEmail{
		MessageID:  id,
		From:       "buyer@example.com",
		Subject:    "Documents",
		Body:       "Please send your insurance certificate",
		ReceivedAt: testNow.Add(-time.Hour),
	}
}

func TestIntake_CreatesRequestAndDraft(t *testing.T) {
	f := newIntakeFixture(replyText)
	f.addMessage(1, insuranceEmail("<m1@example.com>"))

	result, err := f.engine.ProcessIncoming(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Stats.RequestsCreated != 1 || result.Stats.DraftsCreated != 1 {
		t.Errorf("stats = %+v", result.Stats)
	}

	req, err := f.requests.GetByMessageID(context.Background(), "<m1@example.com>")
	if err != nil {
		t.Fatalf("request not stored: %v", err)
	}
	if req.Status != domain.RequestStatusProcessed || req.ProcessedAt == nil {
		t.Errorf("request status = %s", req.Status)
	}
	if req.Analysis == nil || req.Analysis.Urgency != domain.UrgencyMedium {
		t.Errorf("analysis = %+v", req.Analysis)
	}

	resp, err := f.responses.GetByRequest(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("response not stored: %v", err)
	}
	if resp.Status != domain.ResponseStatusDraft || resp.DraftSubject != "Re: Documents" || resp.DraftBody != replyText {
		t.Errorf("response = %+v", resp)
	}
	if len(resp.AttachedDocuments) != 1 || resp.AttachedDocuments[0] != "doc-ins" {
		t.Errorf("attachments = %v, want [doc-ins]", resp.AttachedDocuments)
	}
	if !f.mail.Sessions[0].Closed() {
		t.Error("mail session should be closed")
	}
}

func TestIntake_DuplicateMessageIsNoOp(t *testing.T) {
	f := newIntakeFixture(replyText)
	f.addMessage(1, insuranceEmail("<m1@example.com>"))
	f.addMessage(2, insuranceEmail("<m1@example.com>"))

	result, err := f.engine.ProcessIncoming(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := f.engine.ProcessIncoming(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}

	if result.Stats.Duplicates != 1 || result.Stats.RequestsCreated != 1 {
		t.Errorf("stats = %+v", result.Stats)
	}
	all, _ := f.requests.List(context.Background(), driven.RequestFilter{})
	if len(all) != 1 {
		t.Errorf("requests = %d, want 1", len(all))
	}
	if f.llm.requestCalls != 1 || f.llm.replyCalls != 1 {
		t.Errorf("analyzer calls: request %d reply %d", f.llm.requestCalls, f.llm.replyCalls)
	}
}

func TestIntake_InsertRaceCountsAsDuplicate(t *testing.T) {
	f := newIntakeFixture(replyText)
	f.addMessage(1, insuranceEmail("<m1@example.com>"))
	f.requests.InsertFn = func(*domain.EmailRequest) error { return domain.ErrAlreadyExists }

	result, err := f.engine.ProcessIncoming(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Stats.Duplicates != 1 || result.Stats.Errors != 0 || f.llm.replyCalls != 0 {
		t.Errorf("stats = %+v, reply calls %d", result.Stats, f.llm.replyCalls)
	}
}

func TestIntake_DraftFailureLeavesRequestPending(t *testing.T) {
	f := newIntakeFixture("")
	f.addMessage(1, insuranceEmail("<m1@example.com>"))

	result, err := f.engine.ProcessIncoming(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Stats.RequestsCreated != 1 || result.Stats.DraftFailures != 1 {
		t.Errorf("stats = %+v", result.Stats)
	}

	req, err := f.requests.GetByMessageID(context.Background(), "<m1@example.com>")
	if err != nil {
		t.Fatalf("request should be persisted: %v", err)
	}
	if !req.IsPending() {
		t.Errorf("status = %s, want pending", req.Status)
	}
	if _, err := f.responses.GetByRequest(context.Background(), req.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("no response expected, got %v", err)
	}
}

func TestIntake_BadMessagesDoNotAbort(t *testing.T) {
	f := newIntakeFixture(replyText)
	f.mail.Messages = append(f.mail.Messages, &domain.RawMessage{SeqNum: 1, Data: []byte("garbage")})
	f.addMessage(2, &domain.InboundEmail{MessageID: "", Subject: "no id"})
	f.addMessage(3, insuranceEmail("<m3@example.com>"))

	result, err := f.engine.ProcessIncoming(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Stats.MessagesFetched != 3 || result.Stats.Errors != 2 || result.Stats.RequestsCreated != 1 {
		t.Errorf("stats = %+v", result.Stats)
	}
}

func TestIntake_MalformedExtractionSkipsMessage(t *testing.T) {
	f := newIntakeFixture(replyText)
	f.llm.MockLLMService.CompleteFn = func(driven.CompletionRequest) (string, error) {
		return `{"requestedDocuments":["x"],"urgency":"whenever"}`, nil
	}
	f.addMessage(1, insuranceEmail("<m1@example.com>"))

	result, err := f.engine.ProcessIncoming(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Stats.Errors != 1 || result.Stats.RequestsCreated != 0 {
		t.Errorf("stats = %+v", result.Stats)
	}
}

func TestIntake_MailboxFailures(t *testing.T) {
	t.Run("open fails", func(t *testing.T) {
		f := newIntakeFixture(replyText)
		f.mail.OpenErr = errors.New("dial tcp: timeout")

		result, err := f.engine.ProcessIncoming(context.Background())
		if err == nil || result.Error == "" {
			t.Fatalf("expected batch failure, got %v", err)
		}
	})

	t.Run("fetch fails midway", func(t *testing.T) {
		f := newIntakeFixture(replyText)
		f.addMessage(1, insuranceEmail("<m1@example.com>"))
		f.addMessage(2, insuranceEmail("<m2@example.com>"))
		f.mail.FailAfter = 1
		f.mail.NextErr = errors.New("connection closed")

		result, err := f.engine.ProcessIncoming(context.Background())
		if err == nil {
			t.Fatal("expected batch failure")
		}
		if result.Stats.RequestsCreated != 1 {
			t.Errorf("first message should be kept, stats = %+v", result.Stats)
		}
		if !f.mail.Sessions[0].Closed() {
			t.Error("session should be closed on failure")
		}
	})
}

func TestIntake_OverlappingRunRejected(t *testing.T) {
	f := newIntakeFixture(replyText)
	f.lock.SetLockHeld(lockIntake, time.Minute)

	if _, err := f.engine.ProcessIncoming(context.Background()); !errors.Is(err, domain.ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
}

func TestIntake_RetryPending(t *testing.T) {
	f := newIntakeFixture("")
	f.addMessage(1, insuranceEmail("<m1@example.com>"))
	f.addMessage(2, insuranceEmail("<m2@example.com>"))
	if _, err := f.engine.ProcessIncoming(context.Background()); err != nil {
		t.Fatalf("intake: %v", err)
	}

	// Simulate a crash after the second draft was stored
	req2, _ := f.requests.GetByMessageID(context.Background(), "<m2@example.com>")
	_ = f.responses.Insert(context.Background(), domain.NewDraftResponse(req2, "stored before crash", nil, testNow))

	// The model is reachable again
	f.llm.MockLLMService.CompleteFn = func(driven.CompletionRequest) (string, error) { return replyText, nil }

	result, err := f.engine.RetryPending(context.Background())
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if result.Pending != 2 || result.Drafted != 1 || result.Repaired != 1 || result.Failed != 0 {
		t.Errorf("result = %+v", result)
	}

	pending, _ := f.requests.ListPending(context.Background())
	if len(pending) != 0 {
		t.Errorf("pending = %d, want 0", len(pending))
	}
	req1, _ := f.requests.GetByMessageID(context.Background(), "<m1@example.com>")
	resp1, err := f.responses.GetByRequest(context.Background(), req1.ID)
	if err != nil || resp1.DraftBody != replyText || len(resp1.AttachedDocuments) != 1 {
		t.Errorf("retried draft = %+v, err %v", resp1, err)
	}
	if n := len(f.llm.Requests); n != 5 {
		// 2 extractions + 2 failed drafts + 1 retried draft; no new extraction
		t.Errorf("llm calls = %d, want 5", n)
	}
}

func TestIntake_ScenarioInsuranceCertificate(t *testing.T) {
	f := newIntakeFixture(replyText)
	f.llm.MockLLMService.CompleteFn = func(req driven.CompletionRequest) (string, error) {
		if req.JSON {
			return `{"requestedDocuments":["insurance certificate"],"requiredActions":[],"language":"en","urgency":"low"}`, nil
		}
		return replyText, nil
	}
	f.addMessage(1, insuranceEmail("<b@example.com>"))

	if _, err := f.engine.ProcessIncoming(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req, _ := f.requests.GetByMessageID(context.Background(), "<b@example.com>")
	resp, err := f.responses.GetByRequest(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("response not stored: %v", err)
	}
	if len(resp.AttachedDocuments) != 1 || resp.AttachedDocuments[0] != "doc-ins" {
		t.Errorf("attachments = %v, want exactly [doc-ins]", resp.AttachedDocuments)
	}
}
