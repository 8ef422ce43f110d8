package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven/mocks"
)

func TestDecodeDocumentAnalysis(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantExpiry string
		wantErr    bool
	}{
		{name: "with expiry", raw: docAnalysisJSON, wantExpiry: "2026-06-30"},
		{name: "null expiry", raw: `{"summary":"A contract.","expiryDate":null,"documentType":"contract","language":"de"}`},
		{name: "empty expiry", raw: `{"summary":"A contract.","expiryDate":"","documentType":"contract","language":"de"}`},
		{name: "missing expiry", raw: `{"summary":"A contract.","documentType":"contract","language":"de"}`},
		{name: "fenced", raw: "```json\n" + docAnalysisJSON + "\n```", wantExpiry: "2026-06-30"},
		{name: "bad date format", raw: `{"summary":"x","expiryDate":"30/06/2026"}`, wantErr: true},
		{name: "numeric date", raw: `{"summary":"x","expiryDate":20260630}`, wantErr: true},
		{name: "missing summary", raw: `{"expiryDate":null,"documentType":"contract"}`, wantErr: true},
		{name: "not json", raw: "The document is a contract.", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeDocumentAnalysis(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrMalformedAnalysis) {
					t.Fatalf("expected ErrMalformedAnalysis, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantExpiry == "" {
				if got.ExpiryDate != nil {
					t.Errorf("expected nil expiry, got %v", got.ExpiryDate)
				}
				return
			}
			if got.ExpiryDate == nil || got.ExpiryDate.Format(domain.DateLayout) != tt.wantExpiry {
				t.Errorf("expiry = %v, want %s", got.ExpiryDate, tt.wantExpiry)
			}
		})
	}
}

func TestDecodeRequestAnalysis(t *testing.T) {
	got, err := decodeRequestAnalysis(`{"requestedDocuments":[" insurance certificate ",""],"requiredActions":["translate"],"language":"en","urgency":"HIGH"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.RequestedDocuments) != 1 || got.RequestedDocuments[0] != "insurance certificate" {
		t.Errorf("requested = %q", got.RequestedDocuments)
	}
	if got.Urgency != domain.UrgencyHigh {
		t.Errorf("urgency = %s", got.Urgency)
	}

	for _, raw := range []string{
		`{"requestedDocuments":[],"urgency":"urgent"}`,
		`{"requestedDocuments":[]}`,
		`{"requestedDocuments":"insurance"}`,
		`not json`,
	} {
		if _, err := decodeRequestAnalysis(raw); !errors.Is(err, domain.ErrMalformedAnalysis) {
			t.Errorf("decode(%s): expected ErrMalformedAnalysis, got %v", raw, err)
		}
	}
}

func TestContentAnalyzer_AnalyzeDocument_TruncatesContent(t *testing.T) {
	llm := mocks.NewMockLLMService(docAnalysisJSON)
	analyzer := NewContentAnalyzer(llm)

	content := strings.Repeat("é", maxAnalyzedChars+500)
	if _, err := analyzer.AnalyzeDocument(context.Background(), "policy.pdf", content); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := llm.Requests[0]
	if !req.JSON {
		t.Error("document analysis should use JSON mode")
	}
	if n := strings.Count(req.Prompt, "é"); n != maxAnalyzedChars {
		t.Errorf("prompt carries %d content runes, want %d", n, maxAnalyzedChars)
	}
	if !strings.Contains(req.Prompt, "Document name: policy.pdf") {
		t.Error("prompt should name the document")
	}
}

func TestContentAnalyzer_DraftReply(t *testing.T) {
	llm := mocks.NewMockLLMService()
	analyzer := NewContentAnalyzer(llm)
	req := &domain.EmailRequest{
		Body: "Please send your insurance certificate",
		Analysis: &domain.RequestAnalysis{
			RequestedDocuments: []string{"insurance certificate", "tax id"},
			Language:           "de",
			Urgency:            domain.UrgencyLow,
		},
	}
	docs := []*domain.Document{{ID: "d1", Filename: "insurance_certificate.pdf", Summary: "Fleet insurance."}}

	llm.CompleteFn = func(r driven.CompletionRequest) (string, error) {
		if r.JSON {
			t.Error("reply drafting should not use JSON mode")
		}
		for _, want := range []string{"insurance_certificate.pdf: Fleet insurance.", "Write the reply in de", "insurance certificate, tax id"} {
			if !strings.Contains(r.Prompt, want) {
				t.Errorf("prompt missing %q", want)
			}
		}
		return "  Hallo,\n\nanbei das Zertifikat.  ", nil
	}

	body, err := analyzer.DraftReply(context.Background(), req, docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body != "Hallo,\n\nanbei das Zertifikat." {
		t.Errorf("body = %q", body)
	}

	llm.CompleteFn = func(driven.CompletionRequest) (string, error) { return "   ", nil }
	if _, err := analyzer.DraftReply(context.Background(), req, docs); !errors.Is(err, domain.ErrMalformedAnalysis) {
		t.Errorf("expected ErrMalformedAnalysis for empty reply, got %v", err)
	}
}

func TestTruncateRunes(t *testing.T) {
	if got := truncateRunes("héllo", 2); got != "hé" {
		t.Errorf("truncateRunes = %q", got)
	}
	if got := truncateRunes("abc", 10); got != "abc" {
		t.Errorf("truncateRunes = %q", got)
	}
}
