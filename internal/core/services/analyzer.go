package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
)

// ContentAnalyzer turns text into structured metadata using an LLM.
// Every result is decoded and validated here; callers only ever see typed values.
type ContentAnalyzer struct {
	llm driven.LLMService
}

// NewContentAnalyzer creates an analyzer backed by llm
func NewContentAnalyzer(llm driven.LLMService) *ContentAnalyzer {
	return &ContentAnalyzer{llm: llm}
}

// AnalyzeDocument extracts summary, expiry, type and language from document text
func (a *ContentAnalyzer) AnalyzeDocument(ctx context.Context, filename, content string) (*domain.DocumentAnalysis, error) {
	out, err := a.llm.Complete(ctx, driven.CompletionRequest{
		System: analyzerSystemPrompt,
		Prompt: documentPrompt(filename, content),
		JSON:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("analyze document: %w", err)
	}
	return decodeDocumentAnalysis(out)
}

// ExtractRequest extracts the requested documents and actions from an email
func (a *ContentAnalyzer) ExtractRequest(ctx context.Context, email *domain.InboundEmail) (*domain.RequestAnalysis, error) {
	out, err := a.llm.Complete(ctx, driven.CompletionRequest{
		System: analyzerSystemPrompt,
		Prompt: requestPrompt(email),
		JSON:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("extract request: %w", err)
	}
	return decodeRequestAnalysis(out)
}

// DraftReply writes the reply body for a request given the matched documents
func (a *ContentAnalyzer) DraftReply(ctx context.Context, req *domain.EmailRequest, docs []*domain.Document) (string, error) {
	out, err := a.llm.Complete(ctx, driven.CompletionRequest{
		System: drafterSystemPrompt,
		Prompt: replyPrompt(req, docs),
	})
	if err != nil {
		return "", fmt.Errorf("draft reply: %w", err)
	}
	body := strings.TrimSpace(out)
	if body == "" {
		return "", fmt.Errorf("%w: empty reply", domain.ErrMalformedAnalysis)
	}
	return body, nil
}

type documentAnalysisJSON struct {
	Summary      string  `json:"summary"`
	ExpiryDate   *string `json:"expiryDate"`
	DocumentType string  `json:"documentType"`
	Language     string  `json:"language"`
}

func decodeDocumentAnalysis(raw string) (*domain.DocumentAnalysis, error) {
	var v documentAnalysisJSON
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedAnalysis, err)
	}
	if strings.TrimSpace(v.Summary) == "" {
		return nil, fmt.Errorf("%w: missing summary", domain.ErrMalformedAnalysis)
	}

	analysis := &domain.DocumentAnalysis{
		Summary:      strings.TrimSpace(v.Summary),
		DocumentType: strings.TrimSpace(v.DocumentType),
		Language:     strings.TrimSpace(v.Language),
	}
	if v.ExpiryDate != nil {
		expiry, err := domain.ParseDate(*v.ExpiryDate)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedAnalysis, err)
		}
		analysis.ExpiryDate = expiry
	}
	return analysis, nil
}

type requestAnalysisJSON struct {
	RequestedDocuments []string `json:"requestedDocuments"`
	RequiredActions    []string `json:"requiredActions"`
	Language           string   `json:"language"`
	Urgency            string   `json:"urgency"`
}

func decodeRequestAnalysis(raw string) (*domain.RequestAnalysis, error) {
	var v requestAnalysisJSON
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedAnalysis, err)
	}

	urgency := domain.Urgency(strings.ToLower(strings.TrimSpace(v.Urgency)))
	if !urgency.IsValid() {
		return nil, fmt.Errorf("%w: urgency %q", domain.ErrMalformedAnalysis, v.Urgency)
	}

	return &domain.RequestAnalysis{
		RequestedDocuments: compactPhrases(v.RequestedDocuments),
		RequiredActions:    compactPhrases(v.RequiredActions),
		Language:           strings.TrimSpace(v.Language),
		Urgency:            urgency,
	}, nil
}

// compactPhrases trims entries and drops blank ones, keeping order
func compactPhrases(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// stripCodeFence removes a ```json fence some models wrap around JSON output
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
