package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven/mocks"
)

var testNow = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

const (
	docAnalysisJSON       = `{"summary":"Certificate of insurance for the fleet.","expiryDate":"2026-06-30","documentType":"certificate","language":"en"}`
	requestAnalysisOutput = `{"requestedDocuments":["certificate of insurance"],"requiredActions":[],"language":"en","urgency":"medium"}`
	replyText             = "Dear customer,\n\nplease find the requested documents attached.\n\nKind regards"
)

// routedLLM answers each prompt kind with its own canned output
type routedLLM struct {
	*mocks.MockLLMService
	docCalls, requestCalls, replyCalls int
}

func newRoutedLLM(doc, request, reply string) *routedLLM {
	r := &routedLLM{MockLLMService: mocks.NewMockLLMService()}
	r.CompleteFn = func(req driven.CompletionRequest) (string, error) {
		switch {
		case strings.HasPrefix(req.Prompt, "Analyze this document"):
			r.docCalls++
			return doc, nil
		case strings.HasPrefix(req.Prompt, "Analyze this email"):
			r.requestCalls++
			return request, nil
		default:
			r.replyCalls++
			if reply == "" {
				return "", fmt.Errorf("model unavailable")
			}
			return reply, nil
		}
	}
	return r
}

func pdfFile(id, name string) domain.RemoteFile {
	return domain.RemoteFile{ID: id, Name: name, WebURL: "https://example.sharepoint.com/docs/" + name}
}

func datePtr(s string) *time.Time {
	t, err := domain.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return t
}
