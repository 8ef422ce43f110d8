package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/docdesk/internal/core/domain"
)

// maxAnalyzedChars bounds how much extracted text is sent for document analysis
const maxAnalyzedChars = 3000

const analyzerSystemPrompt = "You extract structured metadata for a document desk. " +
	"Answer with a single JSON object and nothing else."

const drafterSystemPrompt = "You write professional email replies on behalf of a document desk. " +
	"Answer with the reply body only, without a subject line."

func documentPrompt(filename, content string) string {
	truncated := truncateRunes(content, maxAnalyzedChars)
	if len(truncated) < len(content) {
		truncated += "..."
	}

	var b strings.Builder
	b.WriteString("Analyze this document and extract:\n")
	b.WriteString("1. A one-sentence summary of what the document is\n")
	b.WriteString("2. The expiry date if one is stated (format YYYY-MM-DD, or null)\n")
	b.WriteString("3. The document type (certificate, license, contract, ...)\n")
	b.WriteString("4. The language of the document\n\n")
	fmt.Fprintf(&b, "Document name: %s\n", filename)
	fmt.Fprintf(&b, "Content: %s\n\n", truncated)
	b.WriteString(`Respond in JSON: {"summary": "", "expiryDate": null or "YYYY-MM-DD", "documentType": "", "language": ""}`)
	return b.String()
}

func requestPrompt(email *domain.InboundEmail) string {
	var b strings.Builder
	b.WriteString("Analyze this email and extract the documents it requests.\n\n")
	fmt.Fprintf(&b, "From: %s\n", email.From)
	fmt.Fprintf(&b, "Subject: %s\n", email.Subject)
	fmt.Fprintf(&b, "Body: %s\n\n", email.Body)
	b.WriteString("Extract:\n")
	b.WriteString("1. Which documents are requested (be specific, one short phrase each)\n")
	b.WriteString("2. Which actions need to be taken (translation, certification, ...)\n")
	b.WriteString("3. The language of the email\n")
	b.WriteString("4. The urgency (low, medium or high)\n\n")
	b.WriteString(`Respond in JSON: {"requestedDocuments": ["doc1"], "requiredActions": ["action1"], "language": "en", "urgency": "medium"}`)
	return b.String()
}

func replyPrompt(req *domain.EmailRequest, docs []*domain.Document) string {
	analysis := req.Analysis
	if analysis == nil {
		analysis = &domain.RequestAnalysis{}
	}
	language := analysis.Language
	if language == "" {
		language = "the language of the original email"
	}

	var b strings.Builder
	b.WriteString("Write a professional email reply to this document request.\n\n")
	fmt.Fprintf(&b, "Original email:\n%s\n\n", req.Body)
	b.WriteString("Analysis:\n")
	fmt.Fprintf(&b, "- Requested documents: %s\n", strings.Join(analysis.RequestedDocuments, ", "))
	fmt.Fprintf(&b, "- Required actions: %s\n\n", strings.Join(analysis.RequiredActions, ", "))
	b.WriteString("Attached documents:\n")
	if len(docs) == 0 {
		b.WriteString("(none)\n")
	}
	for _, doc := range docs {
		fmt.Fprintf(&b, "- %s: %s\n", doc.Filename, doc.Summary)
	}
	fmt.Fprintf(&b, "\nWrite the reply in %s. The reply must:\n", language)
	b.WriteString("1. Acknowledge the request\n")
	b.WriteString("2. List the attached documents\n")
	b.WriteString("3. Mention any requested documents that are not available\n")
	b.WriteString("4. Stay polite and professional\n")
	return b.String()
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
