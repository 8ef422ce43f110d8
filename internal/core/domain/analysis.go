package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// AnalysisKind tags which analyzer contract produced an Analysis
type AnalysisKind string

const (
	AnalysisKindDocument AnalysisKind = "document"
	AnalysisKindRequest  AnalysisKind = "request"
)

// Urgency is the urgency classification of an inbound request
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// IsValid reports whether u is one of the known urgency levels
func (u Urgency) IsValid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return true
	}
	return false
}

// DocumentAnalysis is the metadata extracted from a document's text
type DocumentAnalysis struct {
	Summary      string     `json:"summary"`
	ExpiryDate   *time.Time `json:"expiry_date,omitempty"`
	DocumentType string     `json:"document_type"`
	Language     string     `json:"language"`
}

// RequestAnalysis is the structured extraction of an inbound email
type RequestAnalysis struct {
	RequestedDocuments []string `json:"requestedDocuments"`
	RequiredActions    []string `json:"requiredActions"`
	Language           string   `json:"language"`
	Urgency            Urgency  `json:"urgency"`
}

// Analysis is a tagged variant over the two analyzer result shapes.
// Exactly one of Document or Request is set, matching Kind.
type Analysis struct {
	Kind     AnalysisKind
	Document *DocumentAnalysis
	Request  *RequestAnalysis
}

// NewDocumentAnalysis wraps a document analysis
func NewDocumentAnalysis(a *DocumentAnalysis) Analysis {
	return Analysis{Kind: AnalysisKindDocument, Document: a}
}

// NewRequestAnalysis wraps a request analysis
func NewRequestAnalysis(a *RequestAnalysis) Analysis {
	return Analysis{Kind: AnalysisKindRequest, Request: a}
}

type analysisEnvelope struct {
	Kind     AnalysisKind      `json:"kind"`
	Document *DocumentAnalysis `json:"document,omitempty"`
	Request  *RequestAnalysis  `json:"request,omitempty"`
}

// MarshalJSON encodes the analysis with its kind tag
func (a Analysis) MarshalJSON() ([]byte, error) {
	if err := a.validate(); err != nil {
		return nil, err
	}
	return json.Marshal(analysisEnvelope(a))
}

// UnmarshalJSON decodes a tagged analysis and rejects mismatched payloads
func (a *Analysis) UnmarshalJSON(data []byte) error {
	var env analysisEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	decoded := Analysis(env)
	if err := decoded.validate(); err != nil {
		return err
	}
	*a = decoded
	return nil
}

func (a Analysis) validate() error {
	switch a.Kind {
	case AnalysisKindDocument:
		if a.Document == nil || a.Request != nil {
			return fmt.Errorf("%w: document analysis payload mismatch", ErrMalformedAnalysis)
		}
	case AnalysisKindRequest:
		if a.Request == nil || a.Document != nil {
			return fmt.Errorf("%w: request analysis payload mismatch", ErrMalformedAnalysis)
		}
	default:
		return fmt.Errorf("%w: unknown analysis kind %q", ErrMalformedAnalysis, a.Kind)
	}
	return nil
}
