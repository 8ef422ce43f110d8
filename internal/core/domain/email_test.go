package domain

import (
	"testing"
	"time"
)

func TestNewEmailRequest(t *testing.T) {
	received := time.Date(2025, 2, 3, 8, 0, 0, 0, time.UTC)
	now := received.Add(time.Minute)
	msg := &InboundEmail{
		MessageID:  "<abc@example.com>",
		From:       "client@example.com",
		Subject:    "Documents",
		Body:       "Please send your insurance certificate",
		ReceivedAt: received,
	}
	analysis := &RequestAnalysis{RequestedDocuments: []string{"insurance certificate"}, Urgency: UrgencyLow}

	req := NewEmailRequest(msg, analysis, now)

	if req.MessageID != msg.MessageID || req.FromEmail != msg.From || req.Subject != msg.Subject {
		t.Errorf("unexpected request %+v", req)
	}
	if !req.IsPending() {
		t.Errorf("expected pending, got %s", req.Status)
	}
	if req.ProcessedAt != nil {
		t.Error("expected processed_at to be nil")
	}
	if !req.ReceivedAt.Equal(received) || !req.CreatedAt.Equal(now) {
		t.Errorf("unexpected timestamps %v %v", req.ReceivedAt, req.CreatedAt)
	}
	if req.Analysis != analysis {
		t.Error("expected analysis to be attached")
	}
}
