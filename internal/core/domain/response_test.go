package domain

import (
	"errors"
	"testing"
	"time"
)

func TestResponseStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from ResponseStatus
		to   ResponseStatus
		want bool
	}{
		{ResponseStatusDraft, ResponseStatusApproved, true},
		{ResponseStatusApproved, ResponseStatusSent, true},
		{ResponseStatusDraft, ResponseStatusSent, false},
		{ResponseStatusDraft, ResponseStatusDraft, false},
		{ResponseStatusApproved, ResponseStatusDraft, false},
		{ResponseStatusApproved, ResponseStatusApproved, false},
		{ResponseStatusSent, ResponseStatusDraft, false},
		{ResponseStatusSent, ResponseStatusApproved, false},
		{ResponseStatusSent, ResponseStatusSent, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewDraftResponse(t *testing.T) {
	req := &EmailRequest{ID: 7, Subject: "Insurance certificate"}
	now := time.Now()

	resp := NewDraftResponse(req, "Dear customer", nil, now)

	if resp.RequestID != 7 {
		t.Errorf("expected request id 7, got %d", resp.RequestID)
	}
	if resp.DraftSubject != "Re: Insurance certificate" {
		t.Errorf("unexpected subject %q", resp.DraftSubject)
	}
	if resp.Status != ResponseStatusDraft {
		t.Errorf("expected draft, got %s", resp.Status)
	}
	if resp.AttachedDocuments == nil || len(resp.AttachedDocuments) != 0 {
		t.Errorf("expected empty attachment list, got %v", resp.AttachedDocuments)
	}
}

func TestEmailResponse_Lifecycle(t *testing.T) {
	resp := &EmailResponse{Status: ResponseStatusDraft}
	approvedAt := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

	if err := resp.EditBody("edited"); err != nil {
		t.Fatalf("edit draft: %v", err)
	}

	if err := resp.MarkSent(approvedAt); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition sending a draft, got %v", err)
	}
	if resp.Status != ResponseStatusDraft {
		t.Fatalf("status changed after rejected send: %s", resp.Status)
	}

	if err := resp.Approve(approvedAt); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if resp.ApprovedAt == nil || !resp.ApprovedAt.Equal(approvedAt) {
		t.Errorf("unexpected approved_at %v", resp.ApprovedAt)
	}

	if err := resp.EditBody("too late"); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected edit after approval to fail, got %v", err)
	}
	if resp.DraftBody != "edited" {
		t.Errorf("body changed after approval: %q", resp.DraftBody)
	}

	// clock skew: sent timestamp must not precede approval
	if err := resp.MarkSent(approvedAt.Add(-time.Minute)); err != nil {
		t.Fatalf("mark sent: %v", err)
	}
	if resp.SentAt.Before(*resp.ApprovedAt) {
		t.Errorf("sent_at %v before approved_at %v", resp.SentAt, resp.ApprovedAt)
	}

	if err := resp.Approve(time.Now()); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected sent to be terminal, got %v", err)
	}
}

func TestReplySubject(t *testing.T) {
	if got := ReplySubject("Docs please"); got != "Re: Docs please" {
		t.Errorf("unexpected subject %q", got)
	}
	if got := ReplySubject(""); got != "Re: " {
		t.Errorf("unexpected subject %q", got)
	}
}
