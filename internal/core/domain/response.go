package domain

import (
	"fmt"
	"time"
)

// ResponseStatus is the lifecycle state of a drafted reply
type ResponseStatus string

const (
	ResponseStatusDraft    ResponseStatus = "draft"
	ResponseStatusApproved ResponseStatus = "approved"
	ResponseStatusSent     ResponseStatus = "sent"
)

// CanTransitionTo reports whether next directly follows s.
// The only legal moves are draft -> approved and approved -> sent.
func (s ResponseStatus) CanTransitionTo(next ResponseStatus) bool {
	switch s {
	case ResponseStatusDraft:
		return next == ResponseStatusApproved
	case ResponseStatusApproved:
		return next == ResponseStatusSent
	default:
		return false
	}
}

// IsValid reports whether s is a known status
func (s ResponseStatus) IsValid() bool {
	switch s {
	case ResponseStatusDraft, ResponseStatusApproved, ResponseStatusSent:
		return true
	}
	return false
}

// EmailResponse is a reply drafted for an EmailRequest
type EmailResponse struct {
	ID                int64          `json:"id"`
	RequestID         int64          `json:"request_id"`
	DraftSubject      string         `json:"draft_subject"`
	DraftBody         string         `json:"draft_body"`
	AttachedDocuments []string       `json:"attached_documents"`
	Status            ResponseStatus `json:"status"`
	ApprovedAt        *time.Time     `json:"approved_at,omitempty"`
	SentAt            *time.Time     `json:"sent_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

// ReplySubject derives the reply subject from the original subject
func ReplySubject(subject string) string {
	return "Re: " + subject
}

// NewDraftResponse creates a response in draft state
func NewDraftResponse(req *EmailRequest, body string, attachments []string, now time.Time) *EmailResponse {
	if attachments == nil {
		attachments = []string{}
	}
	return &EmailResponse{
		RequestID:         req.ID,
		DraftSubject:      ReplySubject(req.Subject),
		DraftBody:         body,
		AttachedDocuments: attachments,
		Status:            ResponseStatusDraft,
		CreatedAt:         now,
	}
}

// EditBody replaces the draft body. Only drafts can be edited.
func (r *EmailResponse) EditBody(body string) error {
	if r.Status != ResponseStatusDraft {
		return fmt.Errorf("%w: cannot edit response in %s state", ErrInvalidTransition, r.Status)
	}
	r.DraftBody = body
	return nil
}

// Approve moves a draft to approved
func (r *EmailResponse) Approve(now time.Time) error {
	if err := r.transition(ResponseStatusApproved); err != nil {
		return err
	}
	r.ApprovedAt = &now
	return nil
}

// MarkSent moves an approved response to sent. The sent timestamp is never
// earlier than the approval timestamp.
func (r *EmailResponse) MarkSent(now time.Time) error {
	if err := r.transition(ResponseStatusSent); err != nil {
		return err
	}
	if r.ApprovedAt != nil && now.Before(*r.ApprovedAt) {
		now = *r.ApprovedAt
	}
	r.SentAt = &now
	return nil
}

func (r *EmailResponse) transition(next ResponseStatus) error {
	if !r.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, next)
	}
	r.Status = next
	return nil
}
