package domain

import "time"

// RequestStatus is the processing state of an inbound request
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "pending"
	RequestStatusProcessed RequestStatus = "processed"
)

// IsValid reports whether s is a known request status
func (s RequestStatus) IsValid() bool {
	return s == RequestStatusPending || s == RequestStatusProcessed
}

// EmailRequest is one inbound message asking for documents.
// MessageID is the natural key used for deduplication.
type EmailRequest struct {
	ID          int64            `json:"id"`
	MessageID   string           `json:"message_id"`
	FromEmail   string           `json:"from_email"`
	Subject     string           `json:"subject"`
	Body        string           `json:"body"`
	ReceivedAt  time.Time        `json:"received_at"`
	ProcessedAt *time.Time       `json:"processed_at,omitempty"`
	Status      RequestStatus    `json:"status"`
	Analysis    *RequestAnalysis `json:"ai_analysis,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

// NewEmailRequest creates a pending request from a parsed message and its analysis
func NewEmailRequest(msg *InboundEmail, analysis *RequestAnalysis, now time.Time) *EmailRequest {
	return &EmailRequest{
		MessageID:  msg.MessageID,
		FromEmail:  msg.From,
		Subject:    msg.Subject,
		Body:       msg.Body,
		ReceivedAt: msg.ReceivedAt,
		Status:     RequestStatusPending,
		Analysis:   analysis,
		CreatedAt:  now,
	}
}

// IsPending reports whether the request still awaits a drafted response
func (r *EmailRequest) IsPending() bool {
	return r.Status == RequestStatusPending
}

// RawMessage is an undecoded message delivered by a mail source
type RawMessage struct {
	SeqNum uint32
	Data   []byte
}

// InboundEmail is a parsed inbound message
type InboundEmail struct {
	MessageID  string    `json:"message_id"`
	From       string    `json:"from"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

// Attachment is a file attached to an outbound email
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// OutboundEmail is a message handed to the mail dispatcher
type OutboundEmail struct {
	To          []string
	Subject     string
	Body        string
	InReplyTo   string
	Attachments []Attachment
}
