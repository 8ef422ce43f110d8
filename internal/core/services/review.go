package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
	"github.com/custodia-labs/docdesk/internal/core/ports/driving"
)

var _ driving.ReviewService = (*ReviewService)(nil)

const sendLockTTL = 2 * time.Minute

// ReviewService serves reviewer reads and advances responses through
// draft -> approved -> sent.
type ReviewService struct {
	requests   driven.RequestStore
	responses  driven.ResponseStore
	documents  driven.DocumentStore
	source     driven.DocumentSource
	dispatcher driven.MailDispatcher
	lock       driven.DistributedLock
	now        func() time.Time
	logger     *slog.Logger
}

// ReviewServiceConfig holds dependencies for ReviewService.
type ReviewServiceConfig struct {
	Requests   driven.RequestStore
	Responses  driven.ResponseStore
	Documents  driven.DocumentStore
	Source     driven.DocumentSource // attachment bytes are downloaded at send time
	Dispatcher driven.MailDispatcher // Optional: Send fails without one
	Lock       driven.DistributedLock
	Now        func() time.Time
	Logger     *slog.Logger
}

// NewReviewService creates a new review service.
func NewReviewService(cfg ReviewServiceConfig) *ReviewService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &ReviewService{
		requests:   cfg.Requests,
		responses:  cfg.Responses,
		documents:  cfg.Documents,
		source:     cfg.Source,
		dispatcher: cfg.Dispatcher,
		lock:       cfg.Lock,
		now:        now,
		logger:     logger.With("component", "review"),
	}
}

func (s *ReviewService) ListRequests(ctx context.Context, filter driven.RequestFilter) ([]*domain.EmailRequest, error) {
	return s.requests.List(ctx, filter)
}

func (s *ReviewService) GetRequest(ctx context.Context, id int64) (*domain.EmailRequest, error) {
	return s.requests.Get(ctx, id)
}

func (s *ReviewService) ListResponses(ctx context.Context, filter driven.ResponseFilter) ([]*domain.EmailResponse, error) {
	return s.responses.List(ctx, filter)
}

func (s *ReviewService) GetResponse(ctx context.Context, id int64) (*domain.EmailResponse, error) {
	return s.responses.Get(ctx, id)
}

func (s *ReviewService) GetResponseForRequest(ctx context.Context, requestID int64) (*domain.EmailResponse, error) {
	return s.responses.GetByRequest(ctx, requestID)
}

// EditDraft replaces the body of a draft
func (s *ReviewService) EditDraft(ctx context.Context, id int64, body string) (*domain.EmailResponse, error) {
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: body is empty", domain.ErrInvalidInput)
	}
	if err := s.responses.UpdateBody(ctx, id, body); err != nil {
		return nil, err
	}
	return s.responses.Get(ctx, id)
}

// Approve moves a draft to approved
func (s *ReviewService) Approve(ctx context.Context, id int64) (*domain.EmailResponse, error) {
	resp, err := s.responses.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := resp.Approve(s.now()); err != nil {
		return nil, err
	}
	if err := s.responses.UpdateStatus(ctx, resp, domain.ResponseStatusDraft); err != nil {
		return nil, err
	}
	s.logger.Info("response approved", "response_id", id)
	return resp, nil
}

// Send dispatches an approved response with its attachments and marks it sent.
func (s *ReviewService) Send(ctx context.Context, id int64) (*domain.EmailResponse, error) {
	if s.dispatcher == nil {
		return nil, fmt.Errorf("mail dispatcher: %w", domain.ErrServiceUnavailable)
	}

	release, err := acquireRunLock(ctx, s.lock, sendLockName(id), sendLockTTL, s.logger)
	if err != nil {
		return nil, err
	}
	defer release()

	resp, err := s.responses.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !resp.Status.CanTransitionTo(domain.ResponseStatusSent) {
		return nil, fmt.Errorf("%w: cannot send response in %s state", domain.ErrInvalidTransition, resp.Status)
	}

	req, err := s.requests.Get(ctx, resp.RequestID)
	if err != nil {
		return nil, fmt.Errorf("load request %d: %w", resp.RequestID, err)
	}

	attachments, err := s.loadAttachments(ctx, resp.AttachedDocuments)
	if err != nil {
		return nil, err
	}

	msg := &domain.OutboundEmail{
		To:          []string{req.FromEmail},
		Subject:     resp.DraftSubject,
		Body:        resp.DraftBody,
		InReplyTo:   req.MessageID,
		Attachments: attachments,
	}
	if err := s.dispatcher.Send(ctx, msg); err != nil {
		s.logger.Warn("dispatch failed, response stays approved", "response_id", id, "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrDispatchFailed, err)
	}

	if err := resp.MarkSent(s.now()); err != nil {
		return nil, err
	}
	if err := s.responses.UpdateStatus(ctx, resp, domain.ResponseStatusApproved); err != nil {
		s.logger.Error("response dispatched but status not saved", "response_id", id, "error", err)
		return nil, fmt.Errorf("mark sent: %w", err)
	}

	s.logger.Info("response sent", "response_id", id, "to", req.FromEmail, "attachments", len(attachments))
	return resp, nil
}

func (s *ReviewService) loadAttachments(ctx context.Context, ids []string) ([]domain.Attachment, error) {
	attachments := make([]domain.Attachment, 0, len(ids))
	for _, docID := range ids {
		doc, err := s.documents.Get(ctx, docID)
		if err != nil {
			return nil, fmt.Errorf("attachment %s: %w", docID, err)
		}
		data, err := s.source.Download(ctx, doc.SourceID)
		if err != nil {
			return nil, fmt.Errorf("download attachment %s: %w", doc.Filename, err)
		}
		attachments = append(attachments, domain.Attachment{
			Filename:    doc.Filename,
			ContentType: mimeTypeOf(domain.RemoteFile{Name: doc.Filename}),
			Data:        data,
		})
	}
	return attachments, nil
}
