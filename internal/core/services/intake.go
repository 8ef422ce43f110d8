package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
	"github.com/custodia-labs/docdesk/internal/core/ports/driving"
)

var _ driving.IntakeService = (*IntakeEngine)(nil)

// IntakeEngine turns inbox messages into stored requests with drafted replies.
type IntakeEngine struct {
	source    driven.MailSource
	parser    driven.MailParser
	requests  driven.RequestStore
	responses driven.ResponseStore
	analyzer  *ContentAnalyzer
	matcher   *Matcher
	drafter   *Drafter
	lock      driven.DistributedLock
	lockTTL   time.Duration
	now       func() time.Time
	logger    *slog.Logger
}

// IntakeEngineConfig holds dependencies for IntakeEngine.
type IntakeEngineConfig struct {
	Source    driven.MailSource
	Parser    driven.MailParser
	Requests  driven.RequestStore
	Responses driven.ResponseStore
	Documents driven.DocumentStore
	Analyzer  *ContentAnalyzer
	Lock      driven.DistributedLock // Optional: prevents overlapping runs
	LockTTL   time.Duration
	Now       func() time.Time
	Logger    *slog.Logger
}

// NewIntakeEngine creates a new intake engine.
func NewIntakeEngine(cfg IntakeEngineConfig) *IntakeEngine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &IntakeEngine{
		source:    cfg.Source,
		parser:    cfg.Parser,
		requests:  cfg.Requests,
		responses: cfg.Responses,
		analyzer:  cfg.Analyzer,
		matcher:   NewMatcher(cfg.Documents, now),
		drafter:   NewDrafter(cfg.Analyzer, cfg.Responses, now),
		lock:      cfg.Lock,
		lockTTL:   cfg.LockTTL,
		now:       now,
		logger:    logger.With("component", "intake"),
	}
}

// ProcessIncoming reads every message of the inbox in sequence order.
// Each message is stored and drafted before the next one is fetched.
func (e *IntakeEngine) ProcessIncoming(ctx context.Context) (*domain.IntakeResult, error) {
	start := time.Now()
	result := &domain.IntakeResult{}

	release, err := acquireRunLock(ctx, e.lock, lockIntake, e.lockTTL, e.logger)
	if err != nil {
		return nil, err
	}
	defer release()

	e.logger.Info("starting intake")

	if err := e.consume(ctx, &result.Stats); err != nil {
		result.Error = err.Error()
		result.Finish(start)
		e.logger.Error("intake aborted", "error", err)
		return result, err
	}

	result.Finish(start)
	e.logger.Info("intake finished",
		"fetched", result.Stats.MessagesFetched,
		"duplicates", result.Stats.Duplicates,
		"requests", result.Stats.RequestsCreated,
		"drafts", result.Stats.DraftsCreated,
		"draft_failures", result.Stats.DraftFailures,
		"errors", result.Stats.Errors,
		"duration", result.Duration,
	)
	return result, nil
}

func (e *IntakeEngine) consume(ctx context.Context, stats *domain.IntakeStats) error {
	session, err := e.source.Open(ctx)
	if err != nil {
		return fmt.Errorf("open mailbox: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			e.logger.Warn("failed to close mail session", "error", err)
		}
	}()

	for {
		raw, err := session.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("fetch message: %w", err)
		}
		stats.MessagesFetched++

		if err := e.processMessage(ctx, raw, stats); err != nil {
			stats.Errors++
			e.logger.Warn("failed to process message", "seq", raw.SeqNum, "error", err)
		}
	}
}

func (e *IntakeEngine) processMessage(ctx context.Context, raw *domain.RawMessage, stats *domain.IntakeStats) error {
	email, err := e.parser.Parse(raw.Data)
	if err != nil {
		return fmt.Errorf("parse: %w", err)
	}
	email.MessageID = strings.TrimSpace(email.MessageID)
	if email.MessageID == "" {
		return fmt.Errorf("parse: %w: missing message id", domain.ErrInvalidInput)
	}

	_, err = e.requests.GetByMessageID(ctx, email.MessageID)
	if err == nil {
		stats.Duplicates++
		return nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("lookup %s: %w", email.MessageID, err)
	}

	analysis, err := e.analyzer.ExtractRequest(ctx, email)
	if err != nil {
		return fmt.Errorf("message %s: %w", email.MessageID, err)
	}

	req := domain.NewEmailRequest(email, analysis, e.now())
	if err := e.requests.Insert(ctx, req); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Another run stored it between lookup and insert
			stats.Duplicates++
			return nil
		}
		return fmt.Errorf("save %s: %w", email.MessageID, err)
	}
	stats.RequestsCreated++

	if _, err := e.draftFor(ctx, req); err != nil {
		stats.DraftFailures++
		e.logger.Warn("drafting failed, request left pending",
			"message_id", req.MessageID,
			"request_id", req.ID,
			"error", err,
		)
		return nil
	}
	stats.DraftsCreated++
	return nil
}

// draftFor matches, drafts and marks req processed
func (e *IntakeEngine) draftFor(ctx context.Context, req *domain.EmailRequest) (*domain.EmailResponse, error) {
	if req.Analysis == nil {
		return nil, fmt.Errorf("%w: request %d has no analysis", domain.ErrMalformedAnalysis, req.ID)
	}
	matched, err := e.matcher.Match(ctx, req.Analysis.RequestedDocuments)
	if err != nil {
		return nil, err
	}
	resp, err := e.drafter.Draft(ctx, req, matched)
	if err != nil {
		return nil, err
	}
	if err := e.requests.MarkProcessed(ctx, req.ID, e.now()); err != nil {
		return nil, fmt.Errorf("mark processed: %w", err)
	}
	return resp, nil
}

// RetryPending drafts replies for pending requests using their stored
// analysis. A request that already has a response is only marked processed.
func (e *IntakeEngine) RetryPending(ctx context.Context) (*domain.RetryResult, error) {
	release, err := acquireRunLock(ctx, e.lock, lockIntake, e.lockTTL, e.logger)
	if err != nil {
		return nil, err
	}
	defer release()

	pending, err := e.requests.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending requests: %w", err)
	}

	result := &domain.RetryResult{Pending: len(pending)}
	for _, req := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		_, err := e.responses.GetByRequest(ctx, req.ID)
		switch {
		case err == nil:
			if err := e.requests.MarkProcessed(ctx, req.ID, e.now()); err != nil {
				result.Failed++
				e.logger.Warn("failed to mark request processed", "request_id", req.ID, "error", err)
				continue
			}
			result.Repaired++
		case errors.Is(err, domain.ErrNotFound):
			if _, err := e.draftFor(ctx, req); err != nil {
				result.Failed++
				e.logger.Warn("retry drafting failed", "request_id", req.ID, "error", err)
				continue
			}
			result.Drafted++
		default:
			result.Failed++
			e.logger.Warn("failed to look up response", "request_id", req.ID, "error", err)
		}
	}

	e.logger.Info("draft retry finished",
		"pending", result.Pending,
		"drafted", result.Drafted,
		"repaired", result.Repaired,
		"failed", result.Failed,
	)
	return result, nil
}
