package driven

import (
	"context"

	"github.com/custodia-labs/docdesk/internal/core/domain"
)

// MailSource opens sessions against an inbox (IMAP)
type MailSource interface {
	// Open connects, authenticates and selects the inbox
	Open(ctx context.Context) (MailSession, error)
}

// MailSession is a lazy, finite, non-restartable sequence of raw messages.
type MailSession interface {
	// Next blocks until the next message is fetched.
	// Returns io.EOF once the sequence is exhausted.
	Next(ctx context.Context) (*domain.RawMessage, error)

	// Close ends the session. Safe to call before the sequence is drained.
	Close() error
}

// MailParser decodes raw RFC 5322 messages
type MailParser interface {
	Parse(raw []byte) (*domain.InboundEmail, error)
}

// MailDispatcher delivers outbound replies (SMTP)
type MailDispatcher interface {
	Send(ctx context.Context, msg *domain.OutboundEmail) error
}
