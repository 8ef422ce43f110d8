// Package mail connects the intake and approval workflows to real mailboxes:
// IMAP for reading, go-message for parsing and composing, SMTP for sending.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
)

var (
	_ driven.MailSource  = (*IMAPSource)(nil)
	_ driven.MailSession = (*imapSession)(nil)
)

// Security selects how a mail connection is encrypted
type Security string

const (
	SecurityTLS      Security = "tls"
	SecuritySTARTTLS Security = "starttls"
	SecurityNone     Security = "none"
)

// IMAPConfig holds inbox connection settings
type IMAPConfig struct {
	Host               string
	Port               int
	Username           string
	Password           string
	Security           Security
	Mailbox            string
	InsecureSkipVerify bool
	Timeout            time.Duration
	// FetchBuffer is how many fetched messages may wait for Next
	FetchBuffer int
	Logger      *slog.Logger
}

// DefaultIMAPConfig returns settings for an implicit-TLS INBOX connection
func DefaultIMAPConfig() IMAPConfig {
	return IMAPConfig{
		Port:        993,
		Security:    SecurityTLS,
		Mailbox:     "INBOX",
		Timeout:     30 * time.Second,
		FetchBuffer: 10,
	}
}

// IMAPSource opens sessions against an IMAP mailbox
type IMAPSource struct {
	cfg    IMAPConfig
	logger *slog.Logger
}

// NewIMAPSource creates an IMAP mail source
func NewIMAPSource(cfg IMAPConfig) (*IMAPSource, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("%w: imap host is required", domain.ErrInvalidInput)
	}
	defaults := DefaultIMAPConfig()
	if cfg.Port == 0 {
		cfg.Port = defaults.Port
	}
	if cfg.Security == "" {
		cfg.Security = defaults.Security
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = defaults.Mailbox
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.FetchBuffer <= 0 {
		cfg.FetchBuffer = defaults.FetchBuffer
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &IMAPSource{cfg: cfg, logger: logger.With("component", "imap", "mailbox", cfg.Mailbox)}, nil
}

// Open connects, logs in and starts fetching every message in the mailbox.
// Messages are delivered one at a time through Next.
func (s *IMAPSource) Open(ctx context.Context) (driven.MailSession, error) {
	c, err := s.dial()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		_ = c.Terminate()
		return nil, err
	}

	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		_ = c.Terminate()
		return nil, fmt.Errorf("imap login: %w", err)
	}

	status, err := c.Select(s.cfg.Mailbox, true)
	if err != nil {
		_ = c.Logout()
		return nil, fmt.Errorf("select %s: %w", s.cfg.Mailbox, err)
	}

	sess := &imapSession{client: c, logger: s.logger}
	if status.Messages == 0 {
		sess.finished = true
		return sess, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddRange(1, status.Messages)
	sess.section = &imap.BodySectionName{Peek: true}
	sess.messages = make(chan *imap.Message, s.cfg.FetchBuffer)
	sess.done = make(chan error, 1)
	go func() {
		sess.done <- c.Fetch(seqset, []imap.FetchItem{imap.FetchUid, sess.section.FetchItem()}, sess.messages)
	}()

	s.logger.Debug("fetching mailbox", "messages", status.Messages)
	return sess, nil
}

func (s *IMAPSource) dial() (*client.Client, error) {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	dialer := &net.Dialer{Timeout: s.cfg.Timeout}
	tlsConfig := &tls.Config{ServerName: s.cfg.Host, InsecureSkipVerify: s.cfg.InsecureSkipVerify}

	var (
		c   *client.Client
		err error
	)
	switch s.cfg.Security {
	case SecurityTLS:
		c, err = client.DialWithDialerTLS(dialer, addr, tlsConfig)
	case SecuritySTARTTLS, SecurityNone:
		c, err = client.DialWithDialer(dialer, addr)
	default:
		return nil, fmt.Errorf("%w: unknown imap security %q", domain.ErrInvalidInput, s.cfg.Security)
	}
	if err != nil {
		return nil, fmt.Errorf("imap dial %s: %w", addr, err)
	}
	c.Timeout = s.cfg.Timeout

	if s.cfg.Security == SecuritySTARTTLS {
		if err := c.StartTLS(tlsConfig); err != nil {
			_ = c.Terminate()
			return nil, fmt.Errorf("imap starttls: %w", err)
		}
	}
	return c, nil
}

// imapSession yields the messages of one FETCH 1:* in sequence order
type imapSession struct {
	client   *client.Client
	section  *imap.BodySectionName
	messages chan *imap.Message
	done     chan error
	logger   *slog.Logger

	mu       sync.Mutex
	finished bool
	closed   bool
}

// Next returns the next message or io.EOF once the mailbox is exhausted
func (s *imapSession) Next(ctx context.Context) (*domain.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("imap session closed")
	}
	if s.finished {
		return nil, io.EOF
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case msg, ok := <-s.messages:
			if !ok {
				s.finished = true
				if err := <-s.done; err != nil {
					return nil, fmt.Errorf("imap fetch: %w", err)
				}
				return nil, io.EOF
			}
			body := msg.GetBody(s.section)
			if body == nil {
				s.logger.Warn("message without body", "seq", msg.SeqNum)
				continue
			}
			data, err := io.ReadAll(body)
			if err != nil {
				return nil, fmt.Errorf("read message %d: %w", msg.SeqNum, err)
			}
			return &domain.RawMessage{SeqNum: msg.SeqNum, Data: data}, nil
		}
	}
}

// Close logs out after a drained fetch, or drops the connection mid-fetch
func (s *imapSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	if s.finished || s.messages == nil {
		return s.client.Logout()
	}
	go func() {
		for range s.messages {
		}
	}()
	return s.client.Terminate()
}
