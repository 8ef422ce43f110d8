package mocks

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
)

var (
	_ driven.MailSource     = (*MockMailSource)(nil)
	_ driven.MailSession    = (*MockMailSession)(nil)
	_ driven.MailParser     = (*MockMailParser)(nil)
	_ driven.MailDispatcher = (*MockMailDispatcher)(nil)
)

// MockMailSource opens sessions over a fixed message list
type MockMailSource struct {
	mu       sync.Mutex
	Messages []*domain.RawMessage
	OpenErr  error
	// FailAfter makes Next return NextErr after this many messages (0 = never)
	FailAfter int
	NextErr   error

	Sessions []*MockMailSession
}

// NewMockMailSource creates a source delivering msgs
func NewMockMailSource(msgs ...*domain.RawMessage) *MockMailSource {
	return &MockMailSource{Messages: msgs}
}

func (m *MockMailSource) Open(ctx context.Context) (driven.MailSession, error) {
	if m.OpenErr != nil {
		return nil, m.OpenErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := &MockMailSession{
		messages:  append([]*domain.RawMessage(nil), m.Messages...),
		failAfter: m.FailAfter,
		nextErr:   m.NextErr,
	}
	m.Sessions = append(m.Sessions, s)
	return s, nil
}

// MockMailSession yields messages from memory
type MockMailSession struct {
	mu        sync.Mutex
	messages  []*domain.RawMessage
	pos       int
	failAfter int
	nextErr   error
	closed    bool
}

func (s *MockMailSession) Next(ctx context.Context) (*domain.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("session closed")
	}
	if s.failAfter > 0 && s.pos >= s.failAfter {
		return nil, s.nextErr
	}
	if s.pos >= len(s.messages) {
		return nil, io.EOF
	}
	msg := s.messages[s.pos]
	s.pos++
	return msg, nil
}

func (s *MockMailSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called
func (s *MockMailSession) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// MockMailParser maps raw payloads to pre-built emails
type MockMailParser struct {
	mu     sync.RWMutex
	parsed map[string]*domain.InboundEmail
}

// NewMockMailParser creates an empty parser
func NewMockMailParser() *MockMailParser {
	return &MockMailParser{parsed: make(map[string]*domain.InboundEmail)}
}

// Register associates raw with the email Parse should return for it
func (m *MockMailParser) Register(raw []byte, email *domain.InboundEmail) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parsed[string(raw)] = email
}

func (m *MockMailParser) Parse(raw []byte) (*domain.InboundEmail, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	email, ok := m.parsed[string(raw)]
	if !ok {
		return nil, errors.New("unparseable message")
	}
	c := *email
	return &c, nil
}

// MockMailDispatcher records sent messages
type MockMailDispatcher struct {
	mu   sync.Mutex
	Sent []*domain.OutboundEmail

	SendFn func(msg *domain.OutboundEmail) error
}

// NewMockMailDispatcher creates a recording dispatcher
func NewMockMailDispatcher() *MockMailDispatcher {
	return &MockMailDispatcher{}
}

func (m *MockMailDispatcher) Send(ctx context.Context, msg *domain.OutboundEmail) error {
	if m.SendFn != nil {
		if err := m.SendFn(msg); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, msg)
	return nil
}

// SentCount returns how many messages were dispatched
func (m *MockMailDispatcher) SentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Sent)
}
