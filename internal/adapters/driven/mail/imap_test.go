package mail

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/emersion/go-imap/backend"
	"github.com/emersion/go-imap/backend/memory"
	"github.com/emersion/go-imap/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/docdesk/internal/core/domain"
)

// startIMAPServer serves the in-memory backend, whose INBOX starts with one
// message from contact@example.org
func startIMAPServer(t *testing.T) (backend.User, int) {
	t.Helper()
	be := memory.New()
	s := server.New(be)
	s.AllowInsecureAuth = true

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = s.Serve(l) }()
	t.Cleanup(func() { _ = s.Close() })

	user, err := be.Login(nil, "username", "password")
	require.NoError(t, err)
	return user, l.Addr().(*net.TCPAddr).Port
}

func appendMessage(t *testing.T, user backend.User, mailbox string, raw []byte) {
	t.Helper()
	mbox, err := user.GetMailbox(mailbox)
	require.NoError(t, err)
	require.NoError(t, mbox.CreateMessage(nil, time.Now(), bytes.NewBuffer(raw)))
}

func testIMAPSource(t *testing.T, port int, mailbox, password string) *IMAPSource {
	t.Helper()
	src, err := NewIMAPSource(IMAPConfig{
		Host:        "127.0.0.1",
		Port:        port,
		Username:    "username",
		Password:    password,
		Security:    SecurityNone,
		Mailbox:     mailbox,
		FetchBuffer: 1,
	})
	require.NoError(t, err)
	return src
}

func drain(t *testing.T, sess interface {
	Next(context.Context) (*domain.RawMessage, error)
}) []*domain.RawMessage {
	t.Helper()
	var out []*domain.RawMessage
	for {
		msg, err := sess.Next(context.Background())
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, msg)
	}
}

func TestNewIMAPSource_Defaults(t *testing.T) {
	_, err := NewIMAPSource(IMAPConfig{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	src, err := NewIMAPSource(IMAPConfig{Host: "imap.example.com"})
	require.NoError(t, err)
	assert.Equal(t, 993, src.cfg.Port)
	assert.Equal(t, SecurityTLS, src.cfg.Security)
	assert.Equal(t, "INBOX", src.cfg.Mailbox)
}

func TestIMAPSource_FetchesWholeInboxInOrder(t *testing.T) {
	user, port := startIMAPServer(t)
	appendMessage(t, user, "INBOX", crlf(
		"From: anna@example.com",
		"Subject: Documents please",
		"Message-ID: <req-2@example.com>",
		"",
		"Please send the trade license.",
	))
	appendMessage(t, user, "INBOX", crlf(
		"From: bob@example.com",
		"Subject: Certificate",
		"Message-ID: <req-3@example.com>",
		"",
		"Insurance certificate?",
	))

	sess, err := testIMAPSource(t, port, "", "password").Open(context.Background())
	require.NoError(t, err)
	defer sess.Close()

	msgs := drain(t, sess)
	require.Len(t, msgs, 3)
	for i, msg := range msgs {
		assert.Equal(t, uint32(i+1), msg.SeqNum)
	}
	assert.Contains(t, string(msgs[0].Data), "A little message, just for you")

	parser := NewParser()
	second, err := parser.Parse(msgs[1].Data)
	require.NoError(t, err)
	assert.Equal(t, "<req-2@example.com>", second.MessageID)
	assert.Equal(t, "Please send the trade license.", second.Body)

	// Exhausted sessions keep reporting EOF
	_, err = sess.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestIMAPSource_EmptyMailbox(t *testing.T) {
	user, port := startIMAPServer(t)
	require.NoError(t, user.CreateMailbox("Empty"))

	sess, err := testIMAPSource(t, port, "Empty", "password").Open(context.Background())
	require.NoError(t, err)
	defer sess.Close()

	_, err = sess.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestIMAPSource_CloseBeforeDrained(t *testing.T) {
	user, port := startIMAPServer(t)
	for i := 0; i < 5; i++ {
		appendMessage(t, user, "INBOX", crlf("From: a@example.com", "", "body"))
	}

	sess, err := testIMAPSource(t, port, "", "password").Open(context.Background())
	require.NoError(t, err)

	_, err = sess.Next(context.Background())
	require.NoError(t, err)
	_ = sess.Close()

	_, err = sess.Next(context.Background())
	assert.Error(t, err)
	assert.NoError(t, sess.Close(), "second close is a no-op")
}

func TestIMAPSource_CancelledNext(t *testing.T) {
	_, port := startIMAPServer(t)

	sess, err := testIMAPSource(t, port, "", "password").Open(context.Background())
	require.NoError(t, err)
	defer sess.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sess.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIMAPSource_Errors(t *testing.T) {
	_, port := startIMAPServer(t)

	_, err := testIMAPSource(t, port, "", "wrong").Open(context.Background())
	assert.Error(t, err)

	_, err = testIMAPSource(t, port, "Missing", "password").Open(context.Background())
	assert.Error(t, err)
}
