package mail

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
	"github.com/custodia-labs/docdesk/internal/extractors"
)

// Ensure Parser implements MailParser
var _ driven.MailParser = (*Parser)(nil)

// maxBodyBytes caps how much of a text part is read
const maxBodyBytes = 1 << 20

// Parser decodes RFC 5322 messages.
// The body is the first text/plain part, falling back to the first
// text/html part rendered as text.
type Parser struct {
	// Now stamps messages that carry no Date header
	Now func() time.Time
}

// NewParser creates a parser using the wall clock
func NewParser() *Parser {
	return &Parser{Now: time.Now}
}

// Parse decodes a raw message
func (p *Parser) Parse(raw []byte) (*domain.InboundEmail, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("%w: parse message: %v", domain.ErrInvalidInput, err)
	}
	defer mr.Close()

	h := mr.Header
	email := &domain.InboundEmail{
		MessageID: messageID(h),
		From:      sender(h),
	}
	if subject, err := h.Subject(); err == nil {
		email.Subject = subject
	} else {
		email.Subject = h.Get("Subject")
	}
	if date, err := h.Date(); err == nil && !date.IsZero() {
		email.ReceivedAt = date
	} else if p.Now != nil {
		email.ReceivedAt = p.Now()
	}

	var plain, html string
	for plain == "" {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return nil, fmt.Errorf("%w: read part: %v", domain.ErrInvalidInput, err)
		}
		if part == nil {
			continue
		}
		inline, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, err := inline.ContentType()
		if err != nil {
			contentType = "text/plain"
		}

		switch contentType {
		case "text/plain":
			text, err := readText(part.Body)
			if err != nil {
				return nil, err
			}
			plain = strings.TrimSpace(text)
		case "text/html":
			if html != "" {
				continue
			}
			markup, err := readText(part.Body)
			if err != nil {
				return nil, err
			}
			if html, err = extractors.HTMLToText(markup); err != nil {
				return nil, fmt.Errorf("render html body: %w", err)
			}
		}
	}

	if plain != "" {
		email.Body = plain
	} else {
		email.Body = html
	}
	return email, nil
}

func readText(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return strings.ReplaceAll(string(data), "\r\n", "\n"), nil
}

// messageID returns the Message-ID in angle brackets, or "" when absent
func messageID(h mail.Header) string {
	if id, err := h.MessageID(); err == nil && id != "" {
		return "<" + id + ">"
	}
	return strings.TrimSpace(h.Get("Message-Id"))
}

// sender returns the bare address of the first From mailbox
func sender(h mail.Header) string {
	if list, err := h.AddressList("From"); err == nil && len(list) > 0 {
		return list[0].Address
	}
	raw := h.Get("From")
	if decoded, err := new(mime.WordDecoder).DecodeHeader(raw); err == nil {
		raw = decoded
	}
	return strings.TrimSpace(raw)
}
