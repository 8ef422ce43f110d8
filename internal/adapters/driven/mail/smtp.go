package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/custodia-labs/docdesk/internal/core/domain"
	"github.com/custodia-labs/docdesk/internal/core/ports/driven"
)

// Ensure Dispatcher implements MailDispatcher
var _ driven.MailDispatcher = (*Dispatcher)(nil)

// SMTPConfig holds outbound mail settings
type SMTPConfig struct {
	Host               string
	Port               int
	Username           string
	Password           string
	Security           Security
	InsecureSkipVerify bool
	// From is the sender address of every reply
	From     string
	FromName string
	Logger   *slog.Logger
}

// DefaultSMTPConfig returns settings for a STARTTLS submission port
func DefaultSMTPConfig() SMTPConfig {
	return SMTPConfig{
		Port:     587,
		Security: SecuritySTARTTLS,
	}
}

// Dispatcher sends replies over SMTP
type Dispatcher struct {
	cfg    SMTPConfig
	now    func() time.Time
	logger *slog.Logger
}

// NewDispatcher creates an SMTP dispatcher
func NewDispatcher(cfg SMTPConfig) (*Dispatcher, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("%w: smtp host is required", domain.ErrInvalidInput)
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("%w: smtp from address is required", domain.ErrInvalidInput)
	}
	defaults := DefaultSMTPConfig()
	if cfg.Port == 0 {
		cfg.Port = defaults.Port
	}
	if cfg.Security == "" {
		cfg.Security = defaults.Security
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{cfg: cfg, now: time.Now, logger: logger.With("component", "smtp")}, nil
}

// Send composes msg and submits it to the configured relay
func (d *Dispatcher) Send(ctx context.Context, msg *domain.OutboundEmail) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("%w: no recipients", domain.ErrInvalidInput)
	}

	var buf bytes.Buffer
	if err := d.compose(&buf, msg); err != nil {
		return fmt.Errorf("compose message: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c, err := d.dial()
	if err != nil {
		return err
	}
	defer c.Close()

	if d.cfg.Username != "" {
		if err := c.Auth(sasl.NewPlainClient("", d.cfg.Username, d.cfg.Password)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.SendMail(d.cfg.From, msg.To, &buf); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	if err := c.Quit(); err != nil {
		d.logger.Warn("smtp quit failed", "error", err)
	}

	d.logger.Info("message sent", "to", msg.To, "subject", msg.Subject, "attachments", len(msg.Attachments))
	return nil
}

func (d *Dispatcher) dial() (*smtp.Client, error) {
	addr := net.JoinHostPort(d.cfg.Host, strconv.Itoa(d.cfg.Port))
	tlsConfig := &tls.Config{ServerName: d.cfg.Host, InsecureSkipVerify: d.cfg.InsecureSkipVerify}

	var (
		c   *smtp.Client
		err error
	)
	switch d.cfg.Security {
	case SecurityTLS:
		c, err = smtp.DialTLS(addr, tlsConfig)
	case SecuritySTARTTLS:
		c, err = smtp.DialStartTLS(addr, tlsConfig)
	case SecurityNone:
		c, err = smtp.Dial(addr)
	default:
		return nil, fmt.Errorf("%w: unknown smtp security %q", domain.ErrInvalidInput, d.cfg.Security)
	}
	if err != nil {
		return nil, fmt.Errorf("smtp dial %s: %w", addr, err)
	}
	return c, nil
}

// compose writes msg as a MIME message. Replies without attachments are a
// single text part; otherwise a multipart/mixed with one part per file.
func (d *Dispatcher) compose(w io.Writer, msg *domain.OutboundEmail) error {
	var h mail.Header
	h.SetDate(d.now())
	h.SetAddressList("From", []*mail.Address{{Name: d.cfg.FromName, Address: d.cfg.From}})
	to := make([]*mail.Address, len(msg.To))
	for i, addr := range msg.To {
		to[i] = &mail.Address{Address: addr}
	}
	h.SetAddressList("To", to)
	h.SetSubject(msg.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return err
	}
	if msg.InReplyTo != "" {
		h.Set("In-Reply-To", msg.InReplyTo)
		h.Set("References", msg.InReplyTo)
	}

	if len(msg.Attachments) == 0 {
		h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
		body, err := mail.CreateSingleInlineWriter(w, h)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(body, msg.Body); err != nil {
			return err
		}
		return body.Close()
	}

	mw, err := mail.CreateWriter(w, h)
	if err != nil {
		return err
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return err
	}
	var th mail.InlineHeader
	th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	part, err := tw.CreatePart(th)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(part, msg.Body); err != nil {
		return err
	}
	if err := part.Close(); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}

	for _, att := range msg.Attachments {
		var ah mail.AttachmentHeader
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		ah.SetContentType(contentType, nil)
		ah.SetFilename(att.Filename)
		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			return err
		}
		if _, err := aw.Write(att.Data); err != nil {
			return err
		}
		if err := aw.Close(); err != nil {
			return err
		}
	}
	return mw.Close()
}
