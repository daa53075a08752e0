package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"

	"github.com/domodwyer/mailyak/v3"
	"github.com/iliyamo/event-ticketing/internal/config"
)

// SMTPMailer sends through an SMTP relay using mailyak.
type SMTPMailer struct {
	addr     string
	auth     smtp.Auth
	from     string
	fromName string
}

// NewSMTPMailer builds an SMTPMailer.  Authentication is skipped when no
// SMTP user is configured.
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPHost)
	}
	return &SMTPMailer{
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		auth:     auth,
		from:     cfg.From,
		fromName: cfg.FromName,
	}
}

// Send delivers msg.  mailyak has no context support, so ctx is only
// checked before dialing.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	mail := mailyak.New(m.addr, m.auth)
	mail.To(msg.To)
	mail.From(m.from)
	mail.FromName(m.fromName)
	mail.Subject(msg.Subject)
	mail.HTML().Set(msg.HTML)
	if msg.Text != "" {
		mail.Plain().Set(msg.Text)
	}
	for _, a := range msg.Attachments {
		if a.ContentType != "" {
			mail.AttachWithMimeType(a.Filename, bytes.NewReader(a.Data), a.ContentType)
		} else {
			mail.Attach(a.Filename, bytes.NewReader(a.Data))
		}
	}
	if err := mail.Send(); err != nil {
		return fmt.Errorf("smtp send to %s: %w", msg.To, err)
	}
	return nil
}
