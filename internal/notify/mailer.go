// Package notify delivers ticket emails.  Three drivers are available:
// SMTP, the MailerSend HTTP API and a log-only driver for development.
package notify

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/iliyamo/event-ticketing/internal/config"
)

// Attachment is a file attached to a Message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Message is a single outgoing email.
type Message struct {
	To          string
	Subject     string
	HTML        string
	Text        string
	Attachments []Attachment
}

// Mailer sends messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns the Mailer selected by cfg.Driver.
func New(cfg config.MailConfig) (Mailer, error) {
	switch strings.ToLower(cfg.Driver) {
	case "smtp":
		return NewSMTPMailer(cfg), nil
	case "mailersend":
		if cfg.MailerSendAPIKey == "" {
			return nil, fmt.Errorf("notify: MAILERSEND_API_KEY is required for the mailersend driver")
		}
		return NewMailerSendMailer(cfg), nil
	case "", "log":
		return LogMailer{}, nil
	default:
		return nil, fmt.Errorf("notify: unknown mail driver %q", cfg.Driver)
	}
}

// LogMailer writes a line per message instead of sending it.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, msg Message) error {
	names := make([]string, 0, len(msg.Attachments))
	for _, a := range msg.Attachments {
		names = append(names, a.Filename)
	}
	log.Printf("notify: to=%s subject=%q attachments=%v", msg.To, msg.Subject, names)
	return nil
}
