package notify

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"

	"github.com/iliyamo/event-ticketing/internal/config"
	"github.com/mailersend/mailersend-go"
)

// MailerSendMailer sends through the MailerSend HTTP API.
type MailerSendMailer struct {
	client   *mailersend.Mailersend
	from     string
	fromName string
}

func NewMailerSendMailer(cfg config.MailConfig) *MailerSendMailer {
	return &MailerSendMailer{
		client:   mailersend.NewMailersend(cfg.MailerSendAPIKey),
		from:     cfg.From,
		fromName: cfg.FromName,
	}
}

func (m *MailerSendMailer) Send(ctx context.Context, msg Message) error {
	message := m.client.Email.NewMessage()
	message.SetFrom(mailersend.From{Name: m.fromName, Email: m.from})
	message.SetRecipients([]mailersend.Recipient{{Email: msg.To}})
	message.SetSubject(msg.Subject)
	message.SetHTML(msg.HTML)
	if msg.Text != "" {
		message.SetText(msg.Text)
	}
	for _, a := range msg.Attachments {
		message.AddAttachment(mailersend.Attachment{
			Content:     base64.StdEncoding.EncodeToString(a.Data),
			Filename:    a.Filename,
			Disposition: "attachment",
		})
	}

	res, err := m.client.Email.Send(ctx, message)
	if err != nil {
		return fmt.Errorf("mailersend send to %s: %w", msg.To, err)
	}
	log.Printf("notify: mailersend accepted message %s", res.Header.Get("X-Message-Id"))
	return nil
}
