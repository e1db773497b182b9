package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"

	"github.com/cockroachdb/errors"
	"github.com/domodwyer/mailyak/v3"
	"github.com/robertarktes/eventhub/internal/observability"
)

type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

type Message struct {
	To          string
	ToName      string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
}

type SMTPMailer struct {
	cfg SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) build(msg Message) *mailyak.MailYak {
	var auth smtp.Auth
	if m.cfg.User != "" {
		auth = smtp.PlainAuth("", m.cfg.User, m.cfg.Password, m.cfg.Host)
	}
	mail := mailyak.New(fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port), auth)
	mail.To(msg.To)
	mail.From(m.cfg.From)
	mail.FromName(m.cfg.FromName)
	mail.Subject(msg.Subject)
	mail.Plain().Set(msg.Text)
	mail.HTML().Set(msg.HTML)
	for _, a := range msg.Attachments {
		mail.AttachWithMimeType(a.Name, bytes.NewReader(a.Data), a.ContentType)
	}
	return mail
}

// Send delivers through SMTP. mailyak has no context support, so the send runs
// in a goroutine and ctx only bounds how long the caller waits.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	mail := m.build(msg)
	done := make(chan error, 1)
	go func() { done <- mail.Send() }()
	select {
	case err := <-done:
		return errors.Wrapf(err, "smtp send to %s", msg.To)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogMailer logs instead of sending. Used when MAIL_DRY_RUN is set.
type LogMailer struct {
	logger observability.Logger
}

func NewLogMailer(logger observability.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.WithFields(map[string]interface{}{
		"to":          msg.To,
		"subject":     msg.Subject,
		"attachments": len(msg.Attachments),
	}).Info("email (dry run)")
	return nil
}
