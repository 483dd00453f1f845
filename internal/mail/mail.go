package mail

import (
	"bytes"
	"fmt"

	gomail "github.com/wneessen/go-mail"

	"github.com/diewo77/facturation/internal/config"
)

// Sender is the contract for sending transactional emails.
type Sender interface {
	Send(to, subject, html string) error
}

// Attachment is an optional document joined to a message.
type Attachment struct {
	Filename string
	Content  []byte
}

// AttachmentSender is implemented by senders that can join documents, e.g.
// the generated PDF of an invoice. Plain Senders fall back to body-only.
type AttachmentSender interface {
	Sender
	SendWithAttachment(to, subject, html string, att Attachment) error
}

// Memory records messages instead of sending them. Used by tests and as the
// default when mail is disabled in development.
type Memory struct {
	Outbox []Message
}

// Message is a single captured email.
type Message struct {
	To         string
	Subject    string
	HTML       string
	Attachment *Attachment
}

func (m *Memory) Send(to, subject, html string) error {
	m.Outbox = append(m.Outbox, Message{To: to, Subject: subject, HTML: html})
	return nil
}

func (m *Memory) SendWithAttachment(to, subject, html string, att Attachment) error {
	m.Outbox = append(m.Outbox, Message{To: to, Subject: subject, HTML: html, Attachment: &att})
	return nil
}

// Nop discards every message.
type Nop struct{}

func (Nop) Send(string, string, string) error { return nil }

// SMTP delivers through an authenticated SMTP relay.
type SMTP struct {
	cfg config.MailConfig
}

func NewSMTP(cfg config.MailConfig) *SMTP {
	return &SMTP{cfg: cfg}
}

func (s *SMTP) client() (*gomail.Client, error) {
	opts := []gomail.Option{
		gomail.WithPort(s.cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.cfg.User),
		gomail.WithPassword(s.cfg.Password),
	}
	c, err := gomail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	return c, nil
}

func (s *SMTP) compose(to, subject, html string) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return nil, fmt.Errorf("smtp from %q: %w", s.cfg.From, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("smtp to %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, html)
	return msg, nil
}

func (s *SMTP) Send(to, subject, html string) error {
	msg, err := s.compose(to, subject, html)
	if err != nil {
		return err
	}
	c, err := s.client()
	if err != nil {
		return err
	}
	return c.DialAndSend(msg)
}

func (s *SMTP) SendWithAttachment(to, subject, html string, att Attachment) error {
	msg, err := s.compose(to, subject, html)
	if err != nil {
		return err
	}
	if err := msg.AttachReader(att.Filename, bytes.NewReader(att.Content)); err != nil {
		return fmt.Errorf("smtp attach %q: %w", att.Filename, err)
	}
	c, err := s.client()
	if err != nil {
		return err
	}
	return c.DialAndSend(msg)
}

// New picks the sender matching the configuration: a real SMTP client when
// mail is enabled, otherwise an in-memory sink so the rest of the app never
// cares.
func New(cfg config.MailConfig) Sender {
	if cfg.Enabled {
		return NewSMTP(cfg)
	}
	return &Memory{}
}
