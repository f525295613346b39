package mail

import (
	"errors"
	"fmt"

	"github.com/bazasystems/madaris/internal/config"
	mail "github.com/wneessen/go-mail"
)

// Sender delivers outbound mail. The auth flows depend on this interface so
// tests can capture messages instead of dialing SMTP.
type Sender interface {
	Send(to, subject, body string) error
}

// SMTPSender sends mail through a configured SMTP relay.
type SMTPSender struct {
	cfg config.SMTPConfig
}

// NewSMTPSender builds a Sender from SMTP settings. A nil Sender is
// returned when no host is configured.
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	if cfg.Host == "" {
		return nil
	}
	return &SMTPSender{cfg: cfg}
}

// Send delivers one plain-text message.
func (s *SMTPSender) Send(to, subject, body string) error {
	if s == nil {
		return errors.New("mail: smtp not configured")
	}

	msg := mail.NewMsg()
	if errFrom := msg.From(s.cfg.From); errFrom != nil {
		return fmt.Errorf("mail: from %s: %w", s.cfg.From, errFrom)
	}
	if errTo := msg.To(to); errTo != nil {
		return fmt.Errorf("mail: to %s: %w", to, errTo)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{mail.WithPort(s.cfg.Port)}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}
	client, errClient := mail.NewClient(s.cfg.Host, opts...)
	if errClient != nil {
		return fmt.Errorf("mail: client: %w", errClient)
	}
	return client.DialAndSend(msg)
}
