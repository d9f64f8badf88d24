// Package mail delivers the messages the auth flows need to send. The only
// caller today is the password-reset flow; delivery failures are the
// caller's problem to log, never to surface to end users.
package mail

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"

	"communityd/internal/observability"
)

// Sender delivers one message. html selects the body content type.
type Sender interface {
	Send(ctx context.Context, to, subject, body string, html bool) error
}

// SMTPConfig is the SMTP relay configuration. SMTPS selects an implicit TLS
// connection (port 465 style); otherwise STARTTLS is required.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	SMTPS    bool
}

// SMTPSender sends through an authenticated SMTP relay.
type SMTPSender struct {
	client *gomail.Client
	cfg    SMTPConfig
}

func NewSMTPSender(cfg SMTPConfig) (*SMTPSender, error) {
	options := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthLogin),
		gomail.WithUsername(cfg.Username),
		gomail.WithPassword(cfg.Password),
	}
	if cfg.SMTPS {
		options = append(options, gomail.WithSSLPort(false))
	} else {
		options = append(options, gomail.WithTLSPortPolicy(gomail.TLSMandatory))
	}

	client, err := gomail.NewClient(cfg.Host, options...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}

	return &SMTPSender{client: client, cfg: cfg}, nil
}

func (s *SMTPSender) Send(ctx context.Context, to, subject, body string, html bool) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
		return fmt.Errorf("set from address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set to address: %w", err)
	}
	msg.Subject(subject)
	if html {
		msg.SetBodyString(gomail.TypeTextHTML, body)
	} else {
		msg.SetBodyString(gomail.TypeTextPlain, body)
	}

	if err := s.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}

	return nil
}

// LogSender logs messages instead of delivering them. Used when SMTP is not
// configured, so development setups still show the reset links.
type LogSender struct {
	logger *observability.Logger
}

func NewLogSender(logger *observability.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, to, subject, body string, _ bool) error {
	s.logger.Info("mail_not_sent", map[string]any{
		"to":      to,
		"subject": subject,
		"body":    body,
	})
	return nil
}
