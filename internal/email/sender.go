package email

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/smtp"

	"github.com/myloveankyy/xkey-auction-sub000/internal/config"
)

// Sender delivers one fully composed message (headers and body, see Compose).
type Sender interface {
	Send(ctx context.Context, to []string, subject string, rawMessage []byte) error
}

var errNoRecipients = errors.New("email has no recipients")

// SMTPSender delivers through the configured relay with PLAIN auth.
type SMTPSender struct {
	from string
	auth smtp.Auth
	addr string
}

// NewSMTPSender falls back to a LoggingSender when no SMTP host is configured,
// which is the normal development setup.
func NewSMTPSender(cfg *config.Config) Sender {
	if cfg.SmtpHost == "" {
		log.Println("SMTP host not configured, lead alerts will only be logged.")
		return &LoggingSender{from: cfg.SmtpFromAddress}
	}
	return &SMTPSender{
		from: cfg.SmtpFromAddress,
		auth: smtp.PlainAuth("", cfg.SmtpUsername, cfg.SmtpPassword, cfg.SmtpHost),
		addr: fmt.Sprintf("%s:%d", cfg.SmtpHost, cfg.SmtpPort),
	}
}

func (s *SMTPSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	if len(to) == 0 {
		return errNoRecipients
	}
	// net/smtp has no context support; at least skip tasks that were already cancelled.
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := smtp.SendMail(s.addr, s.auth, s.from, to, rawMessage); err != nil {
		return fmt.Errorf("smtp delivery to %v failed: %w", to, err)
	}
	log.Printf("Email sent via SMTP to %v (Subject: %s)", to, subject)
	return nil
}

// LoggingSender writes the message to the process log instead of delivering it.
type LoggingSender struct {
	from string
}

func (s *LoggingSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	if len(to) == 0 {
		return errNoRecipients
	}
	body := string(rawMessage)
	templateID := ""
	if header, parsed, err := Parse(rawMessage); err == nil {
		body = parsed
		templateID = header.Get(TemplateHeader)
	}
	log.Printf("Email (not sent) from %s to %v [%s] %q:\n%s", s.from, to, templateID, subject, body)
	return nil
}
