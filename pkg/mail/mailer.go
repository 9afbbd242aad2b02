package mail

import (
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/dentalink/dentalink-api/pkg/config"
)

// Mailer delivers transactional email.
type Mailer interface {
	SendPasswordReset(to, otp string) error
}

// SMTPMailer sends mail through a configured SMTP relay.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPMailer constructs an SMTP-backed mailer.
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		from:   cfg.From,
	}
}

// SendPasswordReset emails the one-time reset code.
func (m *SMTPMailer) SendPasswordReset(to, otp string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", "Password reset code")
	msg.SetBody("text/plain", fmt.Sprintf(
		"Your password reset code is %s. It expires in 15 minutes.\n\nIf you did not request a reset, ignore this message.", otp))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send reset mail: %w", err)
	}
	return nil
}

// LogMailer writes the reset code to the application log instead of sending
// mail. Used in development when no SMTP relay is configured.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer constructs a log-only mailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

// SendPasswordReset logs the reset code.
func (m *LogMailer) SendPasswordReset(to, otp string) error {
	m.logger.Info("password reset code issued",
		zap.String("to", to),
		zap.String("otp", otp),
	)
	return nil
}
