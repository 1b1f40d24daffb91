// Package notify delivers reminder messages over email, Telegram, or the log.
package notify

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"lendingdesk/internal/reminder"
)

// SMTPConfig holds the mail server settings
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender sends reminders as plain-text email
type SMTPSender struct {
	config SMTPConfig
	logger *zap.Logger
}

// NewSMTPSender validates the config and creates a sender
func NewSMTPSender(config SMTPConfig, logger *zap.Logger) (*SMTPSender, error) {
	if config.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if config.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}
	if config.Port == 0 {
		config.Port = 587
	}
	return &SMTPSender{config: config, logger: logger}, nil
}

func (s *SMTPSender) buildMessage(msg reminder.Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(s.config.From); err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Body)
	return m, nil
}

func (s *SMTPSender) client() (*mail.Client, error) {
	options := []mail.Option{
		mail.WithPort(s.config.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if s.config.Username != "" {
		options = append(options,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.config.Username),
			mail.WithPassword(s.config.Password),
		)
	}
	return mail.NewClient(s.config.Host, options...)
}

// Send delivers msg through the configured SMTP server
func (s *SMTPSender) Send(ctx context.Context, msg reminder.Message) error {
	m, err := s.buildMessage(msg)
	if err != nil {
		return err
	}
	c, err := s.client()
	if err != nil {
		return fmt.Errorf("failed to create mail client: %w", err)
	}
	if err := c.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}

	s.logger.Debug("Reminder email sent", zap.String("to", msg.To))
	return nil
}
