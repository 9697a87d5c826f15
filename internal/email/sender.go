package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"opalpixel/invoicing/internal/config"
)

// Sender defines the interface for sending emails.
// The rawMessage parameter should contain the full email message, including headers and body, properly formatted.
type Sender interface {
	Send(ctx context.Context, to []string, subject string, rawMessage []byte) error
}

// NewSender picks the sender for the configuration: Redis (plus log) in mock
// mode, a logging sender without an SMTP host, SMTP otherwise.
func NewSender(cfg *config.Config, rdb *redis.Client, logger *zap.Logger) Sender {
	logging := &LoggingSender{cfg: cfg, logger: logger}
	if cfg.MockServices && rdb != nil {
		return NewCompositeSender(NewRedisSender(rdb, cfg, logger), logging)
	}
	if cfg.SmtpHost == "" {
		logger.Info("SMTP host not configured, using logging email sender")
		return logging
	}
	return NewSMTPSender(cfg, logger)
}

// BuildMessage renders a plain text message with the headers SMTP needs.
func BuildMessage(from string, to []string, subject, body string, date time.Time) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&sb, "From: %s\r\n", from)
	fmt.Fprintf(&sb, "Subject: %s\r\n", subject)
	sb.WriteString("Date: " + date.Format(time.RFC1123Z) + "\r\n")
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(strings.ReplaceAll(strings.TrimRight(body, "\r\n"), "\n", "\r\n"))
	sb.WriteString("\r\n")
	return []byte(sb.String())
}

// SMTPSender implements the Sender interface using Go's net/smtp package.
type SMTPSender struct {
	cfg    *config.Config
	auth   smtp.Auth
	addr   string
	logger *zap.Logger
}

func NewSMTPSender(cfg *config.Config, logger *zap.Logger) *SMTPSender {
	return &SMTPSender{
		cfg:    cfg,
		auth:   smtp.PlainAuth("", cfg.SmtpUsername, cfg.SmtpPassword, cfg.SmtpHost),
		addr:   fmt.Sprintf("%s:%d", cfg.SmtpHost, cfg.SmtpPort),
		logger: logger,
	}
}

// Send sends an email using SMTP.
func (s *SMTPSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	if err := smtp.SendMail(s.addr, s.auth, s.cfg.SmtpFromAddress, to, rawMessage); err != nil {
		return fmt.Errorf("smtp error: %w", err)
	}
	s.logger.Info("email sent", zap.Strings("to", to), zap.String("subject", subject))
	return nil
}

// LoggingSender only logs what it would have sent.
type LoggingSender struct {
	cfg    *config.Config
	logger *zap.Logger
}

func (s *LoggingSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	s.logger.Info("email (logged, not sent)",
		zap.Strings("to", to),
		zap.String("from", s.cfg.SmtpFromAddress),
		zap.String("subject", subject),
		zap.ByteString("message", rawMessage))
	return nil
}
