package email

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"opalpixel/invoicing/internal/config"
)

const mockEmailTTL = 15 * time.Minute

// RedisSender stores emails in Redis instead of sending them, so tests and
// local setups can read them back.
type RedisSender struct {
	client *redis.Client
	cfg    *config.Config
	logger *zap.Logger
}

func NewRedisSender(client *redis.Client, cfg *config.Config, logger *zap.Logger) *RedisSender {
	return &RedisSender{client: client, cfg: cfg, logger: logger}
}

// MockEmailKey is where RedisSender keeps the latest message of a kind for a recipient.
func MockEmailKey(to, subject string) string {
	return MockEmailKindKey(to, messageKind(subject))
}

// MockEmailKindKey is MockEmailKey for a known kind ("receipt" or "other").
func MockEmailKindKey(to, kind string) string {
	return fmt.Sprintf("mockemail:%s:%s", strings.ToLower(strings.TrimSpace(to)), kind)
}

func messageKind(subject string) string {
	switch {
	case strings.HasPrefix(subject, "Receipt "):
		return "receipt"
	default:
		return "other"
	}
}

func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	primaryTo := ""
	if len(to) > 0 {
		primaryTo = to[0]
	}

	data, err := json.Marshal(map[string]string{
		"to":      strings.Join(to, ", "),
		"from":    s.cfg.SmtpFromAddress,
		"subject": subject,
		"body":    string(rawMessage),
		"sent_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email data: %w", err)
	}

	key := MockEmailKey(primaryTo, subject)
	if err := s.client.Set(ctx, key, data, mockEmailTTL).Err(); err != nil {
		return fmt.Errorf("failed to store email in Redis key '%s': %w", key, err)
	}
	s.logger.Debug("mock email stored", zap.String("key", key), zap.String("subject", subject))
	return nil
}
