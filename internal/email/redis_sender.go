package email

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/myloveankyy/xkey-auction-sub000/internal/config"
)

const mockEmailTTL = 5 * time.Minute

// MockEmailKey is where RedisSender stores the latest email of a kind for one recipient.
func MockEmailKey(to, templateID string) string {
	return fmt.Sprintf("mockemail:%s:%s", to, templateID)
}

// RedisSender stores emails in Redis instead of delivering them, so end-to-end
// tests can read them back through the service API.
type RedisSender struct {
	client *redis.Client
	cfg    *config.Config
}

func NewRedisSender(client *redis.Client, cfg *config.Config) Sender {
	return &RedisSender{client: client, cfg: cfg}
}

func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	templateID := "unknown"
	body := string(rawMessage)
	if header, parsedBody, err := Parse(rawMessage); err == nil {
		body = parsedBody
		if id := header.Get(TemplateHeader); id != "" {
			templateID = id
		}
	}

	emailData := map[string]interface{}{
		"to":         strings.Join(to, ", "),
		"from":       s.cfg.SmtpFromAddress,
		"subject":    subject,
		"body":       body,
		"sent_at":    time.Now().UTC().Format(time.RFC3339Nano),
		"templateId": templateID,
	}
	jsonData, err := json.Marshal(emailData)
	if err != nil {
		return fmt.Errorf("failed to marshal email data: %w", err)
	}

	for _, rcpt := range to {
		key := MockEmailKey(rcpt, templateID)
		if err := s.client.Set(ctx, key, jsonData, mockEmailTTL).Err(); err != nil {
			return fmt.Errorf("failed to store email in Redis key '%s': %w", key, err)
		}
		log.Printf("Mock email stored in Redis key '%s' (TTL: %v, Subject: %s)", key, mockEmailTTL, subject)
	}
	return nil
}
