package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	webhookClaimPrefix = "ledgerpro:webhook:claim:"

	DefaultClaimTTL = 2 * time.Minute
)

// WebhookGuard hands out short-lived claims so that concurrent deliveries of
// the same gateway event are processed by one request at a time. A claim is
// a hint only; the customer store version check stays authoritative.
type WebhookGuard struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

func NewWebhookGuard(client redis.Cmdable, ttl time.Duration, logger *zap.Logger) *WebhookGuard {
	if ttl <= 0 {
		ttl = DefaultClaimTTL
	}
	return &WebhookGuard{
		client: client,
		ttl:    ttl,
		logger: logger.Named("WebhookGuard"),
	}
}

// Claim returns true when the caller now owns the (event, paymentID) pair.
func (g *WebhookGuard) Claim(ctx context.Context, event, paymentID string) (bool, error) {
	ok, err := g.client.SetNX(ctx, claimKey(event, paymentID), time.Now().UTC().Format(time.RFC3339Nano), g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim webhook event: %w", err)
	}
	if !ok {
		g.logger.Debug("Webhook event already claimed", zap.String("event", event), zap.String("payment_id", paymentID))
	}
	return ok, nil
}

// Release drops a claim so a gateway retry can be processed again.
func (g *WebhookGuard) Release(ctx context.Context, event, paymentID string) error {
	if err := g.client.Del(ctx, claimKey(event, paymentID)).Err(); err != nil {
		return fmt.Errorf("failed to release webhook claim: %w", err)
	}
	return nil
}

func claimKey(event, paymentID string) string {
	return webhookClaimPrefix + event + ":" + paymentID
}
