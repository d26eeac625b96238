// Package inbound accepts channel status events from the webhook and the
// optional SQS relay, drops redeliveries and queues the rest for the
// event dispatcher.
package inbound

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/pkg/logger"
	"github.com/zntrlhub/engage/internal/tenant"
)

// DefaultDedupTTL covers the channel's webhook retry window.
const DefaultDedupTTL = 24 * time.Hour

// ErrInvalidEvent is returned for payloads without a message id.
var ErrInvalidEvent = errors.New("inbound: event has no whatsappMessageId")

// EventEnqueuer queues a channel event for dispatch. *jobs.Client
// implements it.
type EventEnqueuer interface {
	EnqueueChannelEvent(ctx context.Context, tc tenant.Context, ev domain.ChannelEvent) error
}

// Outcome describes what Accept did with an event.
type Outcome string

const (
	Queued    Outcome = "queued"
	Duplicate Outcome = "duplicate"
	Ignored   Outcome = "ignored"
)

// Intake is the single entry point for inbound channel events.
type Intake struct {
	redis *redis.Client
	queue EventEnqueuer
	ttl   time.Duration
}

// NewIntake builds an intake. A nil redis client disables deduplication.
func NewIntake(rdb *redis.Client, queue EventEnqueuer, ttl time.Duration) *Intake {
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &Intake{redis: rdb, queue: queue, ttl: ttl}
}

func dedupKey(tc tenant.Context, ev domain.ChannelEvent) string {
	return fmt.Sprintf("inbound:%s:%s:%s", tc.AccountID, ev.EventType, ev.WhatsAppMessageID)
}

// Accept queues ev for the tenant unless the same event was accepted
// within the dedup window. Event types the campaign tree does not react
// to are acknowledged and dropped.
func (in *Intake) Accept(ctx context.Context, tc tenant.Context, ev domain.ChannelEvent) (Outcome, error) {
	if err := tc.Validate(); err != nil {
		return "", err
	}
	ev.WhatsAppMessageID = strings.TrimSpace(ev.WhatsAppMessageID)
	if _, ok := ev.EventType.TriggerEvent(); !ok {
		logger.Debug("inbound event ignored", "account_id", tc.String(), "event_type", string(ev.EventType))
		return Ignored, nil
	}
	if ev.WhatsAppMessageID == "" {
		return "", ErrInvalidEvent
	}

	key := dedupKey(tc, ev)
	if in.redis != nil {
		fresh, err := in.redis.SetNX(ctx, key, time.Now().UTC().Format(time.RFC3339), in.ttl).Result()
		if err != nil {
			return "", fmt.Errorf("inbound dedup: %w", err)
		}
		if !fresh {
			logger.Debug("inbound event duplicate", "account_id", tc.String(),
				"event_type", string(ev.EventType), "whatsapp_message_id", ev.WhatsAppMessageID)
			return Duplicate, nil
		}
	}

	if err := in.queue.EnqueueChannelEvent(ctx, tc, ev); err != nil {
		if in.redis != nil {
			// Let the channel's retry through.
			if delErr := in.redis.Del(ctx, key).Err(); delErr != nil {
				logger.Warn("inbound dedup release failed", "key", key, "error", delErr.Error())
			}
		}
		return "", err
	}
	return Queued, nil
}
