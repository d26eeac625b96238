package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/tenant"
)

// Queue accepts jobs for later execution.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
}

// Client enqueues typed jobs. It is the single scheduling entry point used
// for sends, event handling and reconciliation.
type Client struct {
	queue Queue
	now   func() time.Time
}

// NewClient wraps q.
func NewClient(q Queue) *Client {
	return &Client{queue: q, now: time.Now}
}

// WithClock overrides the time source. Tests use it to pin eta values.
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

// Now returns the client's current time.
func (c *Client) Now() time.Time { return c.now() }

func (c *Client) enqueue(ctx context.Context, kind Kind, tc tenant.Context, payload interface{}, runAt time.Time) error {
	return c.enqueueKeyed(ctx, kind, tc, payload, runAt, "")
}

func (c *Client) enqueueKeyed(ctx context.Context, kind Kind, tc tenant.Context, payload interface{}, runAt time.Time, key string) error {
	job, err := New(kind, tc, payload, runAt)
	if err != nil {
		return err
	}
	job.DedupKey = key
	if err := c.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueue %s: %w", kind, err)
	}
	return nil
}

// EnqueueSend schedules message for visitor after delay. A pair that was
// scheduled before returns ErrDuplicate.
func (c *Client) EnqueueSend(ctx context.Context, tc tenant.Context, messageID, visitorID uuid.UUID, delay time.Duration) error {
	return c.enqueueKeyed(ctx, KindSendMessage, tc, SendMessage{MessageID: messageID, VisitorID: visitorID},
		c.now().Add(delay), SendKey(messageID, visitorID))
}

// EnqueueChannelEvent queues an inbound event for immediate dispatch.
func (c *Client) EnqueueChannelEvent(ctx context.Context, tc tenant.Context, ev domain.ChannelEvent) error {
	now := c.now()
	return c.enqueue(ctx, KindChannelEvent, tc, ChannelEvent{Event: ev, ReceivedAt: now.UTC()}, now)
}

// EnqueueReconcile queues an immediate membership sync.
func (c *Client) EnqueueReconcile(ctx context.Context, tc tenant.Context, segmentationID uuid.UUID) error {
	return c.enqueue(ctx, KindReconcileSegmentation, tc, ReconcileSegmentation{SegmentationID: segmentationID}, c.now())
}

// EnqueueTemplateRefresh queues an immediate template refresh.
func (c *Client) EnqueueTemplateRefresh(ctx context.Context, tc tenant.Context) error {
	return c.enqueue(ctx, KindRefreshTemplates, tc, RefreshTemplates{}, c.now())
}
