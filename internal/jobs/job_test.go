package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/tenant"
)

func TestNew_RequiresTenant(t *testing.T) {
	_, err := New(KindSendMessage, tenant.Context{}, SendMessage{}, time.Now())
	assert.ErrorIs(t, err, tenant.ErrMissingTenant)
}

func TestDecode_FailureIsPermanent(t *testing.T) {
	j := Job{Kind: KindSendMessage, Payload: []byte(`{"message_id": 7}`)}
	var p SendMessage
	err := j.Decode(&p)
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
}

func TestPermanent(t *testing.T) {
	base := errors.New("boom")
	wrapped := fmt.Errorf("handler: %w", Permanent(base))

	assert.True(t, IsPermanent(wrapped))
	assert.ErrorIs(t, wrapped, base)
	assert.False(t, IsPermanent(base))
	assert.Nil(t, Permanent(nil))
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 30*time.Second, RetryDelay(0))
	assert.Equal(t, 30*time.Second, RetryDelay(1))
	assert.Equal(t, time.Minute, RetryDelay(2))
	assert.Equal(t, 4*time.Minute, RetryDelay(4))
	assert.Equal(t, time.Hour, RetryDelay(20))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	called := false
	r.Register(KindRefreshTemplates, HandlerFunc(func(context.Context, tenant.Context, Job) error {
		called = true
		return nil
	}))

	h, err := r.Lookup(KindRefreshTemplates)
	require.NoError(t, err)
	require.NoError(t, h.Handle(context.Background(), tenant.New(uuid.New()), Job{}))
	assert.True(t, called)

	_, err = r.Lookup(KindSendMessage)
	assert.ErrorIs(t, err, ErrNoHandler)
}

func TestClient_EnqueueSetsEta(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	q := NewMemoryQueue()
	c := NewClient(q).WithClock(func() time.Time { return now })
	tc := tenant.New(uuid.New())
	msg, visitor := uuid.New(), uuid.New()

	require.NoError(t, c.EnqueueSend(context.Background(), tc, msg, visitor, 5*time.Minute))
	require.NoError(t, c.EnqueueChannelEvent(context.Background(), tc, domain.ChannelEvent{EventType: domain.ChannelRead, WhatsAppMessageID: "wamid.1"}))

	sends := q.Pending(KindSendMessage)
	require.Len(t, sends, 1)
	assert.Equal(t, now.Add(5*time.Minute), sends[0].RunAt)
	assert.Equal(t, tc.AccountID, sends[0].AccountID)

	var p SendMessage
	require.NoError(t, sends[0].Decode(&p))
	assert.Equal(t, msg, p.MessageID)
	assert.Equal(t, visitor, p.VisitorID)

	events := q.Pending(KindChannelEvent)
	require.Len(t, events, 1)
	assert.Equal(t, now, events[0].RunAt)
}

func TestClient_EnqueueSendDeduplicates(t *testing.T) {
	q := NewMemoryQueue()
	c := NewClient(q)
	tc := tenant.New(uuid.New())
	msg, visitor := uuid.New(), uuid.New()

	require.NoError(t, c.EnqueueSend(context.Background(), tc, msg, visitor, time.Minute))
	err := c.EnqueueSend(context.Background(), tc, msg, visitor, time.Minute)
	assert.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, c.EnqueueSend(context.Background(), tc, msg, uuid.New(), time.Minute))
	assert.Len(t, q.Pending(KindSendMessage), 2)

	// Other kinds carry no key.
	require.NoError(t, c.EnqueueReconcile(context.Background(), tc, msg))
	require.NoError(t, c.EnqueueReconcile(context.Background(), tc, msg))
	assert.Len(t, q.Pending(KindReconcileSegmentation), 2)
}

func TestMemoryQueue_ClaimAndRetry(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	q := NewMemoryQueue().WithClock(func() time.Time { return now })
	tc := tenant.New(uuid.New())

	due, _ := New(KindSendMessage, tc, SendMessage{}, now.Add(-time.Second))
	later, _ := New(KindSendMessage, tc, SendMessage{}, now.Add(time.Hour))
	require.NoError(t, q.Enqueue(ctx, due))
	require.NoError(t, q.Enqueue(ctx, later))

	claimed, err := q.Claim(ctx, "w", 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1, "only jobs at or after eta are claimable")
	assert.Equal(t, due.ID, claimed[0].ID)
	assert.Equal(t, 1, claimed[0].Attempts)

	again, _ := q.Claim(ctx, "w", 10)
	assert.Empty(t, again, "claimed job must not be handed out twice")

	require.NoError(t, q.Fail(ctx, claimed[0], errors.New("503"), now))
	claimed, _ = q.Claim(ctx, "w", 10)
	require.Len(t, claimed, 1)
	assert.Equal(t, 2, claimed[0].Attempts)

	require.NoError(t, q.Fail(ctx, claimed[0], errors.New("503"), now))
	claimed, _ = q.Claim(ctx, "w", 10)
	require.Len(t, claimed, 1)
	require.NoError(t, q.Fail(ctx, claimed[0], errors.New("503"), now))

	var status Status
	for _, j := range q.Jobs() {
		if j.ID == due.ID {
			status = j.Status
		}
	}
	assert.Equal(t, StatusDeadLetter, status)
}
