package delivery_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zntrlhub/engage/internal/campaign"
	"github.com/zntrlhub/engage/internal/delivery"
	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/jobs"
	"github.com/zntrlhub/engage/internal/repository"
	"github.com/zntrlhub/engage/internal/tenant"
)

var fixedNow = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

type memMessages struct {
	mu   sync.Mutex
	msgs map[uuid.UUID]domain.Message
}

func (m *memMessages) add(msg domain.Message) domain.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = uuid.New()
	m.msgs[msg.ID] = msg
	return msg
}

func (m *memMessages) GetMessage(_ context.Context, _ tenant.Context, id uuid.UUID) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.msgs[id]
	if !ok {
		return domain.Message{}, repository.ErrNotFound
	}
	return msg, nil
}

func (m *memMessages) ListByCampaign(_ context.Context, _ tenant.Context, campaignID uuid.UUID) ([]domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Message
	for _, msg := range m.msgs {
		if msg.CampaignID == campaignID {
			out = append(out, msg)
		}
	}
	return out, nil
}

type dispatchFixture struct {
	tc         tenant.Context
	messages   *memMessages
	queue      *jobs.MemoryQueue
	correlator *delivery.Correlator
	dispatcher *delivery.Dispatcher
	campaignID uuid.UUID
}

func newDispatchFixture() *dispatchFixture {
	f := &dispatchFixture{
		tc:         tenant.New(uuid.New()),
		messages:   &memMessages{msgs: map[uuid.UUID]domain.Message{}},
		queue:      jobs.NewMemoryQueue().WithClock(func() time.Time { return fixedNow }),
		correlator: delivery.NewCorrelator(newMemCorrelations()),
		campaignID: uuid.New(),
	}
	client := jobs.NewClient(f.queue).WithClock(func() time.Time { return fixedNow })
	scheduler := campaign.NewScheduler(f.messages, client)
	f.dispatcher = delivery.NewDispatcher(f.correlator, f.messages, scheduler)
	return f
}

func (f *dispatchFixture) message(parent *domain.Message, trigger domain.TriggerEvent, delay int) domain.Message {
	m := domain.Message{CampaignID: f.campaignID, Trigger: trigger, DelayMinutes: delay, Template: "tpl"}
	if parent != nil {
		id := parent.ID
		m.ParentID = &id
	}
	return f.messages.add(m)
}

func delivered(id string) domain.ChannelEvent {
	return domain.ChannelEvent{EventType: domain.ChannelDelivered, WhatsAppMessageID: id}
}

func TestDispatch_HeadNodeIgnoresDelivered(t *testing.T) {
	f := newDispatchFixture()
	head := f.message(nil, domain.TriggerHead, 1)
	f.message(&head, domain.TriggerOnDelivered, 5)
	visitor := uuid.New()
	require.NoError(t, f.correlator.Record(context.Background(), f.tc, "wamid.head", head.ID, visitor))

	n, err := f.dispatcher.Dispatch(context.Background(), f.tc, delivered("wamid.head"))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.queue.Jobs())
}

func TestDispatch_OnDeliveredSchedulesChild(t *testing.T) {
	f := newDispatchFixture()
	head := f.message(nil, domain.TriggerHead, 1)
	m := f.message(&head, domain.TriggerOnDelivered, 1)
	m2 := f.message(&m, domain.TriggerOnDelivered, 45)
	f.message(&m, domain.TriggerOnRead, 10)
	visitor := uuid.New()
	require.NoError(t, f.correlator.Record(context.Background(), f.tc, "wamid.m", m.ID, visitor))

	n, err := f.dispatcher.Dispatch(context.Background(), f.tc, delivered("wamid.m"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pending := f.queue.Pending(jobs.KindSendMessage)
	require.Len(t, pending, 1)
	var p jobs.SendMessage
	require.NoError(t, pending[0].Decode(&p))
	assert.Equal(t, m2.ID, p.MessageID)
	assert.Equal(t, visitor, p.VisitorID)
	assert.Equal(t, f.tc.AccountID, pending[0].AccountID)
	assert.WithinDuration(t, fixedNow.Add(45*time.Minute), pending[0].RunAt, time.Second)
}

func TestDispatch_UnknownExternalID(t *testing.T) {
	f := newDispatchFixture()
	f.message(nil, domain.TriggerHead, 1)

	n, err := f.dispatcher.Dispatch(context.Background(), f.tc, delivered("wamid.never-sent"))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.queue.Jobs())
}

func TestDispatch_DiscardsUnsupportedAndStale(t *testing.T) {
	f := newDispatchFixture()
	head := f.message(nil, domain.TriggerHead, 1)
	m := f.message(&head, domain.TriggerOnRead, 1)
	require.NoError(t, f.correlator.Record(context.Background(), f.tc, "wamid.r", m.ID, uuid.New()))

	n, err := f.dispatcher.Dispatch(context.Background(), f.tc, domain.ChannelEvent{EventType: "templateMessageSent", WhatsAppMessageID: "wamid.r"})
	require.NoError(t, err)
	assert.Zero(t, n)

	delete(f.messages.msgs, m.ID)
	n, err = f.dispatcher.Dispatch(context.Background(), f.tc, domain.ChannelEvent{EventType: domain.ChannelRead, WhatsAppMessageID: "wamid.r"})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, f.queue.Jobs())
}

func TestDispatch_IsolatesTenants(t *testing.T) {
	f := newDispatchFixture()
	head := f.message(nil, domain.TriggerHead, 1)
	m := f.message(&head, domain.TriggerOnDelivered, 1)
	f.message(&m, domain.TriggerOnDelivered, 1)
	require.NoError(t, f.correlator.Record(context.Background(), f.tc, "wamid.x", m.ID, uuid.New()))

	n, err := f.dispatcher.Dispatch(context.Background(), tenant.New(uuid.New()), delivered("wamid.x"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDispatcherHandle(t *testing.T) {
	f := newDispatchFixture()
	head := f.message(nil, domain.TriggerHead, 1)
	m := f.message(&head, domain.TriggerOnReplied, 1)
	f.message(&m, domain.TriggerOnReplied, 2)
	require.NoError(t, f.correlator.Record(context.Background(), f.tc, "wamid.rep", m.ID, uuid.New()))

	job, err := jobs.New(jobs.KindChannelEvent, f.tc, jobs.ChannelEvent{
		Event: domain.ChannelEvent{EventType: domain.ChannelReplied, WhatsAppMessageID: "wamid.rep"},
	}, fixedNow)
	require.NoError(t, err)
	require.NoError(t, f.dispatcher.Handle(context.Background(), f.tc, job))
	assert.Len(t, f.queue.Pending(jobs.KindSendMessage), 1)
}

func TestDispatch_RedeliveredEventSchedulesChildOnce(t *testing.T) {
	f := newDispatchFixture()
	head := f.message(nil, domain.TriggerHead, 1)
	child := f.message(&head, domain.TriggerOnDelivered, 5)
	f.message(&child, domain.TriggerOnDelivered, 5)
	visitor := uuid.New()
	require.NoError(t, f.correlator.Record(context.Background(), f.tc, "wamid.dup", child.ID, visitor))

	n, err := f.dispatcher.Dispatch(context.Background(), f.tc, delivered("wamid.dup"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.dispatcher.Dispatch(context.Background(), f.tc, delivered("wamid.dup"))
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, f.queue.Pending(jobs.KindSendMessage), 1)
}
