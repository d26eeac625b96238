package campaign_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zntrlhub/engage/internal/campaign"
	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/jobs"
	"github.com/zntrlhub/engage/internal/segmentation"
	"github.com/zntrlhub/engage/internal/tenant"
)

type fixedAudience []uuid.UUID

func (a fixedAudience) Resolve(context.Context, tenant.Context, string) ([]uuid.UUID, error) {
	return a, nil
}

func (m *memStore) InsertMemberships(_ context.Context, segID uuid.UUID, visitors []uuid.UUID) ([]domain.SegmentMembership, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var created []domain.SegmentMembership
	for _, v := range visitors {
		exists := false
		for _, have := range m.members[segID] {
			if have == v {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		m.members[segID] = append(m.members[segID], v)
		created = append(created, domain.SegmentMembership{ID: uuid.New(), VisitorID: v, SegmentationID: segID})
	}
	return created, nil
}

func newEnroller(h *harness, audience fixedAudience) (*campaign.Enroller, domain.Segmentation) {
	seg := domain.Segmentation{ID: h.camp.SegmentationID, AccountID: h.tc.AccountID, Name: "visitors", Query: "eq(page_name,pricing)"}
	h.store.segmentations[seg.ID] = seg
	syncer := segmentation.NewSyncer(audience, h.store)
	return campaign.NewEnroller(h.store, h.store, syncer, h.store, h.scheduler), seg
}

func TestReconcile_SchedulesHeadForNewMembers(t *testing.T) {
	h := newHarness(t)
	head := h.message(nil, domain.TriggerHead, 3)
	visitor := uuid.New()
	enroller, seg := newEnroller(h, fixedAudience{visitor})

	n, err := enroller.Reconcile(context.Background(), h.tc, seg.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	ok, _ := h.store.HasMember(context.Background(), seg.ID, visitor)
	assert.True(t, ok)

	pending := h.queue.Pending(jobs.KindSendMessage)
	require.Len(t, pending, 1)
	p := decodeSend(t, pending[0])
	assert.Equal(t, head.ID, p.MessageID)
	assert.Equal(t, visitor, p.VisitorID)
	assert.WithinDuration(t, fixedNow.Add(3*time.Minute), pending[0].RunAt, time.Second)

	// Unchanged audience: no new members, nothing scheduled.
	n, err = enroller.Reconcile(context.Background(), h.tc, seg.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, h.queue.Pending(jobs.KindSendMessage), 1)
}

// flakySends fails the enqueue calls numbered in failOn (1-based) and
// delegates the rest.
type flakySends struct {
	next   campaign.SendEnqueuer
	failOn map[int]bool
	calls  int
}

func (f *flakySends) EnqueueSend(ctx context.Context, tc tenant.Context, messageID, visitorID uuid.UUID, delay time.Duration) error {
	f.calls++
	if f.failOn[f.calls] {
		return errors.New("transient enqueue failure")
	}
	return f.next.EnqueueSend(ctx, tc, messageID, visitorID, delay)
}

func TestReconcile_RetryAfterEnqueueFailureSchedulesHead(t *testing.T) {
	h := newHarness(t)
	head := h.message(nil, domain.TriggerHead, 1)
	v1, v2 := uuid.New(), uuid.New()
	h.scheduler = campaign.NewScheduler(h.store, &flakySends{next: h.client, failOn: map[int]bool{1: true}})
	enroller, seg := newEnroller(h, fixedAudience{v1, v2})

	_, err := enroller.Reconcile(context.Background(), h.tc, seg.ID)
	require.Error(t, err)
	ok, _ := h.store.HasMember(context.Background(), seg.ID, v1)
	assert.True(t, ok, "membership is committed before scheduling")
	assert.Empty(t, h.queue.Jobs())

	n, err := enroller.Reconcile(context.Background(), h.tc, seg.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	pending := h.queue.Pending(jobs.KindSendMessage)
	require.Len(t, pending, 2)
	got := map[uuid.UUID]bool{}
	for _, j := range pending {
		p := decodeSend(t, j)
		assert.Equal(t, head.ID, p.MessageID)
		got[p.VisitorID] = true
	}
	assert.True(t, got[v1] && got[v2])

	n, err = enroller.Reconcile(context.Background(), h.tc, seg.ID)
	require.NoError(t, err)
	assert.Zero(t, n, "enrolled members are not rescheduled")
}

func TestReconcile_PartialFailureDoesNotDuplicateHead(t *testing.T) {
	h := newHarness(t)
	h.message(nil, domain.TriggerHead, 1)
	h.scheduler = campaign.NewScheduler(h.store, &flakySends{next: h.client, failOn: map[int]bool{2: true}})
	enroller, seg := newEnroller(h, fixedAudience{uuid.New(), uuid.New()})

	_, err := enroller.Reconcile(context.Background(), h.tc, seg.ID)
	require.Error(t, err)
	require.Len(t, h.queue.Pending(jobs.KindSendMessage), 1)

	n, err := enroller.Reconcile(context.Background(), h.tc, seg.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n, "only the visitor that failed is newly queued")
	assert.Len(t, h.queue.Pending(jobs.KindSendMessage), 2)
}

func TestReconcile_SkipsInactiveCampaigns(t *testing.T) {
	h := newHarness(t)
	h.message(nil, domain.TriggerHead, 1)
	c := h.camp
	c.State = domain.CampaignInactive
	h.store.campaigns[c.ID] = c
	enroller, seg := newEnroller(h, fixedAudience{uuid.New()})

	n, err := enroller.Reconcile(context.Background(), h.tc, seg.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, h.queue.Jobs())
}

func TestReconcile_DeletedSegmentation(t *testing.T) {
	h := newHarness(t)
	enroller, _ := newEnroller(h, fixedAudience{uuid.New()})

	n, err := enroller.Reconcile(context.Background(), h.tc, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestBootstrap_SchedulesExistingMembers(t *testing.T) {
	h := newHarness(t)
	enroller, seg := newEnroller(h, nil)
	v1, v2 := uuid.New(), uuid.New()
	h.store.addMember(seg.ID, v1)
	h.store.addMember(seg.ID, v2)

	n, err := enroller.Bootstrap(context.Background(), h.tc, h.camp)
	require.NoError(t, err)
	assert.Zero(t, n, "no head yet")

	h.message(nil, domain.TriggerHead, 1)
	n, err = enroller.Bootstrap(context.Background(), h.tc, h.camp)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestEnrollerHandle(t *testing.T) {
	h := newHarness(t)
	h.message(nil, domain.TriggerHead, 1)
	enroller, seg := newEnroller(h, fixedAudience{uuid.New(), uuid.New()})

	job, err := jobs.New(jobs.KindReconcileSegmentation, h.tc, jobs.ReconcileSegmentation{SegmentationID: seg.ID}, fixedNow)
	require.NoError(t, err)
	require.NoError(t, enroller.Handle(context.Background(), h.tc, job))
	assert.Len(t, h.queue.Pending(jobs.KindSendMessage), 2)
}
