package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/jobs"
	"github.com/zntrlhub/engage/internal/pkg/distlock"
)

type staticSegs struct {
	segs []domain.Segmentation
	err  error
}

func (s staticSegs) ListAllSegmentations(context.Context) ([]domain.Segmentation, error) {
	return s.segs, s.err
}

type staticAccounts []uuid.UUID

func (a staticAccounts) ListConnectedAccounts(context.Context) ([]uuid.UUID, error) {
	return a, nil
}

func newTestReconciler(t *testing.T, segs SegmentationLister, accounts ConnectedAccountLister) (*Reconciler, *jobs.MemoryQueue, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	q := jobs.NewMemoryQueue()
	r := NewReconciler(nil, segs, accounts, jobs.NewClient(q))
	r.SetRedisClient(rdb)
	return r, q, rdb
}

func TestReconciler_RunOnce_FansOut(t *testing.T) {
	shopA, shopB := uuid.New(), uuid.New()
	segs := staticSegs{segs: []domain.Segmentation{
		{ID: uuid.New(), AccountID: shopA},
		{ID: uuid.New(), AccountID: shopA},
		{ID: uuid.New(), AccountID: shopB},
	}}
	r, q, _ := newTestReconciler(t, segs, staticAccounts{shopB})

	res, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Ran)
	assert.Equal(t, 3, res.Segmentations)
	assert.Equal(t, 1, res.Accounts)

	reconciles := q.Pending(jobs.KindReconcileSegmentation)
	require.Len(t, reconciles, 3)
	bySeg := map[uuid.UUID]uuid.UUID{}
	for _, j := range reconciles {
		var p jobs.ReconcileSegmentation
		require.NoError(t, j.Decode(&p))
		bySeg[p.SegmentationID] = j.AccountID
	}
	for _, s := range segs.segs {
		assert.Equal(t, s.AccountID, bySeg[s.ID], "job carries the segmentation's account")
	}

	refresh := q.Pending(jobs.KindRefreshTemplates)
	require.Len(t, refresh, 1)
	assert.Equal(t, shopB, refresh[0].AccountID)
}

func TestReconciler_SkipsWhenLockHeld(t *testing.T) {
	r, q, rdb := newTestReconciler(t, staticSegs{segs: []domain.Segmentation{{ID: uuid.New(), AccountID: uuid.New()}}}, staticAccounts{})

	other := distlock.NewRedisLock(rdb, reconcilerLockKey, time.Minute)
	ok, err := other.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	res, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Ran)
	assert.Empty(t, q.Jobs())

	require.NoError(t, other.Release(context.Background()))
	res, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Ran)
	assert.Len(t, q.Jobs(), 1)
}

func TestReconciler_ListError(t *testing.T) {
	boom := errors.New("db down")
	r, q, _ := newTestReconciler(t, staticSegs{err: boom}, staticAccounts{uuid.New()})

	res, err := r.RunOnce(context.Background())
	require.ErrorIs(t, err, boom)
	assert.True(t, res.Ran)
	assert.Empty(t, q.Jobs())

	// The lock is released even when the tick fails.
	r.segs = staticSegs{}
	res, err = r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Ran)
}

func TestReconciler_StartStop(t *testing.T) {
	r, q, _ := newTestReconciler(t, staticSegs{segs: []domain.Segmentation{{ID: uuid.New(), AccountID: uuid.New()}}}, staticAccounts{})
	r.SetInterval(time.Hour)

	require.NoError(t, r.Start())
	assert.Error(t, r.Start())
	assert.Eventually(t, func() bool { return len(q.Jobs()) == 1 }, time.Second, 5*time.Millisecond, "first tick runs at start")
	r.Stop()
	r.Stop()
}
