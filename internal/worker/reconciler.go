package worker

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/pkg/distlock"
	"github.com/zntrlhub/engage/internal/tenant"
)

// =============================================================================
// PERIODIC RECONCILER
// =============================================================================
// On every tick one worker process, chosen by a distributed lock, fans out a
// reconcile_segmentation job per segmentation across all tenants and a
// refresh_templates job per connected account. The jobs do the work; the
// tick only enqueues.

const (
	DefaultReconcileInterval = 15 * time.Minute
	reconcilerLockKey        = "reconciler:tick"
)

// SegmentationLister lists every segmentation across tenants.
type SegmentationLister interface {
	ListAllSegmentations(ctx context.Context) ([]domain.Segmentation, error)
}

// ConnectedAccountLister lists accounts whose channel credentials passed
// their last probe.
type ConnectedAccountLister interface {
	ListConnectedAccounts(ctx context.Context) ([]uuid.UUID, error)
}

// ReconcileEnqueuer is the job client subset the reconciler uses.
type ReconcileEnqueuer interface {
	EnqueueReconcile(ctx context.Context, tc tenant.Context, segmentationID uuid.UUID) error
	EnqueueTemplateRefresh(ctx context.Context, tc tenant.Context) error
}

// TickResult summarises one reconciler tick.
type TickResult struct {
	Ran           bool
	Segmentations int
	Accounts      int
}

// Reconciler drives the periodic membership sync and template refresh.
type Reconciler struct {
	db          *sql.DB
	redisClient *redis.Client // optional; nil falls back to PG advisory locks
	segs        SegmentationLister
	accounts    ConnectedAccountLister
	queue       ReconcileEnqueuer
	interval    time.Duration

	ticks   int64
	skipped int64
	errors  int64

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewReconciler creates a reconciler ticking every DefaultReconcileInterval.
func NewReconciler(db *sql.DB, segs SegmentationLister, accounts ConnectedAccountLister, queue ReconcileEnqueuer) *Reconciler {
	return &Reconciler{
		db:       db,
		segs:     segs,
		accounts: accounts,
		queue:    queue,
		interval: DefaultReconcileInterval,
	}
}

// SetRedisClient switches the tick lock to Redis.
func (r *Reconciler) SetRedisClient(client *redis.Client) {
	r.redisClient = client
}

// SetInterval overrides the tick interval.
func (r *Reconciler) SetInterval(d time.Duration) {
	if d > 0 {
		r.interval = d
	}
}

// Start begins ticking. The first tick runs immediately.
func (r *Reconciler) Start() error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return fmt.Errorf("reconciler already running")
	}
	r.running = true
	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.mu.Unlock()

	log.Printf("[Reconciler] Starting with interval: %v", r.interval)
	r.wg.Add(1)
	go r.loop()
	return nil
}

// Stop ends the loop and waits for a tick in progress.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	log.Printf("[Reconciler] Stopping...")
	r.cancel()
	r.wg.Wait()
	log.Printf("[Reconciler] Stopped. Ticks: %d, Skipped: %d, Errors: %d",
		atomic.LoadInt64(&r.ticks), atomic.LoadInt64(&r.skipped), atomic.LoadInt64(&r.errors))
}

func (r *Reconciler) loop() {
	defer r.wg.Done()

	r.tick()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.tick()
		}
	}
}

func (r *Reconciler) tick() {
	ctx, cancel := context.WithTimeout(r.ctx, r.interval)
	defer cancel()
	if _, err := r.RunOnce(ctx); err != nil {
		atomic.AddInt64(&r.errors, 1)
		log.Printf("[Reconciler] tick error: %v", err)
	}
}

// RunOnce performs one tick if no other process holds the tick lock.
// Enqueue failures for individual items are logged and skipped; the next
// tick retries them.
func (r *Reconciler) RunOnce(ctx context.Context) (TickResult, error) {
	var res TickResult
	lock := distlock.NewLock(r.redisClient, r.db, reconcilerLockKey, r.interval)
	ran, err := distlock.WithLock(ctx, lock, func(ctx context.Context) error {
		segs, err := r.segs.ListAllSegmentations(ctx)
		if err != nil {
			return fmt.Errorf("list segmentations: %w", err)
		}
		for _, s := range segs {
			if err := r.queue.EnqueueReconcile(ctx, tenant.New(s.AccountID), s.ID); err != nil {
				log.Printf("[Reconciler] enqueue reconcile %s: %v", s.ID, err)
				continue
			}
			res.Segmentations++
		}

		accounts, err := r.accounts.ListConnectedAccounts(ctx)
		if err != nil {
			return fmt.Errorf("list connected accounts: %w", err)
		}
		for _, id := range accounts {
			if err := r.queue.EnqueueTemplateRefresh(ctx, tenant.New(id)); err != nil {
				log.Printf("[Reconciler] enqueue template refresh %s: %v", id, err)
				continue
			}
			res.Accounts++
		}
		return nil
	})
	res.Ran = ran
	if err != nil {
		return res, err
	}
	if !ran {
		atomic.AddInt64(&r.skipped, 1)
		log.Printf("[Reconciler] tick held by another worker")
		return res, nil
	}
	atomic.AddInt64(&r.ticks, 1)
	log.Printf("[Reconciler] queued %d segmentation syncs, %d template refreshes", res.Segmentations, res.Accounts)
	return res, nil
}
