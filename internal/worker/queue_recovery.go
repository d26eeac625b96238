package worker

import (
	"context"
	"log"
	"time"
)

// =============================================================================
// QUEUE RECOVERY WORKER
// =============================================================================
// A worker that dies mid-job leaves its rows in 'claimed' forever. This
// worker requeues them once they are older than staleAge, dead-letters the
// ones out of attempts, and purges completed rows past the retention age.

const (
	DefaultRecoveryInterval = 2 * time.Minute
	// DefaultStaleAge must exceed the longest job timeout.
	DefaultStaleAge       = 5 * time.Minute
	DefaultCompletedAge   = 7 * 24 * time.Hour
	recoveryQueryDeadline = 30 * time.Second
)

// StaleRecoverer is the queue maintenance surface. *jobs.Store implements
// it.
type StaleRecoverer interface {
	RecoverStale(ctx context.Context, staleAge time.Duration) (requeued, dead int64, err error)
	PurgeCompleted(ctx context.Context, age time.Duration) (int64, error)
}

// QueueRecoveryWorker periodically reclaims abandoned jobs.
type QueueRecoveryWorker struct {
	store        StaleRecoverer
	interval     time.Duration
	staleAge     time.Duration
	completedAge time.Duration
}

// NewQueueRecoveryWorker creates a recovery worker. Non-positive durations
// take the defaults.
func NewQueueRecoveryWorker(store StaleRecoverer, interval, staleAge, completedAge time.Duration) *QueueRecoveryWorker {
	if interval <= 0 {
		interval = DefaultRecoveryInterval
	}
	if staleAge <= 0 {
		staleAge = DefaultStaleAge
	}
	if completedAge <= 0 {
		completedAge = DefaultCompletedAge
	}
	return &QueueRecoveryWorker{store: store, interval: interval, staleAge: staleAge, completedAge: completedAge}
}

// Start runs the recovery loop. It blocks until ctx is cancelled.
func (qr *QueueRecoveryWorker) Start(ctx context.Context) {
	log.Printf("[QueueRecovery] Starting (interval=%s, stale_age=%s, retention=%s)",
		qr.interval, qr.staleAge, qr.completedAge)

	ticker := time.NewTicker(qr.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[QueueRecovery] Stopping")
			return
		case <-ticker.C:
			qr.RunOnce(ctx)
		}
	}
}

// RecoveryResult counts the rows touched by one pass.
type RecoveryResult struct {
	Requeued int64
	Dead     int64
	Purged   int64
}

// RunOnce performs one recovery pass. Errors are logged; a failed step
// does not prevent the next one.
func (qr *QueueRecoveryWorker) RunOnce(ctx context.Context) RecoveryResult {
	queryCtx, cancel := context.WithTimeout(ctx, recoveryQueryDeadline)
	defer cancel()

	var res RecoveryResult
	requeued, dead, err := qr.store.RecoverStale(queryCtx, qr.staleAge)
	if err != nil {
		log.Printf("[QueueRecovery] recover error: %v", err)
	}
	res.Requeued, res.Dead = requeued, dead
	if requeued > 0 {
		log.Printf("[QueueRecovery] requeued %d stuck jobs", requeued)
	}
	if dead > 0 {
		log.Printf("[QueueRecovery] moved %d jobs to dead_letter", dead)
	}

	purged, err := qr.store.PurgeCompleted(queryCtx, qr.completedAge)
	if err != nil {
		log.Printf("[QueueRecovery] purge error: %v", err)
	}
	res.Purged = purged
	if purged > 0 {
		log.Printf("[QueueRecovery] purged %d completed jobs", purged)
	}
	return res
}
