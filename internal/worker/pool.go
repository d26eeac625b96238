package worker

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/zntrlhub/engage/internal/jobs"
)

// =============================================================================
// JOB POOL
// =============================================================================
// N goroutines poll the job queue for due work and dispatch each job to the
// handler registered for its kind. A failing or panicking job is recorded
// against that job only; the goroutine moves on to the next one.

const (
	DefaultPoolWorkers      = 4
	DefaultPollInterval     = time.Second
	DefaultClaimBatchSize   = 10
	DefaultJobTimeout       = 2 * time.Minute
	DefaultShutdownDeadline = 30 * time.Second
)

// JobSource is the queue the pool drains. *jobs.Store and
// *jobs.MemoryQueue implement it.
type JobSource interface {
	Claim(ctx context.Context, workerID string, limit int) ([]jobs.Job, error)
	Complete(ctx context.Context, id uuid.UUID) error
	Fail(ctx context.Context, job jobs.Job, cause error, retryAt time.Time) error
}

// PoolConfig tunes a Pool. Zero values take the defaults above.
type PoolConfig struct {
	Workers      int
	PollInterval time.Duration
	BatchSize    int
	JobTimeout   time.Duration
}

func (c PoolConfig) withDefaults() PoolConfig {
	if c.Workers <= 0 {
		c.Workers = DefaultPoolWorkers
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultClaimBatchSize
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = DefaultJobTimeout
	}
	return c
}

// PoolStats is a snapshot of the pool counters.
type PoolStats struct {
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Panicked  int64 `json:"panicked"`
}

// Pool executes queued jobs.
type Pool struct {
	source   JobSource
	registry *jobs.Registry
	cfg      PoolConfig
	workerID string
	now      func() time.Time

	completed int64
	failed    int64
	panicked  int64

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
	mu      sync.Mutex
}

// NewPool creates a pool that runs registry's handlers against source.
func NewPool(source JobSource, registry *jobs.Registry, cfg PoolConfig) *Pool {
	return &Pool{
		source:   source,
		registry: registry,
		cfg:      cfg.withDefaults(),
		workerID: WorkerID(),
		now:      time.Now,
	}
}

// WorkerID returns "hostname-xxxxxxxx" identifying this process.
func WorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "engage-worker"
	}
	return fmt.Sprintf("%s-%s", host, uuid.New().String()[:8])
}

// ID returns the worker id recorded on claimed jobs.
func (p *Pool) ID() string { return p.workerID }

// Start launches the polling goroutines.
func (p *Pool) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("pool already running")
	}
	p.running = true
	p.ctx, p.cancel = context.WithCancel(context.Background())

	log.Printf("[JobPool] Starting %s: workers=%d poll=%s batch=%d kinds=%v",
		p.workerID, p.cfg.Workers, p.cfg.PollInterval, p.cfg.BatchSize, p.registry.Kinds())
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.loop()
	}
	return nil
}

// Stop cancels polling and waits up to DefaultShutdownDeadline for jobs in
// flight. Jobs abandoned at the deadline are requeued later by the queue
// recovery worker.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	log.Println("[JobPool] Stopping...")
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("[JobPool] All workers stopped cleanly")
	case <-time.After(DefaultShutdownDeadline):
		log.Println("[JobPool] Shutdown timeout - forcing stop")
	}

	s := p.Stats()
	log.Printf("[JobPool] Stopped. Completed: %d, Failed: %d, Panicked: %d", s.Completed, s.Failed, s.Panicked)
}

// Stats returns the current counters.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Completed: atomic.LoadInt64(&p.completed),
		Failed:    atomic.LoadInt64(&p.failed),
		Panicked:  atomic.LoadInt64(&p.panicked),
	}
}

func (p *Pool) loop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			// Keep draining while batches come back full.
			for {
				n, err := p.RunOnce(p.ctx)
				if err != nil && p.ctx.Err() == nil {
					log.Printf("[JobPool] claim error: %v", err)
				}
				if n < p.cfg.BatchSize || p.ctx.Err() != nil {
					break
				}
			}
		}
	}
}

// RunOnce claims one batch of due jobs and executes it synchronously. It
// returns the number of jobs claimed.
func (p *Pool) RunOnce(ctx context.Context) (int, error) {
	batch, err := p.source.Claim(ctx, p.workerID, p.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	for _, job := range batch {
		p.execute(ctx, job)
	}
	return len(batch), nil
}

func (p *Pool) execute(ctx context.Context, job jobs.Job) {
	err := p.run(ctx, job)

	// Bookkeeping must survive a cancelled pool context.
	bookCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err == nil {
		atomic.AddInt64(&p.completed, 1)
		if cerr := p.source.Complete(bookCtx, job.ID); cerr != nil {
			log.Printf("[JobPool] complete %s: %v", job.ID, cerr)
		}
		return
	}

	atomic.AddInt64(&p.failed, 1)
	retryAt := p.now().Add(jobs.RetryDelay(job.Attempts))
	final := job.Exhausted() || jobs.IsPermanent(err)
	log.Printf("[JobPool] %s job %s (account %s, attempt %d/%d) failed: %v (final=%t)",
		job.Kind, job.ID, job.AccountID, job.Attempts, job.MaxAttempts, err, final)
	if ferr := p.source.Fail(bookCtx, job, err, retryAt); ferr != nil {
		log.Printf("[JobPool] fail %s: %v", job.ID, ferr)
	}
}

// run isolates one job: its own timeout, its own tenant, and a recover so
// a handler panic does not take the goroutine down.
func (p *Pool) run(ctx context.Context, job jobs.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&p.panicked, 1)
			err = jobs.Permanent(fmt.Errorf("handler panic: %v", r))
		}
	}()

	h, err := p.registry.Lookup(job.Kind)
	if err != nil {
		return jobs.Permanent(err)
	}
	jobCtx, cancel := context.WithTimeout(ctx, p.cfg.JobTimeout)
	defer cancel()
	return h.Handle(jobCtx, job.Tenant(), job)
}
