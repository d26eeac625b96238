package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue is a non-durable queue for single-process development runs
// and tests. It follows the same claim and retry rules as Store.
type MemoryQueue struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*Job
	keys map[string]uuid.UUID
	now  func() time.Time
}

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{jobs: make(map[uuid.UUID]*Job), keys: make(map[string]uuid.UUID), now: time.Now}
}

// WithClock overrides the time used to decide which jobs are due.
func (q *MemoryQueue) WithClock(now func() time.Time) *MemoryQueue {
	q.now = now
	return q
}

func (q *MemoryQueue) Enqueue(_ context.Context, job Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = MaxAttemptsFor(job.Kind)
	}
	if job.DedupKey != "" {
		if _, seen := q.keys[job.DedupKey]; seen {
			return ErrDuplicate
		}
		q.keys[job.DedupKey] = job.ID
	}
	job.Status = StatusQueued
	job.CreatedAt = q.now()
	q.jobs[job.ID] = &job
	return nil
}

func (q *MemoryQueue) Claim(_ context.Context, _ string, limit int) ([]Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	var due []*Job
	for _, j := range q.jobs {
		if j.Status == StatusQueued && !j.RunAt.After(now) {
			due = append(due, j)
		}
	}
	sort.Slice(due, func(a, b int) bool { return due[a].RunAt.Before(due[b].RunAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}

	out := make([]Job, 0, len(due))
	for _, j := range due {
		j.Status = StatusClaimed
		j.Attempts++
		out = append(out, *j)
	}
	return out, nil
}

func (q *MemoryQueue) Complete(_ context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if j, ok := q.jobs[id]; ok {
		j.Status = StatusDone
	}
	return nil
}

func (q *MemoryQueue) Fail(_ context.Context, job Job, cause error, retryAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[job.ID]
	if !ok {
		return nil
	}
	if cause != nil {
		j.LastError = cause.Error()
	}
	if j.Exhausted() || IsPermanent(cause) {
		j.Status = StatusDeadLetter
		return nil
	}
	j.Status = StatusQueued
	j.RunAt = retryAt
	return nil
}

// Jobs returns a snapshot of every job, ordered by run time.
func (q *MemoryQueue) Jobs() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Job, 0, len(q.jobs))
	for _, j := range q.jobs {
		out = append(out, *j)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].RunAt.Before(out[b].RunAt) })
	return out
}

// Pending returns queued jobs of kind.
func (q *MemoryQueue) Pending(kind Kind) []Job {
	var out []Job
	for _, j := range q.Jobs() {
		if j.Kind == kind && j.Status == StatusQueued {
			out = append(out, j)
		}
	}
	return out
}
