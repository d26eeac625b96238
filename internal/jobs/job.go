// Package jobs is the durable work queue behind every asynchronous step:
// delayed message sends, inbound channel events, segmentation
// reconciliation and template refreshes.
//
// A job is keyed by (id, run_at) and runs at or after run_at. Each job
// carries the account it executes for; handlers rebuild the tenant from it
// and never from shared worker state.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/zntrlhub/engage/internal/tenant"
)

// Kind names a job type and selects its handler.
type Kind string

const (
	KindSendMessage           Kind = "send_message"
	KindChannelEvent          Kind = "channel_event"
	KindReconcileSegmentation Kind = "reconcile_segmentation"
	KindRefreshTemplates      Kind = "refresh_templates"
)

// Status is the lifecycle state of a job row.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusClaimed    Status = "claimed"
	StatusDone       Status = "done"
	StatusDeadLetter Status = "dead_letter"
)

// DefaultMaxAttempts is used for kinds without an explicit limit.
const DefaultMaxAttempts = 5

// maxAttempts per kind. Sends retry less because a gateway that accepted
// the request but failed afterwards would deliver twice.
var maxAttempts = map[Kind]int{
	KindSendMessage:           3,
	KindChannelEvent:          5,
	KindReconcileSegmentation: 5,
	KindRefreshTemplates:      3,
}

// MaxAttemptsFor returns the attempt limit for kind.
func MaxAttemptsFor(kind Kind) int {
	if n, ok := maxAttempts[kind]; ok {
		return n
	}
	return DefaultMaxAttempts
}

// Job is one unit of queued work.
type Job struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Kind        Kind            `json:"kind" db:"kind"`
	AccountID   uuid.UUID       `json:"account_id" db:"account_id"`
	Payload     json.RawMessage `json:"payload" db:"payload"`
	RunAt       time.Time       `json:"run_at" db:"run_at"`
	Status      Status          `json:"status" db:"status"`
	Attempts    int             `json:"attempts" db:"attempts"`
	MaxAttempts int             `json:"max_attempts" db:"max_attempts"`
	LastError   string          `json:"last_error,omitempty" db:"last_error"`
	// DedupKey, when set, makes Enqueue a no-op for any later job with the
	// same key. The key outlives the job row.
	DedupKey    string          `json:"dedup_key,omitempty" db:"dedup_key"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// New builds a queued job for tc with payload marshalled to JSON.
func New(kind Kind, tc tenant.Context, payload interface{}, runAt time.Time) (Job, error) {
	if err := tc.Validate(); err != nil {
		return Job{}, err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return Job{
		ID:          uuid.New(),
		Kind:        kind,
		AccountID:   tc.AccountID,
		Payload:     raw,
		RunAt:       runAt.UTC(),
		Status:      StatusQueued,
		MaxAttempts: MaxAttemptsFor(kind),
	}, nil
}

// Tenant returns the account the job runs for.
func (j Job) Tenant() tenant.Context { return tenant.New(j.AccountID) }

// Decode unmarshals the payload into dst. Decode failures are permanent.
func (j Job) Decode(dst interface{}) error {
	if err := json.Unmarshal(j.Payload, dst); err != nil {
		return Permanent(fmt.Errorf("decode %s payload: %w", j.Kind, err))
	}
	return nil
}

// Exhausted reports whether the job may not be retried again.
func (j Job) Exhausted() bool {
	return j.MaxAttempts > 0 && j.Attempts >= j.MaxAttempts
}

// Handler executes one job kind.
type Handler interface {
	Handle(ctx context.Context, tc tenant.Context, job Job) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, tc tenant.Context, job Job) error

func (f HandlerFunc) Handle(ctx context.Context, tc tenant.Context, job Job) error {
	return f(ctx, tc, job)
}

// ErrNoHandler is returned for a kind nobody registered.
var ErrNoHandler = errors.New("jobs: no handler registered")

// ErrDuplicate is returned by Enqueue when a job with the same DedupKey was
// already accepted.
var ErrDuplicate = errors.New("jobs: duplicate job")

// SendKey is the dedup key of a send: one message reaches one visitor at
// most once.
func SendKey(messageID, visitorID uuid.UUID) string {
	return "send:" + messageID.String() + ":" + visitorID.String()
}

// Registry maps kinds to handlers. It is populated at start-up and read
// concurrently afterwards.
type Registry struct {
	handlers map[Kind]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: make(map[Kind]Handler)}
}

// Register installs h for kind, replacing any previous handler.
func (r *Registry) Register(kind Kind, h Handler) *Registry {
	r.handlers[kind] = h
	return r
}

// Lookup returns the handler for kind.
func (r *Registry) Lookup(kind Kind) (Handler, error) {
	h, ok := r.handlers[kind]
	if !ok {
		return nil, fmt.Errorf("%w for kind %q", ErrNoHandler, kind)
	}
	return h, nil
}

// Kinds lists registered kinds.
func (r *Registry) Kinds() []Kind {
	out := make([]Kind, 0, len(r.handlers))
	for k := range r.handlers {
		out = append(out, k)
	}
	return out
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying; the job goes straight to the
// dead letter state.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// RetryDelay is the backoff before attempt n+1: 30s doubling, capped at 1h.
func RetryDelay(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := 30 * time.Second
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= time.Hour {
			return time.Hour
		}
	}
	return d
}
