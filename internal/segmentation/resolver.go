package segmentation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/zntrlhub/engage/internal/tenant"
)

// EventQuerier runs a compiled audience query and returns the visitor ids
// it selects.
type EventQuerier interface {
	SelectVisitorIDs(ctx context.Context, query string, args []interface{}) ([]uuid.UUID, error)
}

// Resolver evaluates segmentation filters against the behavioral event store.
type Resolver struct {
	events EventQuerier
}

// NewResolver creates a Resolver backed by the given event store.
func NewResolver(events EventQuerier) *Resolver {
	return &Resolver{events: events}
}

// Resolve returns the distinct visitors whose events under tc's account
// satisfy query. A visitor with no events under the account can never be
// returned because the projection is taken from the matching event rows.
func (r *Resolver) Resolve(ctx context.Context, tc tenant.Context, query string) ([]uuid.UUID, error) {
	if err := tc.Validate(); err != nil {
		return nil, err
	}
	sql, args, err := NewQueryBuilder().SetAccountID(tc.AccountID).BuildQuery(query)
	if err != nil {
		return nil, err
	}
	ids, err := r.events.SelectVisitorIDs(ctx, sql, args)
	if err != nil {
		return nil, fmt.Errorf("resolve audience: %w", err)
	}
	return ids, nil
}
