package segmentation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/segmentation"
	"github.com/zntrlhub/engage/internal/tenant"
)

// eventTable answers page_name equality queries from an in-memory event
// list, honoring the account bind argument the way the SQL does.
type eventTable struct {
	events   []domain.BehavioralEvent
	lastSQL  string
	lastArgs []interface{}
}

func (e *eventTable) SelectVisitorIDs(_ context.Context, query string, args []interface{}) ([]uuid.UUID, error) {
	e.lastSQL, e.lastArgs = query, args
	account := args[0].(uuid.UUID)
	page := args[1].(string)

	seen := map[uuid.UUID]bool{}
	var out []uuid.UUID
	for _, ev := range e.events {
		if ev.AccountID != account || ev.PageName != page || seen[ev.VisitorID] {
			continue
		}
		seen[ev.VisitorID] = true
		out = append(out, ev.VisitorID)
	}
	return out, nil
}

func TestResolve_OnlyReturnsVisitorsWithEventsUnderAccount(t *testing.T) {
	accountA, accountB := uuid.New(), uuid.New()
	shared, onlyB, onlyA := uuid.New(), uuid.New(), uuid.New()

	table := &eventTable{events: []domain.BehavioralEvent{
		{AccountID: accountA, VisitorID: onlyA, PageName: "pricing"},
		{AccountID: accountA, VisitorID: onlyA, PageName: "pricing"},
		{AccountID: accountA, VisitorID: shared, PageName: "home"},
		{AccountID: accountB, VisitorID: shared, PageName: "pricing"},
		{AccountID: accountB, VisitorID: onlyB, PageName: "pricing"},
	}}
	r := segmentation.NewResolver(table)

	got, err := r.Resolve(context.Background(), tenant.New(accountA), "eq(page_name,pricing)")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(got) != 1 || got[0] != onlyA {
		t.Fatalf("expected only %s, got %v", onlyA, got)
	}

	withEvents := map[uuid.UUID]bool{}
	for _, ev := range table.events {
		if ev.AccountID == accountA {
			withEvents[ev.VisitorID] = true
		}
	}
	for _, id := range got {
		if !withEvents[id] {
			t.Errorf("visitor %s has no events under account A", id)
		}
	}
}

func TestResolve_InvalidQueryNeverReachesStore(t *testing.T) {
	table := &eventTable{}
	r := segmentation.NewResolver(table)

	_, err := r.Resolve(context.Background(), tenant.New(uuid.New()), "eq(page_name")
	if !errors.Is(err, segmentation.ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
	if table.lastSQL != "" {
		t.Error("store was queried for an invalid filter")
	}
}

func TestResolve_RequiresTenant(t *testing.T) {
	r := segmentation.NewResolver(&eventTable{})
	_, err := r.Resolve(context.Background(), tenant.Context{}, "eq(page_name,home)")
	if !errors.Is(err, tenant.ErrMissingTenant) {
		t.Fatalf("expected ErrMissingTenant, got %v", err)
	}
}
