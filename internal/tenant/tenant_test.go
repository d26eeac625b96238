package tenant

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestParse(t *testing.T) {
	id := uuid.New()

	tc, err := Parse(id.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tc.AccountID != id {
		t.Errorf("expected %s, got %s", id, tc.AccountID)
	}

	if _, err := Parse("not-a-uuid"); err == nil {
		t.Error("expected error for malformed id")
	}

	if _, err := Parse(uuid.Nil.String()); !errors.Is(err, ErrMissingTenant) {
		t.Errorf("expected ErrMissingTenant, got %v", err)
	}
}

func TestOwns(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	tc := New(a)

	if !tc.Owns(a) {
		t.Error("expected tenant to own its own account")
	}
	if tc.Owns(b) {
		t.Error("tenant must not own another account")
	}
	if (Context{}).Owns(uuid.Nil) {
		t.Error("zero context must not own the nil account")
	}
}
