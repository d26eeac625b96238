package domain

import (
	"time"

	"github.com/google/uuid"
)

// Segmentation is a named audience defined by a filter query over the
// owning account's behavioral events.
type Segmentation struct {
	ID        uuid.UUID `json:"id" db:"id"`
	AccountID uuid.UUID `json:"account_id" db:"account_id"`
	Name      string    `json:"name" db:"name"`
	Query     string    `json:"rql_query" db:"rql_query"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// Populated by read queries only.
	VisitorCount int `json:"visitor_count" db:"-"`
}

// SegmentMembership records that a visitor matched a segmentation at some
// reconciliation. Memberships are never removed except by cascade when the
// segmentation itself is deleted.
type SegmentMembership struct {
	ID             uuid.UUID `json:"id" db:"id"`
	VisitorID      uuid.UUID `json:"visitor_id" db:"visitor_id"`
	SegmentationID uuid.UUID `json:"segmentation_id" db:"segmentation_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
