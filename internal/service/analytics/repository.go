package analytics

import (
	"context"

	"github.com/google/uuid"
	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/tenant"
)

// Repository is the visitor and event store. *postgres.VisitorRepo
// implements it.
type Repository interface {
	// FindVisitorByDevice is not tenant scoped: a device identifies one
	// visitor across every account.
	FindVisitorByDevice(ctx context.Context, deviceUUID uuid.UUID) (domain.Visitor, error)
	CreateVisitor(ctx context.Context, tc tenant.Context, v *domain.Visitor) error
	// LinkVisitor reports false when the link already existed.
	LinkVisitor(ctx context.Context, tc tenant.Context, visitorID uuid.UUID) (bool, error)
	IsVisitorLinked(ctx context.Context, tc tenant.Context, visitorID uuid.UUID) (bool, error)
	InsertEvent(ctx context.Context, e *domain.BehavioralEvent) error
	DistinctPageNames(ctx context.Context, tc tenant.Context) ([]string, error)
	DistinctButtons(ctx context.Context, tc tenant.Context) ([]string, error)
}

// VisitorInput is the visitor report body.
type VisitorInput struct {
	DeviceUUID     uuid.UUID `json:"device_uuid"`
	Name           string    `json:"name"`
	WhatsAppNumber string    `json:"whatsapp_number"`
}

// EventInput is one behavioral event from the tracking snippet.
type EventInput struct {
	DeviceUUID    uuid.UUID `json:"device_uuid"`
	Browser       string    `json:"browser"`
	Device        string    `json:"device"`
	PageName      string    `json:"page_name"`
	PageURL       string    `json:"page_url"`
	ButtonClicked string    `json:"button_clicked"`
	Latitude      *float64  `json:"latitude"`
	Longitude     *float64  `json:"longitude"`
	Location      string    `json:"location"`
	Timezone      string    `json:"timezone"`
	TimeStayed    *float64  `json:"time_stayed"`
}
