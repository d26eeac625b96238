package campaign

import (
	"context"

	"github.com/google/uuid"
	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/tenant"
)

// Repository defines the data access contract for campaigns and their
// messages. Implementations must be safe for concurrent use.
type Repository interface {
	CreateCampaign(ctx context.Context, c *domain.Campaign) error
	// GetCampaign returns ErrNotFound if the campaign is missing or foreign.
	GetCampaign(ctx context.Context, tc tenant.Context, id uuid.UUID) (domain.Campaign, error)
	ListCampaigns(ctx context.Context, tc tenant.Context) ([]domain.Campaign, error)
	UpdateCampaignState(ctx context.Context, tc tenant.Context, id uuid.UUID, state domain.CampaignState) error

	// CreateMessage must reject a second head or a taken (parent, trigger)
	// slot atomically with ErrMultipleHeads / ErrDuplicateChild.
	CreateMessage(ctx context.Context, m *domain.Message) error
	GetMessage(ctx context.Context, tc tenant.Context, id uuid.UUID) (domain.Message, error)
	ListByCampaign(ctx context.Context, tc tenant.Context, campaignID uuid.UUID) ([]domain.Message, error)
}

// SegmentationLookup confirms a segmentation belongs to the tenant.
type SegmentationLookup interface {
	GetSegmentation(ctx context.Context, tc tenant.Context, id uuid.UUID) (domain.Segmentation, error)
}

// Bootstrapper schedules the head message for a campaign's existing
// audience. *campaign.Enroller implements it.
type Bootstrapper interface {
	Bootstrap(ctx context.Context, tc tenant.Context, c domain.Campaign) (int, error)
}

// CreateInput holds the fields for creating a new campaign.
type CreateInput struct {
	Name           string               `json:"name"`
	SegmentationID uuid.UUID            `json:"segment"`
	State          domain.CampaignState `json:"state"`
}

// MessageInput holds the fields for attaching a message node.
type MessageInput struct {
	ParentID     *uuid.UUID          `json:"parent"`
	Trigger      domain.TriggerEvent `json:"action"`
	DelayMinutes *int                `json:"schedule"`
	Template     string              `json:"template"`
	Params       map[string]string   `json:"params"`
}
