package api

import (
	"context"

	"github.com/google/uuid"
	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/inbound"
	"github.com/zntrlhub/engage/internal/service/analytics"
	"github.com/zntrlhub/engage/internal/service/campaign"
	"github.com/zntrlhub/engage/internal/service/channel"
	"github.com/zntrlhub/engage/internal/service/segmentation"
	"github.com/zntrlhub/engage/internal/tenant"
)

// SegmentationService is implemented by *segmentation.Service.
type SegmentationService interface {
	Create(ctx context.Context, tc tenant.Context, in segmentation.Input) (domain.Segmentation, error)
	Update(ctx context.Context, tc tenant.Context, id uuid.UUID, in segmentation.Input) (domain.Segmentation, error)
	Get(ctx context.Context, tc tenant.Context, id uuid.UUID) (domain.Segmentation, error)
	List(ctx context.Context, tc tenant.Context) ([]domain.Segmentation, error)
	Delete(ctx context.Context, tc tenant.Context, id uuid.UUID) error
}

// CampaignService is implemented by *campaign.Service.
type CampaignService interface {
	Get(ctx context.Context, tc tenant.Context, id uuid.UUID) (domain.Campaign, error)
	List(ctx context.Context, tc tenant.Context) ([]domain.Campaign, error)
	Create(ctx context.Context, tc tenant.Context, in campaign.CreateInput) (domain.Campaign, error)
	SetState(ctx context.Context, tc tenant.Context, id uuid.UUID, state domain.CampaignState) (domain.Campaign, error)
	Messages(ctx context.Context, tc tenant.Context, campaignID uuid.UUID) ([]domain.Message, error)
	AddMessage(ctx context.Context, tc tenant.Context, campaignID uuid.UUID, in campaign.MessageInput) (domain.Message, error)
}

// ChannelService is implemented by *channel.Service.
type ChannelService interface {
	Credentials(ctx context.Context, tc tenant.Context) (domain.ChannelCredentials, error)
	UpdateCredentials(ctx context.Context, tc tenant.Context, in channel.CredentialsInput) (domain.ChannelCredentials, error)
	Templates(ctx context.Context, tc tenant.Context) ([]domain.Template, error)
}

// AnalyticsService is implemented by *analytics.Service.
type AnalyticsService interface {
	ReportVisitor(ctx context.Context, tc tenant.Context, in analytics.VisitorInput) (domain.Visitor, error)
	RecordEvent(ctx context.Context, tc tenant.Context, in analytics.EventInput) (domain.BehavioralEvent, error)
	PageNames(ctx context.Context, tc tenant.Context) ([]string, error)
	Buttons(ctx context.Context, tc tenant.Context) ([]string, error)
}

// EventIntake is implemented by *inbound.Intake.
type EventIntake interface {
	Accept(ctx context.Context, tc tenant.Context, ev domain.ChannelEvent) (inbound.Outcome, error)
}

// Services bundles the dependencies the router needs. A nil service leaves
// its routes unregistered.
type Services struct {
	Segmentations SegmentationService
	Campaigns     CampaignService
	Channel       ChannelService
	Analytics     AnalyticsService
	Inbound       EventIntake
	Health        *HealthChecker
}
