package campaign

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/zntrlhub/engage/internal/channel"
	"github.com/zntrlhub/engage/internal/delivery"
	"github.com/zntrlhub/engage/internal/domain"
	"github.com/zntrlhub/engage/internal/jobs"
	"github.com/zntrlhub/engage/internal/pkg/logger"
	"github.com/zntrlhub/engage/internal/repository"
	"github.com/zntrlhub/engage/internal/tenant"
)

// CampaignReader loads campaigns under a tenant.
type CampaignReader interface {
	GetCampaign(ctx context.Context, tc tenant.Context, id uuid.UUID) (domain.Campaign, error)
}

// MessageReader loads one message under a tenant.
type MessageReader interface {
	GetMessage(ctx context.Context, tc tenant.Context, id uuid.UUID) (domain.Message, error)
}

// MembershipChecker reports whether a visitor belongs to a segmentation.
type MembershipChecker interface {
	HasMember(ctx context.Context, segmentationID, visitorID uuid.UUID) (bool, error)
}

// VisitorReader loads a visitor linked to the tenant.
type VisitorReader interface {
	GetVisitor(ctx context.Context, tc tenant.Context, id uuid.UUID) (domain.Visitor, error)
}

// CredentialReader loads the tenant's channel credentials.
type CredentialReader interface {
	GetCredentials(ctx context.Context, tc tenant.Context) (domain.ChannelCredentials, error)
}

// CorrelationRecorder stores the external id of a completed send.
// *delivery.Correlator implements it.
type CorrelationRecorder interface {
	Record(ctx context.Context, tc tenant.Context, externalID string, messageID, visitorID uuid.UUID) error
}

// SendDeps groups the collaborators of a SendHandler.
type SendDeps struct {
	Credentials  CredentialReader
	Campaigns    CampaignReader
	Messages     MessageReader
	Members      MembershipChecker
	Visitors     VisitorReader
	Gateway      channel.Gateway
	Params       *ParamRenderer
	Correlations CorrelationRecorder
}

// SendHandler executes send_message jobs.
type SendHandler struct {
	SendDeps
}

func NewSendHandler(deps SendDeps) *SendHandler {
	if deps.Params == nil {
		deps.Params = NewParamRenderer()
	}
	return &SendHandler{SendDeps: deps}
}

// Handle decodes the job payload and sends.
func (h *SendHandler) Handle(ctx context.Context, tc tenant.Context, job jobs.Job) error {
	var p jobs.SendMessage
	if err := job.Decode(&p); err != nil {
		return err
	}
	_, err := h.Send(ctx, tc, p.MessageID, p.VisitorID)
	return err
}

// Send delivers one message to one visitor and records the correlation.
// It returns the number of correlations recorded. Skipped sends return
// zero and no error.
func (h *SendHandler) Send(ctx context.Context, tc tenant.Context, messageID, visitorID uuid.UUID) (int, error) {
	creds, err := h.Credentials.GetCredentials(ctx, tc)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return 0, fmt.Errorf("load credentials: %w", err)
	}
	if err != nil || !creds.Connected {
		logger.Warn("skipping send",
			"account_id", tc.String(), "message_id", messageID.String(), "error", channel.ErrGatewayUnavailable.Error())
		return 0, nil
	}

	msg, c, ok, err := h.eligible(ctx, tc, messageID, visitorID)
	if err != nil || !ok {
		return 0, err
	}

	v, err := h.Visitors.GetVisitor(ctx, tc, visitorID)
	if errors.Is(err, repository.ErrNotFound) {
		logger.Info("skipping send: visitor gone", "visitor_id", visitorID.String())
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load visitor: %w", err)
	}
	if v.WhatsAppNumber == "" {
		logger.Info("skipping send: visitor has no whatsapp number", "visitor_id", visitorID.String())
		return 0, nil
	}

	rec, err := h.Params.Recipient(v, c, msg)
	if err != nil {
		return 0, jobs.Permanent(err)
	}

	deliveries, err := h.Gateway.Send(ctx, creds, channel.SendRequest{
		TemplateName:  msg.Template,
		BroadcastName: c.Name,
		Recipients:    []channel.Recipient{rec},
	})
	if err != nil {
		return 0, err
	}

	n := 0
	for _, d := range deliveries {
		err := h.Correlations.Record(ctx, tc, d.ExternalID, msg.ID, visitorID)
		if errors.Is(err, delivery.ErrDuplicateCorrelation) {
			logger.Warn("duplicate correlation dropped",
				"whatsapp_message_id", d.ExternalID, "message_id", msg.ID.String())
			continue
		}
		if err != nil {
			// The message already went out; retrying the job would send it twice.
			logger.Error("record correlation failed",
				"whatsapp_message_id", d.ExternalID, "message_id", msg.ID.String(), "error", err.Error())
			continue
		}
		n++
	}
	logger.Info("message sent",
		"campaign_id", c.ID.String(), "message_id", msg.ID.String(), "visitor_id", visitorID.String(),
		"template", msg.Template, "correlated", n)
	return n, nil
}

// eligible rechecks, at send time, that the message still exists, its
// campaign is active and the visitor still holds the membership that
// enrolled them. Sends scheduled before a deactivation are dropped here.
func (h *SendHandler) eligible(ctx context.Context, tc tenant.Context, messageID, visitorID uuid.UUID) (domain.Message, domain.Campaign, bool, error) {
	msg, err := h.Messages.GetMessage(ctx, tc, messageID)
	if errors.Is(err, repository.ErrNotFound) {
		logger.Info("skipping send: message gone", "message_id", messageID.String())
		return msg, domain.Campaign{}, false, nil
	}
	if err != nil {
		return msg, domain.Campaign{}, false, fmt.Errorf("load message: %w", err)
	}

	c, err := h.Campaigns.GetCampaign(ctx, tc, msg.CampaignID)
	if errors.Is(err, repository.ErrNotFound) {
		logger.Info("skipping send: campaign gone", "campaign_id", msg.CampaignID.String())
		return msg, c, false, nil
	}
	if err != nil {
		return msg, c, false, fmt.Errorf("load campaign: %w", err)
	}
	if !c.IsActive() {
		logger.Info("skipping send: campaign inactive", "campaign_id", c.ID.String())
		return msg, c, false, nil
	}

	member, err := h.Members.HasMember(ctx, c.SegmentationID, visitorID)
	if err != nil {
		return msg, c, false, fmt.Errorf("check membership: %w", err)
	}
	if !member {
		logger.Info("skipping send: visitor not in segmentation",
			"segmentation_id", c.SegmentationID.String(), "visitor_id", visitorID.String())
		return msg, c, false, nil
	}
	return msg, c, true, nil
}
