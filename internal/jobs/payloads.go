package jobs

import (
	"time"

	"github.com/google/uuid"
	"github.com/zntrlhub/engage/internal/domain"
)

// SendMessage delivers one campaign message to one visitor.
type SendMessage struct {
	MessageID uuid.UUID `json:"message_id"`
	VisitorID uuid.UUID `json:"visitor_id"`
}

// ChannelEvent carries one inbound delivery status event.
type ChannelEvent struct {
	Event      domain.ChannelEvent `json:"event"`
	ReceivedAt time.Time           `json:"received_at"`
}

// ReconcileSegmentation syncs one segmentation's membership and schedules
// head messages for new members.
type ReconcileSegmentation struct {
	SegmentationID uuid.UUID `json:"segmentation_id"`
}

// RefreshTemplates re-fetches the account's channel templates.
type RefreshTemplates struct{}
