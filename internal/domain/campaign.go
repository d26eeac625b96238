package domain

import (
	"time"

	"github.com/google/uuid"
)

// CampaignState enumerates the lifecycle states of a campaign.
type CampaignState string

const (
	CampaignActive   CampaignState = "A"
	CampaignInactive CampaignState = "I"
)

// Valid reports whether s is a known campaign state.
func (s CampaignState) Valid() bool {
	return s == CampaignActive || s == CampaignInactive
}

// Campaign is a drip sequence of messages sent to the members of one
// segmentation.
type Campaign struct {
	ID             uuid.UUID     `json:"id" db:"id"`
	AccountID      uuid.UUID     `json:"account_id" db:"account_id"`
	SegmentationID uuid.UUID     `json:"segment" db:"segmentation_id"`
	Name           string        `json:"name" db:"name"`
	State          CampaignState `json:"state" db:"state"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// IsActive returns true if sends for this campaign should go out.
func (c Campaign) IsActive() bool {
	return c.State == CampaignActive
}

// DefaultDelayMinutes is the send delay applied when a message omits one.
const DefaultDelayMinutes = 1

// Message is a node in a campaign's message tree. The head node has no
// parent and Trigger == TriggerHead; every other node fires when its
// parent's send observes the node's Trigger event.
type Message struct {
	ID           uuid.UUID         `json:"id" db:"id"`
	CampaignID   uuid.UUID         `json:"campaign" db:"campaign_id"`
	ParentID     *uuid.UUID        `json:"parent" db:"parent_id"`
	Trigger      TriggerEvent      `json:"action" db:"action"`
	DelayMinutes int               `json:"schedule" db:"schedule"`
	Template     string            `json:"template" db:"template"`
	Params       map[string]string `json:"params,omitempty" db:"params"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at" db:"updated_at"`
}

// IsHead returns true for the campaign entry node.
func (m Message) IsHead() bool {
	return m.ParentID == nil && m.Trigger == TriggerHead
}

// Delay returns the send delay as a duration.
func (m Message) Delay() time.Duration {
	return time.Duration(m.DelayMinutes) * time.Minute
}
