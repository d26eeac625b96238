package domain

import (
	"time"

	"github.com/google/uuid"
)

// Visitor is a behavioral identity keyed by a stable device identifier.
// A visitor may be linked to several accounts.
type Visitor struct {
	ID             uuid.UUID `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	WhatsAppNumber string    `json:"whatsapp_number" db:"whatsapp_number"`
	DeviceUUID     uuid.UUID `json:"device_uuid" db:"device_uuid"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// BehavioralEvent is an append-only analytics fact recorded for one
// visitor under one account.
type BehavioralEvent struct {
	ID            uuid.UUID `json:"id" db:"id"`
	AccountID     uuid.UUID `json:"account_id" db:"account_id"`
	VisitorID     uuid.UUID `json:"visitor_id" db:"visitor_id"`
	Browser       string    `json:"browser,omitempty" db:"browser"`
	Device        string    `json:"device,omitempty" db:"device"`
	PageName      string    `json:"page_name,omitempty" db:"page_name"`
	PageURL       string    `json:"page_url,omitempty" db:"page_url"`
	ButtonClicked string    `json:"button_clicked,omitempty" db:"button_clicked"`
	Latitude      *float64  `json:"latitude,omitempty" db:"latitude"`
	Longitude     *float64  `json:"longitude,omitempty" db:"longitude"`
	Location      string    `json:"location,omitempty" db:"location"`
	Timezone      string    `json:"timezone,omitempty" db:"timezone"`
	TimeStayed    *float64  `json:"time_stayed,omitempty" db:"time_stayed"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
