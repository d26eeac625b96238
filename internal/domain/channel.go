package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DeliveryCorrelation maps a channel-assigned message id back to the
// message node and visitor that produced the send.
type DeliveryCorrelation struct {
	ID         uuid.UUID `json:"id" db:"id"`
	AccountID  uuid.UUID `json:"account_id" db:"account_id"`
	ExternalID string    `json:"wati_message_id" db:"external_id"`
	MessageID  uuid.UUID `json:"message_id" db:"message_id"`
	VisitorID  uuid.UUID `json:"visitor_id" db:"visitor_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// ChannelCredentials are an account's messaging channel endpoint and key.
// Connected caches the result of the most recent connectivity probe.
type ChannelCredentials struct {
	AccountID uuid.UUID `json:"account_id" db:"account_id"`
	Endpoint  string    `json:"api_endpoint" db:"api_endpoint"`
	APIKey    string    `json:"api_key" db:"api_key"`
	Connected bool      `json:"connected" db:"connected"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Masked returns a copy safe for API responses.
func (c ChannelCredentials) Masked() ChannelCredentials {
	if len(c.APIKey) > 4 {
		c.APIKey = "****" + c.APIKey[len(c.APIKey)-4:]
	} else if c.APIKey != "" {
		c.APIKey = "****"
	}
	return c
}

// Template is a message template fetched from the channel. Raw keeps the
// provider's JSON document untouched.
type Template struct {
	ID        uuid.UUID       `json:"id" db:"id"`
	AccountID uuid.UUID       `json:"account_id" db:"account_id"`
	Name      string          `json:"name" db:"name"`
	Raw       json.RawMessage `json:"template" db:"template"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}
