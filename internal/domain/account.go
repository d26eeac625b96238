package domain

import (
	"time"

	"github.com/google/uuid"
)

// Account is the tenant root. Every other entity is scoped to one account.
type Account struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Site      string    `json:"site" db:"site"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
