package user

import (
	"time"

	"github.com/google/uuid"
)

// Account is a principal held by the identity store. The identifier is
// immutable for the principal's lifetime.
type Account struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"` // Never expose password hash in JSON
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
