// Package auth resolves credentials against the three principal directories
// (admins, employees, clients) and manages login sessions and client magic
// links.
package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/studioops/studioops/internal/shared"
)

// Principal is a resolved login candidate from one of the directories.
type Principal struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Role         shared.Role
	Email        string
	Name         string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
}

// MagicLink is a single-use token issued to a client for passwordless login.
type MagicLink struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
