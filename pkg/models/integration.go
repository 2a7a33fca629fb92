package models

import (
	"time"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/google/uuid"
)

// IntegrationProvider identifies the social platform behind an integration
type IntegrationProvider string

const (
	ProviderInstagram IntegrationProvider = "INSTAGRAM"
)

// Integration represents a user's connection to a social platform account.
// The access token is a long-lived credential that expires 60 days after the
// last exchange or refresh.
type Integration struct {
	ID          uuid.UUID               `db:"id" json:"id"`
	UserID      uuid.UUID               `db:"user_id" json:"user_id"`
	Provider    IntegrationProvider     `db:"provider" json:"provider"`
	AccessToken string                  `db:"access_token" json:"-"`
	ExpiresAt   time.Time               `db:"expires_at" json:"expires_at"`
	InstagramID *string                 `db:"instagram_id" json:"instagram_id,omitempty"`
	Permissions database.JSONB[[]string] `db:"permissions" json:"permissions,omitempty"`
	CreatedAt   time.Time               `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time               `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (Integration) TableName() string {
	return "integrations"
}

// Expired reports whether the token has passed its expiry.
func (i *Integration) Expired(now time.Time) bool {
	return !i.ExpiresAt.After(now)
}
