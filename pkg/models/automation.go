package models

import (
	"time"

	"github.com/google/uuid"
)

// Automation is a user-defined rule that replies to inbound Instagram
// activity. It only fires while Active is true.
type Automation struct {
	ID        uuid.UUID `db:"id" json:"id"`
	UserID    uuid.UUID `db:"user_id" json:"user_id"`
	Name      string    `db:"name" json:"name"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	// Hydrated relations, not columns
	Listener *Listener `db:"-" json:"listener,omitempty"`
	Triggers []Trigger `db:"-" json:"triggers,omitempty"`
	Keywords []Keyword `db:"-" json:"keywords,omitempty"`
	Posts    []Post    `db:"-" json:"posts,omitempty"`
}

// TableName returns the database table name
func (Automation) TableName() string {
	return "automations"
}

// HasTrigger reports whether the automation listens for the given event type.
func (a *Automation) HasTrigger(t TriggerType) bool {
	for _, trigger := range a.Triggers {
		if trigger.Type == t {
			return true
		}
	}
	return false
}
