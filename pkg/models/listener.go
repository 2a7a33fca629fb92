package models

import "github.com/google/uuid"

// ListenerType determines how a matched automation produces its reply
type ListenerType string

const (
	// ListenerMessage replies with the stored message text
	ListenerMessage ListenerType = "MESSAGE"
	// ListenerSmartAI generates the reply with the completions service
	ListenerSmartAI ListenerType = "SMARTAI"
)

// Listener holds the reply behavior for an automation. One listener per
// automation.
type Listener struct {
	ID           uuid.UUID    `db:"id" json:"id"`
	AutomationID uuid.UUID    `db:"automation_id" json:"automation_id"`
	Type         ListenerType `db:"type" json:"type"`
	Prompt       string       `db:"prompt" json:"prompt"`
	Reply        *string      `db:"reply" json:"reply,omitempty"`
	DMCount      int          `db:"dm_count" json:"dm_count"`
	CommentCount int          `db:"comment_count" json:"comment_count"`
}

// TableName returns the database table name
func (Listener) TableName() string {
	return "listeners"
}
