package models

import "github.com/google/uuid"

// TriggerType is the kind of inbound event an automation reacts to
type TriggerType string

const (
	TriggerComment TriggerType = "COMMENT"
	TriggerDM      TriggerType = "DM"
)

// Trigger subscribes an automation to an inbound event type
type Trigger struct {
	ID           uuid.UUID   `db:"id" json:"id"`
	AutomationID uuid.UUID   `db:"automation_id" json:"automation_id"`
	Type         TriggerType `db:"type" json:"type"`
}

// TableName returns the database table name
func (Trigger) TableName() string {
	return "triggers"
}
