package models

import "github.com/google/uuid"

// Keyword is a literal text fragment that activates an automation when it
// appears in an inbound message or comment. Matching is case-sensitive.
type Keyword struct {
	ID           uuid.UUID `db:"id" json:"id"`
	AutomationID uuid.UUID `db:"automation_id" json:"automation_id"`
	Word         string    `db:"word" json:"word"`
}

// TableName returns the database table name
func (Keyword) TableName() string {
	return "keywords"
}
