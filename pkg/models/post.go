package models

import "github.com/google/uuid"

// Post is an Instagram media item attached to an automation, limiting which
// posts the automation watches for comments.
type Post struct {
	ID           uuid.UUID `db:"id" json:"id"`
	AutomationID uuid.UUID `db:"automation_id" json:"automation_id"`
	PostID       string    `db:"post_id" json:"post_id"`
	Caption      *string   `db:"caption" json:"caption,omitempty"`
	Media        string    `db:"media" json:"media"`
	MediaType    string    `db:"media_type" json:"media_type"`
}

// TableName returns the database table name
func (Post) TableName() string {
	return "posts"
}
