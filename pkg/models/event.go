package models

import "time"

// InboundEvent is a normalized comment or direct message received from
// Instagram, either through the webhook endpoint or the kafka ingestion
// topic.
type InboundEvent struct {
	Type TriggerType `json:"type"`
	// AccountID is the Instagram account that received the event
	AccountID string `json:"account_id"`
	// SenderID is the Instagram user who wrote the comment or message
	SenderID string `json:"sender_id"`
	// CommentID is set for COMMENT events and is the reply target
	CommentID string `json:"comment_id,omitempty"`
	// PostID is the media the comment was left on, when known
	PostID    string    `json:"post_id,omitempty"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}
