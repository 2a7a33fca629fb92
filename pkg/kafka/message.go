package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

// InboundEventMessage is the schema carried on the ingestion topic. Upstream
// collectors publish one message per Instagram comment or DM.
type InboundEventMessage struct {
	// Type is COMMENT or DM
	Type string `json:"type"`
	// AccountID is the Instagram account that received the event
	AccountID string `json:"account_id"`
	// SenderID is the Instagram user who wrote the comment or message
	SenderID string `json:"sender_id"`
	// CommentID is set for COMMENT events
	CommentID string `json:"comment_id,omitempty"`
	// PostID is the media the comment was left on, when known
	PostID    string    `json:"post_id,omitempty"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`

	// Tracing
	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

// ParseInboundEventMessage parses a raw Kafka payload into an
// InboundEventMessage, rejecting structurally invalid events.
func ParseInboundEventMessage(data []byte) (*InboundEventMessage, error) {
	var msg InboundEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}

	switch models.TriggerType(msg.Type) {
	case models.TriggerComment, models.TriggerDM:
	default:
		return nil, fmt.Errorf("unknown event type %q", msg.Type)
	}
	if msg.AccountID == "" {
		return nil, fmt.Errorf("event is missing account_id")
	}
	if msg.SenderID == "" {
		return nil, fmt.Errorf("event is missing sender_id")
	}

	return &msg, nil
}

// ToEvent converts the wire message into the domain event
func (m *InboundEventMessage) ToEvent() *models.InboundEvent {
	return &models.InboundEvent{
		Type:      models.TriggerType(m.Type),
		AccountID: m.AccountID,
		SenderID:  m.SenderID,
		CommentID: m.CommentID,
		PostID:    m.PostID,
		Text:      m.Text,
		Timestamp: m.Timestamp,
	}
}

// DispatchResultMessage records the outcome of a reply dispatch for
// downstream analytics.
type DispatchResultMessage struct {
	EventType    string    `json:"event_type"`
	AccountID    string    `json:"account_id"`
	AutomationID string    `json:"automation_id"`
	ListenerType string    `json:"listener_type"`
	// Channel is dm or private_reply
	Channel     string    `json:"channel"`
	RecipientID string    `json:"recipient_id,omitempty"`
	CommentID   string    `json:"comment_id,omitempty"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`

	// Tracing
	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

// MessageHeaders contains Kafka message headers for efficient filtering
type MessageHeaders struct {
	AccountID    string
	EventType    string
	AutomationID string
	TraceParent  string
	TraceState   string
}

// ToKafkaHeaders converts MessageHeaders to a slice of header key-value pairs
func (h *MessageHeaders) ToKafkaHeaders() []Header {
	headers := make([]Header, 0, 5)

	if h.AccountID != "" {
		headers = append(headers, Header{Key: "account_id", Value: []byte(h.AccountID)})
	}
	if h.EventType != "" {
		headers = append(headers, Header{Key: "event_type", Value: []byte(h.EventType)})
	}
	if h.AutomationID != "" {
		headers = append(headers, Header{Key: "automation_id", Value: []byte(h.AutomationID)})
	}
	if h.TraceParent != "" {
		headers = append(headers, Header{Key: "traceparent", Value: []byte(h.TraceParent)})
	}
	if h.TraceState != "" {
		headers = append(headers, Header{Key: "tracestate", Value: []byte(h.TraceState)})
	}

	return headers
}

// Header represents a Kafka message header
type Header struct {
	Key   string
	Value []byte
}

// ExtractHeaders extracts MessageHeaders from Kafka headers
func ExtractHeaders(headers []Header) MessageHeaders {
	var mh MessageHeaders
	for _, h := range headers {
		switch h.Key {
		case "account_id":
			mh.AccountID = string(h.Value)
		case "event_type":
			mh.EventType = string(h.Value)
		case "automation_id":
			mh.AutomationID = string(h.Value)
		case "traceparent":
			mh.TraceParent = string(h.Value)
		case "tracestate":
			mh.TraceState = string(h.Value)
		}
	}
	return mh
}
