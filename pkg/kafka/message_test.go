package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
)

func TestParseInboundEventMessage(t *testing.T) {
	payload := []byte(`{
		"type": "COMMENT",
		"account_id": "17841400000000001",
		"sender_id": "17841400000000002",
		"comment_id": "178414000000000099",
		"post_id": "17900000000000001",
		"text": "how do I order this?",
		"timestamp": "2025-06-01T12:00:00Z"
	}`)

	msg, err := ParseInboundEventMessage(payload)
	require.NoError(t, err)

	assert.Equal(t, "COMMENT", msg.Type)
	assert.Equal(t, "17841400000000001", msg.AccountID)
	assert.Equal(t, "178414000000000099", msg.CommentID)
	assert.Equal(t, "how do I order this?", msg.Text)
}

func TestParseInboundEventMessage_UnknownType(t *testing.T) {
	_, err := ParseInboundEventMessage([]byte(`{"type": "LIKE", "account_id": "1", "sender_id": "2"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown event type")
}

func TestParseInboundEventMessage_MissingAccount(t *testing.T) {
	_, err := ParseInboundEventMessage([]byte(`{"type": "DM", "sender_id": "2", "text": "hi"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account_id")
}

func TestParseInboundEventMessage_InvalidJSON(t *testing.T) {
	_, err := ParseInboundEventMessage([]byte(`not json`))
	assert.Error(t, err)
}

func TestInboundEventMessageToEvent(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	msg := &InboundEventMessage{
		Type:      "DM",
		AccountID: "acct",
		SenderID:  "sender",
		Text:      "hello",
		Timestamp: ts,
	}

	event := msg.ToEvent()
	assert.Equal(t, models.TriggerDM, event.Type)
	assert.Equal(t, "acct", event.AccountID)
	assert.Equal(t, "sender", event.SenderID)
	assert.Equal(t, "hello", event.Text)
	assert.Equal(t, ts, event.Timestamp)
}

func TestHeadersRoundTrip(t *testing.T) {
	headers := MessageHeaders{
		AccountID:    "acct-1",
		EventType:    "COMMENT",
		AutomationID: "auto-1",
		TraceParent:  "00-abc-def-01",
	}

	extracted := ExtractHeaders(headers.ToKafkaHeaders())
	assert.Equal(t, headers, extracted)
}

func TestExtractHeadersIgnoresUnknown(t *testing.T) {
	extracted := ExtractHeaders([]Header{
		{Key: "account_id", Value: []byte("acct")},
		{Key: "x-custom", Value: []byte("ignored")},
	})

	assert.Equal(t, "acct", extracted.AccountID)
	assert.Empty(t, extracted.EventType)
}
