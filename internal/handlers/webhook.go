package handlers

import (
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/queue"
	"github.com/Ramsey-B/fern/pkg/redis"
)

// WebhookHandler receives Instagram webhook callbacks and enqueues them for
// async processing. Instagram expects a fast 200; all real work happens in
// the queue workers.
type WebhookHandler struct {
	streams     *redis.Streams
	eventStream string
	verifyToken string
	logger      ectologger.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(streams *redis.Streams, eventStream, verifyToken string, logger ectologger.Logger) *WebhookHandler {
	return &WebhookHandler{
		streams:     streams,
		eventStream: eventStream,
		verifyToken: verifyToken,
		logger:      logger,
	}
}

// webhookPayload is the subset of Instagram's webhook body we care about
type webhookPayload struct {
	Object string         `json:"object"`
	Entry  []webhookEntry `json:"entry"`
}

type webhookEntry struct {
	ID        string             `json:"id"`
	Time      int64              `json:"time"`
	Changes   []webhookChange    `json:"changes"`
	Messaging []webhookMessaging `json:"messaging"`
}

type webhookChange struct {
	Field string             `json:"field"`
	Value webhookChangeValue `json:"value"`
}

type webhookChangeValue struct {
	ID   string `json:"id"`
	Text string `json:"text"`
	From struct {
		ID string `json:"id"`
	} `json:"from"`
	Media struct {
		ID string `json:"id"`
	} `json:"media"`
}

type webhookMessaging struct {
	Sender struct {
		ID string `json:"id"`
	} `json:"sender"`
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Timestamp int64 `json:"timestamp"`
	Message   struct {
		MID    string `json:"mid"`
		Text   string `json:"text"`
		IsEcho bool   `json:"is_echo"`
	} `json:"message"`
}

// RegisterRoutes registers the webhook routes
func (h *WebhookHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/webhooks/instagram", h.Verify)
	e.POST("/webhooks/instagram", h.Receive)
}

// Verify handles Instagram's webhook subscription challenge
// GET /webhooks/instagram
func (h *WebhookHandler) Verify(c echo.Context) error {
	mode := c.QueryParam("hub.mode")
	token := c.QueryParam("hub.verify_token")
	challenge := c.QueryParam("hub.challenge")

	if mode != "subscribe" || token != h.verifyToken {
		return c.NoContent(http.StatusForbidden)
	}

	return c.String(http.StatusOK, challenge)
}

// Receive handles inbound webhook events
// POST /webhooks/instagram
func (h *WebhookHandler) Receive(c echo.Context) error {
	ctx := c.Request().Context()

	var payload webhookPayload
	if err := c.Bind(&payload); err != nil {
		h.logger.WithContext(ctx).WithError(err).Warn("Unparseable webhook payload")
		// Still 200: Instagram retries aggressively and disables failing webhooks
		return c.NoContent(http.StatusOK)
	}

	enqueued := 0
	for _, entry := range payload.Entry {
		for _, event := range h.eventsFromEntry(entry) {
			if _, err := queue.PublishInboundEvent(ctx, h.streams, h.eventStream, event); err != nil {
				h.logger.WithContext(ctx).WithError(err).Error("Failed to enqueue webhook event")
				continue
			}
			enqueued++
		}
	}

	if enqueued > 0 {
		h.logger.WithContext(ctx).Infof("Enqueued %d webhook events", enqueued)
	}

	return c.NoContent(http.StatusOK)
}

// eventsFromEntry flattens one webhook entry into inbound events
func (h *WebhookHandler) eventsFromEntry(entry webhookEntry) []*models.InboundEvent {
	var events []*models.InboundEvent

	for _, change := range entry.Changes {
		if change.Field != "comments" {
			continue
		}
		// Comments from the account itself would loop forever
		if change.Value.From.ID == entry.ID {
			continue
		}
		events = append(events, &models.InboundEvent{
			Type:      models.TriggerComment,
			AccountID: entry.ID,
			SenderID:  change.Value.From.ID,
			CommentID: change.Value.ID,
			PostID:    change.Value.Media.ID,
			Text:      change.Value.Text,
			Timestamp: time.Unix(entry.Time, 0),
		})
	}

	for _, msg := range entry.Messaging {
		if msg.Message.IsEcho || msg.Message.Text == "" {
			continue
		}
		events = append(events, &models.InboundEvent{
			Type:      models.TriggerDM,
			AccountID: msg.Recipient.ID,
			SenderID:  msg.Sender.ID,
			Text:      msg.Message.Text,
			Timestamp: time.UnixMilli(msg.Timestamp),
		})
	}

	return events
}
