package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Ramsey-B/fern/pkg/tracing"
)

type messageRecipient struct {
	ID        string `json:"id,omitempty"`
	CommentID string `json:"comment_id,omitempty"`
}

type messageRequest struct {
	Recipient messageRecipient `json:"recipient"`
	Message   struct {
		Text string `json:"text"`
	} `json:"message"`
}

type messageResponse struct {
	RecipientID string    `json:"recipient_id"`
	MessageID   string    `json:"message_id"`
	Error       *APIError `json:"error"`
}

// SendDirectMessage sends a DM from the account to an Instagram user. Errors
// propagate to the caller; there is no retry at this layer.
func (c *Client) SendDirectMessage(ctx context.Context, accessToken, accountID, recipientID, text string) error {
	ctx, span := tracing.StartSpan(ctx, "instagram.SendDirectMessage")
	defer span.End()

	return c.sendMessage(ctx, accessToken, accountID, messageRecipient{ID: recipientID}, text)
}

// SendPrivateReply sends a private reply to a comment on the account's media.
// Errors propagate to the caller; there is no retry at this layer.
func (c *Client) SendPrivateReply(ctx context.Context, accessToken, accountID, commentID, text string) error {
	ctx, span := tracing.StartSpan(ctx, "instagram.SendPrivateReply")
	defer span.End()

	return c.sendMessage(ctx, accessToken, accountID, messageRecipient{CommentID: commentID}, text)
}

func (c *Client) sendMessage(ctx context.Context, accessToken, accountID string, recipient messageRecipient, text string) error {
	url := c.graphURL(fmt.Sprintf("/%s/messages", accountID))

	payload := messageRequest{Recipient: recipient}
	payload.Message.Text = text

	resp, err := c.http.PostJSON(ctx, url, payload, bearer(accessToken))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrDispatchFailed, err)
	}

	var body messageResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		if resp.StatusCode >= http.StatusBadRequest {
			return fmt.Errorf("%w: status %d", ErrDispatchFailed, resp.StatusCode)
		}
		return fmt.Errorf("%w: malformed response", ErrDispatchFailed)
	}

	if body.Error != nil {
		c.logger.WithContext(ctx).WithError(body.Error).Warn("message dispatch rejected by provider")
		return fmt.Errorf("%w: %s", ErrDispatchFailed, body.Error.Message)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: status %d", ErrDispatchFailed, resp.StatusCode)
	}

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"message_id": body.MessageID,
	}).Debug("dispatched message")

	return nil
}
