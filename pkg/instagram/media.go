package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	neturl "net/url"

	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	mediaFields       = "id,caption,media_url,media_type,timestamp"
	defaultMediaLimit = 10
)

// MediaItem is a single Instagram media record
type MediaItem struct {
	ID        string `json:"id"`
	Caption   string `json:"caption,omitempty"`
	MediaURL  string `json:"media_url"`
	MediaType string `json:"media_type"`
	Timestamp string `json:"timestamp"`
}

type mediaResponse struct {
	Data  []MediaItem `json:"data"`
	Error *APIError   `json:"error"`
}

// FetchMedia lists the most recent media for an account. When accountID is
// empty the token-owner alias /me/media is used. An expired credential is
// reported as ErrTokenExpired so the caller can refresh and retry; every
// other failure is ErrFetchFailed and must not trigger a refresh.
func (c *Client) FetchMedia(ctx context.Context, accessToken string, accountID string, limit int) ([]MediaItem, error) {
	ctx, span := tracing.StartSpan(ctx, "instagram.FetchMedia")
	defer span.End()

	if limit <= 0 {
		limit = defaultMediaLimit
	}

	path := "/me/media"
	if accountID != "" {
		path = fmt.Sprintf("/%s/media", accountID)
	}

	query := neturl.Values{}
	query.Set("fields", mediaFields)
	query.Set("limit", fmt.Sprintf("%d", limit))
	query.Set("access_token", accessToken)
	url := fmt.Sprintf("%s?%s", c.graphURL(path), query.Encode())

	resp, err := c.http.Get(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrFetchFailed, err)
	}

	var body mediaResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("%w: malformed response", ErrFetchFailed)
	}

	if body.Error != nil {
		if body.Error.Expired() {
			c.logger.WithContext(ctx).Info("media fetch rejected with expired token")
			return nil, fmt.Errorf("%w: %s", ErrTokenExpired, body.Error.Message)
		}
		c.logger.WithContext(ctx).WithError(body.Error).Warn("media fetch rejected by provider")
		return nil, fmt.Errorf("%w: %s", ErrFetchFailed, body.Error.Message)
	}

	return body.Data, nil
}
