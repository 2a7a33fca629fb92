package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	neturl "net/url"

	"github.com/Ramsey-B/fern/pkg/tracing"
)

// TokenExchange is the result of trading an authorization code for a token
type TokenExchange struct {
	AccessToken string
	// UserID is the Instagram account id of the authorizing user
	UserID string
	// Permissions granted during authorization
	Permissions []string
}

type exchangeResponse struct {
	AccessToken string      `json:"access_token"`
	UserID      json.Number `json:"user_id"`
	Permissions []string    `json:"permissions"`
	Error       *APIError   `json:"error"`
	// the oauth endpoint reports failures at the top level too
	ErrorType    string `json:"error_type"`
	ErrorMessage string `json:"error_message"`
	Code         int    `json:"code"`
}

// ExchangeCode trades an authorization code for a long-lived access token.
// The redirect_uri sent is the exact string embedded in the OAuth URL; any
// other value is rejected by the provider. This call has no persistence side
// effects.
func (c *Client) ExchangeCode(ctx context.Context, code string) (*TokenExchange, error) {
	ctx, span := tracing.StartSpan(ctx, "instagram.ExchangeCode")
	defer span.End()

	form := neturl.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("grant_type", "authorization_code")
	form.Set("redirect_uri", c.redirectURI)
	form.Set("code", code)

	resp, err := c.http.PostForm(ctx, c.tokenURL, form, nil)
	if err != nil {
		return nil, fmt.Errorf("token exchange request: %w", err)
	}

	var body exchangeResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("token exchange response: %w", err)
	}

	if body.Error != nil {
		c.logger.WithContext(ctx).WithError(body.Error).Warn("token exchange rejected by provider")
		return nil, body.Error
	}
	if body.ErrorType != "" || body.ErrorMessage != "" {
		apiErr := &APIError{
			Message:   body.ErrorMessage,
			ErrorType: body.ErrorType,
			Code:      body.Code,
		}
		c.logger.WithContext(ctx).WithError(apiErr).Warn("token exchange rejected by provider")
		return nil, apiErr
	}
	if body.AccessToken == "" {
		return nil, ErrNoToken
	}

	c.logger.WithContext(ctx).Info("exchanged authorization code for access token")

	return &TokenExchange{
		AccessToken: body.AccessToken,
		UserID:      body.UserID.String(),
		Permissions: body.Permissions,
	}, nil
}

type refreshResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresIn   int64     `json:"expires_in"`
	Error       *APIError `json:"error"`
}

// Refresh trades a still-valid long-lived token for a fresh one. The caller
// owns expiry bookkeeping; the stored credential is always treated as good
// for 60 days from the refresh.
func (c *Client) Refresh(ctx context.Context, accessToken string) (string, error) {
	ctx, span := tracing.StartSpan(ctx, "instagram.Refresh")
	defer span.End()

	query := neturl.Values{}
	query.Set("grant_type", "ig_refresh_token")
	query.Set("access_token", accessToken)
	url := fmt.Sprintf("%s/refresh_access_token?%s", c.baseURL, query.Encode())

	resp, err := c.http.Get(ctx, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrRefreshFailed, err)
	}

	var body refreshResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return "", fmt.Errorf("%w: malformed response", ErrRefreshFailed)
	}

	if body.Error != nil {
		c.logger.WithContext(ctx).WithError(body.Error).Warn("token refresh rejected by provider")
		return "", fmt.Errorf("%w: %s", ErrRefreshFailed, body.Error.Message)
	}
	if body.AccessToken == "" {
		return "", ErrRefreshFailed
	}

	c.logger.WithContext(ctx).Info("refreshed access token")
	return body.AccessToken, nil
}
