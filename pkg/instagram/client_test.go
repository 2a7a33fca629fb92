package instagram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/httpclient"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func newTestClient(t *testing.T, baseURL, tokenURL string) *Client {
	t.Helper()
	client, err := NewClient(Config{
		BaseURL:          baseURL,
		TokenURL:         tokenURL,
		ClientID:         "client-id",
		ClientSecret:     "client-secret",
		EmbeddedOAuthURL: "https://www.instagram.com/oauth/authorize?client_id=client-id&redirect_uri=https%3A%2F%2Fapp.example.com%2Fcallback&response_type=code",
	}, httpclient.NewClient(httpclient.DefaultConfig(), testLogger()), testLogger())
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresRedirectURI(t *testing.T) {
	_, err := NewClient(Config{
		EmbeddedOAuthURL: "https://www.instagram.com/oauth/authorize?client_id=client-id",
	}, httpclient.NewClient(httpclient.DefaultConfig(), testLogger()), testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redirect_uri")
}

func TestExchangeCode(t *testing.T) {
	var gotForm map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		gotForm = map[string]string{
			"client_id":     r.PostFormValue("client_id"),
			"client_secret": r.PostFormValue("client_secret"),
			"grant_type":    r.PostFormValue("grant_type"),
			"redirect_uri":  r.PostFormValue("redirect_uri"),
			"code":          r.PostFormValue("code"),
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "IGQVJlong-lived",
			"user_id":      17841400000000001,
			"permissions":  []string{"instagram_business_basic"},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, server.URL)

	exchange, err := client.ExchangeCode(context.Background(), "auth-code")
	require.NoError(t, err)

	assert.Equal(t, "IGQVJlong-lived", exchange.AccessToken)
	assert.Equal(t, "17841400000000001", exchange.UserID)
	assert.Equal(t, []string{"instagram_business_basic"}, exchange.Permissions)

	assert.Equal(t, "client-id", gotForm["client_id"])
	assert.Equal(t, "client-secret", gotForm["client_secret"])
	assert.Equal(t, "authorization_code", gotForm["grant_type"])
	assert.Equal(t, "auth-code", gotForm["code"])
	// The redirect_uri must be the exact string embedded in the OAuth URL
	assert.Equal(t, "https://app.example.com/callback", gotForm["redirect_uri"])
}

func TestExchangeCode_NoToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"user_id": 123})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, server.URL)

	_, err := client.ExchangeCode(context.Background(), "auth-code")
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestExchangeCode_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error_type":    "OAuthException",
			"error_message": "Invalid authorization code",
			"code":          400,
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, server.URL)

	_, err := client.ExchangeCode(context.Background(), "bad-code")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Invalid authorization code", apiErr.Message)
	assert.Equal(t, "OAuthException", apiErr.ErrorType)
}

func TestRefresh(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/refresh_access_token", r.URL.Path)
		assert.Equal(t, "ig_refresh_token", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "old-token", r.URL.Query().Get("access_token"))
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "new-token",
			"token_type":   "bearer",
			"expires_in":   5183944,
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, server.URL)

	token, err := client.Refresh(context.Background(), "old-token")
	require.NoError(t, err)
	assert.Equal(t, "new-token", token)
}

func TestRefresh_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "cannot refresh", "code": 100},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, server.URL)

	_, err := client.Refresh(context.Background(), "old-token")
	assert.ErrorIs(t, err, ErrRefreshFailed)
}

func TestFetchMedia(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v21.0/17841400000000001/media", r.URL.Path)
		assert.Equal(t, "id,caption,media_url,media_type,timestamp", r.URL.Query().Get("fields"))
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		assert.Equal(t, "token", r.URL.Query().Get("access_token"))
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"id": "1", "caption": "first", "media_url": "https://cdn/1.jpg", "media_type": "IMAGE"},
				{"id": "2", "media_url": "https://cdn/2.mp4", "media_type": "VIDEO"},
			},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, server.URL)

	items, err := client.FetchMedia(context.Background(), "token", "17841400000000001", 0)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "first", items[0].Caption)
	assert.Equal(t, "VIDEO", items[1].MediaType)
}

func TestFetchMedia_MeAlias(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v21.0/me/media", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{}})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, server.URL)

	_, err := client.FetchMedia(context.Background(), "token", "", 0)
	require.NoError(t, err)
}

func TestFetchMedia_ExpiredToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"message": "Error validating access token",
				"type":    "OAuthException",
				"code":    190,
			},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, server.URL)

	_, err := client.FetchMedia(context.Background(), "stale", "acct", 0)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.True(t, IsTokenExpired(err))
}

func TestFetchMedia_OtherErrorIsNotExpiry(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "Unsupported request", "code": 100},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, server.URL)

	_, err := client.FetchMedia(context.Background(), "token", "acct", 0)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.False(t, IsTokenExpired(err))
}

func TestSendDirectMessage(t *testing.T) {
	var got messageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v21.0/17841400000000001/messages", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{"recipient_id": "user", "message_id": "mid.1"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, server.URL)

	err := client.SendDirectMessage(context.Background(), "token", "17841400000000001", "user-123", "hello")
	require.NoError(t, err)

	assert.Equal(t, "user-123", got.Recipient.ID)
	assert.Empty(t, got.Recipient.CommentID)
	assert.Equal(t, "hello", got.Message.Text)
}

func TestSendPrivateReply(t *testing.T) {
	var got messageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(map[string]any{"message_id": "mid.2"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, server.URL)

	err := client.SendPrivateReply(context.Background(), "token", "acct", "comment-9", "check your DMs")
	require.NoError(t, err)

	assert.Equal(t, "comment-9", got.Recipient.CommentID)
	assert.Empty(t, got.Recipient.ID)
}

func TestSendMessage_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "User is not available", "code": 551},
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, server.URL)

	err := client.SendDirectMessage(context.Background(), "token", "acct", "user", "hi")
	assert.ErrorIs(t, err, ErrDispatchFailed)
}
