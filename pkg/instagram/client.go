package instagram

import (
	"fmt"
	neturl "net/url"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/httpclient"
)

const apiVersion = "v21.0"

// Config holds the Instagram app credentials and endpoints
type Config struct {
	// BaseURL is the Graph API root, e.g. https://graph.instagram.com
	BaseURL string
	// TokenURL is the authorization-code exchange endpoint
	TokenURL string
	// ClientID is the Instagram app client id
	ClientID string
	// ClientSecret is the Instagram app client secret
	ClientSecret string
	// EmbeddedOAuthURL is the full OAuth URL presented to users. The
	// redirect_uri inside it is the one the provider validated, so the code
	// exchange must send that exact string.
	EmbeddedOAuthURL string
}

// Client talks to the Instagram Graph API
type Client struct {
	http        *httpclient.Client
	logger      ectologger.Logger
	baseURL     string
	tokenURL    string
	clientID    string
	clientSecret string
	redirectURI string
	oauthURL    string
}

// NewClient creates a new Instagram API client. It fails when the embedded
// OAuth URL does not carry a redirect_uri, since the exchange would always be
// rejected.
func NewClient(cfg Config, http *httpclient.Client, logger ectologger.Logger) (*Client, error) {
	redirectURI, err := extractRedirectURI(cfg.EmbeddedOAuthURL)
	if err != nil {
		return nil, err
	}

	return &Client{
		http:         http,
		logger:       logger,
		baseURL:      cfg.BaseURL,
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		redirectURI:  redirectURI,
		oauthURL:     cfg.EmbeddedOAuthURL,
	}, nil
}

// OAuthURL returns the embedded OAuth URL users are sent to
func (c *Client) OAuthURL() string {
	return c.oauthURL
}

// RedirectURI returns the redirect_uri extracted from the embedded OAuth URL
func (c *Client) RedirectURI() string {
	return c.redirectURI
}

func extractRedirectURI(oauthURL string) (string, error) {
	parsed, err := neturl.Parse(oauthURL)
	if err != nil {
		return "", fmt.Errorf("invalid embedded oauth url: %w", err)
	}

	redirectURI := parsed.Query().Get("redirect_uri")
	if redirectURI == "" {
		return "", fmt.Errorf("embedded oauth url has no redirect_uri param")
	}
	return redirectURI, nil
}

func (c *Client) graphURL(path string) string {
	return fmt.Sprintf("%s/%s%s", c.baseURL, apiVersion, path)
}

func bearer(token string) map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + token,
	}
}
