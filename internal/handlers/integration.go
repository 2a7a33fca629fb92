package handlers

import (
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/instagram"
	"github.com/Ramsey-B/fern/pkg/media"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/tokens"
)

// IntegrationHandler handles Instagram integration API requests
type IntegrationHandler struct {
	tokens    *tokens.Service
	media     *media.Service
	instagram *instagram.Client
	repo      repositories.IntegrationRepo
	logger    ectologger.Logger
}

// NewIntegrationHandler creates a new integration handler
func NewIntegrationHandler(
	tokenService *tokens.Service,
	mediaService *media.Service,
	client *instagram.Client,
	repo repositories.IntegrationRepo,
	logger ectologger.Logger,
) *IntegrationHandler {
	return &IntegrationHandler{
		tokens:    tokenService,
		media:     mediaService,
		instagram: client,
		repo:      repo,
		logger:    logger,
	}
}

// ConnectRequest is the request body for connecting an Instagram account
type ConnectRequest struct {
	Code string `json:"code" validate:"required"`
}

// OAuthURLResponse carries the embedded OAuth URL for the frontend
type OAuthURLResponse struct {
	URL string `json:"url"`
}

// RegisterRoutes registers the integration routes
func (h *IntegrationHandler) RegisterRoutes(g *echo.Group) {
	integrations := g.Group("/integrations/instagram")
	integrations.GET("/oauth", h.OAuthURL)
	integrations.POST("", h.Connect)
	integrations.GET("", h.Get)
	integrations.GET("/media", h.ListMedia)
}

// OAuthURL handles GET /integrations/instagram/oauth
func (h *IntegrationHandler) OAuthURL(c echo.Context) error {
	return SuccessResponse(c, OAuthURLResponse{URL: h.instagram.OAuthURL()})
}

// Connect handles POST /integrations/instagram. It exchanges the OAuth code
// for a long-lived token and stores the integration.
func (h *IntegrationHandler) Connect(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := GetUserID(c); err != nil {
		return err
	}

	var req ConnectRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if req.Code == "" {
		return BadRequest("code is required")
	}

	integration, err := h.tokens.Connect(ctx, req.Code)
	if err != nil {
		return err
	}

	return CreatedResponse(c, integration)
}

// Get handles GET /integrations/instagram
func (h *IntegrationHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := GetUserID(c); err != nil {
		return err
	}

	integration, err := h.repo.GetByUserID(ctx, models.ProviderInstagram)
	if err != nil {
		return err
	}

	return SuccessResponse(c, integration)
}

// ListMedia handles GET /integrations/instagram/media. It returns the
// account's recent posts for attaching to automations.
func (h *IntegrationHandler) ListMedia(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := GetUserID(c); err != nil {
		return err
	}

	integration, err := h.repo.GetByUserID(ctx, models.ProviderInstagram)
	if err != nil {
		return err
	}

	items, err := h.media.FetchRecent(ctx, integration)
	if err != nil {
		return err
	}

	return SuccessResponse(c, items)
}
