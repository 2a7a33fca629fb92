package handlers

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
)

// AutomationHandler handles automation API requests
type AutomationHandler struct {
	automations repositories.AutomationRepo
	listeners   repositories.ListenerRepo
	triggers    repositories.TriggerRepo
	keywords    repositories.KeywordRepo
	posts       repositories.PostRepo
}

// NewAutomationHandler creates a new automation handler
func NewAutomationHandler(
	automations repositories.AutomationRepo,
	listeners repositories.ListenerRepo,
	triggers repositories.TriggerRepo,
	keywords repositories.KeywordRepo,
	posts repositories.PostRepo,
) *AutomationHandler {
	return &AutomationHandler{
		automations: automations,
		listeners:   listeners,
		triggers:    triggers,
		keywords:    keywords,
		posts:       posts,
	}
}

// CreateAutomationRequest is the request body for creating an automation
type CreateAutomationRequest struct {
	Name string `json:"name,omitempty"`
}

// UpdateAutomationRequest is the request body for renaming an automation
type UpdateAutomationRequest struct {
	Name string `json:"name" validate:"required"`
}

// UpsertListenerRequest is the request body for setting an automation's listener
type UpsertListenerRequest struct {
	Type   models.ListenerType `json:"type" validate:"required"`
	Prompt string              `json:"prompt" validate:"required"`
	Reply  *string             `json:"reply,omitempty"`
}

// ReplaceTriggersRequest is the request body for replacing an automation's triggers
type ReplaceTriggersRequest struct {
	Types []models.TriggerType `json:"types" validate:"required"`
}

// CreateKeywordRequest is the request body for adding a keyword
type CreateKeywordRequest struct {
	Word string `json:"word" validate:"required"`
}

// AttachPostsRequest is the request body for attaching posts
type AttachPostsRequest struct {
	Posts []AttachPostItem `json:"posts" validate:"required"`
}

// AttachPostItem is one post to attach to an automation
type AttachPostItem struct {
	PostID    string  `json:"post_id" validate:"required"`
	Caption   *string `json:"caption,omitempty"`
	Media     string  `json:"media"`
	MediaType string  `json:"media_type"`
}

// RegisterRoutes registers the automation routes
func (h *AutomationHandler) RegisterRoutes(g *echo.Group) {
	automations := g.Group("/automations")
	automations.POST("", h.Create)
	automations.GET("", h.List)
	automations.GET("/:id", h.Get)
	automations.PATCH("/:id", h.UpdateName)
	automations.POST("/:id/clone", h.Clone)
	automations.POST("/:id/activate", h.Activate)
	automations.POST("/:id/disable", h.Disable)
	automations.PUT("/:id/listener", h.UpsertListener)
	automations.PUT("/:id/triggers", h.ReplaceTriggers)
	automations.POST("/:id/keywords", h.AddKeyword)
	automations.DELETE("/keywords/:keywordId", h.DeleteKeyword)
	automations.PUT("/:id/posts", h.AttachPosts)
}

// Create handles POST /automations
func (h *AutomationHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := GetUserID(c); err != nil {
		return err
	}

	var req CreateAutomationRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}

	automation := &models.Automation{
		Name: req.Name,
	}
	if err := h.automations.Create(ctx, automation); err != nil {
		return err
	}

	return CreatedResponse(c, automation)
}

// List handles GET /automations
func (h *AutomationHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	if _, err := GetUserID(c); err != nil {
		return err
	}

	automations, err := h.automations.List(ctx)
	if err != nil {
		return err
	}

	return SuccessResponse(c, automations)
}

// Get handles GET /automations/:id
func (h *AutomationHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	automation, err := h.automations.GetByID(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, automation)
}

// UpdateName handles PATCH /automations/:id
func (h *AutomationHandler) UpdateName(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	var req UpdateAutomationRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if req.Name == "" {
		return BadRequest("name is required")
	}

	if err := h.automations.UpdateName(ctx, id, req.Name); err != nil {
		return err
	}

	automation, err := h.automations.GetByID(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, automation)
}

// Clone handles POST /automations/:id/clone. The copy starts inactive and
// does not carry over attached posts.
func (h *AutomationHandler) Clone(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	clone, err := h.automations.Clone(ctx, id)
	if err != nil {
		return err
	}

	return CreatedResponse(c, clone)
}

// Activate handles POST /automations/:id/activate
func (h *AutomationHandler) Activate(c echo.Context) error {
	return h.setActive(c, true)
}

// Disable handles POST /automations/:id/disable
func (h *AutomationHandler) Disable(c echo.Context) error {
	return h.setActive(c, false)
}

func (h *AutomationHandler) setActive(c echo.Context, active bool) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.automations.SetActive(ctx, id, active); err != nil {
		return err
	}

	return SuccessResponse(c, map[string]bool{"active": active})
}

// UpsertListener handles PUT /automations/:id/listener
func (h *AutomationHandler) UpsertListener(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	// Ownership check before touching child rows
	if _, err := h.automations.GetByID(ctx, id); err != nil {
		return err
	}

	var req UpsertListenerRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if req.Type != models.ListenerMessage && req.Type != models.ListenerSmartAI {
		return BadRequest("type must be MESSAGE or SMARTAI")
	}
	if req.Prompt == "" {
		return BadRequest("prompt is required")
	}

	listener := &models.Listener{
		ID:           uuid.New(),
		AutomationID: id,
		Type:         req.Type,
		Prompt:       req.Prompt,
		Reply:        req.Reply,
	}
	if err := h.listeners.Upsert(ctx, listener); err != nil {
		return err
	}

	return SuccessResponse(c, listener)
}

// ReplaceTriggers handles PUT /automations/:id/triggers
func (h *AutomationHandler) ReplaceTriggers(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	if _, err := h.automations.GetByID(ctx, id); err != nil {
		return err
	}

	var req ReplaceTriggersRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	for _, t := range req.Types {
		if t != models.TriggerComment && t != models.TriggerDM {
			return BadRequest("trigger types must be COMMENT or DM")
		}
	}

	triggers, err := h.triggers.Replace(ctx, id, req.Types)
	if err != nil {
		return err
	}

	return SuccessResponse(c, triggers)
}

// AddKeyword handles POST /automations/:id/keywords
func (h *AutomationHandler) AddKeyword(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	if _, err := h.automations.GetByID(ctx, id); err != nil {
		return err
	}

	var req CreateKeywordRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	if req.Word == "" {
		return BadRequest("word is required")
	}

	keyword := &models.Keyword{
		ID:           uuid.New(),
		AutomationID: id,
		Word:         req.Word,
	}
	if err := h.keywords.Create(ctx, keyword); err != nil {
		return err
	}

	return CreatedResponse(c, keyword)
}

// DeleteKeyword handles DELETE /automations/keywords/:keywordId
func (h *AutomationHandler) DeleteKeyword(c echo.Context) error {
	ctx := c.Request().Context()

	keywordID, err := ParseUUID(c, "keywordId")
	if err != nil {
		return err
	}

	if err := h.keywords.Delete(ctx, keywordID); err != nil {
		return err
	}

	return NoContentResponse(c)
}

// AttachPosts handles PUT /automations/:id/posts
func (h *AutomationHandler) AttachPosts(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	if _, err := h.automations.GetByID(ctx, id); err != nil {
		return err
	}

	var req AttachPostsRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}

	posts := make([]models.Post, 0, len(req.Posts))
	for _, item := range req.Posts {
		if item.PostID == "" {
			return BadRequest("post_id is required for every post")
		}
		posts = append(posts, models.Post{
			ID:           uuid.New(),
			AutomationID: id,
			PostID:       item.PostID,
			Caption:      item.Caption,
			Media:        item.Media,
			MediaType:    item.MediaType,
		})
	}

	attached, err := h.posts.Attach(ctx, id, posts)
	if err != nil {
		return err
	}

	return SuccessResponse(c, attached)
}
