package repositories

import (
	"context"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/google/uuid"
)

// IntegrationRepo defines the interface for integration repository operations
type IntegrationRepo interface {
	Create(ctx context.Context, integration *models.Integration) error
	GetByUserID(ctx context.Context, provider models.IntegrationProvider) (*models.Integration, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Integration, error)
	GetByInstagramID(ctx context.Context, instagramID string) (*models.Integration, error)
	UpdateToken(ctx context.Context, id uuid.UUID, accessToken string, expiresAt time.Time, instagramID *string) (*models.Integration, error)
	ListExpiring(ctx context.Context, before time.Time, limit int) ([]models.Integration, error)
}

// AutomationRepo defines the interface for automation repository operations
type AutomationRepo interface {
	Create(ctx context.Context, automation *models.Automation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Automation, error)
	List(ctx context.Context) ([]models.Automation, error)
	ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]models.Automation, error)
	UpdateName(ctx context.Context, id uuid.UUID, name string) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Clone(ctx context.Context, sourceID uuid.UUID) (*models.Automation, error)
}

// ListenerRepo defines the interface for listener repository operations
type ListenerRepo interface {
	Upsert(ctx context.Context, listener *models.Listener) error
	GetByAutomation(ctx context.Context, automationID uuid.UUID) (*models.Listener, error)
	IncrementCount(ctx context.Context, listenerID uuid.UUID, trigger models.TriggerType) error
}

// TriggerRepo defines the interface for trigger repository operations
type TriggerRepo interface {
	Replace(ctx context.Context, automationID uuid.UUID, types []models.TriggerType) ([]models.Trigger, error)
	ListByAutomation(ctx context.Context, automationID uuid.UUID) ([]models.Trigger, error)
}

// KeywordRepo defines the interface for keyword repository operations
type KeywordRepo interface {
	Create(ctx context.Context, keyword *models.Keyword) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByAutomation(ctx context.Context, automationID uuid.UUID) ([]models.Keyword, error)
}

// PostRepo defines the interface for post repository operations
type PostRepo interface {
	Attach(ctx context.Context, automationID uuid.UUID, posts []models.Post) ([]models.Post, error)
	ListByAutomation(ctx context.Context, automationID uuid.UUID) ([]models.Post, error)
}
