package repositories

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const integrationsTable = "integrations"

var integrationStruct = database.NewStruct(new(models.Integration))

// IntegrationRepository handles database operations for platform integrations.
// Integrations are never deleted; a re-connect overwrites the stored token.
type IntegrationRepository struct {
	*Repository
}

// NewIntegrationRepository creates a new integration repository
func NewIntegrationRepository(db database.DB, logger ectologger.Logger) *IntegrationRepository {
	return &IntegrationRepository{
		Repository: NewRepository(db, logger),
	}
}

// Create creates a new integration for the current user
func (r *IntegrationRepository) Create(ctx context.Context, integration *models.Integration) error {
	ctx, span := tracing.StartSpan(ctx, "IntegrationRepository.Create")
	defer span.End()

	userID, err := GetUserID(ctx)
	if err != nil {
		return err
	}
	integration.UserID = userID

	if integration.ID == uuid.Nil {
		integration.ID = uuid.New()
	}
	if integration.Provider == "" {
		integration.Provider = models.ProviderInstagram
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(integrationsTable).
		Cols("id", "user_id", "provider", "access_token", "expires_at", "instagram_id", "permissions", "created_at", "updated_at").
		Values(integration.ID, integration.UserID, integration.Provider, integration.AccessToken,
			integration.ExpiresAt, integration.InstagramID, integration.Permissions,
			sqlbuilder.Raw("NOW()"), sqlbuilder.Raw("NOW()")).
		Returning("created_at", "updated_at")

	query, args := ib.Build()
	err = r.DB().QueryRowContext(ctx, query, args...).Scan(&integration.CreatedAt, &integration.UpdatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"integration_id": integration.ID,
		}).Error("failed to create integration")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create integration")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"integration_id": integration.ID,
	}).Debugf("Created %s", integrationsTable)
	return nil
}

// GetByUserID retrieves the current user's integration for a provider.
// A user holds at most one integration per provider; if historical rows
// exist the oldest one wins.
func (r *IntegrationRepository) GetByUserID(ctx context.Context, provider models.IntegrationProvider) (*models.Integration, error) {
	ctx, span := tracing.StartSpan(ctx, "IntegrationRepository.GetByUserID")
	defer span.End()

	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	sb := integrationStruct.SelectFrom(integrationsTable)
	sb.Where(sb.Equal("user_id", userID), sb.Equal("provider", provider))
	sb.OrderBy("created_at").Limit(1)

	query, args := sb.Build()
	var integration models.Integration
	err = r.DB().GetContext(ctx, &integration, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "no %s integration for user", provider)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"provider": provider,
		}).Error("failed to get integration by user")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get integration by user")
	}

	return &integration, nil
}

// GetByID retrieves an integration by its primary key. Used by background
// workers which carry no user context.
func (r *IntegrationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Integration, error) {
	ctx, span := tracing.StartSpan(ctx, "IntegrationRepository.GetByID")
	defer span.End()

	sb := integrationStruct.SelectFrom(integrationsTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var integration models.Integration
	err := r.DB().GetContext(ctx, &integration, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "integration %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"integration_id": id,
		}).Error("failed to get integration by ID")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get integration by ID")
	}

	return &integration, nil
}

// GetByInstagramID retrieves the integration owning an Instagram account id.
// Used by the automation engine to resolve inbound events to a user.
func (r *IntegrationRepository) GetByInstagramID(ctx context.Context, instagramID string) (*models.Integration, error) {
	ctx, span := tracing.StartSpan(ctx, "IntegrationRepository.GetByInstagramID")
	defer span.End()

	sb := integrationStruct.SelectFrom(integrationsTable)
	sb.Where(sb.Equal("instagram_id", instagramID))
	sb.OrderBy("created_at").Limit(1)

	query, args := sb.Build()
	var integration models.Integration
	err := r.DB().GetContext(ctx, &integration, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "no integration for instagram account %s", instagramID)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"instagram_id": instagramID,
		}).Error("failed to get integration by instagram ID")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get integration by instagram ID")
	}

	return &integration, nil
}

// UpdateToken replaces the stored credential in place. Both the exchange
// (re-connect) and refresh paths land here; expiry is always supplied by the
// caller.
func (r *IntegrationRepository) UpdateToken(ctx context.Context, id uuid.UUID, accessToken string, expiresAt time.Time, instagramID *string) (*models.Integration, error) {
	ctx, span := tracing.StartSpan(ctx, "IntegrationRepository.UpdateToken")
	defer span.End()

	ub := database.NewUpdateBuilder()
	assignments := []string{
		ub.Assign("access_token", accessToken),
		ub.Assign("expires_at", expiresAt),
		ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
	}
	if instagramID != nil {
		assignments = append(assignments, ub.Assign("instagram_id", *instagramID))
	}
	ub.Update(integrationsTable).
		Set(assignments...).
		Where(ub.Equal("id", id))
	ub.SQL("RETURNING updated_at")

	query, args := ub.Build()
	var updatedAt time.Time
	err := r.DB().QueryRowContext(ctx, query, args...).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "integration %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"integration_id": id,
		}).Error("failed to update integration token")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update integration token")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"integration_id": id,
		"expires_at":     expiresAt,
	}).Info("rotated integration token")

	return r.GetByID(ctx, id)
}

// ListExpiring returns integrations whose tokens expire before the cutoff.
// The scheduler refreshes these proactively.
func (r *IntegrationRepository) ListExpiring(ctx context.Context, before time.Time, limit int) ([]models.Integration, error) {
	ctx, span := tracing.StartSpan(ctx, "IntegrationRepository.ListExpiring")
	defer span.End()

	if limit <= 0 {
		limit = 100
	}

	sb := integrationStruct.SelectFrom(integrationsTable)
	sb.Where(sb.LessThan("expires_at", before))
	sb.OrderBy("expires_at").Limit(limit)

	query, args := sb.Build()
	var integrations []models.Integration
	err := r.DB().SelectContext(ctx, &integrations, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list expiring integrations")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list expiring integrations")
	}

	return integrations, nil
}
