package repositories

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const automationsTable = "automations"

var automationStruct = database.NewStruct(new(models.Automation))

// AutomationRepository handles database operations for automations and
// hydrates their listener, trigger, keyword and post relations.
type AutomationRepository struct {
	*Repository
	listeners *ListenerRepository
	triggers  *TriggerRepository
	keywords  *KeywordRepository
	posts     *PostRepository
}

// NewAutomationRepository creates a new automation repository
func NewAutomationRepository(db database.DB, logger ectologger.Logger) *AutomationRepository {
	return &AutomationRepository{
		Repository: NewRepository(db, logger),
		listeners:  NewListenerRepository(db, logger),
		triggers:   NewTriggerRepository(db, logger),
		keywords:   NewKeywordRepository(db, logger),
		posts:      NewPostRepository(db, logger),
	}
}

// Create creates a new automation for the current user. New automations start
// inactive.
func (r *AutomationRepository) Create(ctx context.Context, automation *models.Automation) error {
	ctx, span := tracing.StartSpan(ctx, "AutomationRepository.Create")
	defer span.End()

	userID, err := GetUserID(ctx)
	if err != nil {
		return err
	}
	automation.UserID = userID

	if automation.ID == uuid.Nil {
		automation.ID = uuid.New()
	}
	if automation.Name == "" {
		automation.Name = "Untitled"
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(automationsTable).
		Cols("id", "user_id", "name", "active", "created_at", "updated_at").
		Values(automation.ID, automation.UserID, automation.Name, automation.Active,
			sqlbuilder.Raw("NOW()"), sqlbuilder.Raw("NOW()")).
		Returning("created_at", "updated_at")

	query, args := ib.Build()
	err = r.DB().QueryRowContext(ctx, query, args...).Scan(&automation.CreatedAt, &automation.UpdatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"automation_id": automation.ID,
		}).Error("failed to create automation")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create automation")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"automation_id": automation.ID,
	}).Debugf("Created %s", automationsTable)
	return nil
}

// GetByID retrieves an automation with all relations (user-scoped)
func (r *AutomationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Automation, error) {
	ctx, span := tracing.StartSpan(ctx, "AutomationRepository.GetByID")
	defer span.End()

	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	sb := automationStruct.SelectFrom(automationsTable)
	sb.Where(sb.Equal("user_id", userID), sb.Equal("id", id))

	query, args := sb.Build()
	var automation models.Automation
	err = r.DB().GetContext(ctx, &automation, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "automation %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"automation_id": id,
		}).Error("failed to get automation by ID")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get automation by ID")
	}

	if err := r.hydrate(ctx, &automation); err != nil {
		return nil, err
	}
	return &automation, nil
}

// List retrieves all automations for the current user with keywords and
// listeners attached.
func (r *AutomationRepository) List(ctx context.Context) ([]models.Automation, error) {
	ctx, span := tracing.StartSpan(ctx, "AutomationRepository.List")
	defer span.End()

	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	return r.listByUser(ctx, userID, false)
}

// ListActiveByUser retrieves a user's active automations with all relations.
// Called by the automation engine, which resolves the user itself.
func (r *AutomationRepository) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]models.Automation, error) {
	ctx, span := tracing.StartSpan(ctx, "AutomationRepository.ListActiveByUser")
	defer span.End()

	return r.listByUser(ctx, userID, true)
}

func (r *AutomationRepository) listByUser(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]models.Automation, error) {
	sb := automationStruct.SelectFrom(automationsTable)
	sb.Where(sb.Equal("user_id", userID))
	if activeOnly {
		sb.Where(sb.Equal("active", true))
	}
	sb.OrderBy("created_at")

	query, args := sb.Build()
	var automations []models.Automation
	err := r.DB().SelectContext(ctx, &automations, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list automations")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list automations")
	}

	for i := range automations {
		if err := r.hydrate(ctx, &automations[i]); err != nil {
			return nil, err
		}
	}
	return automations, nil
}

func (r *AutomationRepository) hydrate(ctx context.Context, automation *models.Automation) error {
	listener, err := r.listeners.GetByAutomation(ctx, automation.ID)
	if err != nil {
		return err
	}
	automation.Listener = listener

	triggers, err := r.triggers.ListByAutomation(ctx, automation.ID)
	if err != nil {
		return err
	}
	automation.Triggers = triggers

	keywords, err := r.keywords.ListByAutomation(ctx, automation.ID)
	if err != nil {
		return err
	}
	automation.Keywords = keywords

	posts, err := r.posts.ListByAutomation(ctx, automation.ID)
	if err != nil {
		return err
	}
	automation.Posts = posts

	return nil
}

// UpdateName renames an automation (user-scoped)
func (r *AutomationRepository) UpdateName(ctx context.Context, id uuid.UUID, name string) error {
	ctx, span := tracing.StartSpan(ctx, "AutomationRepository.UpdateName")
	defer span.End()

	return r.update(ctx, id, func(ub *database.UpdateBuilder) string {
		return ub.Assign("name", name)
	})
}

// SetActive toggles an automation on or off (user-scoped)
func (r *AutomationRepository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	ctx, span := tracing.StartSpan(ctx, "AutomationRepository.SetActive")
	defer span.End()

	return r.update(ctx, id, func(ub *database.UpdateBuilder) string {
		return ub.Assign("active", active)
	})
}

func (r *AutomationRepository) update(ctx context.Context, id uuid.UUID, assign func(*database.UpdateBuilder) string) error {
	userID, err := GetUserID(ctx)
	if err != nil {
		return err
	}

	ub := database.NewUpdateBuilder()
	ub.Update(automationsTable).
		Set(
			assign(ub),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(ub.Equal("user_id", userID), ub.Equal("id", id))
	ub.SQL("RETURNING updated_at")

	query, args := ub.Build()
	var updatedAt sql.NullTime
	err = r.DB().QueryRowContext(ctx, query, args...).Scan(&updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "automation %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"automation_id": id,
		}).Error("failed to update automation")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update automation")
	}

	return nil
}

// Clone copies an existing automation with its listener, triggers and
// keywords into a new inactive automation. Attached posts are not copied.
func (r *AutomationRepository) Clone(ctx context.Context, sourceID uuid.UUID) (*models.Automation, error) {
	ctx, span := tracing.StartSpan(ctx, "AutomationRepository.Clone")
	defer span.End()

	source, err := r.GetByID(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	ctx, tx, err := r.DB().GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to clone automation")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	clone := &models.Automation{
		ID:     uuid.New(),
		UserID: source.UserID,
		Name:   source.Name + " (copy)",
		Active: false,
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(automationsTable).
		Cols("id", "user_id", "name", "active", "created_at", "updated_at").
		Values(clone.ID, clone.UserID, clone.Name, clone.Active,
			sqlbuilder.Raw("NOW()"), sqlbuilder.Raw("NOW()")).
		Returning("created_at", "updated_at")
	query, args := ib.Build()
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&clone.CreatedAt, &clone.UpdatedAt); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to clone automation")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to clone automation")
	}

	if source.Listener != nil {
		lb := database.NewInsertBuilder()
		lb.InsertInto(listenersTable).
			Cols("id", "automation_id", "type", "prompt", "reply", "dm_count", "comment_count").
			Values(uuid.New(), clone.ID, source.Listener.Type, source.Listener.Prompt, source.Listener.Reply, 0, 0)
		query, args = lb.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("failed to clone listener")
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to clone automation")
		}
	}

	for _, trigger := range source.Triggers {
		tb := database.NewInsertBuilder()
		tb.InsertInto(triggersTable).
			Cols("id", "automation_id", "type").
			Values(uuid.New(), clone.ID, trigger.Type)
		query, args = tb.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("failed to clone trigger")
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to clone automation")
		}
	}

	for _, keyword := range source.Keywords {
		kb := database.NewInsertBuilder()
		kb.InsertInto(keywordsTable).
			Cols("id", "automation_id", "word").
			Values(uuid.New(), clone.ID, keyword.Word)
		query, args = kb.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("failed to clone keyword")
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to clone automation")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to clone automation")
	}

	return r.GetByID(ctx, clone.ID)
}
