package repositories

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const listenersTable = "listeners"

var listenerStruct = database.NewStruct(new(models.Listener))

// ListenerRepository handles database operations for automation listeners
type ListenerRepository struct {
	*Repository
}

// NewListenerRepository creates a new listener repository
func NewListenerRepository(db database.DB, logger ectologger.Logger) *ListenerRepository {
	return &ListenerRepository{
		Repository: NewRepository(db, logger),
	}
}

// Upsert saves the listener for an automation, replacing any existing one.
// An automation has exactly one listener.
func (r *ListenerRepository) Upsert(ctx context.Context, listener *models.Listener) error {
	ctx, span := tracing.StartSpan(ctx, "ListenerRepository.Upsert")
	defer span.End()

	if listener.ID == uuid.Nil {
		listener.ID = uuid.New()
	}

	query := `
		INSERT INTO listeners (id, automation_id, type, prompt, reply, dm_count, comment_count)
		VALUES ($1, $2, $3, $4, $5, 0, 0)
		ON CONFLICT (automation_id) DO UPDATE
		SET type = EXCLUDED.type, prompt = EXCLUDED.prompt, reply = EXCLUDED.reply
		RETURNING id, dm_count, comment_count`

	err := r.DB().QueryRowContext(ctx, query,
		listener.ID, listener.AutomationID, listener.Type, listener.Prompt, listener.Reply,
	).Scan(&listener.ID, &listener.DMCount, &listener.CommentCount)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"automation_id": listener.AutomationID,
		}).Error("failed to save listener")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to save listener")
	}

	return nil
}

// GetByAutomation retrieves the listener for an automation, nil when unset
func (r *ListenerRepository) GetByAutomation(ctx context.Context, automationID uuid.UUID) (*models.Listener, error) {
	ctx, span := tracing.StartSpan(ctx, "ListenerRepository.GetByAutomation")
	defer span.End()

	sb := listenerStruct.SelectFrom(listenersTable)
	sb.Where(sb.Equal("automation_id", automationID))

	query, args := sb.Build()
	var listener models.Listener
	err := r.DB().GetContext(ctx, &listener, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"automation_id": automationID,
		}).Error("failed to get listener")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get listener")
	}

	return &listener, nil
}

// IncrementCount bumps the per-channel reply counter after a successful
// dispatch.
func (r *ListenerRepository) IncrementCount(ctx context.Context, listenerID uuid.UUID, trigger models.TriggerType) error {
	ctx, span := tracing.StartSpan(ctx, "ListenerRepository.IncrementCount")
	defer span.End()

	column := "dm_count"
	if trigger == models.TriggerComment {
		column = "comment_count"
	}

	query := `UPDATE listeners SET ` + column + ` = ` + column + ` + 1 WHERE id = $1`
	if _, err := r.DB().ExecContext(ctx, query, listenerID); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"listener_id": listenerID,
		}).Error("failed to increment listener count")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to increment listener count")
	}

	return nil
}
