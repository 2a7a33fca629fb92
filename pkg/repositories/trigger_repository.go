package repositories

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const triggersTable = "triggers"

var triggerStruct = database.NewStruct(new(models.Trigger))

// TriggerRepository handles database operations for automation triggers
type TriggerRepository struct {
	*Repository
}

// NewTriggerRepository creates a new trigger repository
func NewTriggerRepository(db database.DB, logger ectologger.Logger) *TriggerRepository {
	return &TriggerRepository{
		Repository: NewRepository(db, logger),
	}
}

// Replace swaps the trigger set of an automation for the given types
func (r *TriggerRepository) Replace(ctx context.Context, automationID uuid.UUID, types []models.TriggerType) ([]models.Trigger, error) {
	ctx, span := tracing.StartSpan(ctx, "TriggerRepository.Replace")
	defer span.End()

	ctx, tx, err := r.DB().GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to save triggers")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	db := database.NewDeleteBuilder()
	db.DeleteFrom(triggersTable).Where(db.Equal("automation_id", automationID))
	query, args := db.Build()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"automation_id": automationID,
		}).Error("failed to clear triggers")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to save triggers")
	}

	triggers := make([]models.Trigger, 0, len(types))
	for _, t := range types {
		trigger := models.Trigger{
			ID:           uuid.New(),
			AutomationID: automationID,
			Type:         t,
		}

		ib := database.NewInsertBuilder()
		ib.InsertInto(triggersTable).
			Cols("id", "automation_id", "type").
			Values(trigger.ID, trigger.AutomationID, trigger.Type)
		query, args = ib.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"automation_id": automationID,
			}).Error("failed to insert trigger")
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to save triggers")
		}
		triggers = append(triggers, trigger)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to save triggers")
	}

	return triggers, nil
}

// ListByAutomation retrieves the triggers of an automation
func (r *TriggerRepository) ListByAutomation(ctx context.Context, automationID uuid.UUID) ([]models.Trigger, error) {
	ctx, span := tracing.StartSpan(ctx, "TriggerRepository.ListByAutomation")
	defer span.End()

	sb := triggerStruct.SelectFrom(triggersTable)
	sb.Where(sb.Equal("automation_id", automationID))

	query, args := sb.Build()
	var triggers []models.Trigger
	err := r.DB().SelectContext(ctx, &triggers, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"automation_id": automationID,
		}).Error("failed to list triggers")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list triggers")
	}

	return triggers, nil
}
