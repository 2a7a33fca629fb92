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

const keywordsTable = "keywords"

var keywordStruct = database.NewStruct(new(models.Keyword))

// KeywordRepository handles database operations for automation keywords
type KeywordRepository struct {
	*Repository
}

// NewKeywordRepository creates a new keyword repository
func NewKeywordRepository(db database.DB, logger ectologger.Logger) *KeywordRepository {
	return &KeywordRepository{
		Repository: NewRepository(db, logger),
	}
}

// Create adds a keyword to an automation
func (r *KeywordRepository) Create(ctx context.Context, keyword *models.Keyword) error {
	ctx, span := tracing.StartSpan(ctx, "KeywordRepository.Create")
	defer span.End()

	if keyword.ID == uuid.Nil {
		keyword.ID = uuid.New()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(keywordsTable).
		Cols("id", "automation_id", "word").
		Values(keyword.ID, keyword.AutomationID, keyword.Word)

	query, args := ib.Build()
	if _, err := r.DB().ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"automation_id": keyword.AutomationID,
		}).Error("failed to create keyword")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create keyword")
	}

	return nil
}

// Delete removes a keyword by id, verifying the owning automation belongs to
// the current user. Returns 404 when the keyword does not exist or belongs to
// someone else.
func (r *KeywordRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "KeywordRepository.Delete")
	defer span.End()

	userID, err := GetUserID(ctx)
	if err != nil {
		return err
	}

	query := `
		DELETE FROM keywords
		USING automations
		WHERE keywords.automation_id = automations.id
		  AND automations.user_id = $1
		  AND keywords.id = $2`

	result, err := r.DB().ExecContext(ctx, query, userID, id)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"keyword_id": id,
		}).Error("failed to delete keyword")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete keyword")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"keyword_id": id,
		}).Error("failed to delete keyword")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete keyword")
	}
	if rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "keyword %s does not exist", id)
	}

	return nil
}

// ListByAutomation retrieves the keywords of an automation in insertion order
func (r *KeywordRepository) ListByAutomation(ctx context.Context, automationID uuid.UUID) ([]models.Keyword, error) {
	ctx, span := tracing.StartSpan(ctx, "KeywordRepository.ListByAutomation")
	defer span.End()

	sb := keywordStruct.SelectFrom(keywordsTable)
	sb.Where(sb.Equal("automation_id", automationID))
	sb.OrderBy("id")

	query, args := sb.Build()
	var keywords []models.Keyword
	err := r.DB().SelectContext(ctx, &keywords, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"automation_id": automationID,
		}).Error("failed to list keywords")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list keywords")
	}

	return keywords, nil
}
