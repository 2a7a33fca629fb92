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

const postsTable = "posts"

var postStruct = database.NewStruct(new(models.Post))

// PostRepository handles database operations for automation post attachments
type PostRepository struct {
	*Repository
}

// NewPostRepository creates a new post repository
func NewPostRepository(db database.DB, logger ectologger.Logger) *PostRepository {
	return &PostRepository{
		Repository: NewRepository(db, logger),
	}
}

// Attach links a batch of Instagram media items to an automation
func (r *PostRepository) Attach(ctx context.Context, automationID uuid.UUID, posts []models.Post) ([]models.Post, error) {
	ctx, span := tracing.StartSpan(ctx, "PostRepository.Attach")
	defer span.End()

	if len(posts) == 0 {
		return nil, nil
	}

	ctx, tx, err := r.DB().GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to attach posts")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	attached := make([]models.Post, 0, len(posts))
	for _, post := range posts {
		post.ID = uuid.New()
		post.AutomationID = automationID

		ib := database.NewInsertBuilder()
		ib.InsertInto(postsTable).
			Cols("id", "automation_id", "post_id", "caption", "media", "media_type").
			Values(post.ID, post.AutomationID, post.PostID, post.Caption, post.Media, post.MediaType)

		query, args := ib.Build()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"automation_id": automationID,
				"post_id":       post.PostID,
			}).Error("failed to attach post")
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to attach posts")
		}
		attached = append(attached, post)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to attach posts")
	}

	return attached, nil
}

// ListByAutomation retrieves the posts attached to an automation
func (r *PostRepository) ListByAutomation(ctx context.Context, automationID uuid.UUID) ([]models.Post, error) {
	ctx, span := tracing.StartSpan(ctx, "PostRepository.ListByAutomation")
	defer span.End()

	sb := postStruct.SelectFrom(postsTable)
	sb.Where(sb.Equal("automation_id", automationID))

	query, args := sb.Build()
	var posts []models.Post
	err := r.DB().SelectContext(ctx, &posts, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"automation_id": automationID,
		}).Error("failed to list posts")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list posts")
	}

	return posts, nil
}
