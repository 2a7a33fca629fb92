package repositories_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
)

func TestAutomationRepository_Lifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	logger := getTestLogger()
	repo := repositories.NewAutomationRepository(db, logger)

	userID := uuid.New()
	ctx := getTestContext(userID)

	automation := &models.Automation{}
	require.NoError(t, repo.Create(ctx, automation))
	assert.Equal(t, "Untitled", automation.Name)
	assert.Equal(t, userID, automation.UserID)
	assert.False(t, automation.Active)

	require.NoError(t, repo.UpdateName(ctx, automation.ID, "Order replies"))

	fetched, err := repo.GetByID(ctx, automation.ID)
	require.NoError(t, err)
	assert.Equal(t, "Order replies", fetched.Name)

	// Inactive automations are invisible to the engine
	active, err := repo.ListActiveByUser(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, active)

	require.NoError(t, repo.SetActive(ctx, automation.ID, true))
	active, err = repo.ListActiveByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, automation.ID, active[0].ID)

	// Other users can't reach it
	otherCtx := getTestContext(uuid.New())
	_, err = repo.GetByID(otherCtx, automation.ID)
	assertNotFound(t, err)
}

func TestAutomationRepository_ChildRows(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	logger := getTestLogger()
	automations := repositories.NewAutomationRepository(db, logger)
	listeners := repositories.NewListenerRepository(db, logger)
	triggers := repositories.NewTriggerRepository(db, logger)
	keywords := repositories.NewKeywordRepository(db, logger)

	userID := uuid.New()
	ctx := getTestContext(userID)

	automation := &models.Automation{Name: "Keyword DMs"}
	require.NoError(t, automations.Create(ctx, automation))

	// Upsert replaces the existing listener for the automation
	listener := &models.Listener{
		ID:           uuid.New(),
		AutomationID: automation.ID,
		Type:         models.ListenerMessage,
		Prompt:       "Thanks for reaching out!",
		Reply:        strPtr("Here is the order link"),
	}
	require.NoError(t, listeners.Upsert(ctx, listener))

	listener.Type = models.ListenerSmartAI
	listener.Prompt = "You are a helpful shop assistant"
	require.NoError(t, listeners.Upsert(ctx, listener))

	stored, err := listeners.GetByAutomation(ctx, automation.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.ListenerSmartAI, stored.Type)

	require.NoError(t, listeners.IncrementCount(ctx, stored.ID, models.TriggerDM))
	stored, err = listeners.GetByAutomation(ctx, automation.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.DMCount)
	assert.Equal(t, 0, stored.CommentCount)

	// Replace swaps the full trigger set
	replaced, err := triggers.Replace(ctx, automation.ID, []models.TriggerType{models.TriggerComment, models.TriggerDM})
	require.NoError(t, err)
	assert.Len(t, replaced, 2)

	replaced, err = triggers.Replace(ctx, automation.ID, []models.TriggerType{models.TriggerDM})
	require.NoError(t, err)
	require.Len(t, replaced, 1)
	assert.Equal(t, models.TriggerDM, replaced[0].Type)

	keyword := &models.Keyword{ID: uuid.New(), AutomationID: automation.ID, Word: "price"}
	require.NoError(t, keywords.Create(ctx, keyword))

	// Deleting through another user's context must not touch the row
	otherCtx := getTestContext(uuid.New())
	assertNotFound(t, keywords.Delete(otherCtx, keyword.ID))

	require.NoError(t, keywords.Delete(ctx, keyword.ID))
	remaining, err := keywords.ListByAutomation(ctx, automation.ID)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestAutomationRepository_Clone(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	logger := getTestLogger()
	automations := repositories.NewAutomationRepository(db, logger)
	listeners := repositories.NewListenerRepository(db, logger)
	triggers := repositories.NewTriggerRepository(db, logger)
	posts := repositories.NewPostRepository(db, logger)

	ctx := getTestContext(uuid.New())

	source := &models.Automation{Name: "Giveaway"}
	require.NoError(t, automations.Create(ctx, source))
	require.NoError(t, automations.SetActive(ctx, source.ID, true))

	require.NoError(t, listeners.Upsert(ctx, &models.Listener{
		ID:           uuid.New(),
		AutomationID: source.ID,
		Type:         models.ListenerMessage,
		Prompt:       "Check your DMs!",
	}))
	_, err := triggers.Replace(ctx, source.ID, []models.TriggerType{models.TriggerComment})
	require.NoError(t, err)
	_, err = posts.Attach(ctx, source.ID, []models.Post{{
		ID:           uuid.New(),
		AutomationID: source.ID,
		PostID:       "17900000000000001",
	}})
	require.NoError(t, err)

	clone, err := automations.Clone(ctx, source.ID)
	require.NoError(t, err)
	assert.Equal(t, "Giveaway (copy)", clone.Name)
	assert.False(t, clone.Active)
	require.NotNil(t, clone.Listener)
	assert.Equal(t, "Check your DMs!", clone.Listener.Prompt)
	assert.Len(t, clone.Triggers, 1)
	// Attached posts stay with the source
	assert.Empty(t, clone.Posts)
}
