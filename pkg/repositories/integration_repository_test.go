package repositories_test

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func getTestDB(t *testing.T) database.DB {
	// Use environment variables or defaults for test DB
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}
	dbUser := os.Getenv("DB_USER_NAME")
	if dbUser == "" {
		dbUser = "user"
	}
	dbPass := os.Getenv("DB_PASSWORD")
	if dbPass == "" {
		dbPass = "password"
	}
	dbName := os.Getenv("DB_NAME")
	if dbName == "" {
		dbName = "fern"
	}

	dsn := "host=" + dbHost + " user=" + dbUser + " password=" + dbPass + " dbname=" + dbName + " sslmode=disable"
	db, err := sqlx.Connect("postgres", dsn)
	require.NoError(t, err, "Failed to connect to test database")

	return database.NewDatabaseInstance(db, getTestLogger())
}

func getTestContext(userID uuid.UUID) context.Context {
	ctx := context.Background()
	return appctx.SetUserID(ctx, userID.String())
}

// assertNotFound asserts that err is an HTTP 404 error
func assertNotFound(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, httperror.IsHTTPError(err), "expected HTTP error, got: %v", err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err), "expected 404, got: %d", httperror.GetStatusCode(err))
}

// assertUnauthorized asserts that err is an HTTP 401 error
func assertUnauthorized(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, httperror.IsHTTPError(err), "expected HTTP error, got: %v", err)
	assert.Equal(t, http.StatusUnauthorized, httperror.GetStatusCode(err), "expected 401, got: %d", httperror.GetStatusCode(err))
}

func TestIntegrationRepository_Lifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	logger := getTestLogger()
	repo := repositories.NewIntegrationRepository(db, logger)

	userID := uuid.New()
	ctx := getTestContext(userID)

	igID := uuid.New().String()
	integration := &models.Integration{
		Provider:    models.ProviderInstagram,
		AccessToken: "IGQVJtest-token",
		ExpiresAt:   time.Now().Add(60 * 24 * time.Hour),
		InstagramID: &igID,
		Permissions: database.JSONB[[]string]{Data: []string{"instagram_business_basic"}},
	}

	err := repo.Create(ctx, integration)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, integration.ID)
	assert.Equal(t, userID, integration.UserID)
	assert.False(t, integration.CreatedAt.IsZero())

	// GetByUserID finds the row for this user and provider
	fetched, err := repo.GetByUserID(ctx, models.ProviderInstagram)
	require.NoError(t, err)
	assert.Equal(t, integration.ID, fetched.ID)
	assert.Equal(t, "IGQVJtest-token", fetched.AccessToken)

	// Lookup by the Instagram account ID is not user scoped
	byAccount, err := repo.GetByInstagramID(context.Background(), igID)
	require.NoError(t, err)
	assert.Equal(t, integration.ID, byAccount.ID)

	// UpdateToken overwrites the credential and pushes the expiry out
	newExpiry := time.Now().Add(60 * 24 * time.Hour)
	updated, err := repo.UpdateToken(ctx, integration.ID, "IGQVJrefreshed", newExpiry, nil)
	require.NoError(t, err)
	assert.Equal(t, "IGQVJrefreshed", updated.AccessToken)
	assert.WithinDuration(t, newExpiry, updated.ExpiresAt, time.Second)

	// Another user's context can't see this integration
	otherCtx := getTestContext(uuid.New())
	_, err = repo.GetByUserID(otherCtx, models.ProviderInstagram)
	assertNotFound(t, err)
}

func TestIntegrationRepository_ListExpiring(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	logger := getTestLogger()
	repo := repositories.NewIntegrationRepository(db, logger)

	ctx := getTestContext(uuid.New())

	soon := &models.Integration{
		Provider:    models.ProviderInstagram,
		AccessToken: "expiring-soon",
		ExpiresAt:   time.Now().Add(time.Hour),
	}
	require.NoError(t, repo.Create(ctx, soon))

	expiring, err := repo.ListExpiring(context.Background(), time.Now().Add(2*time.Hour), 100)
	require.NoError(t, err)

	found := false
	for _, i := range expiring {
		if i.ID == soon.ID {
			found = true
		}
	}
	assert.True(t, found, "integration expiring within the window should be listed")
}

func TestIntegrationRepository_UserRequired(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	db := getTestDB(t)
	logger := getTestLogger()
	repo := repositories.NewIntegrationRepository(db, logger)

	// Context without user ID
	ctx := context.Background()

	integration := &models.Integration{
		Provider:    models.ProviderInstagram,
		AccessToken: "should-fail",
		ExpiresAt:   time.Now(),
	}

	err := repo.Create(ctx, integration)
	assertUnauthorized(t, err)
}

func strPtr(s string) *string {
	return &s
}
