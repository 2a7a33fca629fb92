package tokens

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/instagram"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/redis"
)

type fakeProvider struct {
	exchange     *instagram.TokenExchange
	exchangeErr  error
	codes        []string
	refreshToken string
	refreshErr   error
	refreshed    []string
}

func (f *fakeProvider) ExchangeCode(_ context.Context, code string) (*instagram.TokenExchange, error) {
	f.codes = append(f.codes, code)
	return f.exchange, f.exchangeErr
}

func (f *fakeProvider) Refresh(_ context.Context, accessToken string) (string, error) {
	f.refreshed = append(f.refreshed, accessToken)
	return f.refreshToken, f.refreshErr
}

type fakeLock struct {
	released int
}

func (f *fakeLock) Release(_ context.Context) error {
	f.released++
	return nil
}

type fakeLocker struct {
	lock *fakeLock
	err  error
	keys []string
}

func (f *fakeLocker) TryAcquire(_ context.Context, key string, _, _ time.Duration) (Lock, error) {
	f.keys = append(f.keys, key)
	if f.err != nil {
		return nil, f.err
	}
	return f.lock, nil
}

// fakeIntegrationRepo stores at most one integration, keyed by nothing. It
// mimics the repository's 404 behavior for missing rows.
type fakeIntegrationRepo struct {
	stored  *models.Integration
	created int
	updated int
}

func (f *fakeIntegrationRepo) Create(_ context.Context, integration *models.Integration) error {
	integration.ID = uuid.New()
	integration.CreatedAt = time.Now()
	copied := *integration
	f.stored = &copied
	f.created++
	return nil
}

func (f *fakeIntegrationRepo) GetByUserID(_ context.Context, _ models.IntegrationProvider) (*models.Integration, error) {
	if f.stored == nil {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "integration does not exist")
	}
	copied := *f.stored
	return &copied, nil
}

func (f *fakeIntegrationRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Integration, error) {
	if f.stored == nil || f.stored.ID != id {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "integration does not exist")
	}
	copied := *f.stored
	return &copied, nil
}

func (f *fakeIntegrationRepo) GetByInstagramID(_ context.Context, _ string) (*models.Integration, error) {
	return nil, httperror.NewHTTPError(http.StatusNotFound, "integration does not exist")
}

func (f *fakeIntegrationRepo) UpdateToken(_ context.Context, id uuid.UUID, accessToken string, expiresAt time.Time, instagramID *string) (*models.Integration, error) {
	if f.stored == nil || f.stored.ID != id {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "integration does not exist")
	}
	f.stored.AccessToken = accessToken
	f.stored.ExpiresAt = expiresAt
	if instagramID != nil {
		f.stored.InstagramID = instagramID
	}
	f.updated++
	copied := *f.stored
	return &copied, nil
}

func (f *fakeIntegrationRepo) ListExpiring(_ context.Context, _ time.Time, _ int) ([]models.Integration, error) {
	return nil, nil
}

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func TestConnect_FirstTime(t *testing.T) {
	provider := &fakeProvider{exchange: &instagram.TokenExchange{
		AccessToken: "IGQVJnew-token",
		UserID:      "17841400000000001",
		Permissions: []string{"instagram_business_basic", "instagram_business_manage_messages"},
	}}
	repo := &fakeIntegrationRepo{}
	service := NewService(provider, repo, nil, noopLogger())

	before := time.Now()
	integration, err := service.Connect(context.Background(), "auth-code")
	require.NoError(t, err)

	assert.Equal(t, []string{"auth-code"}, provider.codes)
	assert.Equal(t, 1, repo.created)
	assert.Zero(t, repo.updated)

	assert.Equal(t, "IGQVJnew-token", integration.AccessToken)
	require.NotNil(t, integration.InstagramID)
	assert.Equal(t, "17841400000000001", *integration.InstagramID)
	assert.Equal(t, []string{"instagram_business_basic", "instagram_business_manage_messages"}, integration.Permissions.Data)

	// Expiry lands 60 days out
	assert.WithinDuration(t, before.Add(TokenTTL), integration.ExpiresAt, time.Minute)
}

func TestConnect_ReconnectOverwritesToken(t *testing.T) {
	provider := &fakeProvider{exchange: &instagram.TokenExchange{
		AccessToken: "IGQVJsecond-token",
		UserID:      "17841400000000001",
	}}
	repo := &fakeIntegrationRepo{}
	service := NewService(provider, repo, nil, noopLogger())

	first, err := service.Connect(context.Background(), "code-1")
	require.NoError(t, err)

	provider.exchange = &instagram.TokenExchange{
		AccessToken: "IGQVJthird-token",
		UserID:      "17841400000000001",
	}
	second, err := service.Connect(context.Background(), "code-2")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "reconnect must reuse the existing row")
	assert.Equal(t, "IGQVJthird-token", second.AccessToken)
	assert.Equal(t, 1, repo.created)
	assert.Equal(t, 1, repo.updated)
}

func TestConnect_ExchangeFailure(t *testing.T) {
	provider := &fakeProvider{exchangeErr: instagram.ErrNoToken}
	repo := &fakeIntegrationRepo{}
	service := NewService(provider, repo, nil, noopLogger())

	_, err := service.Connect(context.Background(), "bad-code")
	assert.ErrorIs(t, err, instagram.ErrNoToken)
	assert.Zero(t, repo.created)
}

func storedIntegration(token string, expiresAt time.Time) *models.Integration {
	igID := "17841400000000001"
	return &models.Integration{
		ID:          uuid.New(),
		Provider:    models.ProviderInstagram,
		AccessToken: token,
		ExpiresAt:   expiresAt,
		InstagramID: &igID,
	}
}

func TestRefresh_RotatesAndPersists(t *testing.T) {
	stored := storedIntegration("IGQVJold-token", time.Now().Add(24*time.Hour))
	repo := &fakeIntegrationRepo{stored: stored}
	provider := &fakeProvider{refreshToken: "IGQVJrotated-token"}
	lock := &fakeLock{}
	locker := &fakeLocker{lock: lock}
	service := NewService(provider, repo, locker, noopLogger())

	copied := *stored
	before := time.Now()
	updated, err := service.Refresh(context.Background(), &copied)
	require.NoError(t, err)

	assert.Equal(t, []string{"integration:" + stored.ID.String()}, locker.keys)
	assert.Equal(t, []string{"IGQVJold-token"}, provider.refreshed)
	assert.Equal(t, "IGQVJrotated-token", updated.AccessToken)
	assert.Equal(t, 1, repo.updated)
	assert.Equal(t, 1, lock.released)

	// The new expiry lands 60 days out
	assert.WithinDuration(t, before.Add(TokenTTL), updated.ExpiresAt, time.Minute)
}

func TestRefresh_LockLoserReturnsStoredRow(t *testing.T) {
	stored := storedIntegration("IGQVJwinner-token", time.Now().Add(TokenTTL))
	repo := &fakeIntegrationRepo{stored: stored}
	provider := &fakeProvider{refreshToken: "IGQVJnever-issued"}
	locker := &fakeLocker{err: redis.ErrLockNotAcquired}
	service := NewService(provider, repo, locker, noopLogger())

	copied := *stored
	copied.AccessToken = "IGQVJstale-token"
	got, err := service.Refresh(context.Background(), &copied)
	require.NoError(t, err)

	// The loser surfaces the winner's row instead of stacking a second refresh
	assert.Equal(t, "IGQVJwinner-token", got.AccessToken)
	assert.Empty(t, provider.refreshed)
	assert.Zero(t, repo.updated)
}

func TestRefresh_AlreadyRefreshedUnderLock(t *testing.T) {
	stored := storedIntegration("IGQVJfresh-token", time.Now().Add(TokenTTL))
	repo := &fakeIntegrationRepo{stored: stored}
	provider := &fakeProvider{refreshToken: "IGQVJnever-issued"}
	lock := &fakeLock{}
	service := NewService(provider, repo, &fakeLocker{lock: lock}, noopLogger())

	// Our copy carries the expiry from before the winner refreshed
	copied := *stored
	copied.ExpiresAt = time.Now().Add(24 * time.Hour)
	got, err := service.Refresh(context.Background(), &copied)
	require.NoError(t, err)

	assert.Equal(t, "IGQVJfresh-token", got.AccessToken)
	assert.Empty(t, provider.refreshed)
	assert.Zero(t, repo.updated)
	assert.Equal(t, 1, lock.released)
}

func TestRefresh_ProviderFailure(t *testing.T) {
	stored := storedIntegration("IGQVJold-token", time.Now().Add(24*time.Hour))
	repo := &fakeIntegrationRepo{stored: stored}
	refreshErr := errors.New("refresh endpoint down")
	provider := &fakeProvider{refreshErr: refreshErr}
	lock := &fakeLock{}
	service := NewService(provider, repo, &fakeLocker{lock: lock}, noopLogger())

	copied := *stored
	_, err := service.Refresh(context.Background(), &copied)
	assert.ErrorIs(t, err, refreshErr)
	assert.Zero(t, repo.updated)
	assert.Equal(t, 1, lock.released)
}
