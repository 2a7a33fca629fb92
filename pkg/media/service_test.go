package media

import (
	"context"
	"errors"
	"testing"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/instagram"
	"github.com/Ramsey-B/fern/pkg/models"
)

type fakeFetcher struct {
	calls  []string // access tokens seen, in order
	script []func() ([]instagram.MediaItem, error)
}

func (f *fakeFetcher) FetchMedia(_ context.Context, accessToken, _ string, _ int) ([]instagram.MediaItem, error) {
	f.calls = append(f.calls, accessToken)
	next := f.script[0]
	f.script = f.script[1:]
	return next()
}

type fakeRefresher struct {
	calls  int
	result *models.Integration
	err    error
}

func (f *fakeRefresher) Refresh(_ context.Context, _ *models.Integration) (*models.Integration, error) {
	f.calls++
	return f.result, f.err
}

func noopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func testIntegration(token string) *models.Integration {
	igID := "17841400000000001"
	return &models.Integration{
		ID:          uuid.New(),
		Provider:    models.ProviderInstagram,
		AccessToken: token,
		InstagramID: &igID,
	}
}

func TestFetchRecent(t *testing.T) {
	items := []instagram.MediaItem{{ID: "1", MediaType: "IMAGE"}}

	fetcher := &fakeFetcher{script: []func() ([]instagram.MediaItem, error){
		func() ([]instagram.MediaItem, error) { return items, nil },
	}}
	refresher := &fakeRefresher{}
	service := NewService(fetcher, refresher, noopLogger())

	got, err := service.FetchRecent(context.Background(), testIntegration("token"))
	require.NoError(t, err)
	assert.Equal(t, items, got)
	assert.Equal(t, []string{"token"}, fetcher.calls)
	assert.Zero(t, refresher.calls)
}

func TestFetchRecent_RefreshesExpiredTokenOnce(t *testing.T) {
	items := []instagram.MediaItem{{ID: "1"}}

	fetcher := &fakeFetcher{script: []func() ([]instagram.MediaItem, error){
		func() ([]instagram.MediaItem, error) { return nil, instagram.ErrTokenExpired },
		func() ([]instagram.MediaItem, error) { return items, nil },
	}}
	refresher := &fakeRefresher{result: testIntegration("fresh-token")}
	service := NewService(fetcher, refresher, noopLogger())

	got, err := service.FetchRecent(context.Background(), testIntegration("stale-token"))
	require.NoError(t, err)
	assert.Equal(t, items, got)

	// The retry must carry the refreshed credential
	assert.Equal(t, []string{"stale-token", "fresh-token"}, fetcher.calls)
	assert.Equal(t, 1, refresher.calls)
}

func TestFetchRecent_SecondExpiryFails(t *testing.T) {
	fetcher := &fakeFetcher{script: []func() ([]instagram.MediaItem, error){
		func() ([]instagram.MediaItem, error) { return nil, instagram.ErrTokenExpired },
		func() ([]instagram.MediaItem, error) { return nil, instagram.ErrTokenExpired },
	}}
	refresher := &fakeRefresher{result: testIntegration("fresh-token")}
	service := NewService(fetcher, refresher, noopLogger())

	_, err := service.FetchRecent(context.Background(), testIntegration("stale-token"))
	assert.ErrorIs(t, err, instagram.ErrFetchFailed)

	// The second expiry must not read as an expired token again, or a caller
	// could be induced into the second refresh the retry budget forbids
	assert.False(t, instagram.IsTokenExpired(err))

	// Exactly one refresh and one retry, never a second round
	assert.Equal(t, 1, refresher.calls)
	assert.Len(t, fetcher.calls, 2)
}

func TestFetchRecent_NonExpiryErrorDoesNotRefresh(t *testing.T) {
	fetcher := &fakeFetcher{script: []func() ([]instagram.MediaItem, error){
		func() ([]instagram.MediaItem, error) { return nil, instagram.ErrFetchFailed },
	}}
	refresher := &fakeRefresher{result: testIntegration("fresh-token")}
	service := NewService(fetcher, refresher, noopLogger())

	_, err := service.FetchRecent(context.Background(), testIntegration("token"))
	assert.ErrorIs(t, err, instagram.ErrFetchFailed)
	assert.Zero(t, refresher.calls)
	assert.Len(t, fetcher.calls, 1)
}

func TestFetchRecent_RefreshFailurePropagates(t *testing.T) {
	refreshErr := errors.New("refresh endpoint down")

	fetcher := &fakeFetcher{script: []func() ([]instagram.MediaItem, error){
		func() ([]instagram.MediaItem, error) { return nil, instagram.ErrTokenExpired },
	}}
	refresher := &fakeRefresher{err: refreshErr}
	service := NewService(fetcher, refresher, noopLogger())

	_, err := service.FetchRecent(context.Background(), testIntegration("stale-token"))
	assert.ErrorIs(t, err, refreshErr)
	assert.Len(t, fetcher.calls, 1)
}

func TestFetchRecent_NoInstagramIDUsesMeAlias(t *testing.T) {
	var gotAccount string
	fetcher := &fakeFetcher{script: []func() ([]instagram.MediaItem, error){
		func() ([]instagram.MediaItem, error) { return nil, nil },
	}}

	service := NewService(accountCapture{fetcher, &gotAccount}, &fakeRefresher{}, noopLogger())

	integration := testIntegration("token")
	integration.InstagramID = nil
	_, err := service.FetchRecent(context.Background(), integration)
	require.NoError(t, err)
	assert.Empty(t, gotAccount)
}

type accountCapture struct {
	inner   *fakeFetcher
	account *string
}

func (c accountCapture) FetchMedia(ctx context.Context, accessToken, accountID string, limit int) ([]instagram.MediaItem, error) {
	*c.account = accountID
	return c.inner.FetchMedia(ctx, accessToken, accountID, limit)
}
