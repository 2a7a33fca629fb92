package media

import (
	"context"
	"fmt"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/instagram"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// DefaultLimit is how many recent media items a fetch returns
const DefaultLimit = 10

// Fetcher is the subset of the Instagram client the media service needs
type Fetcher interface {
	FetchMedia(ctx context.Context, accessToken string, accountID string, limit int) ([]instagram.MediaItem, error)
}

// Refresher rotates and persists an integration's token
type Refresher interface {
	Refresh(ctx context.Context, integration *models.Integration) (*models.Integration, error)
}

// Service lists an integration's recent media, transparently recovering from
// an expired token exactly once per call.
type Service struct {
	provider  Fetcher
	refresher Refresher
	logger    ectologger.Logger
}

// NewService creates a new media service
func NewService(provider Fetcher, refresher Refresher, logger ectologger.Logger) *Service {
	return &Service{
		provider:  provider,
		refresher: refresher,
		logger:    logger,
	}
}

// FetchRecent returns the integration's most recent media. When the provider
// signals an expired credential the token is refreshed and persisted, and the
// identical request is retried once with the new token. A second expiry
// signal fails the call; no other error triggers a refresh.
func (s *Service) FetchRecent(ctx context.Context, integration *models.Integration) ([]instagram.MediaItem, error) {
	ctx, span := tracing.StartSpan(ctx, "media.FetchRecent")
	defer span.End()

	accountID := ""
	if integration.InstagramID != nil {
		accountID = *integration.InstagramID
	}

	items, err := s.provider.FetchMedia(ctx, integration.AccessToken, accountID, DefaultLimit)
	if err == nil {
		metrics.MediaFetches.WithLabelValues("success").Inc()
		return items, nil
	}
	if !instagram.IsTokenExpired(err) {
		metrics.MediaFetches.WithLabelValues("failure").Inc()
		return nil, err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"integration_id": integration.ID,
	}).Info("media fetch hit expired token, refreshing")

	refreshed, err := s.refresher.Refresh(ctx, integration)
	if err != nil {
		metrics.MediaFetches.WithLabelValues("refresh_failure").Inc()
		return nil, err
	}

	items, err = s.provider.FetchMedia(ctx, refreshed.AccessToken, accountID, DefaultLimit)
	if err != nil {
		metrics.MediaFetches.WithLabelValues("retry_failure").Inc()
		// The refreshed token got its one retry. Even a second expiry signal
		// surfaces as a fetch failure here so callers never refresh twice.
		return nil, fmt.Errorf("%w after token refresh: %v", instagram.ErrFetchFailed, err)
	}

	metrics.MediaFetches.WithLabelValues("retried").Inc()
	return items, nil
}
