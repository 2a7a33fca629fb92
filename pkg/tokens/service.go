package tokens

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/instagram"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const (
	// TokenTTL is how long Instagram honors a long-lived token. Every
	// exchange and refresh resets the stored expiry to now plus this value.
	TokenTTL = 60 * 24 * time.Hour

	refreshLockTTL     = 30 * time.Second
	refreshLockTimeout = 10 * time.Second
)

// Provider is the subset of the Instagram client the token service needs
type Provider interface {
	ExchangeCode(ctx context.Context, code string) (*instagram.TokenExchange, error)
	Refresh(ctx context.Context, accessToken string) (string, error)
}

// Lock is a held refresh lock
type Lock interface {
	Release(ctx context.Context) error
}

// Locker serializes refreshes per integration
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration, timeout time.Duration) (Lock, error)
}

// RedisLocker adapts the redis locker to the Locker interface
func RedisLocker(locker *redis.Locker) Locker {
	return redisLocker{locker}
}

type redisLocker struct {
	locker *redis.Locker
}

func (l redisLocker) TryAcquire(ctx context.Context, key string, ttl time.Duration, timeout time.Duration) (Lock, error) {
	lock, err := l.locker.TryAcquire(ctx, key, ttl, timeout)
	if err != nil {
		return nil, err
	}
	return lock, nil
}

// Service owns the credential lifecycle: the initial code exchange on
// connect and refreshes of stored tokens.
type Service struct {
	provider     Provider
	integrations repositories.IntegrationRepo
	locker       Locker
	logger       ectologger.Logger
}

// NewService creates a new token service
func NewService(provider Provider, integrations repositories.IntegrationRepo, locker Locker, logger ectologger.Logger) *Service {
	return &Service{
		provider:     provider,
		integrations: integrations,
		locker:       locker,
		logger:       logger,
	}
}

// Connect exchanges an authorization code and persists the credential for
// the current user. A first-time connect creates the integration; a
// re-connect overwrites the stored token in place. The expiry is always 60
// days out.
func (s *Service) Connect(ctx context.Context, code string) (*models.Integration, error) {
	ctx, span := tracing.StartSpan(ctx, "tokens.Connect")
	defer span.End()

	exchange, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		metrics.TokenExchanges.WithLabelValues("failure").Inc()
		return nil, err
	}
	metrics.TokenExchanges.WithLabelValues("success").Inc()

	expiresAt := time.Now().Add(TokenTTL)
	instagramID := exchange.UserID

	existing, err := s.integrations.GetByUserID(ctx, models.ProviderInstagram)
	if err != nil {
		if httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusNotFound {
			integration := &models.Integration{
				Provider:    models.ProviderInstagram,
				AccessToken: exchange.AccessToken,
				ExpiresAt:   expiresAt,
				InstagramID: &instagramID,
			}
			integration.Permissions = database.JSONB[[]string]{Data: exchange.Permissions}
			if err := s.integrations.Create(ctx, integration); err != nil {
				return nil, err
			}

			s.logger.WithContext(ctx).WithFields(map[string]any{
				"integration_id": integration.ID,
				"access_token":   Redact(integration.AccessToken),
			}).Info("connected new integration")
			return integration, nil
		}
		return nil, err
	}

	updated, err := s.integrations.UpdateToken(ctx, existing.ID, exchange.AccessToken, expiresAt, &instagramID)
	if err != nil {
		return nil, err
	}

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"integration_id": updated.ID,
		"access_token":   Redact(updated.AccessToken),
	}).Info("reconnected integration")
	return updated, nil
}

// Refresh rotates an integration's token and persists the result. A
// per-integration distributed lock keeps concurrent callers from refreshing
// twice: the loser waits for the winner, re-reads the stored row and returns
// the winner's token.
func (s *Service) Refresh(ctx context.Context, integration *models.Integration) (*models.Integration, error) {
	ctx, span := tracing.StartSpan(ctx, "tokens.Refresh")
	defer span.End()

	lock, err := s.locker.TryAcquire(ctx, "integration:"+integration.ID.String(), refreshLockTTL, refreshLockTimeout)
	if err != nil {
		if errors.Is(err, redis.ErrLockNotAcquired) {
			// Another instance holds the lock past our wait. Surface the
			// stored row rather than stacking a second refresh.
			return s.integrations.GetByID(ctx, integration.ID)
		}
		return nil, err
	}
	defer func() { _ = lock.Release(ctx) }()

	// Re-read under the lock. If the expiry moved since our copy, somebody
	// already refreshed and we are done.
	current, err := s.integrations.GetByID(ctx, integration.ID)
	if err != nil {
		return nil, err
	}
	if current.ExpiresAt.After(integration.ExpiresAt) {
		s.logger.WithContext(ctx).WithFields(map[string]any{
			"integration_id": integration.ID,
		}).Debug("token already refreshed by another caller")
		return current, nil
	}

	newToken, err := s.provider.Refresh(ctx, current.AccessToken)
	if err != nil {
		metrics.TokenRefreshes.WithLabelValues("failure").Inc()
		return nil, err
	}

	updated, err := s.integrations.UpdateToken(ctx, current.ID, newToken, time.Now().Add(TokenTTL), nil)
	if err != nil {
		return nil, err
	}
	metrics.TokenRefreshes.WithLabelValues("success").Inc()

	s.logger.WithContext(ctx).WithFields(map[string]any{
		"integration_id": updated.ID,
		"access_token":   Redact(updated.AccessToken),
		"expires_at":     updated.ExpiresAt,
	}).Info("refreshed integration token")

	return updated, nil
}
