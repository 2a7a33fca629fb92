package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var (
	// ErrSchedulerStopped is returned when the scheduler is stopped
	ErrSchedulerStopped = errors.New("scheduler stopped")

	// ErrSchedulerAlreadyRunning is returned when trying to start an already running scheduler
	ErrSchedulerAlreadyRunning = errors.New("scheduler already running")
)

const (
	// DefaultPollInterval is the default interval between refresh sweeps
	DefaultPollInterval = time.Hour

	// DefaultRefreshWindow is how far ahead of expiry a token gets refreshed
	DefaultRefreshWindow = 120 * time.Hour

	// DefaultLockTTL is the default TTL for the sweep lock
	DefaultLockTTL = 60 * time.Second

	// DefaultBatchSize is the number of integrations to refresh per sweep
	DefaultBatchSize = 100

	// SweepLockKey guards the sweep so only one instance runs it
	SweepLockKey = "scheduler:token-refresh"
)

// Refresher renews an integration's access token and persists the result
type Refresher interface {
	Refresh(ctx context.Context, integration *models.Integration) (*models.Integration, error)
}

// ExpiringLister finds integrations whose tokens are close to expiry
type ExpiringLister interface {
	ListExpiring(ctx context.Context, before time.Time, limit int) ([]models.Integration, error)
}

// Config holds configuration for the scheduler
type Config struct {
	// PollInterval is how often to sweep for expiring tokens
	PollInterval time.Duration

	// RefreshWindow is how far ahead of expiry a token gets refreshed
	RefreshWindow time.Duration

	// LockTTL is how long to hold the sweep lock
	LockTTL time.Duration

	// BatchSize is the maximum number of integrations to refresh per sweep
	BatchSize int
}

// DefaultConfig returns the default scheduler configuration
func DefaultConfig() Config {
	return Config{
		PollInterval:  DefaultPollInterval,
		RefreshWindow: DefaultRefreshWindow,
		LockTTL:       DefaultLockTTL,
		BatchSize:     DefaultBatchSize,
	}
}

// Scheduler sweeps for expiring Instagram tokens and refreshes them before
// the provider invalidates them.
type Scheduler struct {
	integrations ExpiringLister
	refresher    Refresher
	locker       *redis.Locker
	config       Config
	logger       ectologger.Logger

	// Coordination
	stopCh   chan struct{}
	stoppedC chan struct{}
	running  bool
	mu       sync.RWMutex
}

// NewScheduler creates a new scheduler
func NewScheduler(
	integrations ExpiringLister,
	refresher Refresher,
	locker *redis.Locker,
	config Config,
	logger ectologger.Logger,
) *Scheduler {
	// Apply defaults
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.RefreshWindow <= 0 {
		config.RefreshWindow = DefaultRefreshWindow
	}
	if config.LockTTL <= 0 {
		config.LockTTL = DefaultLockTTL
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}

	return &Scheduler{
		integrations: integrations,
		refresher:    refresher,
		locker:       locker,
		config:       config,
		logger:       logger,
		stopCh:       make(chan struct{}),
		stoppedC:     make(chan struct{}),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrSchedulerAlreadyRunning
	}
	s.running = true
	s.mu.Unlock()

	ctx, span := tracing.StartSpan(ctx, "Scheduler.Start")
	defer span.End()

	s.logger.WithContext(ctx).Infof("Starting token refresh scheduler: poll_interval=%s refresh_window=%s batch_size=%d",
		s.config.PollInterval, s.config.RefreshWindow, s.config.BatchSize)

	// Start the polling loop
	go s.pollLoop(ctx)

	s.logger.WithContext(ctx).Info("Scheduler started")
	return nil
}

// Stop stops the scheduler gracefully
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	s.logger.WithContext(ctx).Info("Stopping scheduler...")

	close(s.stopCh)

	// Wait for graceful shutdown with timeout
	select {
	case <-s.stoppedC:
		s.logger.WithContext(ctx).Info("Scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.WithContext(ctx).Warn("Scheduler shutdown timed out")
		return ctx.Err()
	}

	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// pollLoop continuously sweeps for expiring tokens
func (s *Scheduler) pollLoop(ctx context.Context) {
	defer close(s.stoppedC)

	ticker := time.NewTicker(s.config.PollInterval)
	defer ticker.Stop()

	// Run immediately on start
	s.runSweep(ctx)

	for {
		select {
		case <-s.stopCh:
			s.logger.WithContext(ctx).Debug("Scheduler poll loop stopping")
			return
		case <-ticker.C:
			s.runSweep(ctx)
		}
	}
}

// runSweep runs a single refresh sweep. The sweep lock keeps multiple
// instances from refreshing the same batch; losing the lock just means
// another instance is already on it.
func (s *Scheduler) runSweep(ctx context.Context) {
	ctx, span := tracing.StartSpan(ctx, "Scheduler.runSweep")
	defer span.End()

	lock, err := s.locker.Acquire(ctx, SweepLockKey, s.config.LockTTL)
	if err != nil {
		if errors.Is(err, redis.ErrLockNotAcquired) {
			s.logger.WithContext(ctx).Debug("Refresh sweep already running elsewhere")
			return
		}
		s.logger.WithContext(ctx).WithError(err).Warn("Failed to acquire sweep lock")
		return
	}
	defer func() { _ = lock.Release(ctx) }()

	start := time.Now()
	cutoff := time.Now().Add(s.config.RefreshWindow)

	expiring, err := s.integrations.ListExpiring(ctx, cutoff, s.config.BatchSize)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to list expiring integrations")
		return
	}

	if len(expiring) == 0 {
		s.logger.WithContext(ctx).Debug("No tokens due for refresh")
		return
	}

	s.logger.WithContext(ctx).Infof("Found %d tokens due for refresh", len(expiring))

	refreshed := 0
	failed := 0
	for i := range expiring {
		integration := &expiring[i]
		if _, err := s.refresher.Refresh(ctx, integration); err != nil {
			failed++
			s.logger.WithContext(ctx).WithError(err).Warnf("Failed to refresh token for integration %s", integration.ID)
			continue
		}
		refreshed++
		metrics.SchedulerRefreshesScheduled.Inc()
	}

	s.logger.WithContext(ctx).Infof("Refresh sweep completed: refreshed=%d failed=%d duration=%s",
		refreshed, failed, time.Since(start))
}
