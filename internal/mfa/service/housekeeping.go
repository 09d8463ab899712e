package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/mfagate/internal/mfa/store"
)

// HousekeepingService periodically deletes expired rows so lazy expiry never
// turns into unbounded growth: sessions, used TOTP codes, lapsed lockouts and
// spent bypass grants.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration
	Now      func() time.Time

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(store store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:    store,
		Logger:   logger,
		Interval: interval,
		Now:      time.Now,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker that periodically runs cleanup.
// This is non-blocking and should be called after the database is ready.
// Call Stop() to gracefully shutdown the worker.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop gracefully shuts down the background worker.
// Blocks until the worker has finished any in-progress cleanup.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

// run is the main background worker loop.
func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.Cleanup(context.Background())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup deletes expired records. Each deletion is independent; a failure in
// one table does not stop the others. Deleting an expired row never changes
// an outcome, every read path already treats expired rows as absent.
func (s *HousekeepingService) Cleanup(ctx context.Context) {
	now := s.Now()
	s.Logger.Info("starting housekeeping cleanup")

	if n, err := s.Store.Sessions().DeleteExpiredSessions(ctx, now); err != nil {
		s.Logger.Error("failed to delete expired sessions", "error", err)
	} else if n > 0 {
		s.Logger.Debug("deleted expired sessions", "count", n)
	}

	if err := s.Store.UsedCodes().DeleteExpiredUsedCodes(ctx, now); err != nil {
		s.Logger.Error("failed to delete expired used codes", "error", err)
	}

	if err := s.Store.Lockouts().DeleteExpiredLockouts(ctx, now); err != nil {
		s.Logger.Error("failed to delete expired lockouts", "error", err)
	}

	if err := s.Store.BypassGrants().DeleteExpiredBypassGrants(ctx, now); err != nil {
		s.Logger.Error("failed to delete expired bypass grants", "error", err)
	}

	s.Logger.Info("housekeeping cleanup completed")
}
