package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/stepauth/stepauth/internal/stepup/store"
)

// HousekeepingService periodically cleans up expired database records
// to prevent unbounded growth of login_sessions and stale remembered
// devices inside mfa_records.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

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
	s.cleanup()

	for {
		select {
		case <-ticker.C:
			s.cleanup()
		case <-s.stopCh:
			return
		}
	}
}

// cleanup performs the actual deletion of expired records.
// Each sweep is independent - failures in one won't stop the others.
func (s *HousekeepingService) cleanup() {
	ctx := context.Background()
	s.Logger.Info("starting housekeeping cleanup")

	// Abandoned login sessions
	if err := s.Store.LoginSessions().DeleteExpiredLoginSessions(ctx); err != nil {
		s.Logger.Error("failed to delete expired login sessions", "error", err)
	} else {
		s.Logger.Debug("deleted expired login sessions")
	}

	// Lapsed remembered devices; normally purged lazily at login time,
	// this catches users who never come back.
	s.purgeRememberedDevices(ctx)

	s.Logger.Info("housekeeping cleanup completed")
}

func (s *HousekeepingService) purgeRememberedDevices(ctx context.Context) {
	now := time.Now().UTC()

	records, err := s.Store.MFARecords().ListMFARecords(ctx)
	if err != nil {
		s.Logger.Error("failed to list mfa records", "error", err)
		return
	}

	var purged int
	for i := range records {
		rec := &records[i]
		if n := rec.PurgeExpiredDevices(now); n > 0 {
			if err := s.Store.MFARecords().UpsertMFARecord(ctx, *rec); err != nil {
				s.Logger.Error("failed to persist device purge", "user_id", rec.UserID, "error", err)
				continue
			}
			purged += n
		}
	}
	if purged > 0 {
		s.Logger.Debug("purged expired remembered devices", "count", purged)
	}
}
