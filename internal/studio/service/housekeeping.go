package service

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/aussiebroadwan/minivisionary/internal/studio/store"
)

// HousekeepingService periodically drops expired token revocations and
// retired signing keys past their grace period, and expires checkout
// sessions nobody paid.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	started atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewHousekeepingService defaults a non-positive interval to one hour.
func NewHousekeepingService(store store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = time.Hour
	}

	return &HousekeepingService{
		Store:    store,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs a sweep immediately and then every Interval. Call Stop to end it.
func (s *HousekeepingService) Start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until an in-progress sweep finishes. It is a no-op when the
// service was never started.
func (s *HousekeepingService) Stop() {
	if !s.started.CompareAndSwap(true, false) {
		return
	}
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Sweep(context.Background(), time.Now())

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background(), time.Now())
		case <-s.stopCh:
			return
		}
	}
}

// Sweep runs each cleanup independently; one failing does not stop the other.
func (s *HousekeepingService) Sweep(ctx context.Context, now time.Time) {
	revocations, err := s.Store.Revocations().DeleteExpired(ctx, now)
	if err != nil {
		s.Logger.Error("failed to delete expired revocations", "error", err)
	}

	keys, err := s.Store.SigningKeys().DeleteExpired(ctx, now)
	if err != nil {
		s.Logger.Error("failed to delete expired signing keys", "error", err)
	}

	checkouts, err := s.Store.Checkouts().ExpireStale(ctx, now)
	if err != nil {
		s.Logger.Error("failed to expire checkout sessions", "error", err)
	}

	s.Logger.Info("housekeeping sweep completed",
		"revocations_deleted", revocations,
		"signing_keys_deleted", keys,
		"checkouts_expired", checkouts,
	)
}
