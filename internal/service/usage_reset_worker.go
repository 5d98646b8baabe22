package service

import (
	"context"
	"time"

	"parserator/internal/logger"
	"parserator/internal/port"
)

// UsageResetWorker zeroes monthly counters once a new calendar month starts
// and deletes expired quota reservations. Reserve already rolls an account
// over lazily; the sweep keeps idle accounts and dashboards consistent.
type UsageResetWorker struct {
	usageRepo port.UsageRepository
	interval  time.Duration
	now       func() time.Time
}

// NewUsageResetWorker creates a new UsageResetWorker.
func NewUsageResetWorker(usageRepo port.UsageRepository, interval time.Duration) *UsageResetWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &UsageResetWorker{usageRepo: usageRepo, interval: interval, now: time.Now}
}

// Start runs the sweep immediately and then on every tick until ctx is canceled.
func (w *UsageResetWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logger.Info("service.UsageResetWorker.Start: started", "interval", w.interval.String())
	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info("service.UsageResetWorker.Start: shutdown complete")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce resets every account whose last reset predates the current month
// and returns how many were reset.
func (w *UsageResetWorker) RunOnce(ctx context.Context) int64 {
	now := w.now()
	if purged, err := w.usageRepo.PurgeExpiredReservations(ctx, now); err != nil {
		if ctx.Err() == nil {
			logger.Error("service.UsageResetWorker.RunOnce: reservation purge failed", "error", err)
		}
	} else if purged > 0 {
		logger.Warn("service.UsageResetWorker.RunOnce: expired quota reservations purged", "count", purged)
	}

	start := monthStart(now)
	n, err := w.usageRepo.ResetMonthly(ctx, start)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error("service.UsageResetWorker.RunOnce: reset failed", "error", err)
		}
		return 0
	}
	if n > 0 {
		logger.Info("service.UsageResetWorker.RunOnce: monthly usage reset", "accounts", n, "month_start", start.Format("2006-01-02"))
	}
	return n
}
