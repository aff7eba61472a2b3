package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tripmate/internal/cache"
	"tripmate/internal/logger"
	"tripmate/internal/service"
)

const SweepLockKey = "tripmate:sweep:lock"

// Sweeper is satisfied by *service.Sweeper.
type Sweeper interface {
	Run(ctx context.Context) (*service.SweepReport, error)
}

// Locker is satisfied by *cache.Locker.
type Locker interface {
	TryAcquire(ctx context.Context, key string, ttl time.Duration) (*cache.Lock, error)
}

// TripSweepJob runs the lifecycle sweep on a ticker. With a locker, only one
// replica sweeps at a time; without one every replica sweeps and the status
// guards keep the result the same.
type TripSweepJob struct {
	sweeper  Sweeper
	locker   Locker
	interval time.Duration
	lockTTL  time.Duration
	ticker   *time.Ticker
	done     chan bool
	wg       sync.WaitGroup
}

// NewTripSweepJob creates a new sweep job. locker may be nil.
func NewTripSweepJob(sweeper Sweeper, locker Locker, interval, lockTTL time.Duration) *TripSweepJob {
	return &TripSweepJob{
		sweeper:  sweeper,
		locker:   locker,
		interval: interval,
		lockTTL:  lockTTL,
		done:     make(chan bool),
	}
}

// Start begins the background job; the first sweep runs immediately.
func (j *TripSweepJob) Start(ctx context.Context) {
	slog.Info("Starting trip sweep job", "check_interval", j.interval, "locked", j.locker != nil)

	j.ticker = time.NewTicker(j.interval)

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()

		j.sweep(ctx)
		for {
			select {
			case <-j.ticker.C:
				j.sweep(ctx)
			case <-j.done:
				slog.Info("Trip sweep job stopped")
				return
			case <-ctx.Done():
				slog.Info("Trip sweep job stopped", "reason", ctx.Err())
				return
			}
		}
	}()
}

// Stop stops the ticker and waits for a running sweep to finish.
func (j *TripSweepJob) Stop() {
	if j.ticker != nil {
		j.ticker.Stop()
	}
	close(j.done)
	j.wg.Wait()
}

func (j *TripSweepJob) sweep(ctx context.Context) {
	if j.locker != nil {
		lock, err := j.locker.TryAcquire(ctx, SweepLockKey, j.lockTTL)
		if err != nil {
			slog.Error("Failed to acquire sweep lock, skipping run", "error", err)
			return
		}
		if lock == nil {
			logger.WithFields("lock_key", SweepLockKey).Debug("Sweep already running on another replica")
			return
		}
		defer func() {
			if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("Failed to release sweep lock", "error", err)
			}
		}()
	}

	runCtx, cancel := context.WithTimeout(ctx, j.lockTTL)
	defer cancel()

	if _, err := j.sweeper.Run(runCtx); err != nil {
		slog.Error("Trip sweep finished with errors", "error", err)
	}
}
