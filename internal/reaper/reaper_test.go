package reaper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smartorder/smartorder/internal/clock"
	"github.com/smartorder/smartorder/internal/notification"
	"github.com/smartorder/smartorder/internal/observability/metrics"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type fakeSweeps struct {
	mu          sync.Mutex
	expireCalls int
	expireErr   error
	deactivated int
	purged      int
}

func (f *fakeSweeps) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expireCalls++
	return 2, f.expireErr
}

func (f *fakeSweeps) DeactivateEnded(ctx context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deactivated++
	return 1, nil
}

func (f *fakeSweeps) PurgeBefore(ctx context.Context, date time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purged++
	return 3, nil
}

func newTestReaper(sweeps *fakeSweeps, fc *clock.FakeClock, locker Locker) *Reaper {
	return New(
		zap.NewNop(),
		Config{RunInterval: time.Minute, JobTimeout: time.Second},
		fc,
		metrics.New(prometheus.NewRegistry()),
		locker,
		sweeps,
		sweeps,
		sweeps,
	)
}

func TestTickRunsExpiryEveryTimeAndDailyJobsOncePerDay(t *testing.T) {
	sweeps := &fakeSweeps{}
	fc := clock.NewFakeClock(time.Date(2026, 8, 30, 23, 58, 0, 0, time.UTC))
	reaper := newTestReaper(sweeps, fc, nil)
	ctx := context.Background()

	reaper.Tick(ctx)
	reaper.Tick(ctx)
	assert.Equal(t, 2, sweeps.expireCalls)
	assert.Equal(t, 1, sweeps.deactivated)
	assert.Equal(t, 1, sweeps.purged)

	// Crossing midnight triggers the daily jobs again.
	fc.Advance(3 * time.Minute)
	reaper.Tick(ctx)
	assert.Equal(t, 3, sweeps.expireCalls)
	assert.Equal(t, 2, sweeps.deactivated)
	assert.Equal(t, 2, sweeps.purged)
}

func TestJobErrorDoesNotStopOtherJobs(t *testing.T) {
	sweeps := &fakeSweeps{expireErr: errors.New("db down")}
	fc := clock.NewFakeClock(time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC))
	reaper := newTestReaper(sweeps, fc, nil)

	reaper.Tick(context.Background())
	assert.Equal(t, 1, sweeps.expireCalls)
	assert.Equal(t, 1, sweeps.deactivated)
	assert.Equal(t, 1, sweeps.purged)
}

func TestOverlapLockSkipsHeldJobs(t *testing.T) {
	sweeps := &fakeSweeps{}
	fc := clock.NewFakeClock(time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC))
	locker := notification.NewMemoryLocker()
	reaper := newTestReaper(sweeps, fc, locker)
	ctx := context.Background()

	// Another replica holds the expiry lock.
	_, ok, err := locker.TryLock(ctx, "expire_unpaid", time.Minute)
	assert.NoError(t, err)
	assert.True(t, ok)

	reaper.Tick(ctx)
	assert.Equal(t, 0, sweeps.expireCalls)
	// Daily jobs have their own locks and still run.
	assert.Equal(t, 1, sweeps.deactivated)
	assert.Equal(t, 1, sweeps.purged)
}
