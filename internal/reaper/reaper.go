package reaper

import (
	"context"
	"time"

	"github.com/smartorder/smartorder/internal/clock"
	"github.com/smartorder/smartorder/internal/observability/metrics"
	"github.com/smartorder/smartorder/internal/queue"
	"go.uber.org/zap"
)

// OrderSweeper is the slice of the order lifecycle the reaper drives.
type OrderSweeper interface {
	ExpireOverdue(ctx context.Context, now time.Time) (int, error)
}

// DiscountSweeper deactivates discounts whose validity window has passed.
type DiscountSweeper interface {
	DeactivateEnded(ctx context.Context, now time.Time) (int64, error)
}

// CounterPurger drops queue-counter rows for long-gone dates.
type CounterPurger interface {
	PurgeBefore(ctx context.Context, date time.Time) (int64, error)
}

// Locker guards against overlapping runs across replicas. A nil locker means
// single-process deployment; jobs then run unguarded.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	Release(ctx context.Context, key, token string) error
}

type Config struct {
	RunInterval time.Duration
	JobTimeout  time.Duration
	// CounterRetention is how long passed queue-counter rows are kept before
	// the daily sweep drops them.
	CounterRetention time.Duration
}

func (c Config) withDefaults() Config {
	if c.RunInterval <= 0 {
		c.RunInterval = time.Minute
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 30 * time.Second
	}
	if c.CounterRetention <= 0 {
		c.CounterRetention = 7 * 24 * time.Hour
	}
	return c
}

// Reaper periodically cancels unpaid online orders past their deadline. It
// also hosts the daily maintenance sweeps: discount deactivation and
// queue-counter cleanup.
type Reaper struct {
	log       *zap.Logger
	cfg       Config
	clock     clock.Clock
	metrics   *metrics.Metrics
	locker    Locker
	orders    OrderSweeper
	discounts DiscountSweeper
	queue     CounterPurger

	lastDaily string
}

func New(
	log *zap.Logger,
	cfg Config,
	clk clock.Clock,
	m *metrics.Metrics,
	locker Locker,
	orders OrderSweeper,
	discounts DiscountSweeper,
	queueSvc CounterPurger,
) *Reaper {
	return &Reaper{
		log:       log.Named("reaper"),
		cfg:       cfg.withDefaults(),
		clock:     clk,
		metrics:   m,
		locker:    locker,
		orders:    orders,
		discounts: discounts,
		queue:     queueSvc,
	}
}

// Run ticks until the context is canceled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.RunInterval)
	defer ticker.Stop()

	r.log.Info("reaper started", zap.Duration("interval", r.cfg.RunInterval))
	for {
		select {
		case <-ctx.Done():
			r.log.Info("reaper stopped")
			return
		case <-ticker.C:
			r.Tick(ctx)
		}
	}
}

// Tick runs the per-interval sweep plus, on the first tick of a new day, the
// daily maintenance jobs.
func (r *Reaper) Tick(ctx context.Context) {
	r.runJob(ctx, "expire_unpaid", r.expireUnpaid)

	today := queue.DateKey(r.clock.Now())
	if today != r.lastDaily {
		r.runJob(ctx, "deactivate_discounts", r.deactivateDiscounts)
		r.runJob(ctx, "purge_queue_counters", r.purgeQueueCounters)
		r.lastDaily = today
	}
}

// runJob wraps a sweep with the overlap lock, a timeout, metrics and logging.
func (r *Reaper) runJob(ctx context.Context, name string, fn func(context.Context) error) {
	if r.locker != nil {
		token, ok, err := r.locker.TryLock(ctx, name, r.cfg.JobTimeout)
		if err != nil {
			r.log.Warn("overlap lock unavailable, skipping job", zap.String("job", name), zap.Error(err))
			return
		}
		if !ok {
			r.log.Debug("job already running elsewhere", zap.String("job", name))
			return
		}
		defer func() {
			if err := r.locker.Release(ctx, name, token); err != nil {
				r.log.Warn("overlap lock release failed", zap.String("job", name), zap.Error(err))
			}
		}()
	}

	jobCtx, cancel := context.WithTimeout(ctx, r.cfg.JobTimeout)
	defer cancel()

	start := time.Now()
	err := fn(jobCtx)
	r.metrics.ObserveJob(name, time.Since(start), err)
	if err != nil {
		r.log.Error("reaper job failed", zap.String("job", name), zap.Error(err))
	}
}

func (r *Reaper) expireUnpaid(ctx context.Context) error {
	swept, err := r.orders.ExpireOverdue(ctx, r.clock.Now())
	if err != nil {
		return err
	}
	if swept > 0 {
		r.log.Info("expired unpaid orders", zap.Int("count", swept))
	}
	return nil
}

func (r *Reaper) deactivateDiscounts(ctx context.Context) error {
	deactivated, err := r.discounts.DeactivateEnded(ctx, r.clock.Now())
	if err != nil {
		return err
	}
	if deactivated > 0 {
		r.log.Info("deactivated ended discounts", zap.Int64("count", deactivated))
	}
	return nil
}

func (r *Reaper) purgeQueueCounters(ctx context.Context) error {
	purged, err := r.queue.PurgeBefore(ctx, r.clock.Now().Add(-r.cfg.CounterRetention))
	if err != nil {
		return err
	}
	if purged > 0 {
		r.log.Info("purged old queue counters", zap.Int64("count", purged))
	}
	return nil
}
