package reaper

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smartorder/smartorder/internal/clock"
	discountdomain "github.com/smartorder/smartorder/internal/discount/domain"
	"github.com/smartorder/smartorder/internal/observability/metrics"
	orderdomain "github.com/smartorder/smartorder/internal/order/domain"
	"github.com/smartorder/smartorder/internal/queue"
	"github.com/smartorder/smartorder/pkg/lock"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("reaper",
	fx.Provide(func(
		log *zap.Logger,
		clk clock.Clock,
		m *metrics.Metrics,
		client *redis.Client,
		orders orderdomain.Service,
		discounts discountdomain.Service,
		queueSvc *queue.Service,
	) *Reaper {
		var locker Locker
		if client != nil {
			locker = lock.NewLocker(client).WithPrefix("reaper:")
		}
		return New(log, Config{}, clk, m, locker, orders, discounts, queueSvc)
	}),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, reaper *Reaper) {
	runCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go reaper.Run(runCtx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			return nil
		},
	})
}
