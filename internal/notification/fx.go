package notification

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/smartorder/smartorder/internal/config"
	"github.com/smartorder/smartorder/internal/devicetoken"
	"github.com/smartorder/smartorder/internal/events"
	"github.com/smartorder/smartorder/internal/providers/email"
	"github.com/smartorder/smartorder/internal/providers/push"
	"github.com/smartorder/smartorder/pkg/lock"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("notification",
	fx.Provide(func(cfg config.Config) Config {
		return Config{LockTTL: cfg.NotifyLockTTL}
	}),
	fx.Provide(func(client *redis.Client, log *zap.Logger) Broadcaster {
		if client == nil {
			return NewLogBroadcaster(log)
		}
		return NewRedisBroadcaster(client, log)
	}),
	fx.Provide(func(client *redis.Client) Locker {
		if client == nil {
			return NewMemoryLocker()
		}
		return lock.NewLocker(client).WithPrefix("notify:")
	}),
	fx.Provide(func(svc *devicetoken.Service) TokenSource { return svc }),
	fx.Provide(func(
		log *zap.Logger,
		cfg Config,
		bus *events.Bus,
		locker Locker,
		broadcaster Broadcaster,
		pushProvider push.Provider,
		emailProvider email.Provider,
		tokens TokenSource,
	) *Dispatcher {
		return NewDispatcher(log, cfg, bus, locker, broadcaster, pushProvider, emailProvider, tokens)
	}),
	fx.Invoke(registerLifecycle),
)

func registerLifecycle(lc fx.Lifecycle, dispatcher *Dispatcher) {
	runCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go dispatcher.Run(runCtx)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			return nil
		},
	})
}
