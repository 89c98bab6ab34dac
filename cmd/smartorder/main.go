package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smartorder/smartorder/internal/catalog"
	"github.com/smartorder/smartorder/internal/clock"
	"github.com/smartorder/smartorder/internal/config"
	"github.com/smartorder/smartorder/internal/devicetoken"
	"github.com/smartorder/smartorder/internal/discount"
	"github.com/smartorder/smartorder/internal/events"
	"github.com/smartorder/smartorder/internal/migration"
	"github.com/smartorder/smartorder/internal/notification"
	"github.com/smartorder/smartorder/internal/observability"
	"github.com/smartorder/smartorder/internal/order"
	"github.com/smartorder/smartorder/internal/payment"
	"github.com/smartorder/smartorder/internal/providers/email"
	"github.com/smartorder/smartorder/internal/providers/push"
	"github.com/smartorder/smartorder/internal/queue"
	"github.com/smartorder/smartorder/internal/reaper"
	"github.com/smartorder/smartorder/internal/server"
	"github.com/smartorder/smartorder/internal/settings"
	"github.com/smartorder/smartorder/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		fx.Provide(NewRedisClient),
		db.Module,
		clock.Module,
		events.Module,
		migration.Module,

		// Domains
		queue.Module,
		catalog.Module,
		discount.Module,
		settings.Module,
		devicetoken.Module,
		payment.Module,
		order.Module,

		// Side-effect pipeline
		email.Module,
		push.Module,
		notification.Module,
		reaper.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func NewRedisClient(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				// Broadcast and debounce degrade gracefully without redis,
				// so a missing instance is a warning, not a startup failure.
				log.Warn("redis unreachable", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return client
}
