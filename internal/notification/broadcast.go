package notification

import (
	"context"
	"encoding/json"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Broadcaster pushes staff-facing events onto a pub/sub channel. Delivery is
// best effort; staff UIs poll a snapshot endpoint to recover missed events.
type Broadcaster interface {
	Broadcast(ctx context.Context, channel string, payload any) error
}

type RedisBroadcaster struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisBroadcaster(client *redis.Client, log *zap.Logger) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, log: log.Named("broadcast.redis")}
}

func (b *RedisBroadcaster) Broadcast(ctx context.Context, channel string, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channel, encoded).Err()
}

// LogBroadcaster stands in when redis is not configured.
type LogBroadcaster struct {
	log *zap.Logger
}

func NewLogBroadcaster(log *zap.Logger) *LogBroadcaster {
	return &LogBroadcaster{log: log.Named("broadcast.log")}
}

func (b *LogBroadcaster) Broadcast(ctx context.Context, channel string, payload any) error {
	b.log.Debug("broadcast", zap.String("channel", channel), zap.Any("payload", payload))
	return nil
}
