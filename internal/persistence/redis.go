package persistence

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/dispute-service/internal/config"
)

// Redis wraps the go-redis client used for dispute notice fan-out.
type Redis struct {
	Client        *redis.Client
	ChannelPrefix string
}

// NewRedis connects to Redis using the provided configuration. An unreachable
// server is logged, not fatal: transitions still commit and only real-time
// notices are lost until it comes back.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	r := &Redis{Client: client, ChannelPrefix: cfg.ChannelPrefix}

	fields := []zap.Field{
		zap.String("addr", cfg.Addr),
		zap.Int("db", cfg.DB),
		zap.String("channel_prefix", cfg.ChannelPrefix),
	}
	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis; dispute notices will not be broadcast", append(fields, zap.Error(err))...)
	} else {
		logger.Info("connected to redis", fields...)
	}

	return r
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}
