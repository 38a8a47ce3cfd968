package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroadcaster fans notices out over Redis pub/sub so every API instance
// can push them to its own stream subscribers.
type RedisBroadcaster struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisBroadcaster returns a broadcaster publishing under prefix.
func NewRedisBroadcaster(client *redis.Client, prefix string, logger *zap.Logger) *RedisBroadcaster {
	if prefix == "" {
		prefix = "disputes"
	}
	return &RedisBroadcaster{client: client, prefix: prefix, logger: logger}
}

// DisputeChannel is the channel carrying notices for one dispute.
func (b *RedisBroadcaster) DisputeChannel(disputeID string) string {
	return fmt.Sprintf("%s:%s", b.prefix, disputeID)
}

// AllChannel carries every notice.
func (b *RedisBroadcaster) AllChannel() string {
	return b.prefix + ":all"
}

// Broadcast publishes the notice on the dispute channel and the firehose.
func (b *RedisBroadcaster) Broadcast(ctx context.Context, notice Notice) error {
	if b == nil || b.client == nil {
		return errors.New("redis broadcaster not configured")
	}
	body, err := json.Marshal(notice)
	if err != nil {
		return err
	}
	pipe := b.client.Pipeline()
	pipe.Publish(ctx, b.DisputeChannel(notice.DisputeID), body)
	pipe.Publish(ctx, b.AllChannel(), body)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("broadcast %s: %w", notice.DisputeID, err)
	}
	return nil
}

// Subscribe streams notices for one dispute until ctx ends. The returned
// channel is closed when the subscription stops.
func (b *RedisBroadcaster) Subscribe(ctx context.Context, disputeID string) (<-chan Notice, error) {
	if b == nil || b.client == nil {
		return nil, errors.New("redis broadcaster not configured")
	}
	pubsub := b.client.Subscribe(ctx, b.DisputeChannel(disputeID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", disputeID, err)
	}

	out := make(chan Notice, 8)
	go func() {
		defer close(out)
		defer pubsub.Close()
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var notice Notice
				if err := json.Unmarshal([]byte(msg.Payload), &notice); err != nil {
					b.logger.Warn("dropping malformed notice", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				select {
				case out <- notice:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
