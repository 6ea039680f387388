package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// PubSub fans enriched events out to live viewers over redis channels. Two
// channel families exist per organization: the base event channel and the
// thumbnail-enriched channel.
type PubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// New creates the pub/sub transport.
func New(client *redis.Client, logger *zap.Logger) *PubSub {
	return &PubSub{client: client, logger: logger.Named("pubsub")}
}

// EventChannel is the per-organization base event channel.
func EventChannel(orgID string) string {
	return fmt.Sprintf("org:%s:events", orgID)
}

// ThumbnailChannel is the per-organization thumbnail-enriched channel.
func ThumbnailChannel(orgID string) string {
	return fmt.Sprintf("org:%s:events:thumbnails", orgID)
}

// Publish marshals and publishes one message.
func (p *PubSub) Publish(ctx context.Context, channel string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal message for %s: %w", channel, err)
	}
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}

// SubscriberCount returns the live subscriber count on a channel. Errors
// degrade to zero so cost-control decisions fail toward "skip".
func (p *PubSub) SubscriberCount(ctx context.Context, channel string) int64 {
	counts, err := p.client.PubSubNumSub(ctx, channel).Result()
	if err != nil {
		p.logger.Warn("subscriber count lookup failed", zap.String("channel", channel), zap.Error(err))
		return 0
	}
	return counts[channel]
}
