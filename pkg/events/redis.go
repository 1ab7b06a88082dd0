package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/models"
	"github.com/vaforge/vaforge-engine/pkg/retry"
	"github.com/vaforge/vaforge-engine/pkg/services/workqueue"
)

// RedisPublisher pushes events onto a Redis list so any engine instance's
// consumer can process them.
type RedisPublisher struct {
	client *redis.Client
	key    string
	logger *zap.Logger
}

// NewRedisPublisher creates a publisher writing to the list at key.
func NewRedisPublisher(client *redis.Client, key string, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, key: key, logger: logger.Named("events")}
}

var _ Publisher = (*RedisPublisher)(nil)

func (p *RedisPublisher) Publish(ctx context.Context, event models.EnrichmentEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal enrichment event: %w", err)
	}

	if err := p.client.LPush(ctx, p.key, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish enrichment event: %w", err)
	}

	p.logger.Debug("Enrichment event published",
		zap.String("event_id", event.ID.String()),
		zap.String("kind", string(event.Kind)))
	return nil
}

// RedisConsumer pops events from the Redis list and runs them on a work queue.
type RedisConsumer struct {
	client      *redis.Client
	key         string
	queue       *workqueue.Queue
	handler     Handler
	pollTimeout time.Duration
	logger      *zap.Logger
}

// NewRedisConsumer creates a consumer for the list at key.
func NewRedisConsumer(client *redis.Client, key string, queue *workqueue.Queue, handler Handler, logger *zap.Logger) *RedisConsumer {
	return &RedisConsumer{
		client:      client,
		key:         key,
		queue:       queue,
		handler:     handler,
		pollTimeout: 5 * time.Second,
		logger:      logger.Named("events"),
	}
}

// Run consumes until ctx is cancelled.
func (c *RedisConsumer) Run(ctx context.Context) error {
	c.logger.Info("Enrichment consumer started", zap.String("key", c.key))

	for {
		if ctx.Err() != nil {
			return nil
		}

		result, err := c.client.BRPop(ctx, c.pollTimeout, c.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Failed to pop enrichment event", zap.Error(err))
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}

		// BRPOP returns [key, value].
		if len(result) != 2 {
			continue
		}
		c.dispatch(ctx, result[1])
	}
}

func (c *RedisConsumer) dispatch(ctx context.Context, payload string) {
	var event models.EnrichmentEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		c.logger.Error("Dropping malformed enrichment event", zap.Error(err))
		return
	}

	task := newEventTask(c.handler, event)
	err := retry.DoWhen(ctx, nil, func(err error) bool {
		return errors.Is(err, workqueue.ErrQueueFull)
	}, func() error {
		return c.queue.Enqueue(task)
	})
	if err != nil {
		// Put the event back so it is not lost.
		if pushErr := c.client.RPush(context.WithoutCancel(ctx), c.key, payload).Err(); pushErr != nil {
			c.logger.Error("Lost enrichment event",
				zap.String("event_id", event.ID.String()),
				zap.Error(pushErr))
			return
		}
		c.logger.Warn("Requeued enrichment event",
			zap.String("event_id", event.ID.String()),
			zap.Error(err))
	}
}
