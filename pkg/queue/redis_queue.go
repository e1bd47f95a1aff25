// Package queue implements the durable at-least-once queue port over Redis
// Streams consumer groups (spec §5 "Queue semantics", §3): one stream per
// topic, one shared consumer group per topic so every message is claimed by
// exactly one consumer process at a time, with explicit XACK on success.
// Adapted from goa-ai's pulse queue-over-Redis pattern (pulse itself is not
// imported — this module talks to go-redis directly, the same client the
// pack already uses for pkg/cache).
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agentbus/core/pkg/apierrors"
	"github.com/agentbus/core/pkg/config"
	"github.com/agentbus/core/pkg/ports"
)

// consumerGroup is shared by every consumer of a topic — delivery fans out
// across whichever processes are reading, not duplicated per-process.
const consumerGroup = "agentbus"

// blockTimeout bounds how long a single Receive call waits for a new
// stream entry before returning ErrUnavailable for the caller to loop on.
const blockTimeout = 2 * time.Second

// Client implements ports.Queue over Redis Streams.
type Client struct {
	rdb        *redis.Client
	consumerID string
}

// New builds a Client from cfg without blocking on connectivity.
func New(cfg config.QueueConfig, consumerID string) *Client {
	return &Client{
		rdb: redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}),
		consumerID: consumerID,
	}
}

// Ping verifies connectivity to Redis.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return apierrors.Wrap(apierrors.KindStorage, "queue_unreachable", "redis ping failed", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

var _ ports.Queue = (*Client)(nil)

// Publish appends payload to topic's stream (XADD).
func (c *Client) Publish(ctx context.Context, topic string, payload []byte) error {
	if err := c.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: topic,
		Values: map[string]any{"payload": payload},
	}).Err(); err != nil {
		return apierrors.Wrap(apierrors.KindQueue, "queue_publish_failed", "failed publishing to queue", err)
	}
	return nil
}

// Receive reads the next unclaimed entry from topic's consumer group,
// creating the group (and the stream, if absent) on first use. It returns
// ports.ErrUnavailable if nothing arrives within blockTimeout — callers are
// expected to loop (spec §5 "Consumers must be idempotent").
func (c *Client) Receive(ctx context.Context, topic string) (*ports.QueueMessage, error) {
	if err := c.ensureGroup(ctx, topic); err != nil {
		return nil, err
	}

	res, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    consumerGroup,
		Consumer: c.consumerID,
		Streams:  []string{topic, ">"},
		Count:    1,
		Block:    blockTimeout,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ports.ErrUnavailable
		}
		return nil, apierrors.Wrap(apierrors.KindQueue, "queue_receive_failed", "failed reading from queue", err)
	}
	if len(res) == 0 || len(res[0].Messages) == 0 {
		return nil, ports.ErrUnavailable
	}

	entry := res[0].Messages[0]
	payload, _ := entry.Values["payload"].(string)
	return &ports.QueueMessage{ID: entry.ID, Topic: topic, Payload: []byte(payload)}, nil
}

// Ack acknowledges messageID on topic's consumer group, preventing
// redelivery (XACK).
func (c *Client) Ack(ctx context.Context, topic string, messageID string) error {
	if err := c.rdb.XAck(ctx, topic, consumerGroup, messageID).Err(); err != nil {
		return apierrors.Wrap(apierrors.KindQueue, "queue_ack_failed", "failed acknowledging queue message", err)
	}
	return nil
}

// ensureGroup creates the consumer group (and backing stream, via MKSTREAM)
// the first time a topic is read; "group already exists" is not an error.
func (c *Client) ensureGroup(ctx context.Context, topic string) error {
	err := c.rdb.XGroupCreateMkStream(ctx, topic, consumerGroup, "0").Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		if isBusyGroupErr(err) {
			return nil
		}
		return apierrors.Wrap(apierrors.KindQueue, "queue_group_create_failed", "failed creating consumer group", err)
	}
	return nil
}

func isBusyGroupErr(err error) bool {
	return err != nil && len(err.Error()) >= 9 && err.Error()[:9] == "BUSYGROUP"
}
