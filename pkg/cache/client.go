// Package cache implements the advisory dual-store cache (spec §3/§4.2) over
// Redis: task/dialogue status pointers and cached specs, all TTL-bounded and
// safe to lose — the durable row in pkg/store remains authoritative.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agentbus/core/pkg/apierrors"
	"github.com/agentbus/core/pkg/config"
	"github.com/agentbus/core/pkg/models"
	"github.com/agentbus/core/pkg/ports"
	"github.com/agentbus/core/pkg/taskstate"
)

// Client implements ports.Cache over a single Redis connection.
type Client struct {
	rdb *redis.Client
}

// New builds a Client from cfg without blocking on connectivity; callers
// that want a fail-fast startup should call Ping.
func New(cfg config.CacheConfig) *Client {
	return &Client{rdb: redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})}
}

// Ping verifies connectivity to Redis.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return apierrors.Wrap(apierrors.KindStorage, "cache_unreachable", "redis ping failed", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

var _ ports.Cache = (*Client)(nil)

func (c *Client) GetStatus(ctx context.Context, key string) (*ports.CachedStatus, error) {
	var out ports.CachedStatus
	if err := getJSON(ctx, c.rdb, key, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SetStatus(ctx context.Context, key string, status *ports.CachedStatus, ttl time.Duration) error {
	return setJSON(ctx, c.rdb, key, status, ttl)
}

// SetStatusLinked writes both keys inside a single Redis pipeline so a reader
// never observes one without the other (spec §4.2's dialogue/task linking).
func (c *Client) SetStatusLinked(ctx context.Context, dialogueKey, taskKey string, status *ports.CachedStatus, ttl time.Duration) error {
	raw, err := json.Marshal(status)
	if err != nil {
		return apierrors.Wrap(apierrors.KindStorage, "cache_marshal_failed", "marshal cached status", err)
	}

	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, dialogueKey, raw, ttl)
		pipe.Set(ctx, taskKey, raw, ttl)
		return nil
	})
	if err != nil {
		return apierrors.Wrap(apierrors.KindStorage, "cache_link_failed", "link dialogue and task status keys", err)
	}
	return nil
}

func (c *Client) GetDialogue(ctx context.Context, dialogueID string) (*models.DialogueState, error) {
	var out models.DialogueState
	if err := getJSON(ctx, c.rdb, taskstate.DialogueKey(dialogueID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) SetDialogue(ctx context.Context, state *models.DialogueState, ttl time.Duration) error {
	return setJSON(ctx, c.rdb, taskstate.DialogueKey(state.DialogueID), state, ttl)
}

func (c *Client) SetSpec(ctx context.Context, taskID string, spec *models.TaskSpecification, ttl time.Duration) error {
	return setJSON(ctx, c.rdb, taskstate.SpecKey(taskID), spec, ttl)
}

func getJSON(ctx context.Context, rdb *redis.Client, key string, out any) error {
	raw, err := rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return ports.ErrNotFound
	}
	if err != nil {
		return apierrors.Wrap(apierrors.KindStorage, "cache_get_failed", fmt.Sprintf("get %s", key), err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return apierrors.Wrap(apierrors.KindStorage, "cache_unmarshal_failed", fmt.Sprintf("unmarshal %s", key), err)
	}
	return nil
}

func setJSON(ctx context.Context, rdb *redis.Client, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return apierrors.Wrap(apierrors.KindStorage, "cache_marshal_failed", fmt.Sprintf("marshal %s", key), err)
	}
	if err := rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		return apierrors.Wrap(apierrors.KindStorage, "cache_set_failed", fmt.Sprintf("set %s", key), err)
	}
	return nil
}
