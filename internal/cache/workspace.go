package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/forerelic/truss/internal/obs"
	"github.com/forerelic/truss/internal/workspace"
)

const keyPrefix = "workspace:ctx:"

// Workspaces is a best-effort cache of resolved workspace contexts
// keyed by user id. A miss or a Redis failure just means the caller
// resolves again; cache errors never fail a request.
type Workspaces struct {
	rdb *redis.Client
	ttl time.Duration
}

// Config holds Redis connection settings.
type Config struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Workspaces, error) {
	if cfg.TTL <= 0 {
		return nil, errors.New("cache: ttl must be positive")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return &Workspaces{rdb: rdb, ttl: cfg.TTL}, nil
}

func (c *Workspaces) Close() error { return c.rdb.Close() }

// Get returns the cached context for the user, or (nil, false) on miss
// or any cache failure.
func (c *Workspaces) Get(ctx context.Context, userID string) (*workspace.Context, bool) {
	raw, err := c.rdb.Get(ctx, keyPrefix+userID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		c.logFailure("get", userID, err)
		return nil, false
	}
	var wctx workspace.Context
	if err := json.Unmarshal(raw, &wctx); err != nil {
		c.logFailure("decode", userID, err)
		_ = c.rdb.Del(ctx, keyPrefix+userID).Err()
		return nil, false
	}
	return &wctx, true
}

// Put stores the resolved context with the configured TTL.
func (c *Workspaces) Put(ctx context.Context, userID string, wctx *workspace.Context) {
	if wctx == nil {
		return
	}
	raw, err := json.Marshal(wctx)
	if err != nil {
		c.logFailure("encode", userID, err)
		return
	}
	if err := c.rdb.Set(ctx, keyPrefix+userID, raw, c.ttl).Err(); err != nil {
		c.logFailure("set", userID, err)
	}
}

// Invalidate drops the cached context, forcing the next read to
// resolve. Called after permission writes and explicit refreshes.
func (c *Workspaces) Invalidate(ctx context.Context, userID string) {
	if err := c.rdb.Del(ctx, keyPrefix+userID).Err(); err != nil {
		c.logFailure("invalidate", userID, err)
	}
}

func (c *Workspaces) logFailure(op, userID string, err error) {
	obs.LogEvent("warn", "workspace_cache_failure", map[string]any{
		"op":      op,
		"user_id": userID,
		"error":   err.Error(),
	})
}
