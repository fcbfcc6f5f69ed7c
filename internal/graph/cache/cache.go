// Package cache adds a Redis read-through layer in front of a graph
// collaborator. Node lookups dominate intercept latency, so only GetNode is
// cached; blast radius and edge queries pass straight through because their
// results shift with every topology change.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"warden/internal/domain"
	"warden/internal/governor/ports"
)

const nodeKeyPrefix = "graph:node:"

// Commands is the slice of the Redis client the cache depends on.
// *redis.Client satisfies it.
type Commands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// NodeCache wraps a graph collaborator with per-node caching. Cache failures
// degrade to the inner collaborator, never to an error.
type NodeCache struct {
	inner  ports.GraphPort
	client Commands
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures a NodeCache.
type Option func(*NodeCache)

// WithTTL overrides the default cache entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *NodeCache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithLogger sets the logger used for cache degradation warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *NodeCache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New wraps inner with a Redis node cache.
func New(inner ports.GraphPort, client Commands, opts ...Option) *NodeCache {
	c := &NodeCache{
		inner:  inner,
		client: client,
		ttl:    5 * time.Minute,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// cachedNode is the wire form of a node in Redis. Absent nodes are cached as
// Missing=true so repeated lookups of unknown targets stay cheap.
type cachedNode struct {
	Missing bool         `json:"missing,omitempty"`
	Node    *domain.Node `json:"node,omitempty"`
}

func (c *NodeCache) GetNode(ctx context.Context, id string) (*domain.Node, error) {
	key := nodeKeyPrefix + id

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var entry cachedNode
		if jsonErr := json.Unmarshal(raw, &entry); jsonErr == nil {
			if entry.Missing {
				return nil, nil
			}
			return entry.Node, nil
		}
		// Corrupt entry, fall through and refresh it.
	} else if !errors.Is(err, redis.Nil) {
		c.logger.WarnContext(ctx, "node cache read failed", "node_id", id, "error", err)
	}

	node, err := c.inner.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}

	entry := cachedNode{Missing: node == nil, Node: node}
	if raw, jsonErr := json.Marshal(entry); jsonErr == nil {
		if setErr := c.client.Set(ctx, key, raw, c.ttl).Err(); setErr != nil {
			c.logger.WarnContext(ctx, "node cache write failed", "node_id", id, "error", setErr)
		}
	}
	return node, nil
}

// Invalidate drops the cached entry for a node, for callers that mutate the
// upstream graph.
func (c *NodeCache) Invalidate(ctx context.Context, id string) error {
	return c.client.Del(ctx, nodeKeyPrefix+id).Err()
}

func (c *NodeCache) GetBlastRadius(ctx context.Context, id string, maxDepth int) (domain.BlastRadius, error) {
	return c.inner.GetBlastRadius(ctx, id, maxDepth)
}

func (c *NodeCache) GetEdgesForNode(ctx context.Context, id string, direction domain.EdgeDirection) ([]domain.Edge, error) {
	return c.inner.GetEdgesForNode(ctx, id, direction)
}
