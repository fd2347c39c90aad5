// Package cache provides Redis-based caching for quick studio reads.
// The engine stays the source of truth; the cache only serves dashboards.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/engine"
)

// ErrMiss is returned when a key is not cached.
var ErrMiss = errors.New("cache miss")

// RedisClient is an interface for Redis operations.
// This allows for easy mocking in tests.
type RedisClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, values ...interface{}) error
}

// GoRedis adapts a go-redis client to RedisClient.
type GoRedis struct {
	client *redis.Client
}

// NewGoRedis connects to addr and pings it with a short timeout. A
// non-positive poolSize keeps the go-redis default.
func NewGoRedis(addr, password string, db, poolSize int) (*GoRedis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
		PoolSize: poolSize,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &GoRedis{client: client}, nil
}

func (g *GoRedis) Get(ctx context.Context, key string) (string, error) {
	v, err := g.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return v, err
}

func (g *GoRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return g.client.Set(ctx, key, value, expiration).Err()
}

func (g *GoRedis) Del(ctx context.Context, keys ...string) error {
	return g.client.Del(ctx, keys...).Err()
}

func (g *GoRedis) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return g.client.HGetAll(ctx, key).Result()
}

func (g *GoRedis) HSet(ctx context.Context, key string, values ...interface{}) error {
	return g.client.HSet(ctx, key, values...).Err()
}

// Close releases the connection pool.
func (g *GoRedis) Close() error {
	return g.client.Close()
}

// StudioCache provides fast access to studio snapshots.
type StudioCache struct {
	client     RedisClient
	expiration time.Duration
}

// NewStudioCache creates a new studio cache instance.
func NewStudioCache(client RedisClient) *StudioCache {
	return &StudioCache{
		client:     client,
		expiration: 15 * time.Minute,
	}
}

// ProductionSummary is the cached per-film line a dashboard lists.
type ProductionSummary struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Genre    string  `json:"genre"`
	Stage    string  `json:"stage"`
	Phase    string  `json:"phase"`
	Quality  float64 `json:"quality"`
	Spend    int64   `json:"spend"`
	Budget   int64   `json:"budget"`
	LastSync int64   `json:"last_sync"` // Unix timestamp
}

// Store caches the full snapshot as JSON and refreshes the production hash.
func (c *StudioCache) Store(ctx context.Context, studioID string, snap engine.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := c.client.Set(ctx, c.snapshotKey(studioID), data, c.expiration); err != nil {
		return fmt.Errorf("failed to cache snapshot: %w", err)
	}
	if len(snap.Productions) == 0 {
		return nil
	}

	now := time.Now().Unix()
	values := make([]interface{}, 0, len(snap.Productions)*2)
	for _, p := range snap.Productions {
		data, err := json.Marshal(ProductionSummary{
			ID:       p.ID,
			Title:    p.Title,
			Genre:    string(p.Genre),
			Stage:    string(p.StageKind),
			Phase:    p.Phase().String(),
			Quality:  p.Quality,
			Spend:    p.CumulativeSpend,
			Budget:   p.CurrentBudget,
			LastSync: now,
		})
		if err != nil {
			return fmt.Errorf("failed to marshal production %s: %w", p.ID, err)
		}
		values = append(values, p.ID, string(data))
	}
	return c.client.HSet(ctx, c.productionsKey(studioID), values...)
}

// SnapshotJSON returns the cached snapshot exactly as stored.
func (c *StudioCache) SnapshotJSON(ctx context.Context, studioID string) ([]byte, error) {
	data, err := c.client.Get(ctx, c.snapshotKey(studioID))
	if err != nil {
		return nil, err
	}
	return []byte(data), nil
}

// Productions retrieves the cached production summaries keyed by ID.
func (c *StudioCache) Productions(ctx context.Context, studioID string) (map[string]ProductionSummary, error) {
	data, err := c.client.HGetAll(ctx, c.productionsKey(studioID))
	if err != nil {
		return nil, err
	}

	out := make(map[string]ProductionSummary, len(data))
	for id, jsonStr := range data {
		var s ProductionSummary
		if err := json.Unmarshal([]byte(jsonStr), &s); err != nil {
			return nil, fmt.Errorf("failed to unmarshal production %s: %w", id, err)
		}
		out[id] = s
	}
	return out, nil
}

// Invalidate removes all cached state for a studio.
func (c *StudioCache) Invalidate(ctx context.Context, studioID string) error {
	return c.client.Del(ctx, c.snapshotKey(studioID), c.productionsKey(studioID))
}

func (c *StudioCache) snapshotKey(studioID string) string {
	return fmt.Sprintf("studio:%s:snapshot", studioID)
}

func (c *StudioCache) productionsKey(studioID string) string {
	return fmt.Sprintf("studio:%s:productions", studioID)
}
