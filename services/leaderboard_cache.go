package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"leaderboardAPI/internal/score"
	"leaderboardAPI/internal/telemetry"
)

const (
	cacheTTL = 5 * time.Minute

	snapshotKeyPrefix = "leaderboard:top:"
	rankKeyFormat     = "leaderboard:rank:%d"
)

// LeaderboardCache holds the two derived read-models: serialized top-N
// snapshots (one key per requested limit) and score-to-rank memoizations.
// Everything in it is disposable; a failed or missing cache only costs a
// trip to the database, so no method here returns an error to the caller.
type LeaderboardCache struct {
	client *redis.Client
}

// NewLeaderboardCache wraps a shared Redis client. A nil client is allowed
// and behaves as a cache that always misses.
func NewLeaderboardCache(client *redis.Client) *LeaderboardCache {
	return &LeaderboardCache{client: client}
}

func (c *LeaderboardCache) GetSnapshot(ctx context.Context, limit int) ([]score.LeaderboardEntry, bool) {
	if c.client == nil {
		return nil, false
	}
	defer observeRedisOp(ctx, "get", time.Now())

	data, err := c.client.Get(ctx, snapshotKey(limit)).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("Failed to read leaderboard snapshot from cache: %v", err)
		}
		return nil, false
	}

	var entries []score.LeaderboardEntry
	if err := json.Unmarshal([]byte(data), &entries); err != nil {
		log.Printf("Failed to decode cached leaderboard snapshot: %v", err)
		return nil, false
	}
	return entries, true
}

func (c *LeaderboardCache) SetSnapshot(ctx context.Context, limit int, entries []score.LeaderboardEntry) {
	if c.client == nil {
		return
	}
	defer observeRedisOp(ctx, "set", time.Now())

	data, err := json.Marshal(entries)
	if err != nil {
		log.Printf("Failed to encode leaderboard snapshot: %v", err)
		return
	}
	if err := c.client.Set(ctx, snapshotKey(limit), data, cacheTTL).Err(); err != nil {
		log.Printf("Failed to cache leaderboard snapshot: %v", err)
	}
}

// InvalidateSnapshots drops every cached top-N view. Rank entries are left
// to expire on their own: a stale rank for a score below the new insertion
// point is acceptable for up to the TTL.
func (c *LeaderboardCache) InvalidateSnapshots(ctx context.Context) {
	if c.client == nil {
		return
	}
	ctx, span := telemetry.Tracer.Start(ctx, "invalidateCache")
	defer span.End()
	defer observeRedisOp(ctx, "delete", time.Now())

	iter := c.client.Scan(ctx, 0, snapshotKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			log.Printf("Failed to invalidate cache key %s: %v", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		log.Printf("Failed to scan leaderboard snapshot keys: %v", err)
	}
}

func (c *LeaderboardCache) GetRank(ctx context.Context, points int) (int, bool) {
	if c.client == nil {
		return 0, false
	}
	defer observeRedisOp(ctx, "get", time.Now())

	rank, err := c.client.Get(ctx, fmt.Sprintf(rankKeyFormat, points)).Int()
	if err != nil {
		if err != redis.Nil {
			log.Printf("Failed to read rank from cache: %v", err)
		}
		return 0, false
	}
	return rank, true
}

func (c *LeaderboardCache) SetRank(ctx context.Context, points, rank int) {
	if c.client == nil {
		return
	}
	defer observeRedisOp(ctx, "set", time.Now())

	if err := c.client.Set(ctx, fmt.Sprintf(rankKeyFormat, points), rank, cacheTTL).Err(); err != nil {
		log.Printf("Failed to cache rank: %v", err)
	}
}

func (c *LeaderboardCache) Ping(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("cache client not configured")
	}
	return c.client.Ping(ctx).Err()
}

func snapshotKey(limit int) string {
	return fmt.Sprintf("%s%d", snapshotKeyPrefix, limit)
}

func observeRedisOp(ctx context.Context, op string, start time.Time) {
	telemetry.RedisOpDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("operation", op)))
}
