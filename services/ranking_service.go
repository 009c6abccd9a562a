package services

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"leaderboardAPI/internal/telemetry"
)

type rankStore interface {
	CountGreaterThan(ctx context.Context, points int) (int, error)
}

type rankCache interface {
	GetRank(ctx context.Context, points int) (int, bool)
	SetRank(ctx context.Context, points, rank int)
}

// RankingService computes a score's 1-based rank: the count of strictly
// greater stored scores plus one. Results are memoized per score value, so
// tied players share a cache entry. This is the hottest read path in the
// service; under a cold cache it degrades to the count query.
type RankingService struct {
	store rankStore
	cache rankCache
}

func NewRankingService(store rankStore, cache rankCache) *RankingService {
	return &RankingService{store: store, cache: cache}
}

func (r *RankingService) CalculateRank(ctx context.Context, points int) (int, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "calculateRank")
	defer span.End()

	if rank, ok := r.cache.GetRank(ctx, points); ok {
		telemetry.CacheHitTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("cache.key", "player_rank")))
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return rank, nil
	}

	telemetry.CacheMissTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("cache.key", "player_rank")))
	span.SetAttributes(attribute.Bool("cache.hit", false))

	count, err := r.store.CountGreaterThan(ctx, points)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}

	rank := count + 1
	r.cache.SetRank(ctx, points, rank)
	return rank, nil
}
