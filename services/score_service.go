package services

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"leaderboardAPI/internal/score"
	"leaderboardAPI/internal/telemetry"
)

// Store is the persistent side of the service. *ScoreStore satisfies it;
// tests substitute fakes.
type Store interface {
	Insert(ctx context.Context, playerName string, points int, sessionID string) (int, time.Time, error)
	CountGreaterThan(ctx context.Context, points int) (int, error)
	LatestSubmissionTime(ctx context.Context, sessionID string) (time.Time, bool, error)
	TopN(ctx context.Context, limit int) ([]score.LeaderboardEntry, error)
	BestScoreAndCount(ctx context.Context, playerName string) (int, int, error)
	RecentScores(ctx context.Context, playerName string, limit int) ([]score.LeaderboardEntry, error)
	Ping(ctx context.Context) error
}

// Cache is the disposable read-model side. *LeaderboardCache satisfies it.
type Cache interface {
	GetSnapshot(ctx context.Context, limit int) ([]score.LeaderboardEntry, bool)
	SetSnapshot(ctx context.Context, limit int, entries []score.LeaderboardEntry)
	InvalidateSnapshots(ctx context.Context)
	GetRank(ctx context.Context, points int) (int, bool)
	SetRank(ctx context.Context, points, rank int)
	Ping(ctx context.Context) error
}

// ScoreService orchestrates validation, persistence, ranking and caching
// behind the HTTP layer.
type ScoreService struct {
	store     Store
	cache     Cache
	validator *ValidationService
	ranker    *RankingService
}

func NewScoreService(store Store, cache Cache) *ScoreService {
	return &ScoreService{
		store:     store,
		cache:     cache,
		validator: NewValidationService(store),
		ranker:    NewRankingService(store, cache),
	}
}

// SubmitScore validates and persists one submission. A *RejectionError means
// the client broke a rule and nothing was written; any other error means the
// insert failed. Rank computation is best-effort: once the row is in, a rank
// failure yields rank -1 rather than failing the submission.
func (s *ScoreService) SubmitScore(ctx context.Context, sub *score.Submission) (*score.Response, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "submitScore")
	defer span.End()

	span.SetAttributes(
		attribute.String("player.name", sub.PlayerName),
		attribute.Int("game.score", sub.Score),
		attribute.String("game.session_id", sub.SessionID),
	)

	if err := s.validator.Validate(ctx, sub); err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.Bool("validation.passed", false))
		s.countSubmissionError(ctx, err)
		return nil, err
	}
	span.SetAttributes(attribute.Bool("validation.passed", true))

	id, createdAt, err := s.store.Insert(ctx, sub.PlayerName, sub.Score, sub.SessionID)
	if err != nil {
		span.RecordError(err)
		telemetry.ScoreSubmissionErrors.Add(ctx, 1,
			metric.WithAttributes(attribute.String("error", "db_insert_failed")))
		return nil, err
	}

	s.cache.InvalidateSnapshots(ctx)

	rank, err := s.ranker.CalculateRank(ctx, sub.Score)
	if err != nil {
		log.Printf("Failed to calculate rank: %v", err)
		rank = -1
	}
	span.SetAttributes(attribute.Int("rank.calculated", rank))

	telemetry.ScoreSubmissionsTotal.Add(ctx, 1)

	return &score.Response{
		ID:         id,
		PlayerName: sub.PlayerName,
		Score:      sub.Score,
		Rank:       rank,
		CreatedAt:  createdAt,
	}, nil
}

// GetTopScores serves the leaderboard from the snapshot cache when it can,
// otherwise from the store, repopulating the cache on the way out.
func (s *ScoreService) GetTopScores(ctx context.Context, limit int) ([]score.LeaderboardEntry, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "getTopScores")
	defer span.End()

	if limit <= 0 {
		limit = 100
	}
	if limit > MaxTopScoresLimit {
		limit = MaxTopScoresLimit
	}
	span.SetAttributes(attribute.Int("query.limit", limit))

	if entries, ok := s.cache.GetSnapshot(ctx, limit); ok {
		telemetry.CacheHitTotal.Add(ctx, 1,
			metric.WithAttributes(attribute.String("cache.key", "top_scores")))
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return entries, nil
	}

	telemetry.CacheMissTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("cache.key", "top_scores")))
	span.SetAttributes(attribute.Bool("cache.hit", false))

	entries, err := s.store.TopN(ctx, limit)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.cache.SetSnapshot(ctx, limit, entries)
	return entries, nil
}

// GetPlayerStats is uncached: it is a low-traffic path and always reads
// fresh from the store, reusing the ranking engine for the current rank.
func (s *ScoreService) GetPlayerStats(ctx context.Context, playerName string) (*score.PlayerStats, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "getPlayerStats")
	defer span.End()

	span.SetAttributes(attribute.String("player.name", playerName))

	best, games, err := s.store.BestScoreAndCount(ctx, playerName)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	rank, err := s.ranker.CalculateRank(ctx, best)
	if err != nil {
		log.Printf("Failed to calculate rank for player %s: %v", playerName, err)
		rank = -1
	}

	recent, err := s.store.RecentScores(ctx, playerName, 10)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return &score.PlayerStats{
		PlayerName:   playerName,
		BestScore:    best,
		CurrentRank:  rank,
		TotalGames:   games,
		RecentScores: recent,
	}, nil
}

// Health pings both dependencies. Only a failed database ping makes the
// service unhealthy; every cache path has a database fallback.
func (s *ScoreService) Health(ctx context.Context) *score.Health {
	health := &score.Health{
		Status:   "healthy",
		Service:  telemetry.ServiceName,
		Version:  telemetry.ServiceVersion,
		Database: "up",
		Redis:    "up",
	}

	if err := s.store.Ping(ctx); err != nil {
		health.Status = "unhealthy"
		health.Database = "down"
	}
	if err := s.cache.Ping(ctx); err != nil {
		health.Redis = "down"
	}

	return health
}

func (s *ScoreService) countSubmissionError(ctx context.Context, err error) {
	attrs := []attribute.KeyValue{attribute.String("error", "validation_failed")}
	if rej, ok := err.(*RejectionError); ok {
		attrs = []attribute.KeyValue{attribute.String("error", rej.ErrorType)}
		if rej.Suspicious {
			attrs = append(attrs, attribute.Bool("suspicious", true))
		}
	}
	telemetry.ScoreSubmissionErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
}
