package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"leaderboardAPI/internal/score"
	"leaderboardAPI/internal/telemetry"
)

// MaxTopScoresLimit is the hard cap on leaderboard page size, applied no
// matter what the client asks for.
const MaxTopScoresLimit = 1000

// ScoreStore is the access layer over the scores table. It is the only
// component that owns durable state; everything else is derived from it.
type ScoreStore struct {
	db *pgxpool.Pool
}

func NewScoreStore(db *pgxpool.Pool) *ScoreStore {
	return &ScoreStore{db: db}
}

// InitSchema creates the scores table and its indexes if they do not exist.
// The score and session_id indexes keep rank and rate-limit queries
// sub-linear; rank computation runs on every submission.
func (s *ScoreStore) InitSchema(ctx context.Context) error {
	ctx, span := telemetry.Tracer.Start(ctx, "initSchema")
	defer span.End()

	query := `
		CREATE TABLE IF NOT EXISTS scores (
			id SERIAL PRIMARY KEY,
			player_name VARCHAR(100) NOT NULL,
			score INTEGER NOT NULL,
			session_id VARCHAR(100) NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_scores_score ON scores(score DESC);
		CREATE INDEX IF NOT EXISTS idx_scores_player_name ON scores(player_name);
		CREATE INDEX IF NOT EXISTS idx_scores_created_at ON scores(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_scores_session_id ON scores(session_id);
	`

	if _, err := s.db.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return nil
}

// Insert appends one score row and returns the generated id and the
// server-assigned creation time.
func (s *ScoreStore) Insert(ctx context.Context, playerName string, points int, sessionID string) (int, time.Time, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "insertScore")
	defer span.End()
	defer observeQuery(ctx, "insert", time.Now())

	span.SetAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", "INSERT"),
	)

	var (
		id        int
		createdAt time.Time
	)
	query := `INSERT INTO scores (player_name, score, session_id) VALUES ($1, $2, $3) RETURNING id, created_at`
	err := s.db.QueryRow(ctx, query, playerName, points, sessionID).Scan(&id, &createdAt)
	if err != nil {
		span.RecordError(err)
		return 0, time.Time{}, fmt.Errorf("failed to insert score: %w", err)
	}

	return id, createdAt, nil
}

// CountGreaterThan counts rows with a strictly higher score. Rank is this
// count plus one, so equal scores share a rank.
func (s *ScoreStore) CountGreaterThan(ctx context.Context, points int) (int, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "countGreaterThan")
	defer span.End()
	defer observeQuery(ctx, "count", time.Now())

	var count int
	query := `SELECT COUNT(*) FROM scores WHERE score > $1`
	if err := s.db.QueryRow(ctx, query, points).Scan(&count); err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count scores: %w", err)
	}

	return count, nil
}

// LatestSubmissionTime returns the creation time of the most recent row for
// a session, or ok=false when the session has never submitted.
func (s *ScoreStore) LatestSubmissionTime(ctx context.Context, sessionID string) (time.Time, bool, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "latestSubmissionTime")
	defer span.End()
	defer observeQuery(ctx, "check_submission_rate", time.Now())

	var last time.Time
	query := `SELECT created_at FROM scores WHERE session_id = $1 ORDER BY created_at DESC LIMIT 1`
	err := s.db.QueryRow(ctx, query, sessionID).Scan(&last)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, false, nil
		}
		span.RecordError(err)
		return time.Time{}, false, fmt.Errorf("failed to query last submission: %w", err)
	}

	return last, true, nil
}

// TopN returns up to limit entries ordered by score descending with 1-based
// ranks assigned by the database. Ties break on insertion time, oldest first.
func (s *ScoreStore) TopN(ctx context.Context, limit int) ([]score.LeaderboardEntry, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "topScores")
	defer span.End()
	defer observeQuery(ctx, "select_top", time.Now())

	if limit <= 0 {
		limit = 100
	}
	if limit > MaxTopScoresLimit {
		limit = MaxTopScoresLimit
	}

	query := `
		SELECT ROW_NUMBER() OVER (ORDER BY score DESC, created_at ASC) AS rank, player_name, score, created_at
		FROM scores
		ORDER BY score DESC, created_at ASC
		LIMIT $1
	`
	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to fetch leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []score.LeaderboardEntry{}
	for rows.Next() {
		var entry score.LeaderboardEntry
		if err := rows.Scan(&entry.Rank, &entry.PlayerName, &entry.Score, &entry.CreatedAt); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan leaderboard row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read leaderboard rows: %w", err)
	}

	return entries, nil
}

// BestScoreAndCount returns the player's highest score and how many games
// they have submitted. A player with no rows gets (0, 0).
func (s *ScoreStore) BestScoreAndCount(ctx context.Context, playerName string) (int, int, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "bestScoreAndCount")
	defer span.End()
	defer observeQuery(ctx, "player_stats", time.Now())

	var (
		best  int
		games int
	)
	query := `SELECT COALESCE(MAX(score), 0), COUNT(*) FROM scores WHERE player_name = $1`
	if err := s.db.QueryRow(ctx, query, playerName).Scan(&best, &games); err != nil {
		span.RecordError(err)
		return 0, 0, fmt.Errorf("failed to fetch player stats: %w", err)
	}

	return best, games, nil
}

// RecentScores returns the player's newest submissions, most recent first.
func (s *ScoreStore) RecentScores(ctx context.Context, playerName string, limit int) ([]score.LeaderboardEntry, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "recentScores")
	defer span.End()
	defer observeQuery(ctx, "recent_scores", time.Now())

	query := `
		SELECT score, created_at
		FROM scores
		WHERE player_name = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := s.db.Query(ctx, query, playerName, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to fetch recent scores: %w", err)
	}
	defer rows.Close()

	entries := []score.LeaderboardEntry{}
	for rows.Next() {
		entry := score.LeaderboardEntry{PlayerName: playerName}
		if err := rows.Scan(&entry.Score, &entry.CreatedAt); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan recent score row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read recent score rows: %w", err)
	}

	return entries, nil
}

func (s *ScoreStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func observeQuery(ctx context.Context, queryType string, start time.Time) {
	telemetry.DBQueryDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("query.type", queryType)))
}
