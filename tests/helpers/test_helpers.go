package helpers

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"leaderboardAPI/internal/score"
)

// FakeScoreStore is an in-memory stand-in for the Postgres-backed store.
// Error fields, when set, are returned by the matching method so tests can
// force each failure mode independently.
type FakeScoreStore struct {
	mu      sync.Mutex
	nextID  int
	Records []score.Record

	// Clock stamps inserted records; override it to control submission times.
	Clock func() time.Time

	InsertErr error
	CountErr  error
	LatestErr error
	TopErr    error
	StatsErr  error
	RecentErr error
	PingErr   error
}

func NewFakeScoreStore() *FakeScoreStore {
	return &FakeScoreStore{nextID: 1, Clock: time.Now}
}

// Seed adds a record directly, bypassing validation and the clock.
func (f *FakeScoreStore) Seed(playerName string, points int, sessionID string, createdAt time.Time) score.Record {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec := score.Record{
		ID:         f.nextID,
		PlayerName: playerName,
		Score:      points,
		SessionID:  sessionID,
		CreatedAt:  createdAt,
	}
	f.nextID++
	f.Records = append(f.Records, rec)
	return rec
}

func (f *FakeScoreStore) Insert(ctx context.Context, playerName string, points int, sessionID string) (int, time.Time, error) {
	if f.InsertErr != nil {
		return 0, time.Time{}, f.InsertErr
	}
	rec := f.Seed(playerName, points, sessionID, f.Clock())
	return rec.ID, rec.CreatedAt, nil
}

func (f *FakeScoreStore) CountGreaterThan(ctx context.Context, points int) (int, error) {
	if f.CountErr != nil {
		return 0, f.CountErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for _, rec := range f.Records {
		if rec.Score > points {
			count++
		}
	}
	return count, nil
}

func (f *FakeScoreStore) LatestSubmissionTime(ctx context.Context, sessionID string) (time.Time, bool, error) {
	if f.LatestErr != nil {
		return time.Time{}, false, f.LatestErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var (
		latest time.Time
		found  bool
	)
	for _, rec := range f.Records {
		if rec.SessionID == sessionID && rec.CreatedAt.After(latest) {
			latest = rec.CreatedAt
			found = true
		}
	}
	return latest, found, nil
}

func (f *FakeScoreStore) TopN(ctx context.Context, limit int) ([]score.LeaderboardEntry, error) {
	if f.TopErr != nil {
		return nil, f.TopErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	sorted := make([]score.Record, len(f.Records))
	copy(sorted, f.Records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})
	if limit < len(sorted) {
		sorted = sorted[:limit]
	}

	entries := []score.LeaderboardEntry{}
	for i, rec := range sorted {
		entries = append(entries, score.LeaderboardEntry{
			Rank:       i + 1,
			PlayerName: rec.PlayerName,
			Score:      rec.Score,
			CreatedAt:  rec.CreatedAt,
		})
	}
	return entries, nil
}

func (f *FakeScoreStore) BestScoreAndCount(ctx context.Context, playerName string) (int, int, error) {
	if f.StatsErr != nil {
		return 0, 0, f.StatsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	best, games := 0, 0
	for _, rec := range f.Records {
		if rec.PlayerName != playerName {
			continue
		}
		games++
		if rec.Score > best {
			best = rec.Score
		}
	}
	return best, games, nil
}

func (f *FakeScoreStore) RecentScores(ctx context.Context, playerName string, limit int) ([]score.LeaderboardEntry, error) {
	if f.RecentErr != nil {
		return nil, f.RecentErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	var mine []score.Record
	for _, rec := range f.Records {
		if rec.PlayerName == playerName {
			mine = append(mine, rec)
		}
	}
	sort.SliceStable(mine, func(i, j int) bool {
		return mine[i].CreatedAt.After(mine[j].CreatedAt)
	})
	if limit < len(mine) {
		mine = mine[:limit]
	}

	entries := []score.LeaderboardEntry{}
	for _, rec := range mine {
		entries = append(entries, score.LeaderboardEntry{
			PlayerName: rec.PlayerName,
			Score:      rec.Score,
			CreatedAt:  rec.CreatedAt,
		})
	}
	return entries, nil
}

func (f *FakeScoreStore) Ping(ctx context.Context) error {
	return f.PingErr
}

// FakeCache mimics the Redis-backed cache. Down makes every read miss and
// every write a no-op, the same observable behavior as an unreachable Redis.
type FakeCache struct {
	mu            sync.Mutex
	Down          bool
	Snapshots     map[int][]score.LeaderboardEntry
	Ranks         map[int]int
	Invalidations int
}

func NewFakeCache() *FakeCache {
	return &FakeCache{
		Snapshots: make(map[int][]score.LeaderboardEntry),
		Ranks:     make(map[int]int),
	}
}

func (c *FakeCache) GetSnapshot(ctx context.Context, limit int) ([]score.LeaderboardEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Down {
		return nil, false
	}
	entries, ok := c.Snapshots[limit]
	return entries, ok
}

func (c *FakeCache) SetSnapshot(ctx context.Context, limit int, entries []score.LeaderboardEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Down {
		return
	}
	c.Snapshots[limit] = entries
}

func (c *FakeCache) InvalidateSnapshots(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Invalidations++
	if c.Down {
		return
	}
	c.Snapshots = make(map[int][]score.LeaderboardEntry)
}

func (c *FakeCache) GetRank(ctx context.Context, points int) (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Down {
		return 0, false
	}
	rank, ok := c.Ranks[points]
	return rank, ok
}

func (c *FakeCache) SetRank(ctx context.Context, points, rank int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.Down {
		return
	}
	c.Ranks[points] = rank
}

func (c *FakeCache) Ping(ctx context.Context) error {
	if c.Down {
		return errors.New("cache unavailable")
	}
	return nil
}

// NewSessionID returns a unique opaque session identifier.
func NewSessionID() string {
	return "sess-" + uuid.NewString()
}
