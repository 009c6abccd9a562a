package score

import "time"

// Submission is the payload the game posts after a run ends. PlayerName is
// optional; the validator substitutes "Anonymous" when it is empty.
type Submission struct {
	PlayerName string `json:"playerName"`
	Score      int    `json:"score"`
	SessionID  string `json:"sessionId"`
}

// Record is one durable row in the scores table. Rows are append-only: the
// service never updates or deletes them.
type Record struct {
	ID         int       `json:"id" db:"id"`
	PlayerName string    `json:"player_name" db:"player_name"`
	Score      int       `json:"score" db:"score"`
	SessionID  string    `json:"session_id" db:"session_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Response is returned from a successful submission. Rank is -1 when the
// write succeeded but the rank computation failed.
type Response struct {
	ID         int       `json:"id"`
	PlayerName string    `json:"playerName"`
	Score      int       `json:"score"`
	Rank       int       `json:"rank"`
	CreatedAt  time.Time `json:"createdAt"`
}

type LeaderboardEntry struct {
	Rank       int       `json:"rank"`
	PlayerName string    `json:"playerName"`
	Score      int       `json:"score"`
	CreatedAt  time.Time `json:"createdAt"`
}

type PlayerStats struct {
	PlayerName   string             `json:"playerName"`
	BestScore    int                `json:"bestScore"`
	CurrentRank  int                `json:"currentRank"`
	TotalGames   int                `json:"totalGames"`
	RecentScores []LeaderboardEntry `json:"recentScores"`
}

type Health struct {
	Status   string `json:"status"`
	Service  string `json:"service"`
	Version  string `json:"version"`
	Database string `json:"database"`
	Redis    string `json:"redis"`
}
