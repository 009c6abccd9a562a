package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leaderboardAPI/internal/score"
	"leaderboardAPI/services"
	"leaderboardAPI/tests/helpers"
)

func newTestRouter(store *helpers.FakeScoreStore, cache *helpers.FakeCache) *mux.Router {
	scoreService := services.NewScoreService(store, cache)
	scoreHandler := NewScoreHandler(scoreService)
	healthHandler := NewHealthHandler(scoreService)

	r := mux.NewRouter()
	r.HandleFunc("/api/scores", scoreHandler.SubmitScore).Methods("POST")
	r.HandleFunc("/api/leaderboard/top", scoreHandler.GetTopScores).Methods("GET")
	r.HandleFunc("/api/leaderboard/player/{name}", scoreHandler.GetPlayerStats).Methods("GET")
	r.HandleFunc("/health", healthHandler.Health).Methods("GET")
	return r
}

func postScore(t *testing.T, router *mux.Router, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/scores", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestSubmitScoreHandler(t *testing.T) {
	router := newTestRouter(helpers.NewFakeScoreStore(), helpers.NewFakeCache())

	rr := postScore(t, router, fmt.Sprintf(`{"playerName":"Chani","score":500,"sessionId":"%s"}`, helpers.NewSessionID()))

	require.Equal(t, http.StatusCreated, rr.Code)
	var resp score.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "Chani", resp.PlayerName)
	assert.Equal(t, 500, resp.Score)
	assert.Equal(t, 1, resp.Rank)
	assert.NotZero(t, resp.ID)
	assert.False(t, resp.CreatedAt.IsZero())
}

func TestSubmitScoreHandlerInvalidJSON(t *testing.T) {
	router := newTestRouter(helpers.NewFakeScoreStore(), helpers.NewFakeCache())

	rr := postScore(t, router, `{"playerName": "Chani", "score":`)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "Invalid request body")
}

func TestSubmitScoreHandlerStorageError(t *testing.T) {
	store := helpers.NewFakeScoreStore()
	store.InsertErr = assert.AnError
	router := newTestRouter(store, helpers.NewFakeCache())

	rr := postScore(t, router, fmt.Sprintf(`{"playerName":"Chani","score":500,"sessionId":"%s"}`, helpers.NewSessionID()))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Contains(t, rr.Body.String(), "Failed to save score")
}

func TestSubmitScoreEndToEndScenario(t *testing.T) {
	router := newTestRouter(helpers.NewFakeScoreStore(), helpers.NewFakeCache())

	// First submission for the session is accepted.
	rr := postScore(t, router, `{"playerName":"Chani","score":500,"sessionId":"s1"}`)
	require.Equal(t, http.StatusCreated, rr.Code)
	var resp score.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Rank)

	// A second one inside the 10s window is throttled.
	rr = postScore(t, router, `{"playerName":"Chani","score":600,"sessionId":"s1"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "please wait")

	// An implausible score is rejected outright.
	rr = postScore(t, router, `{"playerName":"Paul","score":99999999,"sessionId":"s2"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "score too high")
}

func TestGetTopScoresHandler(t *testing.T) {
	store := helpers.NewFakeScoreStore()
	now := time.Now()
	store.Seed("a", 900, helpers.NewSessionID(), now.Add(-2*time.Hour))
	store.Seed("b", 500, helpers.NewSessionID(), now.Add(-time.Hour))
	store.Seed("c", 100, helpers.NewSessionID(), now)
	router := newTestRouter(store, helpers.NewFakeCache())

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard/top?limit=2", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var entries []score.LeaderboardEntry
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "a", entries[0].PlayerName)
	assert.Equal(t, 2, entries[1].Rank)
	assert.Equal(t, "b", entries[1].PlayerName)
}

func TestGetTopScoresHandlerEmptyBoard(t *testing.T) {
	router := newTestRouter(helpers.NewFakeScoreStore(), helpers.NewFakeCache())

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard/top", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestGetTopScoresHandlerIgnoresBadLimit(t *testing.T) {
	store := helpers.NewFakeScoreStore()
	store.Seed("a", 900, helpers.NewSessionID(), time.Now())
	router := newTestRouter(store, helpers.NewFakeCache())

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard/top?limit=bogus", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var entries []score.LeaderboardEntry
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &entries))
	assert.Len(t, entries, 1)
}

func TestGetTopScoresHandlerStorageError(t *testing.T) {
	store := helpers.NewFakeScoreStore()
	store.TopErr = assert.AnError
	router := newTestRouter(store, helpers.NewFakeCache())

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard/top", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestGetPlayerStatsHandler(t *testing.T) {
	store := helpers.NewFakeScoreStore()
	now := time.Now()
	store.Seed("Chani", 700, helpers.NewSessionID(), now.Add(-time.Hour))
	store.Seed("Chani", 300, helpers.NewSessionID(), now)
	router := newTestRouter(store, helpers.NewFakeCache())

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard/player/Chani", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var stats score.PlayerStats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stats))
	assert.Equal(t, "Chani", stats.PlayerName)
	assert.Equal(t, 700, stats.BestScore)
	assert.Equal(t, 1, stats.CurrentRank)
	assert.Equal(t, 2, stats.TotalGames)
	assert.Len(t, stats.RecentScores, 2)
}

func TestHealthHandler(t *testing.T) {
	router := newTestRouter(helpers.NewFakeScoreStore(), helpers.NewFakeCache())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var health score.Health
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "up", health.Database)
	assert.Equal(t, "up", health.Redis)
}

func TestHealthHandlerDatabaseDown(t *testing.T) {
	store := helpers.NewFakeScoreStore()
	store.PingErr = assert.AnError
	router := newTestRouter(store, helpers.NewFakeCache())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	var health score.Health
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.Equal(t, "unhealthy", health.Status)
	assert.Equal(t, "down", health.Database)
}

func TestHealthHandlerCacheDownStaysHealthy(t *testing.T) {
	cache := helpers.NewFakeCache()
	cache.Down = true
	router := newTestRouter(helpers.NewFakeScoreStore(), cache)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var health score.Health
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "down", health.Redis)
}
