package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"leaderboardAPI/internal/score"
	"leaderboardAPI/internal/telemetry"
	"leaderboardAPI/services"
)

type ScoreHandler struct {
	scoreService *services.ScoreService
}

func NewScoreHandler(scoreService *services.ScoreService) *ScoreHandler {
	return &ScoreHandler{
		scoreService: scoreService,
	}
}

func (h *ScoreHandler) SubmitScore(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var sub score.Submission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		telemetry.ScoreSubmissionErrors.Add(ctx, 1,
			metric.WithAttributes(attribute.String("error", "invalid_json")))
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	resp, err := h.scoreService.SubmitScore(ctx, &sub)
	if err != nil {
		var rej *services.RejectionError
		if errors.As(err, &rej) {
			respondWithError(w, http.StatusBadRequest, rej.Reason)
			return
		}
		respondWithError(w, http.StatusInternalServerError, "Failed to save score")
		return
	}

	respondWithJSON(w, http.StatusCreated, resp)
}

func (h *ScoreHandler) GetTopScores(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}

	entries, err := h.scoreService.GetTopScores(ctx, limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to fetch leaderboard")
		return
	}
	if entries == nil {
		entries = []score.LeaderboardEntry{}
	}

	respondWithJSON(w, http.StatusOK, entries)
}

func (h *ScoreHandler) GetPlayerStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	playerName := mux.Vars(r)["name"]

	stats, err := h.scoreService.GetPlayerStats(ctx, playerName)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to fetch player stats")
		return
	}

	respondWithJSON(w, http.StatusOK, stats)
}

// Helper functions
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
