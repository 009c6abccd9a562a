package handlers

import (
	"context"
	"net/http"
	"time"

	"leaderboardAPI/services"
)

type HealthHandler struct {
	scoreService *services.ScoreService
}

func NewHealthHandler(scoreService *services.ScoreService) *HealthHandler {
	return &HealthHandler{
		scoreService: scoreService,
	}
}

// Health reports dependency status. The orchestrator treats anything but
// 200 as a dead instance, so only a failed database ping returns 503; a
// missing cache leaves the service degraded but serving.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	health := h.scoreService.Health(ctx)

	code := http.StatusOK
	if health.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}

	respondWithJSON(w, code, health)
}
