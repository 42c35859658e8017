package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/zatekoja/cropsight-backend/internal/application/services"
)

// StatsService defines the interface for analysis statistics queries
type StatsService interface {
	GetUserStats(ctx context.Context, userID string) (*services.AnalysisStats, error)
	GetDiseaseBreakdown(ctx context.Context, userID string, limit int) ([]services.DiseaseCount, error)
}

// StatsHandler handles analysis statistics HTTP requests
type StatsHandler struct {
	stats StatsService
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(stats StatsService) *StatsHandler {
	return &StatsHandler{
		stats: stats,
	}
}

// GetUserStats handles GET /api/analysis/stats
func (h *StatsHandler) GetUserStats(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	userID := query.Get("user_id")

	diseaseLimit := 0
	if limitStr := strings.TrimSpace(query.Get("disease_limit")); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			respondWithError(w, http.StatusBadRequest, "disease_limit must be a positive integer")
			return
		}
		diseaseLimit = parsed
	}

	stats, err := h.stats.GetUserStats(r.Context(), userID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	diseases, err := h.stats.GetDiseaseBreakdown(r.Context(), userID, diseaseLimit)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"stats":    stats,
		"diseases": diseases,
	})
}
