package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/zatekoja/cropsight-backend/internal/domain/entities"
	"github.com/zatekoja/cropsight-backend/internal/domain/repositories"
)

// HistoryService defines the interface for analysis history queries
type HistoryService interface {
	GetVerdict(ctx context.Context, userID, id string) (*entities.AnalysisVerdict, error)
	GetBatchHistory(ctx context.Context, userID string, limit int) ([]*entities.BatchGroup, error)
	GetBatchDetail(ctx context.Context, userID, batchTimestamp string) (*entities.BatchGroup, error)
	SearchVerdicts(ctx context.Context, userID string, params repositories.VerdictSearchParams) ([]*entities.AnalysisVerdict, error)
}

// HistoryHandler handles analysis history HTTP requests
type HistoryHandler struct {
	history HistoryService
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(history HistoryService) *HistoryHandler {
	return &HistoryHandler{
		history: history,
	}
}

// GetHistory handles GET /api/analysis/history
func (h *HistoryHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	userID := query.Get("user_id")

	limit := 0
	if limitStr := strings.TrimSpace(query.Get("limit")); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			respondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	groups, err := h.history.GetBatchHistory(r.Context(), userID, limit)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"batches": groups,
		"count":   len(groups),
	})
}

// GetBatchDetail handles GET /api/analysis/batches/{timestamp}
func (h *HistoryHandler) GetBatchDetail(w http.ResponseWriter, r *http.Request) {
	batchTimestamp := r.PathValue("timestamp")
	if batchTimestamp == "" {
		respondWithError(w, http.StatusBadRequest, "batch timestamp is required")
		return
	}

	userID := r.URL.Query().Get("user_id")

	group, err := h.history.GetBatchDetail(r.Context(), userID, batchTimestamp)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	// Group members are excluded from the summary encoding, so the
	// detail view carries them alongside it.
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"batch":    group,
		"verdicts": group.Verdicts,
	})
}

// GetVerdict handles GET /api/analysis/verdicts/{id}
func (h *HistoryHandler) GetVerdict(w http.ResponseWriter, r *http.Request) {
	verdictID := r.PathValue("id")
	if verdictID == "" {
		respondWithError(w, http.StatusBadRequest, "verdict ID is required")
		return
	}

	userID := r.URL.Query().Get("user_id")

	verdict, err := h.history.GetVerdict(r.Context(), userID, verdictID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"verdict": verdict,
	})
}

// SearchVerdicts handles GET /api/analysis/search
func (h *HistoryHandler) SearchVerdicts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	userID := query.Get("user_id")

	params := repositories.VerdictSearchParams{
		Query:         query.Get("q"),
		DiseaseType:   query.Get("disease"),
		OverallHealth: query.Get("health"),
		Mode:          query.Get("mode"),
	}

	if limitStr := strings.TrimSpace(query.Get("limit")); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			respondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		params.Limit = parsed
	}

	verdicts, err := h.history.SearchVerdicts(r.Context(), userID, params)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"verdicts": verdicts,
		"count":    len(verdicts),
	})
}
