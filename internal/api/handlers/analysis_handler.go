package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/zatekoja/cropsight-backend/internal/application/services"
	"github.com/zatekoja/cropsight-backend/internal/domain/entities"
	apperrors "github.com/zatekoja/cropsight-backend/pkg/errors"
)

// AnalysisRunner defines the interface for single-observation analysis operations
type AnalysisRunner interface {
	AnalyzeImage(ctx context.Context, userID, imageID string, includeSoil bool) (*entities.AnalysisVerdict, error)
	AnalyzeSoil(ctx context.Context, userID, soilID string) (*entities.AnalysisVerdict, error)
}

// BatchRunner defines the interface for batch orchestration
type BatchRunner interface {
	RunBatch(ctx context.Context, req services.BatchAnalysisRequest) (*entities.BatchReport, error)
}

// AnalysisHandler handles analysis execution requests
type AnalysisHandler struct {
	analysis AnalysisRunner
	batch    BatchRunner
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(analysis AnalysisRunner, batch BatchRunner) *AnalysisHandler {
	return &AnalysisHandler{
		analysis: analysis,
		batch:    batch,
	}
}

// RunBatch handles POST /api/analysis/batch
func (h *AnalysisHandler) RunBatch(w http.ResponseWriter, r *http.Request) {
	var req services.BatchAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	report, err := h.batch.RunBatch(r.Context(), req)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"report":  report,
	})
}

type analyzeImageRequest struct {
	UserID      string `json:"user_id"`
	ImageID     string `json:"image_id"`
	IncludeSoil bool   `json:"include_soil"`
}

// AnalyzeImage handles POST /api/analysis/image
func (h *AnalysisHandler) AnalyzeImage(w http.ResponseWriter, r *http.Request) {
	var req analyzeImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	verdict, err := h.analysis.AnalyzeImage(r.Context(), req.UserID, req.ImageID, req.IncludeSoil)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"verdict": verdict,
	})
}

type analyzeSoilRequest struct {
	UserID string `json:"user_id"`
	SoilID string `json:"soil_id,omitempty"`
}

// AnalyzeSoil handles POST /api/analysis/soil
func (h *AnalysisHandler) AnalyzeSoil(w http.ResponseWriter, r *http.Request) {
	var req analyzeSoilRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	verdict, err := h.analysis.AnalyzeSoil(r.Context(), req.UserID, req.SoilID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"verdict": verdict,
	})
}

// Helper functions
func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]interface{}{
		"success": false,
		"message": message,
	})
}

// respondWithAppError maps typed application errors onto HTTP statuses
func respondWithAppError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		respondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	switch appErr.Type {
	case apperrors.ErrorTypeValidation:
		respondWithError(w, http.StatusBadRequest, appErr.Message)
	case apperrors.ErrorTypeNotFound, apperrors.ErrorTypeNoData:
		respondWithError(w, http.StatusNotFound, appErr.Message)
	case apperrors.ErrorTypeUnauthorized:
		respondWithError(w, http.StatusUnauthorized, appErr.Message)
	case apperrors.ErrorTypeUnavailable:
		respondWithError(w, http.StatusServiceUnavailable, appErr.Message)
	case apperrors.ErrorTypeStorage, apperrors.ErrorTypeExternal:
		respondWithError(w, http.StatusBadGateway, appErr.Message)
	default:
		respondWithError(w, http.StatusInternalServerError, appErr.Message)
	}
}
