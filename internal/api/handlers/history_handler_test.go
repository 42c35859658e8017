package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/zatekoja/cropsight-backend/internal/api/handlers"
	"github.com/zatekoja/cropsight-backend/internal/domain/entities"
	"github.com/zatekoja/cropsight-backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/cropsight-backend/pkg/errors"
)

// MockHistoryService defines the mock history service
type MockHistoryService struct {
	mock.Mock
}

func (m *MockHistoryService) GetVerdict(ctx context.Context, userID, id string) (*entities.AnalysisVerdict, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.AnalysisVerdict), args.Error(1)
}

func (m *MockHistoryService) GetBatchHistory(ctx context.Context, userID string, limit int) ([]*entities.BatchGroup, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.BatchGroup), args.Error(1)
}

func (m *MockHistoryService) GetBatchDetail(ctx context.Context, userID, batchTimestamp string) (*entities.BatchGroup, error) {
	args := m.Called(ctx, userID, batchTimestamp)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.BatchGroup), args.Error(1)
}

func (m *MockHistoryService) SearchVerdicts(ctx context.Context, userID string, params repositories.VerdictSearchParams) ([]*entities.AnalysisVerdict, error) {
	args := m.Called(ctx, userID, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.AnalysisVerdict), args.Error(1)
}

func TestHistoryHandler_GetHistory(t *testing.T) {
	t.Run("successfully lists batch groups", func(t *testing.T) {
		mockService := new(MockHistoryService)
		handler := handlers.NewHistoryHandler(mockService)

		req := httptest.NewRequest("GET", "/api/analysis/history?user_id=user-1&limit=5", nil)
		w := httptest.NewRecorder()

		groups := []*entities.BatchGroup{
			{BatchTimestamp: "2024-01-02T10:00:00+00:00", Count: 3, AverageScore: 82.5, OverallHealth: "Healthy", LatestAt: time.Now()},
			{BatchTimestamp: "2024-01-01T08:00:00+00:00", Count: 1, AverageScore: 55, OverallHealth: "Moderate", LatestAt: time.Now().Add(-24 * time.Hour)},
		}

		mockService.On("GetBatchHistory", mock.Anything, "user-1", 5).Return(groups, nil)

		handler.GetHistory(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp map[string]interface{}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, true, resp["success"])
		assert.Equal(t, float64(2), resp["count"])
		mockService.AssertExpectations(t)
	})

	t.Run("rejects malformed limit", func(t *testing.T) {
		mockService := new(MockHistoryService)
		handler := handlers.NewHistoryHandler(mockService)

		req := httptest.NewRequest("GET", "/api/analysis/history?user_id=user-1&limit=abc", nil)
		w := httptest.NewRecorder()

		handler.GetHistory(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockService.AssertNotCalled(t, "GetBatchHistory", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("maps missing user to bad request", func(t *testing.T) {
		mockService := new(MockHistoryService)
		handler := handlers.NewHistoryHandler(mockService)

		req := httptest.NewRequest("GET", "/api/analysis/history", nil)
		w := httptest.NewRecorder()

		mockService.On("GetBatchHistory", mock.Anything, "", 0).
			Return(nil, apperrors.NewValidationError("user_id is required"))

		handler.GetHistory(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHistoryHandler_GetBatchDetail(t *testing.T) {
	t.Run("successfully resolves a batch", func(t *testing.T) {
		mockService := new(MockHistoryService)
		handler := handlers.NewHistoryHandler(mockService)

		req := httptest.NewRequest("GET", "/api/analysis/batches/2024-01-02T10:00:00%2B00:00?user_id=user-1", nil)
		req.SetPathValue("timestamp", "2024-01-02T10:00:00+00:00")
		w := httptest.NewRecorder()

		group := &entities.BatchGroup{
			BatchTimestamp: "2024-01-02T10:00:00+00:00",
			Count:          2,
			AverageScore:   80,
			OverallHealth:  "Healthy",
			Verdicts: []*entities.AnalysisVerdict{
				{ID: "v1", UserID: "user-1"},
				{ID: "v2", UserID: "user-1"},
			},
		}

		mockService.On("GetBatchDetail", mock.Anything, "user-1", "2024-01-02T10:00:00+00:00").Return(group, nil)

		handler.GetBatchDetail(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp map[string]interface{}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		verdicts, ok := resp["verdicts"].([]interface{})
		assert.True(t, ok)
		assert.Len(t, verdicts, 2)
		mockService.AssertExpectations(t)
	})

	t.Run("returns bad request for missing timestamp", func(t *testing.T) {
		mockService := new(MockHistoryService)
		handler := handlers.NewHistoryHandler(mockService)

		req := httptest.NewRequest("GET", "/api/analysis/batches/?user_id=user-1", nil)
		w := httptest.NewRecorder()

		handler.GetBatchDetail(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("maps unknown batch to not found", func(t *testing.T) {
		mockService := new(MockHistoryService)
		handler := handlers.NewHistoryHandler(mockService)

		req := httptest.NewRequest("GET", "/api/analysis/batches/2030-01-01T00:00:00Z?user_id=user-1", nil)
		req.SetPathValue("timestamp", "2030-01-01T00:00:00Z")
		w := httptest.NewRecorder()

		mockService.On("GetBatchDetail", mock.Anything, "user-1", "2030-01-01T00:00:00Z").
			Return(nil, apperrors.NewNotFoundError("batch 2030-01-01T00:00:00Z not found; available: 2024-01-02T10:00:00Z"))

		handler.GetBatchDetail(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)

		var resp map[string]interface{}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Contains(t, resp["message"], "available:")
	})
}

func TestHistoryHandler_GetVerdict(t *testing.T) {
	t.Run("successfully fetches a verdict", func(t *testing.T) {
		mockService := new(MockHistoryService)
		handler := handlers.NewHistoryHandler(mockService)

		req := httptest.NewRequest("GET", "/api/analysis/verdicts/verdict-1?user_id=user-1", nil)
		req.SetPathValue("id", "verdict-1")
		w := httptest.NewRecorder()

		verdict := &entities.AnalysisVerdict{ID: "verdict-1", UserID: "user-1", OverallHealth: "Healthy"}

		mockService.On("GetVerdict", mock.Anything, "user-1", "verdict-1").Return(verdict, nil)

		handler.GetVerdict(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("returns bad request for missing ID", func(t *testing.T) {
		mockService := new(MockHistoryService)
		handler := handlers.NewHistoryHandler(mockService)

		req := httptest.NewRequest("GET", "/api/analysis/verdicts/?user_id=user-1", nil)
		w := httptest.NewRecorder()

		handler.GetVerdict(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockService.AssertNotCalled(t, "GetVerdict", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestHistoryHandler_SearchVerdicts(t *testing.T) {
	t.Run("passes filters through to the service", func(t *testing.T) {
		mockService := new(MockHistoryService)
		handler := handlers.NewHistoryHandler(mockService)

		req := httptest.NewRequest("GET", "/api/analysis/search?user_id=user-1&q=blight&disease=Early+Blight&health=Unhealthy&mode=batch_integrated&limit=5", nil)
		w := httptest.NewRecorder()

		verdicts := []*entities.AnalysisVerdict{{ID: "v1", UserID: "user-1", DiseaseType: "Early Blight"}}

		mockService.On("SearchVerdicts", mock.Anything, "user-1", mock.MatchedBy(func(p repositories.VerdictSearchParams) bool {
			return p.Query == "blight" && p.DiseaseType == "Early Blight" &&
				p.OverallHealth == "Unhealthy" && p.Mode == "batch_integrated" && p.Limit == 5
		})).Return(verdicts, nil)

		handler.SearchVerdicts(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp map[string]interface{}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, float64(1), resp["count"])
		mockService.AssertExpectations(t)
	})

	t.Run("rejects malformed limit", func(t *testing.T) {
		mockService := new(MockHistoryService)
		handler := handlers.NewHistoryHandler(mockService)

		req := httptest.NewRequest("GET", "/api/analysis/search?user_id=user-1&limit=-2", nil)
		w := httptest.NewRecorder()

		handler.SearchVerdicts(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockService.AssertNotCalled(t, "SearchVerdicts", mock.Anything, mock.Anything, mock.Anything)
	})
}
