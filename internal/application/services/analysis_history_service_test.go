package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/cropsight-backend/internal/domain/entities"
	"github.com/zatekoja/cropsight-backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/cropsight-backend/pkg/errors"
)

func storedVerdict(id, userID string, batchTS *string, index int, plantScore float64, predicted time.Time) *entities.AnalysisVerdict {
	imageID := id + "-img"
	return &entities.AnalysisVerdict{
		ID:               id,
		UserID:           userID,
		ImageID:          &imageID,
		HealthStatus:     entities.HealthStatusHealthy,
		OverallHealth:    entities.HealthStatusHealthy,
		PlantHealthScore: plantScore,
		BatchTimestamp:   batchTS,
		BatchIndex:       index,
		DatePredicted:    predicted,
	}
}

func newHistoryService(verdicts ...*entities.AnalysisVerdict) (*AnalysisHistoryService, *fakeVerdictRepo) {
	repo := &fakeVerdictRepo{created: verdicts}
	return NewAnalysisHistoryService(repo, NewBatchCorrelator(), nil), repo
}

func TestGetVerdict_ScopedToOwner(t *testing.T) {
	svc, _ := newHistoryService(
		storedVerdict("v1", "user-1", nil, 0, 90, time.Now()),
	)

	verdict, err := svc.GetVerdict(context.Background(), "user-1", "v1")
	require.NoError(t, err)
	assert.Equal(t, "v1", verdict.ID)

	_, err = svc.GetVerdict(context.Background(), "user-2", "v1")
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrorTypeNotFound, appErr.Type)
}

func TestGetBatchHistory_GroupsNewestFirst(t *testing.T) {
	older := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	newer := time.Date(2024, 1, 2, 10, 5, 0, 0, time.UTC)

	svc, _ := newHistoryService(
		storedVerdict("v1", "user-1", strPtr("2024-01-01T09:00:00Z"), 0, 90, older),
		storedVerdict("v2", "user-1", strPtr("2024-01-02T10:00:00Z"), 0, 70, newer),
		storedVerdict("v3", "user-1", strPtr("2024-01-02T10:00:00Z"), 1, 80, newer),
		storedVerdict("v4", "user-1", nil, 0, 50, older),
	)

	groups, err := svc.GetBatchHistory(context.Background(), "user-1", 0)
	require.NoError(t, err)
	require.Len(t, groups, 3)

	assert.Equal(t, "2024-01-02T10:00:00+00:00", groups[0].BatchTimestamp)
	assert.Equal(t, 2, groups[0].Count)
	assert.Equal(t, 75.0, groups[0].AverageScore)
	assert.Equal(t, entities.HealthStatusModerate, groups[0].OverallHealth)

	assert.Equal(t, "2024-01-01T09:00:00+00:00", groups[1].BatchTimestamp)
	assert.Equal(t, "2024-01-01"+LegacyGroupSuffix, groups[2].BatchTimestamp)
}

func TestGetBatchHistory_LimitCapsGroups(t *testing.T) {
	svc, _ := newHistoryService(
		storedVerdict("v1", "user-1", strPtr("2024-01-01T09:00:00Z"), 0, 90, time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)),
		storedVerdict("v2", "user-1", strPtr("2024-01-02T10:00:00Z"), 0, 70, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)),
	)

	groups, err := svc.GetBatchHistory(context.Background(), "user-1", 1)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "2024-01-02T10:00:00+00:00", groups[0].BatchTimestamp)
}

func TestGetBatchDetail_ExactMatch(t *testing.T) {
	ts := "2024-01-02T10:00:00+00:00"
	svc, _ := newHistoryService(
		storedVerdict("v2", "user-1", &ts, 1, 70, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)),
		storedVerdict("v1", "user-1", &ts, 0, 90, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)),
	)

	group, err := svc.GetBatchDetail(context.Background(), "user-1", "2024-01-02T10:00:00Z")
	require.NoError(t, err)

	assert.Equal(t, ts, group.BatchTimestamp)
	assert.Equal(t, 2, group.Count)
	assert.Equal(t, 80.0, group.AverageScore)
	require.Len(t, group.Verdicts, 2)
	assert.Equal(t, "v1", group.Verdicts[0].ID, "members ordered by batch index")
	assert.Equal(t, "v2", group.Verdicts[1].ID)
}

func TestGetBatchDetail_FallsBackToMatchingCascade(t *testing.T) {
	svc, _ := newHistoryService(
		storedVerdict("v1", "user-1", strPtr("2024-01-02T10:00:00.123Z"), 0, 90, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)),
	)

	// Differing sub-second precision misses the indexed lookup
	group, err := svc.GetBatchDetail(context.Background(), "user-1", "2024-01-02T10:00:00.456+00:00")
	require.NoError(t, err)

	assert.Equal(t, "2024-01-02T10:00:00.456+00:00", group.BatchTimestamp)
	assert.Equal(t, 1, group.Count)
	require.Len(t, group.Verdicts, 1)
	assert.Equal(t, "v1", group.Verdicts[0].ID)
}

func TestGetBatchDetail_NotFoundListsCandidates(t *testing.T) {
	svc, _ := newHistoryService(
		storedVerdict("v1", "user-1", strPtr("2024-01-02T10:00:00Z"), 0, 90, time.Now()),
	)

	_, err := svc.GetBatchDetail(context.Background(), "user-1", "2025-06-15T09:00:00Z")

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrorTypeNotFound, appErr.Type)
	assert.Contains(t, err.Error(), "available: 2024-01-02T10:00:00Z")
}

func TestSearchVerdicts_DatabaseFallbackFilters(t *testing.T) {
	blight := storedVerdict("v1", "user-1", nil, 0, 40, time.Now())
	blight.DiseaseType = "Early Blight"
	blight.OverallHealth = entities.HealthStatusUnhealthy
	healthy := storedVerdict("v2", "user-1", nil, 0, 95, time.Now())
	healthy.DiseaseType = "None"

	svc, _ := newHistoryService(blight, healthy)

	results, err := svc.SearchVerdicts(context.Background(), "user-1", repositories.VerdictSearchParams{Query: "blight"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "v1", results[0].ID)

	results, err = svc.SearchVerdicts(context.Background(), "user-1", repositories.VerdictSearchParams{
		Query:         "*",
		OverallHealth: entities.HealthStatusUnhealthy,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "v1", results[0].ID)
}

func TestSearchVerdicts_ScopesToRequestingUser(t *testing.T) {
	mine := storedVerdict("v1", "user-1", nil, 0, 90, time.Now())
	theirs := storedVerdict("v2", "user-2", nil, 0, 90, time.Now())
	svc, _ := newHistoryService(mine, theirs)

	results, err := svc.SearchVerdicts(context.Background(), "user-1", repositories.VerdictSearchParams{Query: "*"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "v1", results[0].ID)
}

func TestGetBatchDetail_Validation(t *testing.T) {
	svc, _ := newHistoryService()

	var appErr *apperrors.AppError

	_, err := svc.GetBatchDetail(context.Background(), "", "2024-01-02T10:00:00Z")
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrorTypeValidation, appErr.Type)

	_, err = svc.GetBatchDetail(context.Background(), "user-1", "")
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrorTypeValidation, appErr.Type)
}
