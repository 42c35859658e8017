package services

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/zatekoja/cropsight-backend/pkg/errors"
)

// AnalysisStats aggregates a user's verdict history
type AnalysisStats struct {
	TotalAnalyses      int        `db:"total_analyses" json:"total_analyses"`
	HealthyCount       int        `db:"healthy_count" json:"healthy_count"`
	ModerateCount      int        `db:"moderate_count" json:"moderate_count"`
	UnhealthyCount     int        `db:"unhealthy_count" json:"unhealthy_count"`
	CriticalCount      int        `db:"critical_count" json:"critical_count"`
	IntegratedCount    int        `db:"integrated_count" json:"integrated_count"`
	AverageConfidence  float64    `db:"average_confidence" json:"average_confidence"`
	AveragePlantHealth float64    `db:"average_plant_health" json:"average_plant_health"`
	LastAnalyzedAt     *time.Time `db:"last_analyzed_at" json:"last_analyzed_at,omitempty"`
}

// DiseaseCount is one row of the disease breakdown
type DiseaseCount struct {
	DiseaseType string `db:"disease_type" json:"disease_type"`
	Count       int    `db:"count" json:"count"`
}

// AnalysisStatsService serves aggregate views over stored verdicts
type AnalysisStatsService struct {
	db *sqlx.DB
}

// NewAnalysisStatsService creates a new analysis stats service
func NewAnalysisStatsService(db *sqlx.DB) *AnalysisStatsService {
	return &AnalysisStatsService{db: db}
}

// GetUserStats computes health and confidence aggregates over everything
// analyzed for one user.
func (s *AnalysisStatsService) GetUserStats(ctx context.Context, userID string) (*AnalysisStats, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("user_id is required")
	}

	query := `
		SELECT
			COUNT(*) AS total_analyses,
			COUNT(*) FILTER (WHERE overall_health = 'Healthy') AS healthy_count,
			COUNT(*) FILTER (WHERE overall_health = 'Moderate') AS moderate_count,
			COUNT(*) FILTER (WHERE overall_health = 'Unhealthy') AS unhealthy_count,
			COUNT(*) FILTER (WHERE overall_health = 'Critical') AS critical_count,
			COUNT(*) FILTER (WHERE has_soil_data) AS integrated_count,
			COALESCE(AVG(combined_confidence_score), 0) AS average_confidence,
			COALESCE(AVG(plant_health_score), 0) AS average_plant_health,
			MAX(date_predicted) AS last_analyzed_at
		FROM analysis_verdicts
		WHERE user_id = $1
	`

	var stats AnalysisStats
	if err := s.db.GetContext(ctx, &stats, query, userID); err != nil {
		return nil, apperrors.NewInternalError("failed to compute analysis stats", err)
	}

	stats.AverageConfidence = round2(stats.AverageConfidence)
	stats.AveragePlantHealth = round2(stats.AveragePlantHealth)
	return &stats, nil
}

// GetDiseaseBreakdown lists the diseases detected for one user, most
// frequent first.
func (s *AnalysisStatsService) GetDiseaseBreakdown(ctx context.Context, userID string, limit int) ([]DiseaseCount, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("user_id is required")
	}
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT disease_type, COUNT(*) AS count
		FROM analysis_verdicts
		WHERE user_id = $1 AND disease_type NOT IN ('', 'None', 'Unknown')
		GROUP BY disease_type
		ORDER BY count DESC, disease_type ASC
		LIMIT $2
	`

	breakdown := []DiseaseCount{}
	if err := s.db.SelectContext(ctx, &breakdown, query, userID, limit); err != nil {
		return nil, apperrors.NewInternalError("failed to compute disease breakdown", err)
	}
	return breakdown, nil
}
