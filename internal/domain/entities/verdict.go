package entities

import "time"

// AnalysisMode tags how a verdict was produced. Single-pair analysis writes
// the unprefixed modes; batch runs write the batch_ prefixed ones.
type AnalysisMode string

const (
	ModeImageOnly       AnalysisMode = "image_only"
	ModeSoilOnly        AnalysisMode = "soil_only"
	ModeIntegrated      AnalysisMode = "integrated"
	ModeBatchImageOnly  AnalysisMode = "batch_image_only"
	ModeBatchSoilOnly   AnalysisMode = "batch_soil_only"
	ModeBatchIntegrated AnalysisMode = "batch_integrated"
)

// AnalysisVerdict is the unit persisted per observation per analysis run.
// Re-analysis inserts a new row; rows are never updated. HasSoilData must
// equal SoilID != nil. Recommendations and SoilIssues stay ordered string
// slices in memory; the database adapter joins them to semicolon-separated
// text at the storage boundary.
type AnalysisVerdict struct {
	ID                      string       `json:"id" db:"id"`
	UserID                  string       `json:"user_id" db:"user_id"`
	ImageID                 *string      `json:"image_id,omitempty" db:"image_id"`
	SoilID                  *string      `json:"soil_id,omitempty" db:"soil_id"`
	HealthStatus            string       `json:"health_status" db:"health_status"`
	DiseaseType             string       `json:"disease_type,omitempty" db:"disease_type"`
	SoilStatus              *string      `json:"soil_status,omitempty" db:"soil_status"`
	OverallHealth           string       `json:"overall_health" db:"overall_health"`
	CombinedConfidenceScore float64      `json:"combined_confidence_score" db:"combined_confidence_score"`
	PlantHealthScore        float64      `json:"plant_health_score" db:"plant_health_score"`
	SoilQualityScore        *float64     `json:"soil_quality_score,omitempty" db:"soil_quality_score"`
	Recommendations         []string     `json:"recommendations" db:"-"`
	SoilIssues              []string     `json:"soil_issues" db:"-"`
	HasSoilData             bool         `json:"has_soil_data" db:"has_soil_data"`
	Mode                    AnalysisMode `json:"mode" db:"mode"`
	BatchTimestamp          *string      `json:"batch_timestamp,omitempty" db:"batch_timestamp"`
	BatchIndex              int          `json:"batch_index" db:"batch_index"`
	DatePredicted           time.Time    `json:"date_predicted" db:"date_predicted"`
	CreatedAt               time.Time    `json:"created_at" db:"created_at"`
}
