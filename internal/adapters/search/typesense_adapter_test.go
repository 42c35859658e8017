package search

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/zatekoja/cropsight-backend/internal/domain/entities"
	"github.com/zatekoja/cropsight-backend/internal/domain/repositories"
)

func TestBuildDocument(t *testing.T) {
	soilStatus := "Good"
	score := 70.0
	batchTS := "2025-03-01T10:30:00+00:00"

	verdict := &entities.AnalysisVerdict{
		ID:                      "v1",
		UserID:                  "user-1",
		HealthStatus:            "Healthy",
		DiseaseType:             "None",
		SoilStatus:              &soilStatus,
		OverallHealth:           "Healthy",
		Mode:                    entities.ModeBatchIntegrated,
		CombinedConfidenceScore: 0.7,
		PlantHealthScore:        90,
		SoilQualityScore:        &score,
		Recommendations:         []string{"Continue monitoring"},
		SoilIssues:              []string{},
		HasSoilData:             true,
		BatchTimestamp:          &batchTS,
		DatePredicted:           time.Unix(1740825000, 0),
	}

	doc := buildDocument(verdict)

	assert.Equal(t, "v1", doc["id"])
	assert.Equal(t, "batch_integrated", doc["mode"])
	assert.Equal(t, "Good", doc["soil_status"])
	assert.Equal(t, 70.0, doc["soil_quality_score"])
	assert.Equal(t, batchTS, doc["batch_timestamp"])
	assert.Equal(t, int64(1740825000), doc["date_predicted"])
}

func TestBuildDocumentOmitsNilFields(t *testing.T) {
	verdict := &entities.AnalysisVerdict{
		ID:     "v2",
		UserID: "user-1",
		Mode:   entities.ModeBatchImageOnly,
	}

	doc := buildDocument(verdict)

	_, hasSoilStatus := doc["soil_status"]
	_, hasSoilScore := doc["soil_quality_score"]
	_, hasBatchTS := doc["batch_timestamp"]
	assert.False(t, hasSoilStatus)
	assert.False(t, hasSoilScore)
	assert.False(t, hasBatchTS)
}

func TestDocumentToVerdict(t *testing.T) {
	doc := map[string]interface{}{
		"id":                        "v1",
		"user_id":                   "user-1",
		"health_status":             "Moderate",
		"disease_type":              "Early Blight",
		"overall_health":            "Moderate",
		"mode":                      "batch_image_only",
		"combined_confidence_score": 0.6,
		"plant_health_score":        65.0,
		"recommendations":           []interface{}{"Apply fungicide", "Continue monitoring"},
		"soil_issues":               []interface{}{},
		"has_soil_data":             false,
		"date_predicted":            float64(1740825000),
	}

	verdict := documentToVerdict(doc)

	assert.Equal(t, "v1", verdict.ID)
	assert.Equal(t, entities.ModeBatchImageOnly, verdict.Mode)
	assert.Equal(t, []string{"Apply fungicide", "Continue monitoring"}, verdict.Recommendations)
	assert.Equal(t, []string{}, verdict.SoilIssues)
	assert.Nil(t, verdict.SoilStatus)
	assert.Nil(t, verdict.SoilQualityScore)
	assert.Equal(t, int64(1740825000), verdict.DatePredicted.Unix())
}

func TestBuildFilter(t *testing.T) {
	tests := []struct {
		name   string
		params repositories.VerdictSearchParams
		want   string
	}{
		{
			name:   "no filters",
			params: repositories.VerdictSearchParams{},
			want:   "",
		},
		{
			name:   "user only",
			params: repositories.VerdictSearchParams{UserID: "user-1"},
			want:   "user_id:=user-1",
		},
		{
			name: "all filters",
			params: repositories.VerdictSearchParams{
				UserID:        "user-1",
				DiseaseType:   "Early Blight",
				OverallHealth: "Moderate",
				Mode:          "batch_integrated",
			},
			want: "user_id:=user-1 && disease_type:=Early Blight && overall_health:=Moderate && mode:=batch_integrated",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, buildFilter(tt.params))
		})
	}
}
