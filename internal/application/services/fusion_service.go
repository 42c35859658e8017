package services

import (
	"context"
	"log"
	"math"
	"strings"
	"time"

	"github.com/zatekoja/cropsight-backend/internal/domain/entities"
	"github.com/zatekoja/cropsight-backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/cropsight-backend/pkg/errors"
)

// FusionWeights sets the relative contribution of each modality to the
// combined health score. Weights are expected to sum to 1.
type FusionWeights struct {
	Plant float64
	Soil  float64
}

var (
	// EqualWeights is the single-pair fusion policy.
	EqualWeights = FusionWeights{Plant: 0.5, Soil: 0.5}
	// BatchWeights favors the image signal on the batch-integrated path.
	BatchWeights = FusionWeights{Plant: 0.7, Soil: 0.3}
)

// defaultConfidence substitutes for a confidence the worker did not report
const defaultConfidence = 0.5

// Recommendation priority keyword sets. A recommendation lands in the
// first bucket whose keywords it mentions; unmatched text is medium.
var (
	highPriorityKeywords   = []string{"immediate", "urgent", "critical", "severe", "destroy", "remove"}
	mediumPriorityKeywords = []string{"apply", "treat", "fungicide", "fertilizer", "nutrient", "water"}
	lowPriorityKeywords    = []string{"maintain", "continue", "monitoring", "prevent"}
)

// FusionService combines per-modality inference results into analysis
// verdicts. The fusion math itself is pure; only FuseAndStore touches
// the database.
type FusionService struct {
	verdicts repositories.VerdictRepository
}

// NewFusionService creates a new fusion service
func NewFusionService(verdicts repositories.VerdictRepository) *FusionService {
	return &FusionService{verdicts: verdicts}
}

// Fuse combines one successful image result and one successful soil
// result into a single verdict using the given weights. Both inputs must
// have succeeded; anything else is a fusion error.
func (s *FusionService) Fuse(image *entities.ImageInference, soil *entities.SoilInference, weights FusionWeights) (*entities.AnalysisVerdict, error) {
	if image == nil || !image.Success {
		return nil, apperrors.NewFusionError("image inference result is not usable", nil)
	}
	if soil == nil || !soil.Success {
		return nil, apperrors.NewFusionError("soil inference result is not usable", nil)
	}

	plantScore := image.PlantHealthScore
	soilScore := soil.SoilQualityScore
	if plantScore < 0 || plantScore > 100 {
		log.Printf("Warning: plant health score %.2f outside expected range [0,100]", plantScore)
	}
	if soilScore < 0 || soilScore > 100 {
		log.Printf("Warning: soil quality score %.2f outside expected range [0,100]", soilScore)
	}

	combined := plantScore*weights.Plant + soilScore*weights.Soil
	confidence := round2((confidenceOrDefault(image.ConfidenceScore) + confidenceOrDefault(soil.ConfidenceScore)) / 2)

	soilStatus := soil.SoilStatus
	soilQuality := soil.SoilQualityScore

	verdict := &entities.AnalysisVerdict{
		UserID:                  image.UserID,
		HealthStatus:            image.HealthStatus,
		DiseaseType:             image.DiseaseType,
		SoilStatus:              &soilStatus,
		OverallHealth:           CategorizeScore(combined),
		CombinedConfidenceScore: confidence,
		PlantHealthScore:        plantScore,
		SoilQualityScore:        &soilQuality,
		Recommendations:         PrepareRecommendations(image.Recommendations, soil.Recommendations),
		SoilIssues:              cleanList(soil.SoilIssues),
		HasSoilData:             true,
		Mode:                    entities.ModeIntegrated,
		DatePredicted:           time.Now().UTC(),
	}
	if verdict.UserID == "" {
		verdict.UserID = soil.UserID
	}
	if image.ImageID != "" {
		id := image.ImageID
		verdict.ImageID = &id
	}
	if soil.SoilID != "" {
		id := soil.SoilID
		verdict.SoilID = &id
	}
	return verdict, nil
}

// VerdictFromImage builds a pass-through verdict when no soil data is
// available for fusion.
func (s *FusionService) VerdictFromImage(image *entities.ImageInference) *entities.AnalysisVerdict {
	verdict := &entities.AnalysisVerdict{
		UserID:                  image.UserID,
		HealthStatus:            image.HealthStatus,
		DiseaseType:             image.DiseaseType,
		OverallHealth:           CategorizeScore(image.PlantHealthScore),
		CombinedConfidenceScore: round2(confidenceOrDefault(image.ConfidenceScore)),
		PlantHealthScore:        image.PlantHealthScore,
		Recommendations:         PrepareRecommendations(image.Recommendations),
		SoilIssues:              []string{},
		HasSoilData:             false,
		Mode:                    entities.ModeImageOnly,
		DatePredicted:           time.Now().UTC(),
	}
	if image.ImageID != "" {
		id := image.ImageID
		verdict.ImageID = &id
	}
	return verdict
}

// VerdictFromSoil builds a pass-through verdict from a soil result alone.
func (s *FusionService) VerdictFromSoil(soil *entities.SoilInference) *entities.AnalysisVerdict {
	soilStatus := soil.SoilStatus
	soilQuality := soil.SoilQualityScore

	verdict := &entities.AnalysisVerdict{
		UserID:                  soil.UserID,
		HealthStatus:            entities.HealthStatusUnknown,
		SoilStatus:              &soilStatus,
		OverallHealth:           CategorizeScore(soil.SoilQualityScore),
		CombinedConfidenceScore: round2(confidenceOrDefault(soil.ConfidenceScore)),
		SoilQualityScore:        &soilQuality,
		Recommendations:         PrepareRecommendations(soil.Recommendations),
		SoilIssues:              cleanList(soil.SoilIssues),
		HasSoilData:             true,
		Mode:                    entities.ModeSoilOnly,
		DatePredicted:           time.Now().UTC(),
	}
	if soil.SoilID != "" {
		id := soil.SoilID
		verdict.SoilID = &id
	}
	return verdict
}

// FuseAndStore fuses both results and persists the verdict, attaching the
// store-assigned identifier before returning it. Storage failures surface
// as fusion errors with the cause preserved.
func (s *FusionService) FuseAndStore(ctx context.Context, image *entities.ImageInference, soil *entities.SoilInference, weights FusionWeights) (*entities.AnalysisVerdict, error) {
	verdict, err := s.Fuse(image, soil, weights)
	if err != nil {
		return nil, err
	}
	if err := s.verdicts.Create(ctx, verdict); err != nil {
		return nil, apperrors.NewFusionError("failed to store fused verdict", err)
	}
	return verdict, nil
}

// CategorizeScore maps a combined health score onto the closed category
// set. Boundary values belong to the upper bucket.
func CategorizeScore(score float64) string {
	switch {
	case score >= 80:
		return entities.HealthStatusHealthy
	case score >= 60:
		return entities.HealthStatusModerate
	case score >= 40:
		return entities.HealthStatusUnhealthy
	case score >= 20:
		return entities.HealthStatusCritical
	default:
		return entities.HealthStatusUnknown
	}
}

// PrepareRecommendations merges recommendation lists into one prioritized
// list: entries are trimmed, deduplicated case-insensitively keeping the
// first occurrence, then emitted high priority first, medium, low,
// preserving relative order inside each bucket.
func PrepareRecommendations(lists ...[]string) []string {
	var merged []string
	for _, list := range lists {
		merged = append(merged, list...)
	}
	return prioritizeRecommendations(dedupeStrings(merged))
}

func dedupeStrings(values []string) []string {
	result := []string{}
	seen := make(map[string]bool)
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if seen[key] {
			continue
		}
		seen[key] = true
		result = append(result, trimmed)
	}
	return result
}

func prioritizeRecommendations(recommendations []string) []string {
	var high, medium, low []string
	for _, rec := range recommendations {
		switch {
		case matchesAnyKeyword(rec, highPriorityKeywords):
			high = append(high, rec)
		case matchesAnyKeyword(rec, mediumPriorityKeywords):
			medium = append(medium, rec)
		case matchesAnyKeyword(rec, lowPriorityKeywords):
			low = append(low, rec)
		default:
			medium = append(medium, rec)
		}
	}

	result := make([]string, 0, len(recommendations))
	result = append(result, high...)
	result = append(result, medium...)
	result = append(result, low...)
	return result
}

func matchesAnyKeyword(text string, keywords []string) bool {
	lowered := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}

// cleanList trims entries and drops empty ones
func cleanList(values []string) []string {
	result := []string{}
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// confidenceOrDefault substitutes the default for an unreported
// confidence. Workers omit the field entirely on partial failures, which
// decodes as zero.
func confidenceOrDefault(confidence float64) float64 {
	if confidence <= 0 {
		return defaultConfidence
	}
	return confidence
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
