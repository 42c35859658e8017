package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
	"github.com/zatekoja/cropsight-backend/internal/domain/entities"
	"github.com/zatekoja/cropsight-backend/internal/domain/repositories"
	tsclient "github.com/zatekoja/cropsight-backend/internal/infrastructure/clients/typesense"
)

const collectionName = "verdicts"

const defaultSearchLimit = 20

// TypesenseAdapter implements verdict search using Typesense
type TypesenseAdapter struct {
	client *tsclient.Client
}

// Ensure TypesenseAdapter implements VerdictSearchRepository
var _ repositories.VerdictSearchRepository = (*TypesenseAdapter)(nil)

// NewTypesenseAdapter creates a new Typesense adapter
func NewTypesenseAdapter(client *tsclient.Client) *TypesenseAdapter {
	return &TypesenseAdapter{client: client}
}

// InitSchema ensures the collection exists
func (a *TypesenseAdapter) InitSchema(ctx context.Context) error {
	// Check if collection exists
	_, err := a.client.Client().Collection(collectionName).Retrieve(ctx)
	if err == nil {
		return nil // Collection exists
	}

	return a.client.InitSchema(ctx)
}

// Index indexes a verdict
func (a *TypesenseAdapter) Index(ctx context.Context, verdict *entities.AnalysisVerdict) error {
	if err := a.client.IndexVerdict(ctx, buildDocument(verdict)); err != nil {
		return fmt.Errorf("failed to index verdict: %w", err)
	}

	return nil
}

// IndexBatch indexes multiple verdicts
func (a *TypesenseAdapter) IndexBatch(ctx context.Context, verdicts []*entities.AnalysisVerdict) error {
	for _, verdict := range verdicts {
		if err := a.Index(ctx, verdict); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a verdict from the index
func (a *TypesenseAdapter) Delete(ctx context.Context, id string) error {
	_, err := a.client.Client().Collection(collectionName).Document(id).Delete(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete verdict from index: %w", err)
	}
	return nil
}

// Search performs a full-text search over indexed verdicts
func (a *TypesenseAdapter) Search(ctx context.Context, params repositories.VerdictSearchParams) ([]*entities.AnalysisVerdict, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	q := params.Query
	if q == "" {
		q = "*"
	}

	searchParams := &api.SearchCollectionParams{
		Q:       pointer.String(q),
		QueryBy: pointer.String("disease_type,health_status,overall_health,recommendations,soil_issues"),
		Page:    pointer.Int(params.Offset/limit + 1),
		PerPage: pointer.Int(limit),
	}

	if filterBy := buildFilter(params); filterBy != "" {
		searchParams.FilterBy = pointer.String(filterBy)
	}

	result, err := a.client.Client().Collection(collectionName).Documents().Search(ctx, searchParams)
	if err != nil {
		return nil, fmt.Errorf("failed to search verdicts: %w", err)
	}

	verdicts := []*entities.AnalysisVerdict{}
	if result.Hits == nil {
		return verdicts, nil
	}

	for _, hit := range *result.Hits {
		doc := *hit.Document
		verdicts = append(verdicts, documentToVerdict(doc))
	}

	return verdicts, nil
}

func buildFilter(params repositories.VerdictSearchParams) string {
	filters := []string{}
	if params.UserID != "" {
		filters = append(filters, fmt.Sprintf("user_id:=%s", params.UserID))
	}
	if params.DiseaseType != "" {
		filters = append(filters, fmt.Sprintf("disease_type:=%s", params.DiseaseType))
	}
	if params.OverallHealth != "" {
		filters = append(filters, fmt.Sprintf("overall_health:=%s", params.OverallHealth))
	}
	if params.Mode != "" {
		filters = append(filters, fmt.Sprintf("mode:=%s", params.Mode))
	}
	return strings.Join(filters, " && ")
}

func buildDocument(verdict *entities.AnalysisVerdict) map[string]interface{} {
	document := map[string]interface{}{
		"id":                        verdict.ID,
		"user_id":                   verdict.UserID,
		"health_status":             verdict.HealthStatus,
		"disease_type":              verdict.DiseaseType,
		"overall_health":            verdict.OverallHealth,
		"mode":                      string(verdict.Mode),
		"combined_confidence_score": verdict.CombinedConfidenceScore,
		"plant_health_score":        verdict.PlantHealthScore,
		"recommendations":           verdict.Recommendations,
		"soil_issues":               verdict.SoilIssues,
		"has_soil_data":             verdict.HasSoilData,
		"date_predicted":            verdict.DatePredicted.Unix(),
	}

	if verdict.SoilStatus != nil {
		document["soil_status"] = *verdict.SoilStatus
	}
	if verdict.SoilQualityScore != nil {
		document["soil_quality_score"] = *verdict.SoilQualityScore
	}
	if verdict.BatchTimestamp != nil {
		document["batch_timestamp"] = *verdict.BatchTimestamp
	}

	return document
}

// documentToVerdict reconstructs a verdict from a search hit. Typesense
// returns untyped maps, so every field is cast defensively.
func documentToVerdict(doc map[string]interface{}) *entities.AnalysisVerdict {
	verdict := &entities.AnalysisVerdict{
		Recommendations: stringSlice(doc["recommendations"]),
		SoilIssues:      stringSlice(doc["soil_issues"]),
	}

	if val, ok := doc["id"].(string); ok {
		verdict.ID = val
	}
	if val, ok := doc["user_id"].(string); ok {
		verdict.UserID = val
	}
	if val, ok := doc["health_status"].(string); ok {
		verdict.HealthStatus = val
	}
	if val, ok := doc["disease_type"].(string); ok {
		verdict.DiseaseType = val
	}
	if val, ok := doc["soil_status"].(string); ok {
		verdict.SoilStatus = &val
	}
	if val, ok := doc["overall_health"].(string); ok {
		verdict.OverallHealth = val
	}
	if val, ok := doc["mode"].(string); ok {
		verdict.Mode = entities.AnalysisMode(val)
	}
	if val, ok := doc["combined_confidence_score"].(float64); ok {
		verdict.CombinedConfidenceScore = val
	}
	if val, ok := doc["plant_health_score"].(float64); ok {
		verdict.PlantHealthScore = val
	}
	if val, ok := doc["soil_quality_score"].(float64); ok {
		verdict.SoilQualityScore = &val
	}
	if val, ok := doc["has_soil_data"].(bool); ok {
		verdict.HasSoilData = val
	}
	if val, ok := doc["batch_timestamp"].(string); ok {
		verdict.BatchTimestamp = &val
	}
	if val, ok := doc["date_predicted"].(float64); ok {
		verdict.DatePredicted = time.Unix(int64(val), 0)
	}

	return verdict
}

func stringSlice(val interface{}) []string {
	items, ok := val.([]interface{})
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
