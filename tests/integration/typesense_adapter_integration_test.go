//go:build integration

package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/cropsight-backend/internal/adapters/search"
	"github.com/zatekoja/cropsight-backend/internal/domain/entities"
	"github.com/zatekoja/cropsight-backend/internal/domain/repositories"
	"github.com/zatekoja/cropsight-backend/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/cropsight-backend/pkg/config"
)

func TestTypesenseVerdictSearchIntegration(t *testing.T) {
	if os.Getenv("TEST_TYPESENSE_URL") == "" {
		t.Skip("Skipping integration test: TEST_TYPESENSE_URL not set")
	}

	cfg := &config.TypesenseConfig{
		URL:    os.Getenv("TEST_TYPESENSE_URL"),
		APIKey: getEnv("TEST_TYPESENSE_API_KEY", "xyz"),
	}

	client, err := typesense.NewClient(cfg)
	require.NoError(t, err)

	adapter := search.NewTypesenseAdapter(client)
	ctx := context.Background()

	require.NoError(t, adapter.InitSchema(ctx))

	imageID := "img-ts-1"
	verdict := &entities.AnalysisVerdict{
		ID:                      "verdict-ts-1",
		UserID:                  "user-ts-1",
		ImageID:                 &imageID,
		HealthStatus:            "Unhealthy",
		DiseaseType:             "Late Blight",
		OverallHealth:           "Unhealthy",
		CombinedConfidenceScore: 0.91,
		PlantHealthScore:        35,
		Recommendations:         []string{"Remove infected plants immediately"},
		Mode:                    entities.ModeBatchIntegrated,
		DatePredicted:           time.Now().UTC(),
	}

	require.NoError(t, adapter.Index(ctx, verdict))
	defer func() { _ = adapter.Delete(ctx, verdict.ID) }()

	// Allow Typesense to index
	time.Sleep(1 * time.Second)

	results, err := adapter.Search(ctx, repositories.VerdictSearchParams{
		Query:  "blight",
		UserID: "user-ts-1",
		Limit:  10,
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	found := false
	for _, r := range results {
		if r.ID == verdict.ID {
			found = true
			assert.Equal(t, "Late Blight", r.DiseaseType)
			assert.Equal(t, "Unhealthy", r.OverallHealth)
		}
	}
	assert.True(t, found, "indexed verdict not returned by search")

	filtered, err := adapter.Search(ctx, repositories.VerdictSearchParams{
		Query:         "blight",
		UserID:        "user-ts-1",
		OverallHealth: "Healthy",
		Limit:         10,
	})
	require.NoError(t, err)
	for _, r := range filtered {
		assert.NotEqual(t, verdict.ID, r.ID, "health filter should exclude the unhealthy verdict")
	}
}
