//go:build integration

package integration

import (
	"database/sql"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zatekoja/cropsight-backend/internal/domain/entities"
	"github.com/zatekoja/cropsight-backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/cropsight-backend/internal/infrastructure/clients/redis"
	"github.com/zatekoja/cropsight-backend/pkg/config"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func newTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()

	cfg := &config.RedisConfig{
		Host:     getEnv("TEST_REDIS_HOST", "localhost"),
		Port:     getEnvAsInt("TEST_REDIS_PORT", 6379),
		Password: getEnv("TEST_REDIS_PASSWORD", ""),
		DB:       getEnvAsInt("TEST_REDIS_DB", 0),
	}

	client, err := redis.NewClient(cfg)
	require.NoError(t, err, "Failed to create redis client")
	return client
}

func newTestPostgresClient(t *testing.T) *postgres.Client {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Host:     getEnv("TEST_DB_HOST", "localhost"),
		Port:     getEnvAsInt("TEST_DB_PORT", 5432),
		User:     getEnv("TEST_DB_USER", "postgres"),
		Password: getEnv("TEST_DB_PASSWORD", "postgres"),
		Database: getEnv("TEST_DB_NAME", "cropsight_test"),
		SSLMode:  getEnv("TEST_DB_SSLMODE", "disable"),
	}

	client, err := postgres.NewClient(cfg)
	require.NoError(t, err, "Failed to create postgres client")
	return client
}

// createVerdictsTable keeps the suite self-contained so a fresh test
// database needs no prior setup.
func createVerdictsTable(t *testing.T, db *sql.DB) {
	t.Helper()

	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS analysis_verdicts (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			user_id TEXT NOT NULL,
			image_id TEXT,
			soil_id TEXT,
			health_status TEXT NOT NULL DEFAULT '',
			disease_type TEXT NOT NULL DEFAULT '',
			soil_status TEXT,
			overall_health TEXT NOT NULL DEFAULT '',
			combined_confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			plant_health_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			soil_quality_score DOUBLE PRECISION,
			recommendations TEXT NOT NULL DEFAULT '',
			soil_issues TEXT NOT NULL DEFAULT '',
			has_soil_data BOOLEAN NOT NULL DEFAULT false,
			mode TEXT NOT NULL DEFAULT '',
			batch_timestamp TEXT,
			batch_index INTEGER NOT NULL DEFAULT 0,
			date_predicted TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	require.NoError(t, err)
}

func cleanupVerdicts(t *testing.T, db *sql.DB, userID string) {
	t.Helper()
	_, err := db.Exec("DELETE FROM analysis_verdicts WHERE user_id = $1", userID)
	require.NoError(t, err)
}

func waitForAnalysisEvent(t *testing.T, ch <-chan *entities.AnalysisEvent) *entities.AnalysisEvent {
	t.Helper()
	select {
	case event := <-ch:
		require.NotNil(t, event)
		return event
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for analysis event")
		return nil
	}
}
