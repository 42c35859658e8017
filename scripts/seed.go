package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/zatekoja/cropsight-backend/internal/adapters/database"
	"github.com/zatekoja/cropsight-backend/internal/domain/entities"
	"github.com/zatekoja/cropsight-backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/cropsight-backend/pkg/config"
)

// batchStampLayout matches the format the analysis pipeline stamps
// batches with, so seeded rows group the same way real uploads do.
const batchStampLayout = "2006-01-02T15:04:05.000-07:00"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to DB: %v", err)
	}
	defer pgClient.Close()

	ctx := context.Background()

	if os.Getenv("RESET_DB") == "true" {
		log.Println("RESET_DB=true detected, truncating tables before seeding")
		_, err := pgClient.DB().ExecContext(ctx, `
			TRUNCATE TABLE
				analysis_notifications,
				analysis_verdicts,
				plant_images,
				soil_readings,
				soil_optimal_ranges
			RESTART IDENTITY CASCADE
		`)
		if err != nil {
			log.Fatalf("Failed to reset tables: %v", err)
		}
	}

	demoUser := os.Getenv("SEED_USER_ID")
	if demoUser == "" {
		demoUser = uuid.New().String()
	}
	log.Printf("Seeding demo data for user %s", demoUser)

	// 1. Seed optimal soil ranges (tomato defaults)
	rangeRepo := database.NewSoilRangeAdapter(database.NewReadyGateway(pgClient.DB()))
	if err := rangeRepo.Save(ctx, entities.DefaultSoilOptimalRanges()); err != nil {
		log.Printf("Failed to seed soil ranges: %v", err)
	} else {
		log.Println("Seeded optimal soil ranges")
	}

	now := time.Now().UTC()
	yesterday := now.Add(-24 * time.Hour)
	morningBatch := yesterday.Format(batchStampLayout)
	noonBatch := now.Format(batchStampLayout)

	// 2. Seed plant images: two batches plus one legacy upload that
	// carries no batch timestamp
	images := []struct {
		path     string
		batch    *string
		index    int
		uploaded time.Time
	}{
		{path: fmt.Sprintf("%s/tomato_row1_leaf1.jpg", demoUser), batch: &morningBatch, index: 0, uploaded: yesterday},
		{path: fmt.Sprintf("%s/tomato_row1_leaf2.jpg", demoUser), batch: &morningBatch, index: 1, uploaded: yesterday},
		{path: fmt.Sprintf("%s/tomato_row2_leaf1.jpg", demoUser), batch: &morningBatch, index: 2, uploaded: yesterday},
		{path: fmt.Sprintf("%s/tomato_row3_leaf1.jpg", demoUser), batch: &noonBatch, index: 0, uploaded: now},
		{path: fmt.Sprintf("%s/tomato_row3_leaf2.jpg", demoUser), batch: &noonBatch, index: 1, uploaded: now},
		{path: fmt.Sprintf("%s/tomato_legacy.jpg", demoUser), batch: nil, index: 0, uploaded: yesterday.Add(-48 * time.Hour)},
	}

	seededImages := 0
	for _, img := range images {
		_, err := pgClient.DB().ExecContext(ctx, `
			INSERT INTO plant_images (id, user_id, image_path, batch_timestamp, batch_index, status, uploaded_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, uuid.New().String(), demoUser, img.path, img.batch, img.index, string(entities.ImageStatusPending), img.uploaded, img.uploaded)
		if err != nil {
			log.Printf("Failed to seed image %s: %v", img.path, err)
			continue
		}
		seededImages++
	}
	log.Printf("Seeded %d plant images", seededImages)

	// 3. Seed soil readings: one per batch. The noon reading sits outside
	// the optimal windows so fused verdicts show soil issues.
	readings := []struct {
		batch      *string
		recorded   time.Time
		ph         float64
		temp       float64
		moisture   float64
		nitrogen   float64
		phosphorus float64
		potassium  float64
	}{
		{batch: &morningBatch, recorded: yesterday, ph: 6.4, temp: 24, moisture: 55, nitrogen: 90, phosphorus: 35, potassium: 180},
		{batch: &noonBatch, recorded: now, ph: 5.6, temp: 31, moisture: 18, nitrogen: 40, phosphorus: 20, potassium: 90},
	}

	seededReadings := 0
	for _, r := range readings {
		_, err := pgClient.DB().ExecContext(ctx, `
			INSERT INTO soil_readings (id, user_id, ph_level, temperature, moisture, nitrogen, phosphorus, potassium, batch_timestamp, batch_index, recorded_at, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, uuid.New().String(), demoUser, r.ph, r.temp, r.moisture, r.nitrogen, r.phosphorus, r.potassium, r.batch, 0, r.recorded, r.recorded)
		if err != nil {
			log.Printf("Failed to seed soil reading: %v", err)
			continue
		}
		seededReadings++
	}
	log.Printf("Seeded %d soil readings", seededReadings)

	log.Printf("Seeding complete. Run a batch with: curl -X POST localhost:%d/api/analysis/batch -d '{\"user_id\":\"%s\"}'", cfg.Server.Port, demoUser)
}
