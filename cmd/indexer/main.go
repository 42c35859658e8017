package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/zatekoja/cropsight-backend/internal/adapters/database"
	"github.com/zatekoja/cropsight-backend/internal/adapters/search"
	"github.com/zatekoja/cropsight-backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/cropsight-backend/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/cropsight-backend/pkg/config"
	"github.com/zatekoja/cropsight-backend/pkg/secrets"
)

func main() {
	var recreate bool
	var pageSize int
	var intervalFlag string
	flag.BoolVar(&recreate, "recreate", false, "delete the existing Typesense collection before reindexing")
	flag.IntVar(&pageSize, "page", 200, "number of verdicts to load per page")
	flag.StringVar(&intervalFlag, "interval", "", "repeat interval for reindexing (e.g. 6h, 30m)")
	flag.Parse()

	// Pull secrets from Vault into the environment before config reads it.
	vaultCfg := secrets.LoadVaultConfigFromEnv("")
	if result, err := secrets.ApplyVaultSecrets(context.Background(), vaultCfg); err != nil {
		log.Printf("Warning: Failed to load Vault secrets: %v", err)
	} else if result.Enabled {
		log.Printf("Loaded %d secrets from Vault path %s (%d already set)", result.Loaded, result.Path, result.Skipped)
	}

	if pageSize <= 0 {
		log.Fatalf("Page size must be greater than zero")
	}

	intervalValue := strings.TrimSpace(intervalFlag)
	if intervalValue == "" {
		intervalValue = strings.TrimSpace(os.Getenv("REINDEX_INTERVAL"))
	}

	var interval time.Duration
	var err error
	if intervalValue != "" {
		interval, err = time.ParseDuration(intervalValue)
		if err != nil {
			log.Fatalf("Invalid interval %q: %v", intervalValue, err)
		}
		if interval <= 0 {
			log.Fatalf("Interval must be greater than zero")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for {
		if err := indexOnce(ctx, recreate, pageSize); err != nil {
			log.Printf("Reindex failed: %v", err)
		}

		if interval <= 0 {
			break
		}

		recreate = false
		log.Printf("Reindex complete. Next run in %s.", interval)

		select {
		case <-ctx.Done():
			log.Println("Reindexer shutting down")
			return
		case <-time.After(interval):
		}
	}
}

func indexOnce(ctx context.Context, recreate bool, pageSize int) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		return err
	}
	defer pgClient.Close()

	// A rebuild should fail fast on a down database, so the gateway is
	// opened over the already verified connection.
	gateway := database.NewReadyGateway(pgClient.DB())
	verdictRepo := database.NewVerdictAdapter(gateway)

	tsClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		return err
	}

	if recreate || os.Getenv("RECREATE_TYPESENSE") == "true" {
		log.Println("Deleting verdicts collection before rebuild")
		_, err := tsClient.Client().Collection(typesense.VerdictsCollection).Delete(ctx)
		if err != nil {
			log.Printf("Warning: failed to delete collection: %v", err)
		}
	}

	if err := tsClient.InitSchema(ctx); err != nil {
		return err
	}

	searchRepo := search.NewTypesenseAdapter(tsClient)

	indexed := 0
	failed := 0
	for offset := 0; ; offset += pageSize {
		verdicts, err := verdictRepo.ListPage(ctx, pageSize, offset)
		if err != nil {
			return err
		}
		if len(verdicts) == 0 {
			break
		}

		for _, verdict := range verdicts {
			if verdict == nil {
				continue
			}
			if err := searchRepo.Index(ctx, verdict); err != nil {
				log.Printf("Failed to index verdict %s: %v", verdict.ID, err)
				failed++
				continue
			}
			indexed++
		}

		if len(verdicts) < pageSize {
			break
		}
	}

	log.Printf("Indexing complete: %d indexed, %d failed.", indexed, failed)
	return nil
}
