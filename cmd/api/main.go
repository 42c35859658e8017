package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/zatekoja/cropsight-backend/internal/adapters/cache"
	"github.com/zatekoja/cropsight-backend/internal/adapters/database"
	"github.com/zatekoja/cropsight-backend/internal/adapters/events"
	"github.com/zatekoja/cropsight-backend/internal/adapters/providers/inference"
	"github.com/zatekoja/cropsight-backend/internal/adapters/providers/storage"
	"github.com/zatekoja/cropsight-backend/internal/adapters/search"
	"github.com/zatekoja/cropsight-backend/internal/api/handlers"
	"github.com/zatekoja/cropsight-backend/internal/api/middleware"
	"github.com/zatekoja/cropsight-backend/internal/api/routes"
	"github.com/zatekoja/cropsight-backend/internal/application/services"
	"github.com/zatekoja/cropsight-backend/internal/domain/providers"
	"github.com/zatekoja/cropsight-backend/internal/domain/repositories"
	"github.com/zatekoja/cropsight-backend/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/cropsight-backend/internal/infrastructure/clients/redis"
	"github.com/zatekoja/cropsight-backend/internal/infrastructure/clients/typesense"
	"github.com/zatekoja/cropsight-backend/internal/infrastructure/notifications"
	"github.com/zatekoja/cropsight-backend/internal/infrastructure/observability"
	"github.com/zatekoja/cropsight-backend/pkg/config"
	"github.com/zatekoja/cropsight-backend/pkg/secrets"
)

func main() {

	// Pull secrets from Vault into the environment before config reads it.
	vaultCfg := secrets.LoadVaultConfigFromEnv("")
	if result, err := secrets.ApplyVaultSecrets(context.Background(), vaultCfg); err != nil {
		log.Printf("Warning: Failed to load Vault secrets: %v", err)
	} else if result.Enabled {
		log.Printf("Loaded %d secrets from Vault path %s (%d already set)", result.Loaded, result.Path, result.Skipped)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	env := os.Getenv("ENV")
	if env == "" {
		env = "production"
	}
	observability.InitLogger(cfg.OTEL.ServiceName, env)

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize OpenTelemetry if enabled
	var shutdown func(context.Context) error
	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err = observability.Setup(
			ctx,
			cfg.OTEL.ServiceName,
			cfg.OTEL.ServiceVersion,
			cfg.OTEL.Endpoint,
		)
		if err != nil {
			log.Printf("Warning: Failed to set up OpenTelemetry: %v", err)
		} else {
			observability.AttachOTELBridge()
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Printf("Error shutting down OpenTelemetry: %v", err)
				}
			}()
			log.Println("OpenTelemetry initialized successfully")
		}
	}

	// Initialize metrics
	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}

	// Initialize the database gateway. The connection opens lazily on the
	// first operation, so the API starts even while the database is still
	// coming up.
	gateway := database.NewGateway(
		func(ctx context.Context) (*sql.DB, error) {
			client, err := postgres.NewClient(&cfg.Database)
			if err != nil {
				return nil, err
			}
			return client.DB(), nil
		},
		database.Options{
			ReadinessTimeout: cfg.Analysis.ReadinessTimeout,
			StartupTimeout:   cfg.Analysis.StartupTimeout,
		},
	)
	defer gateway.Close()
	log.Println("Database gateway initialized (lazy connect)")

	// Reporting queries and notification records run on their own pool.
	// sqlx.Open defers dialing, so a down database does not block startup.
	reportingDB, err := sqlx.Open("postgres", cfg.Database.DatabaseDSN())
	if err != nil {
		log.Fatalf("Failed to open reporting database pool: %v", err)
	}
	defer reportingDB.Close()

	// Initialize Redis client
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		log.Printf("Warning: Failed to initialize Redis client: %v", err)
		// Continue without Redis - caching and events degrade gracefully
	} else {
		defer redisClient.Close()
		log.Println("Redis client initialized successfully")
	}

	// Initialize Typesense client
	typesenseClient, err := typesense.NewClient(&cfg.Typesense)
	if err != nil {
		log.Printf("Warning: Failed to initialize Typesense client: %v", err)
	} else {
		log.Println("Typesense client initialized successfully")
	}

	// Initialize adapters
	plantImageRepo := database.NewPlantImageAdapter(gateway)
	soilReadingRepo := database.NewSoilReadingAdapter(gateway)
	soilRangeRepo := database.NewSoilRangeAdapter(gateway)
	verdictRepo := database.NewVerdictAdapter(gateway)

	var searchRepo repositories.VerdictSearchRepository
	if typesenseClient != nil {
		adapter := search.NewTypesenseAdapter(typesenseClient)

		// Ensure schema exists
		if err := adapter.InitSchema(context.Background()); err != nil {
			log.Printf("Warning: Failed to init Typesense schema: %v", err)
		}
		searchRepo = adapter
	}

	var cacheProvider providers.CacheProvider
	if redisClient != nil {
		cacheProvider = cache.NewRedisAdapter(redisClient)
	}

	// Initialize event bus for real-time updates
	var eventBus providers.EventBus
	if redisClient != nil {
		eventBus = events.NewRedisEventBus(redisClient)
		log.Println("Event bus initialized successfully")
	} else {
		log.Println("Event bus disabled (Redis not available)")
	}

	// Initialize the inference provider
	store := storage.NewObjectStore(cfg.Storage)
	inferenceProvider, err := inference.NewInferenceProvider(cfg.Inference, store)
	if err != nil {
		log.Fatalf("Failed to initialize inference provider: %v", err)
	}
	log.Printf("Inference provider initialized (%s)", cfg.Inference.Provider)

	// Initialize services
	fusionService := services.NewFusionService(verdictRepo)
	correlator := services.NewBatchCorrelator()

	analysisService := services.NewAnalysisService(
		plantImageRepo,
		soilReadingRepo,
		verdictRepo,
		soilRangeRepo,
		inferenceProvider,
		fusionService,
		searchRepo,
		eventBus,
	)

	batchService := services.NewBatchAnalysisService(
		plantImageRepo,
		soilReadingRepo,
		verdictRepo,
		soilRangeRepo,
		inferenceProvider,
		fusionService,
		correlator,
		searchRepo,
		eventBus,
		metrics,
	)
	batchService.SetConcurrency(cfg.Inference.Concurrency)
	batchService.SetUnprocessedLimit(cfg.Analysis.UnprocessedLimit)

	historyService := services.NewAnalysisHistoryService(verdictRepo, correlator, searchRepo)
	statsService := services.NewAnalysisStatsService(reportingDB)

	// Initialize cache invalidation service
	var cacheInvalidationService *services.CacheInvalidationService
	if cacheProvider != nil && eventBus != nil {
		cacheInvalidationService = services.NewCacheInvalidationService(cacheProvider, eventBus)
		if err := cacheInvalidationService.Start(); err != nil {
			log.Printf("Warning: Failed to start cache invalidation service: %v", err)
		} else {
			log.Println("Cache invalidation service started successfully")
		}
	}

	// Deliver webhook notifications for terminal batch events
	var notificationService *services.NotificationService
	if cfg.Notifications.WebhookURL == "" {
		log.Println("Warning: NOTIFY_WEBHOOK_URL is not set; webhook notifications disabled")
	} else if eventBus == nil {
		log.Println("Warning: webhook notifications need the event bus; disabled")
	} else {
		sender, err := notifications.NewWebhookSender(cfg.Notifications.WebhookURL, os.Getenv("NOTIFY_AUTH_TOKEN"))
		if err != nil {
			log.Printf("Warning: Failed to initialize webhook sender: %v", err)
		} else {
			notificationService = services.NewNotificationService(reportingDB, sender, eventBus)
			if err := notificationService.Start(); err != nil {
				log.Printf("Warning: Failed to start notification service: %v", err)
			}
		}
	}

	// Initialize handlers
	analysisHandler := handlers.NewAnalysisHandler(analysisService, batchService)
	historyHandler := handlers.NewHistoryHandler(historyService)
	statsHandler := handlers.NewStatsHandler(statsService)

	// Initialize cache middleware
	var cacheMiddleware *middleware.CacheMiddleware
	if cacheProvider != nil {
		cacheMiddleware = middleware.NewCacheMiddleware(cacheProvider)
		log.Println("Cache middleware initialized successfully")
	}

	// Set up router
	router := routes.NewRouter(
		analysisHandler,
		historyHandler,
		statsHandler,
		cacheMiddleware,
		metrics,
		func() string { return gateway.State().String() },
		searchRepo != nil,
	)

	handler := router.SetupRoutes()

	// Create HTTP server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Server starting on %s", serverAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error during server shutdown: %v", err)
	}

	// Close event bus
	if eventBus != nil {
		if err := eventBus.Close(); err != nil {
			log.Printf("Error closing event bus: %v", err)
		}
	}

	// Stop cache invalidation service
	if cacheInvalidationService != nil {
		cacheInvalidationService.Stop()
	}

	// Stop webhook delivery
	if notificationService != nil {
		notificationService.Stop()
	}

	log.Println("Server stopped")
}
