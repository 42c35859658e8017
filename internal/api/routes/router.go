package routes

import (
	"encoding/json"
	"net/http"

	"github.com/zatekoja/cropsight-backend/internal/api/handlers"
	"github.com/zatekoja/cropsight-backend/internal/api/middleware"
	"github.com/zatekoja/cropsight-backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	analysisHandler *handlers.AnalysisHandler
	historyHandler  *handlers.HistoryHandler
	statsHandler    *handlers.StatsHandler

	cacheMiddleware *middleware.CacheMiddleware
	metrics         *observability.Metrics

	dbState       func() string
	searchEnabled bool
}

// NewRouter creates a new router
func NewRouter(
	analysisHandler *handlers.AnalysisHandler,
	historyHandler *handlers.HistoryHandler,
	statsHandler *handlers.StatsHandler,
	cacheMiddleware *middleware.CacheMiddleware,
	metrics *observability.Metrics,
	dbState func() string,
	searchEnabled bool,
) *Router {
	return &Router{
		mux: http.NewServeMux(),

		analysisHandler: analysisHandler,
		historyHandler:  historyHandler,
		statsHandler:    statsHandler,

		cacheMiddleware: cacheMiddleware,
		metrics:         metrics,

		dbState:       dbState,
		searchEnabled: searchEnabled,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	// Health check endpoint
	r.mux.HandleFunc("GET /health", r.handleHealth)

	// Analysis execution endpoints
	r.mux.HandleFunc("POST /api/analysis/batch", r.analysisHandler.RunBatch)
	r.mux.HandleFunc("POST /api/analysis/image", r.analysisHandler.AnalyzeImage)
	r.mux.HandleFunc("POST /api/analysis/soil", r.analysisHandler.AnalyzeSoil)

	// History endpoints
	r.mux.HandleFunc("GET /api/analysis/history", r.historyHandler.GetHistory)
	r.mux.HandleFunc("GET /api/analysis/batches/{timestamp}", r.historyHandler.GetBatchDetail)
	r.mux.HandleFunc("GET /api/analysis/verdicts/{id}", r.historyHandler.GetVerdict)
	r.mux.HandleFunc("GET /api/analysis/search", r.historyHandler.SearchVerdicts)

	// Stats endpoint
	r.mux.HandleFunc("GET /api/analysis/stats", r.statsHandler.GetUserStats)

	// Apply middleware in reverse order (last middleware wraps first)
	// CORS must be outermost so cached responses also get CORS headers.

	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)

	// Apply cache middleware if available
	if r.cacheMiddleware != nil {
		handler = r.cacheMiddleware.Middleware(handler)
	}

	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)

	// Apply HTTP performance optimizations (compression, ETag, cache headers)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so headers are set even on cache HITs
	handler = middleware.CORSMiddleware(handler)

	return handler
}

// handleHealth reports dependency readiness alongside the liveness check
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	database := "unknown"
	if r.dbState != nil {
		database = r.dbState()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":         "ok",
		"database":       database,
		"cache_enabled":  r.cacheMiddleware != nil,
		"search_enabled": r.searchEnabled,
	})
}
