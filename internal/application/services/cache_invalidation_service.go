package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/zatekoja/cropsight-backend/internal/domain/entities"
	"github.com/zatekoja/cropsight-backend/internal/domain/providers"
)

// CacheInvalidationService drops stale HTTP cache entries as analysis
// events arrive
type CacheInvalidationService struct {
	cache    providers.CacheProvider
	eventBus providers.EventBus
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewCacheInvalidationService creates a new cache invalidation service
func NewCacheInvalidationService(cache providers.CacheProvider, eventBus providers.EventBus) *CacheInvalidationService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CacheInvalidationService{
		cache:    cache,
		eventBus: eventBus,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins listening for analysis events and invalidating cache
func (s *CacheInvalidationService) Start() error {
	eventChan, err := s.eventBus.Subscribe(s.ctx, providers.EventChannelAnalysisUpdates)
	if err != nil {
		return fmt.Errorf("failed to subscribe to analysis updates: %w", err)
	}

	go s.processEvents(eventChan)
	log.Println("Cache invalidation service started")
	return nil
}

// Stop stops the cache invalidation service
func (s *CacheInvalidationService) Stop() {
	s.cancel()
	log.Println("Cache invalidation service stopped")
}

func (s *CacheInvalidationService) processEvents(eventChan <-chan *entities.AnalysisEvent) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case event := <-eventChan:
			if event == nil {
				continue
			}
			s.handleEvent(event)
		}
	}
}

// handleEvent handles a single analysis event. Only events that add
// verdicts change what history, detail and stats responses contain, so
// batch_started and batch_failed pass through untouched.
func (s *CacheInvalidationService) handleEvent(event *entities.AnalysisEvent) {
	switch event.EventType {
	case entities.AnalysisEventBatchCompleted, entities.AnalysisEventVerdictStored:
	default:
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log.Printf("Processing cache invalidation for event: %s (user: %s, type: %s)",
		event.ID, event.UserID, event.EventType)

	if err := s.InvalidateUserCaches(ctx, event.UserID); err != nil {
		log.Printf("Warning: Failed to invalidate analysis cache for user %s: %v", event.UserID, err)
	}
}

// InvalidateUserCaches removes every cached analysis response scoped to
// one user. Cache keys embed the owning user id ahead of the request
// hash, so a single glob covers history, batch detail, search and stats.
func (s *CacheInvalidationService) InvalidateUserCaches(ctx context.Context, userID string) error {
	if userID == "" {
		return nil
	}

	pattern := fmt.Sprintf("http:cache:user:%s:*", userID)
	if err := s.cache.DeletePattern(ctx, pattern); err != nil {
		return fmt.Errorf("failed to invalidate pattern %s: %w", pattern, err)
	}
	log.Printf("Invalidated analysis cache for user %s", userID)
	return nil
}

// InvalidateAllAnalysisCaches clears the whole HTTP cache. Meant for
// maintenance windows and bulk reindexing, not the event path.
func (s *CacheInvalidationService) InvalidateAllAnalysisCaches(ctx context.Context) error {
	pattern := "http:cache:*"
	if err := s.cache.DeletePattern(ctx, pattern); err != nil {
		return fmt.Errorf("failed to invalidate pattern %s: %w", pattern, err)
	}
	log.Println("Invalidated all cached analysis responses")
	return nil
}
