package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/zatekoja/cropsight-backend/internal/domain/entities"
	"github.com/zatekoja/cropsight-backend/internal/domain/providers"
	"github.com/zatekoja/cropsight-backend/internal/domain/repositories"
	"github.com/zatekoja/cropsight-backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/cropsight-backend/pkg/errors"
)

const (
	// DefaultInferenceConcurrency caps simultaneous worker invocations
	DefaultInferenceConcurrency = 8
	// DefaultUnprocessedLimit caps the "most recent unprocessed" selection
	DefaultUnprocessedLimit = 10
	// batchCandidateScanLimit bounds how many stored images are loaded as
	// candidates when resolving a batch identifier
	batchCandidateScanLimit = 500
)

// batchTimestampLayout renders minted batch identifiers with millisecond
// precision and an explicit offset, matching what producers upload.
const batchTimestampLayout = "2006-01-02T15:04:05.000-07:00"

// BatchAnalysisRequest selects the working set for one orchestration run.
// Exactly one selection mode applies: an explicit image id list, an
// explicit batch timestamp, or the most recent unprocessed images.
type BatchAnalysisRequest struct {
	UserID         string   `json:"user_id"`
	ImageIDs       []string `json:"image_ids,omitempty"`
	BatchTimestamp string   `json:"batch_timestamp,omitempty"`
	IncludeSoil    bool     `json:"include_soil"`
	Limit          int      `json:"limit,omitempty"`
}

// BatchAnalysisService orchestrates one batch run: selection, image
// inference, optional soil inference, fusion, storage, and reporting.
type BatchAnalysisService struct {
	images     repositories.PlantImageRepository
	readings   repositories.SoilReadingRepository
	verdicts   repositories.VerdictRepository
	ranges     repositories.SoilRangeRepository
	inference  providers.InferenceProvider
	fusion     *FusionService
	correlator *BatchCorrelator
	search     repositories.VerdictSearchRepository
	events     providers.EventBus
	metrics    *observability.Metrics

	concurrency      int
	unprocessedLimit int
}

// NewBatchAnalysisService creates a new batch analysis service. The search
// repository, event bus, and metrics are optional; pass nil to disable.
func NewBatchAnalysisService(
	images repositories.PlantImageRepository,
	readings repositories.SoilReadingRepository,
	verdicts repositories.VerdictRepository,
	ranges repositories.SoilRangeRepository,
	inference providers.InferenceProvider,
	fusion *FusionService,
	correlator *BatchCorrelator,
	search repositories.VerdictSearchRepository,
	events providers.EventBus,
	metrics *observability.Metrics,
) *BatchAnalysisService {
	return &BatchAnalysisService{
		images:           images,
		readings:         readings,
		verdicts:         verdicts,
		ranges:           ranges,
		inference:        inference,
		fusion:           fusion,
		correlator:       correlator,
		search:           search,
		events:           events,
		metrics:          metrics,
		concurrency:      DefaultInferenceConcurrency,
		unprocessedLimit: DefaultUnprocessedLimit,
	}
}

// SetConcurrency overrides the inference concurrency cap
func (s *BatchAnalysisService) SetConcurrency(n int) {
	if n > 0 {
		s.concurrency = n
	}
}

// SetUnprocessedLimit overrides the unprocessed selection cap
func (s *BatchAnalysisService) SetUnprocessedLimit(n int) {
	if n > 0 {
		s.unprocessedLimit = n
	}
}

// RunBatch executes one orchestration run and returns its report. Per-item
// inference, fusion, and storage failures are folded into the report;
// only an empty selection or total image-inference failure aborts the run.
func (s *BatchAnalysisService) RunBatch(ctx context.Context, req BatchAnalysisRequest) (*entities.BatchReport, error) {
	if req.UserID == "" {
		return nil, apperrors.NewValidationError("user_id is required")
	}
	started := time.Now()

	images, err := s.selectImages(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, apperrors.NewNoDataError(fmt.Sprintf("no images to analyze for user %s", req.UserID))
	}

	batchTimestamp := s.resolveBatchTimestamp(req, images)
	s.publishEvent(ctx, entities.NewAnalysisEvent(req.UserID, entities.AnalysisEventBatchStarted, batchTimestamp))

	outcomes := s.inferImages(ctx, images)

	succeededImages := 0
	for _, outcome := range outcomes {
		if outcome.OK() {
			succeededImages++
		}
	}
	if succeededImages == 0 {
		s.publishEvent(ctx, entities.NewAnalysisEvent(req.UserID, entities.AnalysisEventBatchFailed, batchTimestamp))
		return nil, apperrors.NewExternalError(fmt.Sprintf("all %d image inferences failed", len(images)), nil)
	}

	soilResult := s.inferSoil(ctx, req)

	mode := entities.ModeBatchImageOnly
	if soilResult != nil {
		mode = entities.ModeBatchIntegrated
	}

	report := &entities.BatchReport{
		BatchTimestamp: batchTimestamp,
		Mode:           mode,
		Total:          len(images),
	}

	var analyzedIDs []string
	for i, img := range images {
		verdict, itemErr := s.buildAndStoreVerdict(ctx, img, outcomes[i], soilResult, batchTimestamp, i)
		if itemErr != nil {
			report.Errors = append(report.Errors, *itemErr)
			report.Failed++
			continue
		}
		report.Verdicts = append(report.Verdicts, verdict)
		report.Succeeded++
		analyzedIDs = append(analyzedIDs, img.ID)
	}

	if len(analyzedIDs) > 0 {
		if err := s.images.MarkAnalyzed(ctx, analyzedIDs); err != nil {
			log.Printf("Warning: failed to mark %d images analyzed: %v", len(analyzedIDs), err)
		}
	}

	report.DurationMS = time.Since(started).Milliseconds()
	if s.metrics != nil {
		observability.RecordBatchMetric(ctx, s.metrics, string(report.Mode), report.Total, report.Failed, time.Since(started))
	}

	completed := entities.NewAnalysisEvent(req.UserID, entities.AnalysisEventBatchCompleted, batchTimestamp)
	completed.Mode = report.Mode
	completed.Total = report.Total
	completed.Succeeded = report.Succeeded
	completed.Failed = report.Failed
	s.publishEvent(ctx, completed)

	return report, nil
}

// selectImages resolves the working set for one run. Explicit ids win over
// a batch timestamp, which wins over the unprocessed fallback.
func (s *BatchAnalysisService) selectImages(ctx context.Context, req BatchAnalysisRequest) ([]*entities.PlantImage, error) {
	if len(req.ImageIDs) > 0 {
		return s.images.GetByIDs(ctx, req.ImageIDs)
	}

	if req.BatchTimestamp != "" {
		candidates, err := s.images.ListByUser(ctx, req.UserID, batchCandidateScanLimit)
		if err != nil {
			return nil, err
		}
		matched, err := s.correlator.MatchImages(req.BatchTimestamp, candidates)
		if err != nil {
			return nil, err
		}
		sortImagesByBatchIndex(matched)
		return matched, nil
	}

	limit := req.Limit
	if limit <= 0 {
		limit = s.unprocessedLimit
	}
	return s.images.ListUnprocessed(ctx, req.UserID, limit)
}

// resolveBatchTimestamp reuses the caller's identifier, then the one the
// selected images already carry, and mints a fresh one otherwise.
func (s *BatchAnalysisService) resolveBatchTimestamp(req BatchAnalysisRequest, images []*entities.PlantImage) string {
	if req.BatchTimestamp != "" {
		return normalizeTimestampValue(req.BatchTimestamp)
	}
	for _, img := range images {
		if img.BatchTimestamp != nil && *img.BatchTimestamp != "" {
			return normalizeTimestampValue(*img.BatchTimestamp)
		}
	}
	return time.Now().UTC().Format(batchTimestampLayout)
}

// inferImages runs the image worker for every selected image with bounded
// concurrency. Outcomes land at the index of their input image.
func (s *BatchAnalysisService) inferImages(ctx context.Context, images []*entities.PlantImage) []*entities.ImageOutcome {
	outcomes := make([]*entities.ImageOutcome, len(images))

	sem := make(chan struct{}, s.concurrency)
	var wg sync.WaitGroup
	for i, img := range images {
		wg.Add(1)
		go func(i int, img *entities.PlantImage) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			start := time.Now()
			outcomes[i] = s.inference.AnalyzeImage(ctx, img)
			if s.metrics != nil {
				observability.RecordInferenceMetric(ctx, s.metrics, "image", outcomes[i].OK(), time.Since(start))
			}
		}(i, img)
	}
	wg.Wait()

	return outcomes
}

// inferSoil analyzes the owner's latest soil reading when soil-aware
// analysis was requested. Any failure downgrades the run to image-only
// rather than aborting it.
func (s *BatchAnalysisService) inferSoil(ctx context.Context, req BatchAnalysisRequest) *entities.SoilInference {
	if !req.IncludeSoil {
		return nil
	}

	reading, err := s.readings.Latest(ctx, req.UserID)
	if err != nil {
		log.Printf("soil reading unavailable for user %s, continuing image-only: %v", req.UserID, err)
		return nil
	}

	ranges, err := s.ranges.Get(ctx)
	if err != nil {
		log.Printf("Warning: failed to load soil ranges, using defaults: %v", err)
		ranges = entities.DefaultSoilOptimalRanges()
	}

	start := time.Now()
	outcome := s.inference.AnalyzeSoil(ctx, reading, ranges)
	if s.metrics != nil {
		observability.RecordInferenceMetric(ctx, s.metrics, "soil", outcome.OK(), time.Since(start))
	}
	if !outcome.OK() {
		log.Printf("Warning: soil inference failed for user %s, continuing image-only: %s", req.UserID, outcome.Failure.Reason())
		return nil
	}
	return outcome.Result
}

// buildAndStoreVerdict fuses one image outcome (with the shared soil
// result when present), stamps batch identity, and persists the verdict.
func (s *BatchAnalysisService) buildAndStoreVerdict(
	ctx context.Context,
	img *entities.PlantImage,
	outcome *entities.ImageOutcome,
	soilResult *entities.SoilInference,
	batchTimestamp string,
	index int,
) (*entities.AnalysisVerdict, *entities.BatchItemError) {
	if !outcome.OK() {
		return nil, &entities.BatchItemError{
			Index:   index,
			ImageID: img.ID,
			Stage:   entities.BatchStageInference,
			Reason:  outcome.Failure.Reason(),
		}
	}

	var verdict *entities.AnalysisVerdict
	if soilResult != nil {
		fused, err := s.fusion.Fuse(outcome.Result, soilResult, BatchWeights)
		if err != nil {
			return nil, &entities.BatchItemError{
				Index:   index,
				ImageID: img.ID,
				Stage:   entities.BatchStageFusion,
				Reason:  err.Error(),
			}
		}
		fused.Mode = entities.ModeBatchIntegrated
		verdict = fused
	} else {
		verdict = s.fusion.VerdictFromImage(outcome.Result)
		verdict.Mode = entities.ModeBatchImageOnly
	}

	imageID := img.ID
	verdict.UserID = img.UserID
	verdict.ImageID = &imageID
	verdict.BatchTimestamp = &batchTimestamp
	verdict.BatchIndex = index

	if err := s.verdicts.Create(ctx, verdict); err != nil {
		return nil, &entities.BatchItemError{
			Index:   index,
			ImageID: img.ID,
			Stage:   entities.BatchStageStorage,
			Reason:  err.Error(),
		}
	}

	if s.search != nil {
		if err := s.search.Index(ctx, verdict); err != nil {
			log.Printf("Warning: failed to index verdict %s: %v", verdict.ID, err)
		}
	}

	return verdict, nil
}

func (s *BatchAnalysisService) publishEvent(ctx context.Context, event *entities.AnalysisEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, providers.EventChannelAnalysisUpdates, event); err != nil {
		log.Printf("Warning: failed to publish %s event: %v", event.EventType, err)
	}
	if err := s.events.Publish(ctx, providers.GetUserChannel(event.UserID), event); err != nil {
		log.Printf("Warning: failed to publish %s event to user channel: %v", event.EventType, err)
	}
}

func sortImagesByBatchIndex(images []*entities.PlantImage) {
	sort.SliceStable(images, func(i, j int) bool {
		return images[i].BatchIndex < images[j].BatchIndex
	})
}
