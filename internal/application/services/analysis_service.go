package services

import (
	"context"
	"fmt"
	"log"

	"github.com/zatekoja/cropsight-backend/internal/domain/entities"
	"github.com/zatekoja/cropsight-backend/internal/domain/providers"
	"github.com/zatekoja/cropsight-backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/cropsight-backend/pkg/errors"
)

// AnalysisService runs single-pair analysis: one image, optionally fused
// with the owner's latest soil reading. Unlike batch runs, a failed image
// inference here surfaces as an error to the caller.
type AnalysisService struct {
	images    repositories.PlantImageRepository
	readings  repositories.SoilReadingRepository
	verdicts  repositories.VerdictRepository
	ranges    repositories.SoilRangeRepository
	inference providers.InferenceProvider
	fusion    *FusionService
	search    repositories.VerdictSearchRepository
	events    providers.EventBus
}

// NewAnalysisService creates a new single-pair analysis service. Search
// and events are optional; pass nil to disable.
func NewAnalysisService(
	images repositories.PlantImageRepository,
	readings repositories.SoilReadingRepository,
	verdicts repositories.VerdictRepository,
	ranges repositories.SoilRangeRepository,
	inference providers.InferenceProvider,
	fusion *FusionService,
	search repositories.VerdictSearchRepository,
	events providers.EventBus,
) *AnalysisService {
	return &AnalysisService{
		images:    images,
		readings:  readings,
		verdicts:  verdicts,
		ranges:    ranges,
		inference: inference,
		fusion:    fusion,
		search:    search,
		events:    events,
	}
}

// AnalyzeImage analyzes one image for its owner. When soil data exists and
// includeSoil is set, the verdict is fused with equal weights; otherwise
// it passes through image-only.
func (s *AnalysisService) AnalyzeImage(ctx context.Context, userID, imageID string, includeSoil bool) (*entities.AnalysisVerdict, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("user_id is required")
	}
	if imageID == "" {
		return nil, apperrors.NewValidationError("image_id is required")
	}

	img, err := s.images.GetByID(ctx, imageID)
	if err != nil {
		return nil, err
	}
	if img.UserID != userID {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("plant image with id %s not found", imageID))
	}

	outcome := s.inference.AnalyzeImage(ctx, img)
	if !outcome.OK() {
		return nil, apperrors.NewExternalError("image inference failed: "+outcome.Failure.Reason(), nil)
	}

	verdict, err := s.buildVerdict(ctx, userID, outcome.Result, includeSoil)
	if err != nil {
		return nil, err
	}

	if err := s.images.MarkAnalyzed(ctx, []string{img.ID}); err != nil {
		log.Printf("Warning: failed to mark image %s analyzed: %v", img.ID, err)
	}
	s.afterStore(ctx, verdict)

	return verdict, nil
}

// buildVerdict fuses with the latest soil reading when possible and falls
// back to an image-only verdict otherwise.
func (s *AnalysisService) buildVerdict(ctx context.Context, userID string, image *entities.ImageInference, includeSoil bool) (*entities.AnalysisVerdict, error) {
	if includeSoil {
		if soil := s.inferLatestSoil(ctx, userID); soil != nil {
			return s.fusion.FuseAndStore(ctx, image, soil, EqualWeights)
		}
	}

	verdict := s.fusion.VerdictFromImage(image)
	if err := s.verdicts.Create(ctx, verdict); err != nil {
		return nil, err
	}
	return verdict, nil
}

// inferLatestSoil returns the soil inference for the owner's most recent
// reading, or nil when no reading exists or the worker fails.
func (s *AnalysisService) inferLatestSoil(ctx context.Context, userID string) *entities.SoilInference {
	reading, err := s.readings.Latest(ctx, userID)
	if err != nil {
		log.Printf("soil reading unavailable for user %s, analyzing image-only: %v", userID, err)
		return nil
	}

	ranges, err := s.ranges.Get(ctx)
	if err != nil {
		log.Printf("Warning: failed to load soil ranges, using defaults: %v", err)
		ranges = entities.DefaultSoilOptimalRanges()
	}

	outcome := s.inference.AnalyzeSoil(ctx, reading, ranges)
	if !outcome.OK() {
		log.Printf("Warning: soil inference failed for user %s, analyzing image-only: %s", userID, outcome.Failure.Reason())
		return nil
	}
	return outcome.Result
}

// AnalyzeSoil analyzes one soil reading on its own. An empty soilID
// selects the owner's most recent reading.
func (s *AnalysisService) AnalyzeSoil(ctx context.Context, userID, soilID string) (*entities.AnalysisVerdict, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("user_id is required")
	}

	var reading *entities.SoilReading
	var err error
	if soilID != "" {
		reading, err = s.readings.GetByID(ctx, soilID)
		if err == nil && reading.UserID != userID {
			return nil, apperrors.NewNotFoundError(fmt.Sprintf("soil reading with id %s not found", soilID))
		}
	} else {
		reading, err = s.readings.Latest(ctx, userID)
	}
	if err != nil {
		return nil, err
	}

	ranges, err := s.ranges.Get(ctx)
	if err != nil {
		log.Printf("Warning: failed to load soil ranges, using defaults: %v", err)
		ranges = entities.DefaultSoilOptimalRanges()
	}

	outcome := s.inference.AnalyzeSoil(ctx, reading, ranges)
	if !outcome.OK() {
		return nil, apperrors.NewExternalError("soil inference failed: "+outcome.Failure.Reason(), nil)
	}

	verdict := s.fusion.VerdictFromSoil(outcome.Result)
	if err := s.verdicts.Create(ctx, verdict); err != nil {
		return nil, err
	}
	s.afterStore(ctx, verdict)

	return verdict, nil
}

// afterStore indexes the verdict and announces it. Both are best-effort.
func (s *AnalysisService) afterStore(ctx context.Context, verdict *entities.AnalysisVerdict) {
	if s.search != nil {
		if err := s.search.Index(ctx, verdict); err != nil {
			log.Printf("Warning: failed to index verdict %s: %v", verdict.ID, err)
		}
	}
	if s.events != nil {
		event := entities.NewAnalysisEvent(verdict.UserID, entities.AnalysisEventVerdictStored, "")
		event.Mode = verdict.Mode
		if err := s.events.Publish(ctx, providers.GetUserChannel(verdict.UserID), event); err != nil {
			log.Printf("Warning: failed to publish verdict event: %v", err)
		}
	}
}
