package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/cropsight-backend/internal/domain/entities"
	"github.com/zatekoja/cropsight-backend/internal/domain/providers"
	apperrors "github.com/zatekoja/cropsight-backend/pkg/errors"
)

type fakePlantImageRepo struct {
	images  []*entities.PlantImage
	listErr error
	marked  []string
	markErr error
}

func (r *fakePlantImageRepo) GetByID(ctx context.Context, id string) (*entities.PlantImage, error) {
	for _, img := range r.images {
		if img.ID == id {
			return img, nil
		}
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("plant image with id %s not found", id))
}

func (r *fakePlantImageRepo) GetByIDs(ctx context.Context, ids []string) ([]*entities.PlantImage, error) {
	var result []*entities.PlantImage
	for _, id := range ids {
		img, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		result = append(result, img)
	}
	return result, nil
}

func (r *fakePlantImageRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*entities.PlantImage, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var result []*entities.PlantImage
	for _, img := range r.images {
		if img.UserID == userID {
			result = append(result, img)
		}
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

func (r *fakePlantImageRepo) ListUnprocessed(ctx context.Context, userID string, limit int) ([]*entities.PlantImage, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var result []*entities.PlantImage
	for _, img := range r.images {
		if img.UserID == userID && img.Status == entities.ImageStatusPending {
			result = append(result, img)
		}
		if len(result) == limit {
			break
		}
	}
	return result, nil
}

func (r *fakePlantImageRepo) MarkAnalyzed(ctx context.Context, ids []string) error {
	if r.markErr != nil {
		return r.markErr
	}
	r.marked = append(r.marked, ids...)
	return nil
}

type fakeSoilReadingRepo struct {
	latest *entities.SoilReading
	err    error
}

func (r *fakeSoilReadingRepo) GetByID(ctx context.Context, id string) (*entities.SoilReading, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.latest != nil && r.latest.ID == id {
		return r.latest, nil
	}
	return nil, apperrors.NewNotFoundError(fmt.Sprintf("soil reading with id %s not found", id))
}

func (r *fakeSoilReadingRepo) Latest(ctx context.Context, userID string) (*entities.SoilReading, error) {
	if r.err != nil {
		return nil, r.err
	}
	if r.latest == nil {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no soil readings found for user %s", userID))
	}
	return r.latest, nil
}

func (r *fakeSoilReadingRepo) ListByUser(ctx context.Context, userID string, limit int) ([]*entities.SoilReading, error) {
	if r.latest == nil {
		return nil, nil
	}
	return []*entities.SoilReading{r.latest}, nil
}

type fakeSoilRangeRepo struct{}

func (r *fakeSoilRangeRepo) Get(ctx context.Context) (*entities.SoilOptimalRanges, error) {
	return entities.DefaultSoilOptimalRanges(), nil
}

func (r *fakeSoilRangeRepo) Save(ctx context.Context, ranges *entities.SoilOptimalRanges) error {
	return nil
}

// fakeInferenceProvider returns scripted outcomes per image id and a single
// shared soil outcome. Unscripted images succeed with canned scores.
type fakeInferenceProvider struct {
	mu            sync.Mutex
	imageOutcomes map[string]*entities.ImageOutcome
	soilOutcome   *entities.SoilOutcome
	imageCalls    []string
	soilCalls     int
}

func (p *fakeInferenceProvider) AnalyzeImage(ctx context.Context, image *entities.PlantImage) *entities.ImageOutcome {
	p.mu.Lock()
	p.imageCalls = append(p.imageCalls, image.ID)
	p.mu.Unlock()

	if outcome, ok := p.imageOutcomes[image.ID]; ok {
		return outcome
	}
	return &entities.ImageOutcome{
		Result: &entities.ImageInference{
			Success:          true,
			UserID:           image.UserID,
			ImageID:          image.ID,
			HealthStatus:     entities.HealthStatusHealthy,
			DiseaseType:      "None",
			ConfidenceScore:  0.9,
			PlantHealthScore: 90,
			Recommendations:  []string{"Continue current care routine"},
		},
	}
}

func (p *fakeInferenceProvider) AnalyzeSoil(ctx context.Context, reading *entities.SoilReading, ranges *entities.SoilOptimalRanges) *entities.SoilOutcome {
	p.mu.Lock()
	p.soilCalls++
	p.mu.Unlock()

	if p.soilOutcome != nil {
		return p.soilOutcome
	}
	return &entities.SoilOutcome{
		Result: &entities.SoilInference{
			Success:          true,
			UserID:           reading.UserID,
			SoilID:           reading.ID,
			SoilStatus:       entities.SoilStatusGood,
			ConfidenceScore:  0.8,
			SoilQualityScore: 75,
			Recommendations:  []string{"Maintain current fertilization schedule"},
			SoilIssues:       []string{},
		},
	}
}

type captureEventBus struct {
	mu     sync.Mutex
	events []*entities.AnalysisEvent
	byChan map[string][]*entities.AnalysisEvent
}

func newCaptureEventBus() *captureEventBus {
	return &captureEventBus{byChan: make(map[string][]*entities.AnalysisEvent)}
}

func (b *captureEventBus) Publish(ctx context.Context, channel string, event *entities.AnalysisEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, event)
	b.byChan[channel] = append(b.byChan[channel], event)
	return nil
}

func (b *captureEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.AnalysisEvent, error) {
	return make(chan *entities.AnalysisEvent), nil
}

func (b *captureEventBus) Unsubscribe(ctx context.Context, channel string) error { return nil }

func (b *captureEventBus) Close() error { return nil }

func (b *captureEventBus) typesOn(channel string) []entities.AnalysisEventType {
	b.mu.Lock()
	defer b.mu.Unlock()
	var types []entities.AnalysisEventType
	for _, e := range b.byChan[channel] {
		types = append(types, e.EventType)
	}
	return types
}

func pendingImage(id, userID string, index int, batchTimestamp string) *entities.PlantImage {
	img := &entities.PlantImage{
		ID:         id,
		UserID:     userID,
		ImagePath:  "plants/" + id + ".jpg",
		BatchIndex: index,
		Status:     entities.ImageStatusPending,
	}
	if batchTimestamp != "" {
		img.BatchTimestamp = &batchTimestamp
	}
	return img
}

type batchFixture struct {
	images   *fakePlantImageRepo
	readings *fakeSoilReadingRepo
	verdicts *fakeVerdictRepo
	provider *fakeInferenceProvider
	bus      *captureEventBus
	service  *BatchAnalysisService
}

func newBatchFixture(images ...*entities.PlantImage) *batchFixture {
	f := &batchFixture{
		images: &fakePlantImageRepo{images: images},
		readings: &fakeSoilReadingRepo{latest: &entities.SoilReading{
			ID:       "soil-1",
			UserID:   "user-1",
			PHLevel:  6.5,
			Moisture: 55,
		}},
		verdicts: &fakeVerdictRepo{},
		provider: &fakeInferenceProvider{imageOutcomes: map[string]*entities.ImageOutcome{}},
		bus:      newCaptureEventBus(),
	}
	f.service = NewBatchAnalysisService(
		f.images,
		f.readings,
		f.verdicts,
		&fakeSoilRangeRepo{},
		f.provider,
		NewFusionService(f.verdicts),
		NewBatchCorrelator(),
		nil,
		f.bus,
		nil,
	)
	return f
}

func TestRunBatch_IntegratedSuccess(t *testing.T) {
	f := newBatchFixture(
		pendingImage("img-1", "user-1", 0, ""),
		pendingImage("img-2", "user-1", 1, ""),
		pendingImage("img-3", "user-1", 2, ""),
	)
	f.service.SetConcurrency(2)

	report, err := f.service.RunBatch(context.Background(), BatchAnalysisRequest{
		UserID:      "user-1",
		ImageIDs:    []string{"img-1", "img-2", "img-3"},
		IncludeSoil: true,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 3, report.Succeeded)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, entities.ModeBatchIntegrated, report.Mode)
	assert.NotEmpty(t, report.BatchTimestamp)
	require.Len(t, report.Verdicts, 3)

	for i, verdict := range report.Verdicts {
		assert.Equal(t, i, verdict.BatchIndex)
		assert.Equal(t, "user-1", verdict.UserID)
		require.NotNil(t, verdict.ImageID)
		assert.Equal(t, fmt.Sprintf("img-%d", i+1), *verdict.ImageID)
		require.NotNil(t, verdict.BatchTimestamp)
		assert.Equal(t, report.BatchTimestamp, *verdict.BatchTimestamp)
		assert.True(t, verdict.HasSoilData)
		assert.Equal(t, entities.ModeBatchIntegrated, verdict.Mode)
	}

	// One worker pass per image, one shared soil pass
	assert.Len(t, f.provider.imageCalls, 3)
	assert.Equal(t, 1, f.provider.soilCalls)
	assert.ElementsMatch(t, []string{"img-1", "img-2", "img-3"}, f.images.marked)

	assert.Equal(t,
		[]entities.AnalysisEventType{entities.AnalysisEventBatchStarted, entities.AnalysisEventBatchCompleted},
		f.bus.typesOn(providers.EventChannelAnalysisUpdates))
	assert.Equal(t,
		[]entities.AnalysisEventType{entities.AnalysisEventBatchStarted, entities.AnalysisEventBatchCompleted},
		f.bus.typesOn(providers.GetUserChannel("user-1")))
}

func TestRunBatch_PartialFailureIsIsolated(t *testing.T) {
	f := newBatchFixture(
		pendingImage("img-1", "user-1", 0, ""),
		pendingImage("img-2", "user-1", 1, ""),
		pendingImage("img-3", "user-1", 2, ""),
	)
	f.provider.imageOutcomes["img-2"] = entities.FallbackImageOutcome(
		"user-1", "img-2", entities.FailureTimeout, "worker timed out after 1m0s")

	report, err := f.service.RunBatch(context.Background(), BatchAnalysisRequest{
		UserID:   "user-1",
		ImageIDs: []string{"img-1", "img-2", "img-3"},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Errors, 1)
	assert.Equal(t, 1, report.Errors[0].Index)
	assert.Equal(t, "img-2", report.Errors[0].ImageID)
	assert.Equal(t, entities.BatchStageInference, report.Errors[0].Stage)
	assert.Contains(t, report.Errors[0].Reason, "timeout")

	// Surviving verdicts keep their selection positions
	require.Len(t, report.Verdicts, 2)
	assert.Equal(t, 0, report.Verdicts[0].BatchIndex)
	assert.Equal(t, 2, report.Verdicts[1].BatchIndex)

	assert.ElementsMatch(t, []string{"img-1", "img-3"}, f.images.marked)
}

func TestRunBatch_AllImageFailuresAbort(t *testing.T) {
	f := newBatchFixture(
		pendingImage("img-1", "user-1", 0, ""),
		pendingImage("img-2", "user-1", 1, ""),
	)
	f.provider.imageOutcomes["img-1"] = entities.FallbackImageOutcome("user-1", "img-1", entities.FailureExit, "worker exited with status 1")
	f.provider.imageOutcomes["img-2"] = entities.FallbackImageOutcome("user-1", "img-2", entities.FailureDownload, "object store returned status 404")

	_, err := f.service.RunBatch(context.Background(), BatchAnalysisRequest{
		UserID:   "user-1",
		ImageIDs: []string{"img-1", "img-2"},
	})

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrorTypeExternal, appErr.Type)
	assert.Contains(t, err.Error(), "all 2 image inferences failed")

	assert.Empty(t, f.verdicts.created)
	assert.Empty(t, f.images.marked)
	assert.Equal(t,
		[]entities.AnalysisEventType{entities.AnalysisEventBatchStarted, entities.AnalysisEventBatchFailed},
		f.bus.typesOn(providers.EventChannelAnalysisUpdates))
}

func TestRunBatch_SoilFailureDowngradesToImageOnly(t *testing.T) {
	f := newBatchFixture(pendingImage("img-1", "user-1", 0, ""))
	f.provider.soilOutcome = entities.FallbackSoilOutcome("user-1", "soil-1", entities.FailureParse, "no JSON object found in worker output")

	report, err := f.service.RunBatch(context.Background(), BatchAnalysisRequest{
		UserID:      "user-1",
		ImageIDs:    []string{"img-1"},
		IncludeSoil: true,
	})
	require.NoError(t, err)

	assert.Equal(t, entities.ModeBatchImageOnly, report.Mode)
	require.Len(t, report.Verdicts, 1)
	assert.False(t, report.Verdicts[0].HasSoilData)
	assert.Nil(t, report.Verdicts[0].SoilID)
	assert.Equal(t, entities.ModeBatchImageOnly, report.Verdicts[0].Mode)
}

func TestRunBatch_MissingSoilReadingDowngrades(t *testing.T) {
	f := newBatchFixture(pendingImage("img-1", "user-1", 0, ""))
	f.readings.latest = nil

	report, err := f.service.RunBatch(context.Background(), BatchAnalysisRequest{
		UserID:      "user-1",
		ImageIDs:    []string{"img-1"},
		IncludeSoil: true,
	})
	require.NoError(t, err)

	assert.Equal(t, entities.ModeBatchImageOnly, report.Mode)
	assert.Equal(t, 0, f.provider.soilCalls)
}

func TestRunBatch_EmptySelectionIsNoData(t *testing.T) {
	f := newBatchFixture()

	_, err := f.service.RunBatch(context.Background(), BatchAnalysisRequest{UserID: "user-1"})

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrorTypeNoData, appErr.Type)
	assert.Empty(t, f.bus.events, "no events for a run that never started")
}

func TestRunBatch_RequiresUserID(t *testing.T) {
	f := newBatchFixture()

	_, err := f.service.RunBatch(context.Background(), BatchAnalysisRequest{})

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrorTypeValidation, appErr.Type)
}

func TestRunBatch_BatchTimestampSelectionSortsByStoredIndex(t *testing.T) {
	ts := "2024-01-02T10:00:00Z"
	f := newBatchFixture(
		pendingImage("img-c", "user-1", 2, ts),
		pendingImage("img-a", "user-1", 0, ts),
		pendingImage("img-b", "user-1", 1, ts),
		pendingImage("img-other", "user-1", 0, "2024-03-09T08:00:00Z"),
	)

	report, err := f.service.RunBatch(context.Background(), BatchAnalysisRequest{
		UserID:         "user-1",
		BatchTimestamp: "2024-01-02T10:00:00+00:00",
	})
	require.NoError(t, err)

	assert.Equal(t, "2024-01-02T10:00:00+00:00", report.BatchTimestamp)
	require.Len(t, report.Verdicts, 3)

	var gotOrder []string
	for i, verdict := range report.Verdicts {
		require.NotNil(t, verdict.ImageID)
		gotOrder = append(gotOrder, *verdict.ImageID)
		assert.Equal(t, i, verdict.BatchIndex)
	}
	assert.Equal(t, []string{"img-a", "img-b", "img-c"}, gotOrder)
}

func TestRunBatch_UnknownBatchTimestampIsNotFound(t *testing.T) {
	f := newBatchFixture(pendingImage("img-1", "user-1", 0, "2024-01-02T10:00:00Z"))

	_, err := f.service.RunBatch(context.Background(), BatchAnalysisRequest{
		UserID:         "user-1",
		BatchTimestamp: "2025-06-15T09:00:00+00:00",
	})

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrorTypeNotFound, appErr.Type)
	assert.Contains(t, err.Error(), "available: 2024-01-02T10:00:00Z")
}

func TestRunBatch_StorageFailuresStayPerItem(t *testing.T) {
	f := newBatchFixture(
		pendingImage("img-1", "user-1", 0, ""),
		pendingImage("img-2", "user-1", 1, ""),
	)
	f.verdicts.err = apperrors.NewStorageError("max retry attempts (2) exceeded", nil)

	report, err := f.service.RunBatch(context.Background(), BatchAnalysisRequest{
		UserID:   "user-1",
		ImageIDs: []string{"img-1", "img-2"},
	})
	require.NoError(t, err, "storage failures never abort a run whose inferences succeeded")

	assert.Equal(t, 0, report.Succeeded)
	assert.Equal(t, 2, report.Failed)
	require.Len(t, report.Errors, 2)
	for _, itemErr := range report.Errors {
		assert.Equal(t, entities.BatchStageStorage, itemErr.Stage)
	}
	assert.Empty(t, f.images.marked)
}

func TestRunBatch_UnprocessedFallbackHonorsLimit(t *testing.T) {
	f := newBatchFixture(
		pendingImage("img-1", "user-1", 0, ""),
		pendingImage("img-2", "user-1", 1, ""),
		pendingImage("img-3", "user-1", 2, ""),
	)

	report, err := f.service.RunBatch(context.Background(), BatchAnalysisRequest{
		UserID: "user-1",
		Limit:  2,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.Total)
	assert.Len(t, f.provider.imageCalls, 2)
}
