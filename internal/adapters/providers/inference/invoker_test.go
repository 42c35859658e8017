package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/cropsight-backend/internal/domain/entities"
	"github.com/zatekoja/cropsight-backend/internal/domain/providers"
)

type fakeStore struct {
	path    string
	err     error
	cleaned bool
}

func (s *fakeStore) ResolveURL(objectPath string) string { return objectPath }

func (s *fakeStore) Download(ctx context.Context, objectPath string) (string, func(), error) {
	if s.err != nil {
		return "", nil, s.err
	}
	return s.path, func() { s.cleaned = true }, nil
}

func (s *fakeStore) Delete(ctx context.Context, objectPath string) error { return nil }

type captureWorker struct {
	MockWorker
	payload []byte
}

func (w *captureWorker) Run(ctx context.Context, payload []byte, timeout time.Duration) (*providers.WorkerOutput, error) {
	w.payload = payload
	return w.MockWorker.Run(ctx, payload, timeout)
}

func testImage() *entities.PlantImage {
	return &entities.PlantImage{
		ID:        "img-1",
		UserID:    "user-1",
		ImagePath: "user-1/leaf.jpg",
	}
}

func testReading() *entities.SoilReading {
	return &entities.SoilReading{
		ID:          "soil-1",
		UserID:      "user-1",
		PHLevel:     6.4,
		Temperature: 24,
		Moisture:    55,
		Nitrogen:    90,
		Phosphorus:  30,
		Potassium:   180,
	}
}

func TestInvoker_AnalyzeImage_Success(t *testing.T) {
	store := &fakeStore{path: "/tmp/leaf.jpg"}
	worker := &captureWorker{MockWorker: *NewMockImageWorker()}
	inv := NewInvoker(worker, nil, store, time.Second)

	outcome := inv.AnalyzeImage(context.Background(), testImage())

	require.NotNil(t, outcome)
	require.True(t, outcome.OK())
	assert.Nil(t, outcome.Failure)
	assert.Equal(t, "Healthy", outcome.Result.HealthStatus)
	assert.Equal(t, 92.0, outcome.Result.PlantHealthScore)
	assert.Equal(t, "user-1", outcome.Result.UserID, "ids are stamped when the worker omits them")
	assert.Equal(t, "img-1", outcome.Result.ImageID)
	assert.True(t, store.cleaned, "scratch file should be cleaned up")

	var req map[string]interface{}
	require.NoError(t, json.Unmarshal(worker.payload, &req))
	assert.Equal(t, "/tmp/leaf.jpg", req["image_path"])
	assert.Equal(t, "user-1", req["user_id"])
	assert.Equal(t, "img-1", req["image_id"])
}

func TestInvoker_AnalyzeImage_DownloadFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("object store returned status 404")}
	inv := NewInvoker(NewMockImageWorker(), nil, store, time.Second)

	outcome := inv.AnalyzeImage(context.Background(), testImage())

	require.NotNil(t, outcome)
	assert.False(t, outcome.OK())
	require.NotNil(t, outcome.Failure)
	assert.Equal(t, entities.FailureDownload, outcome.Failure.Kind)
	require.NotNil(t, outcome.Result)
	assert.Equal(t, entities.HealthStatusUnknown, outcome.Result.HealthStatus)
	assert.Equal(t, "user-1", outcome.Result.UserID)
	assert.Equal(t, "img-1", outcome.Result.ImageID)
}

func TestInvoker_AnalyzeImage_NonZeroExit(t *testing.T) {
	store := &fakeStore{path: "/tmp/leaf.jpg"}
	worker := &MockWorker{
		ExitCode: 1,
		Stderr:   []byte("Traceback (most recent call last):\n  model load failed\n"),
	}
	inv := NewInvoker(worker, nil, store, time.Second)

	outcome := inv.AnalyzeImage(context.Background(), testImage())

	assert.False(t, outcome.OK())
	require.NotNil(t, outcome.Failure)
	assert.Equal(t, entities.FailureExit, outcome.Failure.Kind)
	assert.Contains(t, outcome.Failure.Detail, "status 1")
	assert.Contains(t, outcome.Failure.Detail, "model load failed")
	assert.True(t, store.cleaned)
}

func TestInvoker_AnalyzeImage_Timeout(t *testing.T) {
	store := &fakeStore{path: "/tmp/leaf.jpg"}
	worker := &MockWorker{
		Err: fmt.Errorf("worker timed out after 1s: %w", context.DeadlineExceeded),
	}
	inv := NewInvoker(worker, nil, store, time.Second)

	outcome := inv.AnalyzeImage(context.Background(), testImage())

	assert.False(t, outcome.OK())
	require.NotNil(t, outcome.Failure)
	assert.Equal(t, entities.FailureTimeout, outcome.Failure.Kind)
	assert.True(t, store.cleaned)
}

func TestInvoker_AnalyzeImage_UnparseableOutput(t *testing.T) {
	store := &fakeStore{path: "/tmp/leaf.jpg"}
	worker := &MockWorker{Output: []byte("model warming up...\nno record here")}
	inv := NewInvoker(worker, nil, store, time.Second)

	outcome := inv.AnalyzeImage(context.Background(), testImage())

	assert.False(t, outcome.OK())
	require.NotNil(t, outcome.Failure)
	assert.Equal(t, entities.FailureParse, outcome.Failure.Kind)
	assert.True(t, store.cleaned)
}

func TestInvoker_AnalyzeImage_WorkerReportedFailure(t *testing.T) {
	store := &fakeStore{path: "/tmp/leaf.jpg"}
	worker := &MockWorker{Output: []byte(`{"success": false, "error": "Image file not found: /tmp/leaf.jpg"}`)}
	inv := NewInvoker(worker, nil, store, time.Second)

	outcome := inv.AnalyzeImage(context.Background(), testImage())

	assert.False(t, outcome.OK())
	require.NotNil(t, outcome.Failure)
	assert.Equal(t, entities.FailureWorker, outcome.Failure.Kind)
	assert.Contains(t, outcome.Failure.Detail, "Image file not found")
}

func TestInvoker_AnalyzeSoil_Success(t *testing.T) {
	worker := &captureWorker{MockWorker: *NewMockSoilWorker()}
	inv := NewInvoker(nil, worker, &fakeStore{}, time.Second)

	outcome := inv.AnalyzeSoil(context.Background(), testReading(), nil)

	require.True(t, outcome.OK())
	assert.Equal(t, "Good", outcome.Result.SoilStatus)
	assert.Equal(t, 78.0, outcome.Result.SoilQualityScore)

	var req map[string]interface{}
	require.NoError(t, json.Unmarshal(worker.payload, &req))
	assert.Equal(t, "soil-1", req["soil_id"])

	soilData, ok := req["soil_data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 6.4, soilData["ph_level"])

	ranges, ok := req["optimal_ranges"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, ranges, "moisture_threshold", "nil ranges should fall back to defaults")
}

func TestInvoker_AnalyzeSoil_Timeout(t *testing.T) {
	worker := &MockWorker{Delay: time.Second}
	inv := NewInvoker(nil, worker, &fakeStore{}, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	outcome := inv.AnalyzeSoil(ctx, testReading(), entities.DefaultSoilOptimalRanges())

	assert.False(t, outcome.OK())
	require.NotNil(t, outcome.Failure)
	assert.Equal(t, entities.FailureTimeout, outcome.Failure.Kind)
}

func TestDecodeWorkerRecord(t *testing.T) {
	tests := []struct {
		name    string
		stdout  string
		wantErr bool
		want    string
	}{
		{
			name:   "clean record",
			stdout: `{"success": true, "health_status": "Healthy"}`,
			want:   "Healthy",
		},
		{
			name:   "record surrounded by log noise",
			stdout: "2024-01-01 INFO loading model\n{\"success\": true, \"health_status\": \"Moderate\"}\ndone",
			want:   "Moderate",
		},
		{
			name:   "braces inside string values",
			stdout: `prefix {"success": true, "health_status": "Healthy", "error": "brace } in { text"} suffix`,
			want:   "Healthy",
		},
		{
			name:   "unbalanced brace before record",
			stdout: `progress {12% {"success": true, "health_status": "Critical"}`,
			want:   "Critical",
		},
		{
			name:    "no json at all",
			stdout:  "no structured output",
			wantErr: true,
		},
		{
			name:    "empty output",
			stdout:  "   \n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var result entities.ImageInference
			err := decodeWorkerRecord([]byte(tt.stdout), &result)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, result.HealthStatus)
		})
	}
}
