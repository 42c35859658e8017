package inference

import (
	"context"
	"time"

	"github.com/zatekoja/cropsight-backend/internal/domain/providers"
)

// MockWorker returns canned output without spawning a process. Used for
// local development and tests.
type MockWorker struct {
	Output   []byte
	Stderr   []byte
	ExitCode int
	Err      error
	Delay    time.Duration
}

var _ providers.InferenceWorker = (*MockWorker)(nil)

// Run returns the configured output after the optional delay, honoring
// context cancellation while waiting.
func (w *MockWorker) Run(ctx context.Context, payload []byte, timeout time.Duration) (*providers.WorkerOutput, error) {
	if w.Delay > 0 {
		select {
		case <-time.After(w.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if w.Err != nil {
		return nil, w.Err
	}
	return &providers.WorkerOutput{
		Stdout:   w.Output,
		Stderr:   w.Stderr,
		ExitCode: w.ExitCode,
	}, nil
}

// NewMockImageWorker returns a worker that always reports a healthy plant.
func NewMockImageWorker() *MockWorker {
	return &MockWorker{
		Output: []byte(`{
			"success": true,
			"plant_type": "Tomato",
			"tomato_type": "Roma",
			"health_status": "Healthy",
			"disease_type": "None",
			"predicted_class": "Tomato___healthy",
			"is_tomato": true,
			"confidence_score": 0.93,
			"plant_health_score": 92.0,
			"recommendations": ["Continue regular watering schedule", "Maintain current care routine"],
			"inference_time": 0.05
		}`),
	}
}

// NewMockSoilWorker returns a worker that always reports good soil.
func NewMockSoilWorker() *MockWorker {
	return &MockWorker{
		Output: []byte(`{
			"success": true,
			"soil_status": "Good",
			"soil_quality_score": 78.0,
			"confidence_score": 0.85,
			"soil_issues": [],
			"recommendations": ["Maintain current fertilization schedule"]
		}`),
	}
}
