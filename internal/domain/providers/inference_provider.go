package providers

import (
	"context"
	"time"

	"github.com/zatekoja/cropsight-backend/internal/domain/entities"
)

// WorkerOutput is the raw result of a single worker invocation
type WorkerOutput struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// InferenceWorker runs one model invocation against a serialized payload.
// Implementations return an error only when the process could not be
// started or the timeout elapsed; a non-zero exit is reported through
// ExitCode with Stderr populated so callers can classify it.
type InferenceWorker interface {
	Run(ctx context.Context, payload []byte, timeout time.Duration) (*WorkerOutput, error)
}

// InferenceProvider defines the interface for running model inference
// over observations. Implementations never return an error: every
// failure is folded into the outcome's fallback result and failure tag.
type InferenceProvider interface {
	// AnalyzeImage runs plant disease inference over a single image
	AnalyzeImage(ctx context.Context, image *entities.PlantImage) *entities.ImageOutcome

	// AnalyzeSoil runs soil quality inference over a single reading
	AnalyzeSoil(ctx context.Context, reading *entities.SoilReading, ranges *entities.SoilOptimalRanges) *entities.SoilOutcome
}
