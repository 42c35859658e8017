package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/zatekoja/cropsight-backend/internal/domain/entities"
	"github.com/zatekoja/cropsight-backend/internal/domain/providers"
)

// DefaultWorkerTimeout bounds a single worker invocation.
const DefaultWorkerTimeout = 60 * time.Second

// maxDiagnosticLen caps how much worker output is carried into an error
// reason.
const maxDiagnosticLen = 500

// Invoker drives external worker processes and translates their raw output
// into tagged outcomes. It never returns an error to callers: every failure
// path produces a deterministic fallback result instead. The Invoker holds
// no mutable state and is safe for concurrent use.
type Invoker struct {
	imageWorker providers.InferenceWorker
	soilWorker  providers.InferenceWorker
	store       providers.ObjectStore
	timeout     time.Duration
}

var _ providers.InferenceProvider = (*Invoker)(nil)

// NewInvoker creates an inference provider over the given workers. A zero
// timeout falls back to DefaultWorkerTimeout.
func NewInvoker(imageWorker, soilWorker providers.InferenceWorker, store providers.ObjectStore, timeout time.Duration) *Invoker {
	if timeout <= 0 {
		timeout = DefaultWorkerTimeout
	}
	return &Invoker{
		imageWorker: imageWorker,
		soilWorker:  soilWorker,
		store:       store,
		timeout:     timeout,
	}
}

// AnalyzeImage downloads the image into a scratch file, runs the image
// worker against it, and parses the worker's record. The scratch file is
// removed on every exit path.
func (inv *Invoker) AnalyzeImage(ctx context.Context, image *entities.PlantImage) *entities.ImageOutcome {
	localPath, cleanup, err := inv.store.Download(ctx, image.ImagePath)
	if err != nil {
		log.Printf("image download failed for %s: %v", image.ID, err)
		return entities.FallbackImageOutcome(image.UserID, image.ID, entities.FailureDownload, err.Error())
	}
	defer cleanup()

	payload, err := json.Marshal(map[string]interface{}{
		"image_path": localPath,
		"user_id":    image.UserID,
		"image_id":   image.ID,
	})
	if err != nil {
		return entities.FallbackImageOutcome(image.UserID, image.ID, entities.FailureParse, "failed to encode worker request: "+err.Error())
	}

	output, err := inv.imageWorker.Run(ctx, payload, inv.timeout)
	if err != nil {
		return entities.FallbackImageOutcome(image.UserID, image.ID, runFailureKind(err), err.Error())
	}
	if output.ExitCode != 0 {
		return entities.FallbackImageOutcome(image.UserID, image.ID, entities.FailureExit, exitDetail(output))
	}

	var result entities.ImageInference
	if err := decodeWorkerRecord(output.Stdout, &result); err != nil {
		log.Printf("image worker output unparseable for %s: %v", image.ID, err)
		return entities.FallbackImageOutcome(image.UserID, image.ID, entities.FailureParse, err.Error())
	}
	if result.UserID == "" {
		result.UserID = image.UserID
	}
	if result.ImageID == "" {
		result.ImageID = image.ID
	}

	outcome := &entities.ImageOutcome{Result: &result}
	if !result.Success {
		outcome.Failure = &entities.InferenceFailure{Kind: entities.FailureWorker, Detail: result.Error}
	}
	return outcome
}

// AnalyzeSoil runs the soil worker against one reading. Nil ranges fall
// back to the crop defaults.
func (inv *Invoker) AnalyzeSoil(ctx context.Context, reading *entities.SoilReading, ranges *entities.SoilOptimalRanges) *entities.SoilOutcome {
	if ranges == nil {
		ranges = entities.DefaultSoilOptimalRanges()
	}

	payload, err := json.Marshal(map[string]interface{}{
		"soil_data":      reading.Params(),
		"optimal_ranges": ranges.WorkerPayload(),
		"user_id":        reading.UserID,
		"soil_id":        reading.ID,
	})
	if err != nil {
		return entities.FallbackSoilOutcome(reading.UserID, reading.ID, entities.FailureParse, "failed to encode worker request: "+err.Error())
	}

	output, err := inv.soilWorker.Run(ctx, payload, inv.timeout)
	if err != nil {
		return entities.FallbackSoilOutcome(reading.UserID, reading.ID, runFailureKind(err), err.Error())
	}
	if output.ExitCode != 0 {
		return entities.FallbackSoilOutcome(reading.UserID, reading.ID, entities.FailureExit, exitDetail(output))
	}

	var result entities.SoilInference
	if err := decodeWorkerRecord(output.Stdout, &result); err != nil {
		log.Printf("soil worker output unparseable for %s: %v", reading.ID, err)
		return entities.FallbackSoilOutcome(reading.UserID, reading.ID, entities.FailureParse, err.Error())
	}
	if result.UserID == "" {
		result.UserID = reading.UserID
	}
	if result.SoilID == "" {
		result.SoilID = reading.ID
	}

	outcome := &entities.SoilOutcome{Result: &result}
	if !result.Success {
		outcome.Failure = &entities.InferenceFailure{Kind: entities.FailureWorker, Detail: result.Error}
	}
	return outcome
}

func runFailureKind(err error) entities.FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return entities.FailureTimeout
	}
	return entities.FailureExit
}

func exitDetail(output *providers.WorkerOutput) string {
	detail := strings.TrimSpace(string(output.Stderr))
	if detail == "" {
		detail = strings.TrimSpace(string(output.Stdout))
	}
	if len(detail) > maxDiagnosticLen {
		detail = detail[:maxDiagnosticLen]
	}
	return fmt.Sprintf("worker exited with status %d: %s", output.ExitCode, detail)
}

// decodeWorkerRecord parses the single JSON record a worker prints to
// stdout. Workers occasionally emit stray text around the record, so a
// failed strict parse falls back to extracting the first balanced JSON
// object embedded in the stream.
func decodeWorkerRecord(stdout []byte, out interface{}) error {
	trimmed := bytes.TrimSpace(stdout)
	if len(trimmed) == 0 {
		return errors.New("worker produced no output")
	}

	if err := json.Unmarshal(trimmed, out); err == nil {
		return nil
	}

	fragment, ok := extractJSONObject(trimmed)
	if !ok {
		snippet := trimmed
		if len(snippet) > maxDiagnosticLen {
			snippet = snippet[:maxDiagnosticLen]
		}
		return fmt.Errorf("no JSON record in worker output: %s", snippet)
	}
	if err := json.Unmarshal(fragment, out); err != nil {
		return fmt.Errorf("failed to parse worker record: %w", err)
	}
	return nil
}

// extractJSONObject returns the first balanced top-level object in b,
// skipping braces inside JSON strings. Candidate start positions advance
// past objects that never close.
func extractJSONObject(b []byte) ([]byte, bool) {
	offset := 0
	for {
		idx := bytes.IndexByte(b[offset:], '{')
		if idx < 0 {
			return nil, false
		}
		start := offset + idx

		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(b); i++ {
			c := b[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return b[start : i+1], true
				}
			}
		}

		offset = start + 1
	}
}
