package inference

import (
	"fmt"

	"github.com/zatekoja/cropsight-backend/internal/domain/providers"
	"github.com/zatekoja/cropsight-backend/pkg/config"
)

// NewInferenceProvider builds the inference provider selected by
// configuration. The "script" provider requires both worker scripts to be
// present; "mock" serves canned results for development.
func NewInferenceProvider(cfg config.InferenceConfig, store providers.ObjectStore) (providers.InferenceProvider, error) {
	switch cfg.Provider {
	case "mock":
		return NewInvoker(NewMockImageWorker(), NewMockSoilWorker(), store, cfg.Timeout), nil
	case "script", "":
		imageWorker, err := NewScriptWorker(cfg.Interpreter, cfg.ImageScript)
		if err != nil {
			return nil, fmt.Errorf("image worker: %w", err)
		}
		soilWorker, err := NewScriptWorker(cfg.Interpreter, cfg.SoilScript)
		if err != nil {
			return nil, fmt.Errorf("soil worker: %w", err)
		}
		return NewInvoker(imageWorker, soilWorker, store, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown inference provider %q", cfg.Provider)
	}
}
