package repositories

import (
	"context"

	"github.com/zatekoja/cropsight-backend/internal/domain/entities"
)

// SoilRangeRepository defines the interface for configured optimal soil ranges
type SoilRangeRepository interface {
	// Get retrieves the active optimal ranges, falling back to the
	// built-in defaults when none are configured
	Get(ctx context.Context) (*entities.SoilOptimalRanges, error)

	// Save persists a new set of optimal ranges
	Save(ctx context.Context, ranges *entities.SoilOptimalRanges) error
}
