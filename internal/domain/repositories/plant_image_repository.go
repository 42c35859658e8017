package repositories

import (
	"context"

	"github.com/zatekoja/cropsight-backend/internal/domain/entities"
)

// PlantImageRepository defines the interface for plant image observations
type PlantImageRepository interface {
	// GetByID retrieves an image by ID
	GetByID(ctx context.Context, id string) (*entities.PlantImage, error)

	// GetByIDs retrieves multiple images by their IDs, preserving input order
	GetByIDs(ctx context.Context, ids []string) ([]*entities.PlantImage, error)

	// ListByUser retrieves a user's images, newest first
	ListByUser(ctx context.Context, userID string, limit int) ([]*entities.PlantImage, error)

	// ListUnprocessed retrieves a user's most recent pending images that
	// have no stored verdict yet, newest first
	ListUnprocessed(ctx context.Context, userID string, limit int) ([]*entities.PlantImage, error)

	// MarkAnalyzed flips the status of the given images to analyzed
	MarkAnalyzed(ctx context.Context, ids []string) error
}
