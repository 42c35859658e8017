package repositories

import (
	"context"

	"github.com/zatekoja/cropsight-backend/internal/domain/entities"
)

// SoilReadingRepository defines the interface for soil sensor readings
type SoilReadingRepository interface {
	// GetByID retrieves a reading by ID
	GetByID(ctx context.Context, id string) (*entities.SoilReading, error)

	// Latest retrieves a user's most recent reading
	Latest(ctx context.Context, userID string) (*entities.SoilReading, error)

	// ListByUser retrieves a user's readings, newest first
	ListByUser(ctx context.Context, userID string, limit int) ([]*entities.SoilReading, error)
}
