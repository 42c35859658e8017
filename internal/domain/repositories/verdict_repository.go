package repositories

import (
	"context"

	"github.com/zatekoja/cropsight-backend/internal/domain/entities"
)

// VerdictRepository defines the interface for stored analysis verdicts
type VerdictRepository interface {
	// Create persists a verdict and sets the store-assigned ID on it
	Create(ctx context.Context, verdict *entities.AnalysisVerdict) error

	// GetByID retrieves a verdict by ID
	GetByID(ctx context.Context, id string) (*entities.AnalysisVerdict, error)

	// ListByUser retrieves a user's verdicts, newest first
	ListByUser(ctx context.Context, userID string, limit int) ([]*entities.AnalysisVerdict, error)

	// ListByBatch retrieves the verdicts recorded under a batch timestamp,
	// ordered by batch index
	ListByBatch(ctx context.Context, userID, batchTimestamp string) ([]*entities.AnalysisVerdict, error)

	// ListPage retrieves one page of all stored verdicts ordered by ID.
	// Index rebuilds walk the table with it.
	ListPage(ctx context.Context, limit, offset int) ([]*entities.AnalysisVerdict, error)
}

// VerdictSearchParams defines parameters for searching verdicts
type VerdictSearchParams struct {
	Query         string `json:"query"`
	UserID        string `json:"user_id,omitempty"`
	DiseaseType   string `json:"disease_type,omitempty"`
	OverallHealth string `json:"overall_health,omitempty"`
	Mode          string `json:"mode,omitempty"`
	Limit         int    `json:"limit,omitempty"`
	Offset        int    `json:"offset,omitempty"`
}

// VerdictSearchRepository defines the interface for the verdict search index
type VerdictSearchRepository interface {
	// Index adds or updates a verdict in the search index
	Index(ctx context.Context, verdict *entities.AnalysisVerdict) error

	// IndexBatch adds or updates multiple verdicts in the search index
	IndexBatch(ctx context.Context, verdicts []*entities.AnalysisVerdict) error

	// Search performs a full-text search over indexed verdicts
	Search(ctx context.Context, params VerdictSearchParams) ([]*entities.AnalysisVerdict, error)

	// Delete removes a verdict from the search index
	Delete(ctx context.Context, id string) error
}
