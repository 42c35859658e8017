package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/zatekoja/cropsight-backend/internal/domain/entities"
	"github.com/zatekoja/cropsight-backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/cropsight-backend/pkg/errors"
)

// historyScanLimit bounds how many stored verdicts feed the grouping and
// timestamp-matching paths
const historyScanLimit = 500

// AnalysisHistoryService serves stored verdicts: flat lists, batch
// groupings, batch detail lookups, and search.
type AnalysisHistoryService struct {
	verdicts   repositories.VerdictRepository
	correlator *BatchCorrelator
	search     repositories.VerdictSearchRepository
}

// NewAnalysisHistoryService creates a new analysis history service. The
// search repository is optional; pass nil to always use the database.
func NewAnalysisHistoryService(verdicts repositories.VerdictRepository, correlator *BatchCorrelator, search repositories.VerdictSearchRepository) *AnalysisHistoryService {
	return &AnalysisHistoryService{
		verdicts:   verdicts,
		correlator: correlator,
		search:     search,
	}
}

// GetVerdict retrieves one verdict, scoped to its owner.
func (s *AnalysisHistoryService) GetVerdict(ctx context.Context, userID, id string) (*entities.AnalysisVerdict, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("user_id is required")
	}
	verdict, err := s.verdicts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if verdict.UserID != userID {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("analysis verdict with id %s not found", id))
	}
	return verdict, nil
}

// ListVerdicts retrieves a user's verdicts, newest first.
func (s *AnalysisHistoryService) ListVerdicts(ctx context.Context, userID string, limit int) ([]*entities.AnalysisVerdict, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("user_id is required")
	}
	return s.verdicts.ListByUser(ctx, userID, limit)
}

// GetBatchHistory groups a user's verdicts into batches, newest batch
// first. Limit caps the number of groups returned; zero means all.
func (s *AnalysisHistoryService) GetBatchHistory(ctx context.Context, userID string, limit int) ([]*entities.BatchGroup, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("user_id is required")
	}

	verdicts, err := s.verdicts.ListByUser(ctx, userID, historyScanLimit)
	if err != nil {
		return nil, err
	}

	groups := s.correlator.GroupVerdicts(verdicts)
	if limit > 0 && len(groups) > limit {
		groups = groups[:limit]
	}
	return groups, nil
}

// GetBatchDetail resolves one batch by its timestamp. The indexed exact
// match runs first; when it misses, the correlator's matching cascade
// runs over the user's recent verdicts.
func (s *AnalysisHistoryService) GetBatchDetail(ctx context.Context, userID, batchTimestamp string) (*entities.BatchGroup, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("user_id is required")
	}
	if batchTimestamp == "" {
		return nil, apperrors.NewValidationError("batch_timestamp is required")
	}

	normalized := normalizeTimestampValue(batchTimestamp)
	verdicts, err := s.verdicts.ListByBatch(ctx, userID, normalized)
	if err != nil {
		return nil, err
	}

	if len(verdicts) == 0 {
		candidates, err := s.verdicts.ListByUser(ctx, userID, historyScanLimit)
		if err != nil {
			return nil, err
		}
		verdicts, err = s.correlator.MatchVerdicts(batchTimestamp, candidates)
		if err != nil {
			return nil, err
		}
	}

	return summarizeGroup(normalized, verdicts), nil
}

// SearchVerdicts queries the search index for a user's verdicts, falling
// back to a database scan when the index is unavailable.
func (s *AnalysisHistoryService) SearchVerdicts(ctx context.Context, userID string, params repositories.VerdictSearchParams) ([]*entities.AnalysisVerdict, error) {
	if userID == "" {
		return nil, apperrors.NewValidationError("user_id is required")
	}
	params.UserID = userID
	if params.Limit <= 0 {
		params.Limit = 20
	}

	if s.search != nil {
		results, err := s.search.Search(ctx, params)
		if err == nil {
			return results, nil
		}
		log.Printf("Warning: verdict search unavailable, scanning database: %v", err)
	}

	verdicts, err := s.verdicts.ListByUser(ctx, userID, historyScanLimit)
	if err != nil {
		return nil, err
	}
	return filterVerdicts(verdicts, params), nil
}

// filterVerdicts applies search semantics in memory over a database scan
func filterVerdicts(verdicts []*entities.AnalysisVerdict, params repositories.VerdictSearchParams) []*entities.AnalysisVerdict {
	query := strings.ToLower(strings.TrimSpace(params.Query))

	matched := make([]*entities.AnalysisVerdict, 0)
	for _, v := range verdicts {
		if params.DiseaseType != "" && !strings.EqualFold(v.DiseaseType, params.DiseaseType) {
			continue
		}
		if params.OverallHealth != "" && !strings.EqualFold(v.OverallHealth, params.OverallHealth) {
			continue
		}
		if params.Mode != "" && !strings.EqualFold(string(v.Mode), params.Mode) {
			continue
		}
		if query != "" && query != "*" && !verdictMatchesQuery(v, query) {
			continue
		}
		matched = append(matched, v)
		if len(matched) == params.Limit {
			break
		}
	}
	return matched
}

func verdictMatchesQuery(v *entities.AnalysisVerdict, query string) bool {
	haystacks := []string{v.DiseaseType, v.HealthStatus, v.OverallHealth, string(v.Mode)}
	if v.SoilStatus != nil {
		haystacks = append(haystacks, *v.SoilStatus)
	}
	haystacks = append(haystacks, v.Recommendations...)
	haystacks = append(haystacks, v.SoilIssues...)

	for _, h := range haystacks {
		if strings.Contains(strings.ToLower(h), query) {
			return true
		}
	}
	return false
}
