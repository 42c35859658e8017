package services

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/zatekoja/cropsight-backend/internal/domain/entities"
	apperrors "github.com/zatekoja/cropsight-backend/pkg/errors"
)

// LegacyGroupSuffix marks history groups formed from verdicts written
// before batch timestamps existed. Those verdicts group by prediction day.
const LegacyGroupSuffix = "_legacy"

// maxCandidateHints caps how many stored identifiers a not-found error
// lists for diagnostics.
const maxCandidateHints = 5

var fractionalSecondsPattern = regexp.MustCompile(`\.\d+`)

// BatchCorrelator resolves caller-supplied batch identifiers against
// stored records whose producers disagree on timezone suffix and
// fractional-second precision, and groups flat verdict lists into batches
// for history views.
type BatchCorrelator struct{}

// NewBatchCorrelator creates a new batch correlator
func NewBatchCorrelator() *BatchCorrelator {
	return &BatchCorrelator{}
}

// NormalizeTimestamp rewrites a trailing "Z" into "+00:00" so identifiers
// from different producers compare equal. Idempotent; nil maps to nil.
func (c *BatchCorrelator) NormalizeTimestamp(ts *string) *string {
	if ts == nil {
		return nil
	}
	normalized := normalizeTimestampValue(*ts)
	return &normalized
}

func normalizeTimestampValue(ts string) string {
	if strings.HasSuffix(ts, "Z") {
		return strings.TrimSuffix(ts, "Z") + "+00:00"
	}
	return ts
}

func stripFractionalSeconds(ts string) string {
	return fractionalSecondsPattern.ReplaceAllString(ts, "")
}

// dayComponent truncates an identifier to its calendar-day prefix
func dayComponent(ts string) string {
	if len(ts) < 10 {
		return ""
	}
	return ts[:10]
}

// MatchVerdicts returns the stored verdicts whose batch timestamp matches
// the requested identifier. Strategies are tried in order until one yields
// a result: exact match on normalized identifiers, contains-match with
// fractional seconds stripped, then date-only match.
func (c *BatchCorrelator) MatchVerdicts(batchTimestamp string, candidates []*entities.AnalysisVerdict) ([]*entities.AnalysisVerdict, error) {
	timestamps := make([]*string, len(candidates))
	for i, v := range candidates {
		timestamps[i] = v.BatchTimestamp
	}

	indexes := c.matchIndexes(batchTimestamp, timestamps)
	if len(indexes) == 0 {
		return nil, notFoundWithCandidates(batchTimestamp, timestamps)
	}

	matched := make([]*entities.AnalysisVerdict, 0, len(indexes))
	for _, i := range indexes {
		matched = append(matched, candidates[i])
	}
	return matched, nil
}

// MatchImages applies the same matching cascade to plant images.
func (c *BatchCorrelator) MatchImages(batchTimestamp string, candidates []*entities.PlantImage) ([]*entities.PlantImage, error) {
	timestamps := make([]*string, len(candidates))
	for i, img := range candidates {
		timestamps[i] = img.BatchTimestamp
	}

	indexes := c.matchIndexes(batchTimestamp, timestamps)
	if len(indexes) == 0 {
		return nil, notFoundWithCandidates(batchTimestamp, timestamps)
	}

	matched := make([]*entities.PlantImage, 0, len(indexes))
	for _, i := range indexes {
		matched = append(matched, candidates[i])
	}
	return matched, nil
}

func (c *BatchCorrelator) matchIndexes(target string, candidates []*string) []int {
	norm := normalizeTimestampValue(target)

	var exact []int
	for i, cand := range candidates {
		if cand != nil && normalizeTimestampValue(*cand) == norm {
			exact = append(exact, i)
		}
	}
	if len(exact) > 0 {
		return exact
	}

	// Producers disagree on sub-second precision, so compare with the
	// fractional part removed and accept containment either way.
	strippedTarget := stripFractionalSeconds(norm)
	var contains []int
	for i, cand := range candidates {
		if cand == nil {
			continue
		}
		strippedCand := stripFractionalSeconds(normalizeTimestampValue(*cand))
		if strings.Contains(strippedCand, strippedTarget) || strings.Contains(strippedTarget, strippedCand) {
			contains = append(contains, i)
		}
	}
	if len(contains) > 0 {
		return contains
	}

	day := dayComponent(norm)
	if day == "" {
		return nil
	}
	var daily []int
	for i, cand := range candidates {
		if cand != nil && dayComponent(normalizeTimestampValue(*cand)) == day {
			daily = append(daily, i)
		}
	}
	return daily
}

func notFoundWithCandidates(batchTimestamp string, candidates []*string) *apperrors.AppError {
	hints := make([]string, 0, maxCandidateHints)
	seen := make(map[string]bool)
	for _, cand := range candidates {
		if cand == nil {
			continue
		}
		if seen[*cand] {
			continue
		}
		seen[*cand] = true
		hints = append(hints, *cand)
		if len(hints) == maxCandidateHints {
			break
		}
	}

	if len(hints) == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("batch %s not found; no batch identifiers present", batchTimestamp))
	}
	return apperrors.NewNotFoundError(fmt.Sprintf("batch %s not found; available: %s", batchTimestamp, strings.Join(hints, ", ")))
}

// GroupKey returns the history grouping key for one verdict: its
// normalized batch timestamp, or the prediction day plus the legacy
// suffix when no batch timestamp was recorded.
func (c *BatchCorrelator) GroupKey(v *entities.AnalysisVerdict) string {
	if v.BatchTimestamp != nil && strings.TrimSpace(*v.BatchTimestamp) != "" {
		return normalizeTimestampValue(*v.BatchTimestamp)
	}
	return v.DatePredicted.Format("2006-01-02") + LegacyGroupSuffix
}

// GroupVerdicts groups a flat verdict list into batches for history
// views, newest batch first. Verdicts inside a group are ordered by
// batch index.
func (c *BatchCorrelator) GroupVerdicts(verdicts []*entities.AnalysisVerdict) []*entities.BatchGroup {
	byKey := make(map[string][]*entities.AnalysisVerdict)
	var order []string

	for _, v := range verdicts {
		key := c.GroupKey(v)
		if _, ok := byKey[key]; !ok {
			order = append(order, key)
		}
		byKey[key] = append(byKey[key], v)
	}

	result := make([]*entities.BatchGroup, 0, len(order))
	for _, key := range order {
		result = append(result, summarizeGroup(key, byKey[key]))
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].LatestAt.After(result[j].LatestAt)
	})
	return result
}

// summarizeGroup computes the display stats for one batch group
func summarizeGroup(key string, verdicts []*entities.AnalysisVerdict) *entities.BatchGroup {
	g := &entities.BatchGroup{
		BatchTimestamp: key,
		Count:          len(verdicts),
		Verdicts:       verdicts,
	}
	sort.SliceStable(g.Verdicts, func(i, j int) bool {
		return g.Verdicts[i].BatchIndex < g.Verdicts[j].BatchIndex
	})

	var sum float64
	for _, v := range g.Verdicts {
		sum += verdictScore(v)
		if v.DatePredicted.After(g.LatestAt) {
			g.LatestAt = v.DatePredicted
		}
	}
	if g.Count > 0 {
		g.AverageScore = round2(sum / float64(g.Count))
		g.OverallHealth = CategorizeScore(g.AverageScore)
	}
	return g
}

// verdictScore picks the most representative numeric score one verdict
// contributes to its group average
func verdictScore(v *entities.AnalysisVerdict) float64 {
	if v.ImageID != nil {
		return v.PlantHealthScore
	}
	if v.SoilQualityScore != nil {
		return *v.SoilQualityScore
	}
	return 0
}
