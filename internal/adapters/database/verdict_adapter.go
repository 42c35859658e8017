package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/zatekoja/cropsight-backend/internal/domain/entities"
	"github.com/zatekoja/cropsight-backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/cropsight-backend/pkg/errors"
)

const (
	listSeparator       = "; "
	noIssuesPlaceholder = "No issues found"
)

// joinList flattens a list to semicolon-joined text for storage,
// dropping empty entries
func joinList(items []string) string {
	cleaned := make([]string, 0, len(items))
	for _, item := range items {
		if s := strings.TrimSpace(item); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	return strings.Join(cleaned, listSeparator)
}

// splitList restores a stored semicolon-joined list
func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// joinSoilIssues stores the placeholder when nothing survives filtering
func joinSoilIssues(items []string) string {
	joined := joinList(items)
	if joined == "" {
		return noIssuesPlaceholder
	}
	return joined
}

// splitSoilIssues inverts joinSoilIssues
func splitSoilIssues(raw string) []string {
	if raw == noIssuesPlaceholder {
		return []string{}
	}
	return splitList(raw)
}

// VerdictAdapter implements the VerdictRepository interface
type VerdictAdapter struct {
	gateway *Gateway
}

// NewVerdictAdapter creates a new verdict adapter
func NewVerdictAdapter(gateway *Gateway) repositories.VerdictRepository {
	return &VerdictAdapter{
		gateway: gateway,
	}
}

// Create persists a verdict and sets the store-assigned ID on it
func (a *VerdictAdapter) Create(ctx context.Context, verdict *entities.AnalysisVerdict) error {
	if verdict.DatePredicted.IsZero() {
		verdict.DatePredicted = time.Now()
	}
	if verdict.CreatedAt.IsZero() {
		verdict.CreatedAt = time.Now()
	}

	return a.gateway.ExecuteWithRetries(ctx, func(ctx context.Context, conn *Conn) error {
		record := goqu.Record{
			"user_id":                   verdict.UserID,
			"image_id":                  verdict.ImageID,
			"soil_id":                   verdict.SoilID,
			"health_status":             verdict.HealthStatus,
			"disease_type":              verdict.DiseaseType,
			"soil_status":               verdict.SoilStatus,
			"overall_health":            verdict.OverallHealth,
			"combined_confidence_score": verdict.CombinedConfidenceScore,
			"plant_health_score":        verdict.PlantHealthScore,
			"soil_quality_score":        verdict.SoilQualityScore,
			"recommendations":           joinList(verdict.Recommendations),
			"soil_issues":               joinSoilIssues(verdict.SoilIssues),
			"has_soil_data":             verdict.HasSoilData,
			"mode":                      verdict.Mode,
			"batch_timestamp":           verdict.BatchTimestamp,
			"batch_index":               verdict.BatchIndex,
			"date_predicted":            verdict.DatePredicted,
			"created_at":                verdict.CreatedAt,
		}

		query, args, err := conn.Builder().Insert("analysis_verdicts").
			Rows(record).
			Returning("id").
			ToSQL()

		if err != nil {
			return apperrors.NewInternalError("failed to build insert query", err)
		}

		err = conn.DB().QueryRowContext(ctx, query, args...).Scan(&verdict.ID)
		if err != nil {
			return apperrors.NewInternalError("failed to create verdict", err)
		}
		return nil
	}, 0)
}

// GetByID retrieves a verdict by ID
func (a *VerdictAdapter) GetByID(ctx context.Context, id string) (*entities.AnalysisVerdict, error) {
	var verdict *entities.AnalysisVerdict

	err := a.gateway.ExecuteWithRetries(ctx, func(ctx context.Context, conn *Conn) error {
		query, args, err := verdictSelect(conn).
			Where(goqu.Ex{"id": id}).
			ToSQL()

		if err != nil {
			return apperrors.NewInternalError("failed to build query", err)
		}

		v, err := scanVerdict(conn.DB().QueryRowContext(ctx, query, args...))
		if err == sql.ErrNoRows {
			return apperrors.NewNotFoundError(fmt.Sprintf("analysis verdict with id %s not found", id))
		}
		if err != nil {
			return apperrors.NewInternalError("failed to get verdict", err)
		}

		verdict = v
		return nil
	}, 0)

	if err != nil {
		return nil, err
	}
	return verdict, nil
}

// ListByUser retrieves a user's verdicts, newest first
func (a *VerdictAdapter) ListByUser(ctx context.Context, userID string, limit int) ([]*entities.AnalysisVerdict, error) {
	var verdicts []*entities.AnalysisVerdict

	err := a.gateway.ExecuteWithRetries(ctx, func(ctx context.Context, conn *Conn) error {
		ds := verdictSelect(conn).
			Where(goqu.Ex{"user_id": userID}).
			Order(goqu.I("date_predicted").Desc())

		if limit > 0 {
			ds = ds.Limit(uint(limit))
		}

		query, args, err := ds.ToSQL()
		if err != nil {
			return apperrors.NewInternalError("failed to build query", err)
		}

		list, err := a.scanVerdicts(ctx, conn, query, args)
		if err != nil {
			return err
		}
		verdicts = list
		return nil
	}, 0)

	if err != nil {
		return nil, err
	}
	return verdicts, nil
}

// ListByBatch retrieves the verdicts recorded under a batch timestamp,
// ordered by batch index
func (a *VerdictAdapter) ListByBatch(ctx context.Context, userID, batchTimestamp string) ([]*entities.AnalysisVerdict, error) {
	var verdicts []*entities.AnalysisVerdict

	err := a.gateway.ExecuteWithRetries(ctx, func(ctx context.Context, conn *Conn) error {
		query, args, err := verdictSelect(conn).
			Where(goqu.Ex{"user_id": userID, "batch_timestamp": batchTimestamp}).
			Order(goqu.I("batch_index").Asc()).
			ToSQL()

		if err != nil {
			return apperrors.NewInternalError("failed to build query", err)
		}

		list, err := a.scanVerdicts(ctx, conn, query, args)
		if err != nil {
			return err
		}
		verdicts = list
		return nil
	}, 0)

	if err != nil {
		return nil, err
	}
	return verdicts, nil
}

// ListPage retrieves one page of all stored verdicts ordered by ID.
// Index rebuilds walk the table with it.
func (a *VerdictAdapter) ListPage(ctx context.Context, limit, offset int) ([]*entities.AnalysisVerdict, error) {
	var verdicts []*entities.AnalysisVerdict

	err := a.gateway.ExecuteWithRetries(ctx, func(ctx context.Context, conn *Conn) error {
		query, args, err := verdictSelect(conn).
			Order(goqu.I("id").Asc()).
			Limit(uint(limit)).
			Offset(uint(offset)).
			ToSQL()

		if err != nil {
			return apperrors.NewInternalError("failed to build query", err)
		}

		list, err := a.scanVerdicts(ctx, conn, query, args)
		if err != nil {
			return err
		}
		verdicts = list
		return nil
	}, 0)

	if err != nil {
		return nil, err
	}
	return verdicts, nil
}

func verdictSelect(conn *Conn) *goqu.SelectDataset {
	return conn.Builder().Select(
		"id", "user_id", "image_id", "soil_id", "health_status",
		"disease_type", "soil_status", "overall_health",
		"combined_confidence_score", "plant_health_score", "soil_quality_score",
		"recommendations", "soil_issues", "has_soil_data", "mode",
		"batch_timestamp", "batch_index", "date_predicted", "created_at",
	).From("analysis_verdicts")
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanVerdict(row rowScanner) (*entities.AnalysisVerdict, error) {
	v := &entities.AnalysisVerdict{}
	var imageID, soilID, soilStatus, batchTimestamp sql.NullString
	var soilQualityScore sql.NullFloat64
	var recommendations, soilIssues string

	err := row.Scan(
		&v.ID,
		&v.UserID,
		&imageID,
		&soilID,
		&v.HealthStatus,
		&v.DiseaseType,
		&soilStatus,
		&v.OverallHealth,
		&v.CombinedConfidenceScore,
		&v.PlantHealthScore,
		&soilQualityScore,
		&recommendations,
		&soilIssues,
		&v.HasSoilData,
		&v.Mode,
		&batchTimestamp,
		&v.BatchIndex,
		&v.DatePredicted,
		&v.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if imageID.Valid {
		v.ImageID = &imageID.String
	}
	if soilID.Valid {
		v.SoilID = &soilID.String
	}
	if soilStatus.Valid {
		v.SoilStatus = &soilStatus.String
	}
	if batchTimestamp.Valid {
		v.BatchTimestamp = &batchTimestamp.String
	}
	if soilQualityScore.Valid {
		v.SoilQualityScore = &soilQualityScore.Float64
	}
	v.Recommendations = splitList(recommendations)
	v.SoilIssues = splitSoilIssues(soilIssues)

	return v, nil
}

func (a *VerdictAdapter) scanVerdicts(ctx context.Context, conn *Conn, query string, args []interface{}) ([]*entities.AnalysisVerdict, error) {
	rows, err := conn.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list verdicts", err)
	}
	defer rows.Close()

	verdicts := []*entities.AnalysisVerdict{}
	for rows.Next() {
		v, err := scanVerdict(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan verdict", err)
		}
		verdicts = append(verdicts, v)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating verdicts", err)
	}

	return verdicts, nil
}
