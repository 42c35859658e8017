package database

import (
	"context"

	"github.com/doug-martin/goqu/v9"
	"github.com/zatekoja/cropsight-backend/internal/domain/entities"
	"github.com/zatekoja/cropsight-backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/cropsight-backend/pkg/errors"
)

// SoilRangeAdapter implements the SoilRangeRepository interface.
// Ranges are stored one row per parameter; the moisture threshold is
// kept as a pseudo-parameter whose min value is the threshold.
type SoilRangeAdapter struct {
	gateway *Gateway
}

// NewSoilRangeAdapter creates a new soil range adapter
func NewSoilRangeAdapter(gateway *Gateway) repositories.SoilRangeRepository {
	return &SoilRangeAdapter{
		gateway: gateway,
	}
}

// Get retrieves the active optimal ranges. Parameters without a stored
// row keep their built-in defaults.
func (a *SoilRangeAdapter) Get(ctx context.Context) (*entities.SoilOptimalRanges, error) {
	ranges := entities.DefaultSoilOptimalRanges()

	err := a.gateway.ExecuteWithRetries(ctx, func(ctx context.Context, conn *Conn) error {
		query, args, err := conn.Builder().Select(
			"parameter", "min_value", "max_value", "unit",
		).From("soil_optimal_ranges").
			ToSQL()

		if err != nil {
			return apperrors.NewInternalError("failed to build query", err)
		}

		rows, err := conn.DB().QueryContext(ctx, query, args...)
		if err != nil {
			return apperrors.NewInternalError("failed to get soil ranges", err)
		}
		defer rows.Close()

		for rows.Next() {
			var parameter, unit string
			var minValue, maxValue float64

			if err := rows.Scan(&parameter, &minValue, &maxValue, &unit); err != nil {
				return apperrors.NewInternalError("failed to scan soil range", err)
			}

			r := entities.SoilParameterRange{Min: minValue, Max: maxValue, Unit: unit}
			switch parameter {
			case "ph_level":
				ranges.PHLevel = r
			case "temperature":
				ranges.Temperature = r
			case "moisture":
				ranges.Moisture = r
			case "nitrogen":
				ranges.Nitrogen = r
			case "phosphorus":
				ranges.Phosphorus = r
			case "potassium":
				ranges.Potassium = r
			case "moisture_threshold":
				ranges.MoistureThreshold = minValue
			}
		}

		if err := rows.Err(); err != nil {
			return apperrors.NewInternalError("error iterating soil ranges", err)
		}
		return nil
	}, 0)

	if err != nil {
		return nil, err
	}
	return ranges, nil
}

// Save persists a new set of optimal ranges
func (a *SoilRangeAdapter) Save(ctx context.Context, ranges *entities.SoilOptimalRanges) error {
	rows := []struct {
		parameter string
		r         entities.SoilParameterRange
	}{
		{"ph_level", ranges.PHLevel},
		{"temperature", ranges.Temperature},
		{"moisture", ranges.Moisture},
		{"nitrogen", ranges.Nitrogen},
		{"phosphorus", ranges.Phosphorus},
		{"potassium", ranges.Potassium},
		{"moisture_threshold", entities.SoilParameterRange{Min: ranges.MoistureThreshold, Max: 100, Unit: "%"}},
	}

	return a.gateway.ExecuteWithRetries(ctx, func(ctx context.Context, conn *Conn) error {
		for _, row := range rows {
			query, args, err := conn.Builder().Insert("soil_optimal_ranges").
				Rows(goqu.Record{
					"parameter": row.parameter,
					"min_value": row.r.Min,
					"max_value": row.r.Max,
					"unit":      row.r.Unit,
				}).
				OnConflict(goqu.DoUpdate("parameter", goqu.Record{
					"min_value": row.r.Min,
					"max_value": row.r.Max,
					"unit":      row.r.Unit,
				})).
				ToSQL()

			if err != nil {
				return apperrors.NewInternalError("failed to build upsert query", err)
			}

			if _, err := conn.DB().ExecContext(ctx, query, args...); err != nil {
				return apperrors.NewInternalError("failed to save soil range", err)
			}
		}
		return nil
	}, 0)
}
