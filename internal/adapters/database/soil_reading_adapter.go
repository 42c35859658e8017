package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/zatekoja/cropsight-backend/internal/domain/entities"
	"github.com/zatekoja/cropsight-backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/cropsight-backend/pkg/errors"
)

// SoilReadingAdapter implements the SoilReadingRepository interface
type SoilReadingAdapter struct {
	gateway *Gateway
}

// NewSoilReadingAdapter creates a new soil reading adapter
func NewSoilReadingAdapter(gateway *Gateway) repositories.SoilReadingRepository {
	return &SoilReadingAdapter{
		gateway: gateway,
	}
}

// GetByID retrieves a reading by ID
func (a *SoilReadingAdapter) GetByID(ctx context.Context, id string) (*entities.SoilReading, error) {
	var reading *entities.SoilReading

	err := a.gateway.ExecuteWithRetries(ctx, func(ctx context.Context, conn *Conn) error {
		query, args, err := conn.Builder().Select(
			"id", "user_id", "ph_level", "temperature", "moisture",
			"nitrogen", "phosphorus", "potassium", "batch_timestamp",
			"batch_index", "recorded_at", "created_at",
		).From("soil_readings").
			Where(goqu.Ex{"id": id}).
			ToSQL()

		if err != nil {
			return apperrors.NewInternalError("failed to build query", err)
		}

		r := &entities.SoilReading{}
		var batchTimestamp sql.NullString

		err = conn.DB().QueryRowContext(ctx, query, args...).Scan(
			&r.ID,
			&r.UserID,
			&r.PHLevel,
			&r.Temperature,
			&r.Moisture,
			&r.Nitrogen,
			&r.Phosphorus,
			&r.Potassium,
			&batchTimestamp,
			&r.BatchIndex,
			&r.RecordedAt,
			&r.CreatedAt,
		)

		if err == sql.ErrNoRows {
			return apperrors.NewNotFoundError(fmt.Sprintf("soil reading with id %s not found", id))
		}
		if err != nil {
			return apperrors.NewInternalError("failed to get soil reading", err)
		}

		if batchTimestamp.Valid {
			r.BatchTimestamp = &batchTimestamp.String
		}

		reading = r
		return nil
	}, 0)

	if err != nil {
		return nil, err
	}
	return reading, nil
}

// Latest retrieves a user's most recent reading
func (a *SoilReadingAdapter) Latest(ctx context.Context, userID string) (*entities.SoilReading, error) {
	readings, err := a.ListByUser(ctx, userID, 1)
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no soil readings for user %s", userID))
	}
	return readings[0], nil
}

// ListByUser retrieves a user's readings, newest first
func (a *SoilReadingAdapter) ListByUser(ctx context.Context, userID string, limit int) ([]*entities.SoilReading, error) {
	var readings []*entities.SoilReading

	err := a.gateway.ExecuteWithRetries(ctx, func(ctx context.Context, conn *Conn) error {
		ds := conn.Builder().Select(
			"id", "user_id", "ph_level", "temperature", "moisture",
			"nitrogen", "phosphorus", "potassium", "batch_timestamp",
			"batch_index", "recorded_at", "created_at",
		).From("soil_readings").
			Where(goqu.Ex{"user_id": userID}).
			Order(goqu.I("recorded_at").Desc())

		if limit > 0 {
			ds = ds.Limit(uint(limit))
		}

		query, args, err := ds.ToSQL()
		if err != nil {
			return apperrors.NewInternalError("failed to build query", err)
		}

		rows, err := conn.DB().QueryContext(ctx, query, args...)
		if err != nil {
			return apperrors.NewInternalError("failed to list soil readings", err)
		}
		defer rows.Close()

		list := []*entities.SoilReading{}
		for rows.Next() {
			r := &entities.SoilReading{}
			var batchTimestamp sql.NullString

			err := rows.Scan(
				&r.ID,
				&r.UserID,
				&r.PHLevel,
				&r.Temperature,
				&r.Moisture,
				&r.Nitrogen,
				&r.Phosphorus,
				&r.Potassium,
				&batchTimestamp,
				&r.BatchIndex,
				&r.RecordedAt,
				&r.CreatedAt,
			)
			if err != nil {
				return apperrors.NewInternalError("failed to scan soil reading", err)
			}

			if batchTimestamp.Valid {
				r.BatchTimestamp = &batchTimestamp.String
			}
			list = append(list, r)
		}

		if err := rows.Err(); err != nil {
			return apperrors.NewInternalError("error iterating soil readings", err)
		}

		readings = list
		return nil
	}, 0)

	if err != nil {
		return nil, err
	}
	return readings, nil
}
