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

// PlantImageAdapter implements the PlantImageRepository interface
type PlantImageAdapter struct {
	gateway *Gateway
}

// NewPlantImageAdapter creates a new plant image adapter
func NewPlantImageAdapter(gateway *Gateway) repositories.PlantImageRepository {
	return &PlantImageAdapter{
		gateway: gateway,
	}
}

// GetByID retrieves an image by ID
func (a *PlantImageAdapter) GetByID(ctx context.Context, id string) (*entities.PlantImage, error) {
	var image *entities.PlantImage

	err := a.gateway.ExecuteWithRetries(ctx, func(ctx context.Context, conn *Conn) error {
		query, args, err := conn.Builder().Select(
			"id", "user_id", "image_path", "batch_timestamp", "batch_index",
			"status", "uploaded_at", "created_at",
		).From("plant_images").
			Where(goqu.Ex{"id": id}).
			ToSQL()

		if err != nil {
			return apperrors.NewInternalError("failed to build query", err)
		}

		img := &entities.PlantImage{}
		var batchTimestamp sql.NullString

		err = conn.DB().QueryRowContext(ctx, query, args...).Scan(
			&img.ID,
			&img.UserID,
			&img.ImagePath,
			&batchTimestamp,
			&img.BatchIndex,
			&img.Status,
			&img.UploadedAt,
			&img.CreatedAt,
		)

		if err == sql.ErrNoRows {
			return apperrors.NewNotFoundError(fmt.Sprintf("plant image with id %s not found", id))
		}
		if err != nil {
			return apperrors.NewInternalError("failed to get plant image", err)
		}

		if batchTimestamp.Valid {
			img.BatchTimestamp = &batchTimestamp.String
		}

		image = img
		return nil
	}, 0)

	if err != nil {
		return nil, err
	}
	return image, nil
}

// GetByIDs retrieves multiple images by their IDs, preserving input order.
// IDs with no matching row are silently absent from the result.
func (a *PlantImageAdapter) GetByIDs(ctx context.Context, ids []string) ([]*entities.PlantImage, error) {
	if len(ids) == 0 {
		return []*entities.PlantImage{}, nil
	}

	var images []*entities.PlantImage

	err := a.gateway.ExecuteWithRetries(ctx, func(ctx context.Context, conn *Conn) error {
		query, args, err := conn.Builder().Select(
			"id", "user_id", "image_path", "batch_timestamp", "batch_index",
			"status", "uploaded_at", "created_at",
		).From("plant_images").
			Where(goqu.Ex{"id": ids}).
			ToSQL()

		if err != nil {
			return apperrors.NewInternalError("failed to build query", err)
		}

		rows, err := conn.DB().QueryContext(ctx, query, args...)
		if err != nil {
			return apperrors.NewInternalError("failed to get plant images", err)
		}
		defer rows.Close()

		byID := make(map[string]*entities.PlantImage, len(ids))
		for rows.Next() {
			img := &entities.PlantImage{}
			var batchTimestamp sql.NullString

			err := rows.Scan(
				&img.ID,
				&img.UserID,
				&img.ImagePath,
				&batchTimestamp,
				&img.BatchIndex,
				&img.Status,
				&img.UploadedAt,
				&img.CreatedAt,
			)
			if err != nil {
				return apperrors.NewInternalError("failed to scan plant image", err)
			}

			if batchTimestamp.Valid {
				img.BatchTimestamp = &batchTimestamp.String
			}
			byID[img.ID] = img
		}

		if err := rows.Err(); err != nil {
			return apperrors.NewInternalError("error iterating plant images", err)
		}

		images = make([]*entities.PlantImage, 0, len(ids))
		for _, id := range ids {
			if img, ok := byID[id]; ok {
				images = append(images, img)
			}
		}
		return nil
	}, 0)

	if err != nil {
		return nil, err
	}
	return images, nil
}

// ListByUser retrieves a user's images, newest first
func (a *PlantImageAdapter) ListByUser(ctx context.Context, userID string, limit int) ([]*entities.PlantImage, error) {
	return a.list(ctx, goqu.Ex{"user_id": userID}, limit)
}

// ListUnprocessed retrieves a user's most recent pending images that have
// no stored verdict yet, newest first
func (a *PlantImageAdapter) ListUnprocessed(ctx context.Context, userID string, limit int) ([]*entities.PlantImage, error) {
	var images []*entities.PlantImage

	err := a.gateway.ExecuteWithRetries(ctx, func(ctx context.Context, conn *Conn) error {
		ds := conn.Builder().Select(
			"id", "user_id", "image_path", "batch_timestamp", "batch_index",
			"status", "uploaded_at", "created_at",
		).From("plant_images").
			Where(goqu.Ex{"user_id": userID, "status": entities.ImageStatusPending}).
			Where(goqu.L("NOT EXISTS (SELECT 1 FROM analysis_verdicts WHERE analysis_verdicts.image_id = plant_images.id)")).
			Order(goqu.I("uploaded_at").Desc())

		if limit > 0 {
			ds = ds.Limit(uint(limit))
		}

		query, args, err := ds.ToSQL()
		if err != nil {
			return apperrors.NewInternalError("failed to build query", err)
		}

		list, err := a.scanList(ctx, conn, query, args)
		if err != nil {
			return err
		}
		images = list
		return nil
	}, 0)

	if err != nil {
		return nil, err
	}
	return images, nil
}

// MarkAnalyzed flips the status of the given images to analyzed
func (a *PlantImageAdapter) MarkAnalyzed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	return a.gateway.ExecuteWithRetries(ctx, func(ctx context.Context, conn *Conn) error {
		query, args, err := conn.Builder().Update("plant_images").
			Set(goqu.Record{"status": entities.ImageStatusAnalyzed}).
			Where(goqu.Ex{"id": ids}).
			ToSQL()

		if err != nil {
			return apperrors.NewInternalError("failed to build update query", err)
		}

		_, err = conn.DB().ExecContext(ctx, query, args...)
		if err != nil {
			return apperrors.NewInternalError("failed to mark images analyzed", err)
		}
		return nil
	}, 0)
}

func (a *PlantImageAdapter) list(ctx context.Context, where goqu.Ex, limit int) ([]*entities.PlantImage, error) {
	var images []*entities.PlantImage

	err := a.gateway.ExecuteWithRetries(ctx, func(ctx context.Context, conn *Conn) error {
		ds := conn.Builder().Select(
			"id", "user_id", "image_path", "batch_timestamp", "batch_index",
			"status", "uploaded_at", "created_at",
		).From("plant_images").
			Where(where).
			Order(goqu.I("uploaded_at").Desc())

		if limit > 0 {
			ds = ds.Limit(uint(limit))
		}

		query, args, err := ds.ToSQL()
		if err != nil {
			return apperrors.NewInternalError("failed to build query", err)
		}

		list, err := a.scanList(ctx, conn, query, args)
		if err != nil {
			return err
		}
		images = list
		return nil
	}, 0)

	if err != nil {
		return nil, err
	}
	return images, nil
}

func (a *PlantImageAdapter) scanList(ctx context.Context, conn *Conn, query string, args []interface{}) ([]*entities.PlantImage, error) {
	rows, err := conn.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list plant images", err)
	}
	defer rows.Close()

	images := []*entities.PlantImage{}
	for rows.Next() {
		img := &entities.PlantImage{}
		var batchTimestamp sql.NullString

		err := rows.Scan(
			&img.ID,
			&img.UserID,
			&img.ImagePath,
			&batchTimestamp,
			&img.BatchIndex,
			&img.Status,
			&img.UploadedAt,
			&img.CreatedAt,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan plant image", err)
		}

		if batchTimestamp.Valid {
			img.BatchTimestamp = &batchTimestamp.String
		}
		images = append(images, img)
	}

	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("error iterating plant images", err)
	}

	return images, nil
}
