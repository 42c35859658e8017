package entities

import "time"

// ImageStatus represents the analysis lifecycle of a plant image
type ImageStatus string

const (
	ImageStatusPending  ImageStatus = "pending"
	ImageStatusAnalyzed ImageStatus = "analyzed"
)

// PlantImage represents one captured plant image observation. Records are
// written by the ingestion path and are immutable here except for Status,
// which flips to analyzed after a verdict is stored for them.
type PlantImage struct {
	ID             string      `json:"id" db:"id"`
	UserID         string      `json:"user_id" db:"user_id"`
	ImagePath      string      `json:"image_path" db:"image_path"`
	BatchTimestamp *string     `json:"batch_timestamp,omitempty" db:"batch_timestamp"`
	BatchIndex     int         `json:"batch_index" db:"batch_index"`
	Status         ImageStatus `json:"status" db:"status"`
	UploadedAt     time.Time   `json:"uploaded_at" db:"uploaded_at"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
}
