package entities

import "time"

// NotificationStatus represents the delivery status
type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

// AnalysisNotification tracks webhook deliveries for analysis events.
// One row is written per delivery attempt, pending first, then flipped
// to sent or failed with the outcome attached.
type AnalysisNotification struct {
	ID             string             `json:"id" db:"id"`
	UserID         string             `json:"user_id" db:"user_id"`
	EventType      AnalysisEventType  `json:"event_type" db:"event_type"`
	BatchTimestamp *string            `json:"batch_timestamp,omitempty" db:"batch_timestamp"`
	Recipient      string             `json:"recipient" db:"recipient"`
	Status         NotificationStatus `json:"status" db:"status"`
	StatusCode     *int               `json:"status_code,omitempty" db:"status_code"`
	SentAt         *time.Time         `json:"sent_at,omitempty" db:"sent_at"`
	FailedAt       *time.Time         `json:"failed_at,omitempty" db:"failed_at"`
	ErrorMessage   *string            `json:"error_message,omitempty" db:"error_message"`
	CreatedAt      time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at" db:"updated_at"`
}
