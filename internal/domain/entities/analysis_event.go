package entities

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisEventType represents the type of analysis lifecycle event
type AnalysisEventType string

const (
	AnalysisEventBatchStarted   AnalysisEventType = "batch_started"
	AnalysisEventBatchCompleted AnalysisEventType = "batch_completed"
	AnalysisEventBatchFailed    AnalysisEventType = "batch_failed"
	AnalysisEventVerdictStored  AnalysisEventType = "verdict_stored"
)

// AnalysisEvent is published on the event bus as a batch run progresses
type AnalysisEvent struct {
	ID             string            `json:"id"`
	UserID         string            `json:"user_id"`
	EventType      AnalysisEventType `json:"event_type"`
	BatchTimestamp string            `json:"batch_timestamp,omitempty"`
	Mode           AnalysisMode      `json:"mode,omitempty"`
	Total          int               `json:"total,omitempty"`
	Succeeded      int               `json:"succeeded,omitempty"`
	Failed         int               `json:"failed,omitempty"`
	Timestamp      time.Time         `json:"timestamp"`
}

// NewAnalysisEvent creates a new analysis event
func NewAnalysisEvent(userID string, eventType AnalysisEventType, batchTimestamp string) *AnalysisEvent {
	return &AnalysisEvent{
		ID:             uuid.NewString(),
		UserID:         userID,
		EventType:      eventType,
		BatchTimestamp: batchTimestamp,
		Timestamp:      time.Now().UTC(),
	}
}
