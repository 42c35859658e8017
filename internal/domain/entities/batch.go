package entities

import "time"

// Stages a batch item can fail in
const (
	BatchStageSelection = "selection"
	BatchStageInference = "inference"
	BatchStageFusion    = "fusion"
	BatchStageStorage   = "storage"
)

// BatchItemError records one per-item failure inside an otherwise
// successful batch run
type BatchItemError struct {
	Index   int    `json:"index"`
	ImageID string `json:"image_id,omitempty"`
	Stage   string `json:"stage"`
	Reason  string `json:"reason"`
}

// BatchReport is the transient aggregate returned by one orchestration
// run. It is never persisted.
type BatchReport struct {
	BatchTimestamp string             `json:"batch_timestamp"`
	Mode           AnalysisMode       `json:"mode"`
	Total          int                `json:"total"`
	Succeeded      int                `json:"succeeded"`
	Failed         int                `json:"failed"`
	Verdicts       []*AnalysisVerdict `json:"verdicts"`
	Errors         []BatchItemError   `json:"errors,omitempty"`
	DurationMS     int64              `json:"duration_ms"`
}

// BatchGroup is one batch in the history view. Legacy verdicts written
// without a batch timestamp are grouped by prediction day instead.
type BatchGroup struct {
	BatchTimestamp string             `json:"batch_timestamp"`
	Count          int                `json:"count"`
	AverageScore   float64            `json:"average_score"`
	OverallHealth  string             `json:"overall_health"`
	LatestAt       time.Time          `json:"latest_at"`
	Verdicts       []*AnalysisVerdict `json:"-"`
}
