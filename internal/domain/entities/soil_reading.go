package entities

import "time"

// SoilReading represents one six-parameter soil sensor observation
type SoilReading struct {
	ID             string    `json:"id" db:"id"`
	UserID         string    `json:"user_id" db:"user_id"`
	PHLevel        float64   `json:"ph_level" db:"ph_level"`
	Temperature    float64   `json:"temperature" db:"temperature"`
	Moisture       float64   `json:"moisture" db:"moisture"`
	Nitrogen       float64   `json:"nitrogen" db:"nitrogen"`
	Phosphorus     float64   `json:"phosphorus" db:"phosphorus"`
	Potassium      float64   `json:"potassium" db:"potassium"`
	BatchTimestamp *string   `json:"batch_timestamp,omitempty" db:"batch_timestamp"`
	BatchIndex     int       `json:"batch_index" db:"batch_index"`
	RecordedAt     time.Time `json:"recorded_at" db:"recorded_at"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Params returns the six parameters keyed the way the soil worker expects
func (s *SoilReading) Params() map[string]float64 {
	return map[string]float64{
		"ph_level":    s.PHLevel,
		"temperature": s.Temperature,
		"moisture":    s.Moisture,
		"nitrogen":    s.Nitrogen,
		"phosphorus":  s.Phosphorus,
		"potassium":   s.Potassium,
	}
}
