package entities

// SoilParameterRange is the optimal window for one soil parameter
type SoilParameterRange struct {
	Min  float64 `json:"min" db:"min_value"`
	Max  float64 `json:"max" db:"max_value"`
	Unit string  `json:"unit" db:"unit"`
}

// SoilOptimalRanges holds the optimal windows the soil worker scores
// against, plus the minimum moisture percentage below which NPK readings
// are considered unreliable.
type SoilOptimalRanges struct {
	PHLevel           SoilParameterRange `json:"ph_level"`
	Temperature       SoilParameterRange `json:"temperature"`
	Moisture          SoilParameterRange `json:"moisture"`
	Nitrogen          SoilParameterRange `json:"nitrogen"`
	Phosphorus        SoilParameterRange `json:"phosphorus"`
	Potassium         SoilParameterRange `json:"potassium"`
	MoistureThreshold float64            `json:"moisture_threshold"`
}

// DefaultSoilOptimalRanges returns the tomato-crop defaults used when the
// soil_optimal_ranges table has not been seeded
func DefaultSoilOptimalRanges() *SoilOptimalRanges {
	return &SoilOptimalRanges{
		PHLevel:           SoilParameterRange{Min: 6.0, Max: 6.8, Unit: "pH"},
		Temperature:       SoilParameterRange{Min: 18, Max: 29, Unit: "°C"},
		Moisture:          SoilParameterRange{Min: 40, Max: 80, Unit: "%"},
		Nitrogen:          SoilParameterRange{Min: 50, Max: 150, Unit: "ppm"},
		Phosphorus:        SoilParameterRange{Min: 25, Max: 50, Unit: "ppm"},
		Potassium:         SoilParameterRange{Min: 100, Max: 250, Unit: "ppm"},
		MoistureThreshold: 20,
	}
}

// WorkerPayload serializes the ranges into the optimal_ranges object the
// soil worker consumes: {"param": {"optimal": [lo, hi], "unit": u}, ...}
// with moisture_threshold encoded as a range starting at the threshold.
func (r *SoilOptimalRanges) WorkerPayload() map[string]interface{} {
	entry := func(p SoilParameterRange) map[string]interface{} {
		return map[string]interface{}{
			"optimal": []float64{p.Min, p.Max},
			"unit":    p.Unit,
		}
	}
	return map[string]interface{}{
		"ph_level":    entry(r.PHLevel),
		"temperature": entry(r.Temperature),
		"moisture":    entry(r.Moisture),
		"nitrogen":    entry(r.Nitrogen),
		"phosphorus":  entry(r.Phosphorus),
		"potassium":   entry(r.Potassium),
		"moisture_threshold": map[string]interface{}{
			"optimal": []float64{r.MoistureThreshold, 100},
			"unit":    "%",
		},
	}
}
