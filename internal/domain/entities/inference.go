package entities

// Health status labels emitted by the image worker and used for the fused
// overall_health category. The set is closed; anything unrecognized is
// stored as Unknown.
const (
	HealthStatusHealthy   = "Healthy"
	HealthStatusModerate  = "Moderate"
	HealthStatusUnhealthy = "Unhealthy"
	HealthStatusCritical  = "Critical"
	HealthStatusUnknown   = "Unknown"
)

// Soil quality labels emitted by the soil worker
const (
	SoilStatusExcellent = "Excellent"
	SoilStatusGood      = "Good"
	SoilStatusAverage   = "Average"
	SoilStatusPoor      = "Poor"
	SoilStatusVeryPoor  = "Very Poor"
	SoilStatusUnknown   = "Unknown"
)

// ImageInference is the structured output of one image worker invocation
type ImageInference struct {
	Success          bool     `json:"success"`
	PlantType        string   `json:"plant_type,omitempty"`
	TomatoType       string   `json:"tomato_type,omitempty"`
	HealthStatus     string   `json:"health_status,omitempty"`
	DiseaseType      string   `json:"disease_type,omitempty"`
	PredictedClass   string   `json:"predicted_class,omitempty"`
	IsTomato         bool     `json:"is_tomato,omitempty"`
	ConfidenceScore  float64  `json:"confidence_score,omitempty"`
	PlantHealthScore float64  `json:"plant_health_score,omitempty"`
	Recommendations  []string `json:"recommendations,omitempty"`
	InferenceTime    float64  `json:"inference_time,omitempty"`
	UserID           string   `json:"user_id,omitempty"`
	ImageID          string   `json:"image_id,omitempty"`
	Error            string   `json:"error,omitempty"`
}

// SoilInference is the structured output of one soil worker invocation
type SoilInference struct {
	Success          bool     `json:"success"`
	SoilStatus       string   `json:"soil_status,omitempty"`
	SoilQualityScore float64  `json:"soil_quality_score,omitempty"`
	ConfidenceScore  float64  `json:"confidence_score,omitempty"`
	SoilIssues       []string `json:"soil_issues,omitempty"`
	Recommendations  []string `json:"recommendations,omitempty"`
	UserID           string   `json:"user_id,omitempty"`
	SoilID           string   `json:"soil_id,omitempty"`
	Error            string   `json:"error,omitempty"`
}

// FailureKind classifies why an inference invocation fell back
type FailureKind string

const (
	FailureTimeout  FailureKind = "timeout"
	FailureParse    FailureKind = "parse_error"
	FailureExit     FailureKind = "exit_error"
	FailureDownload FailureKind = "download_error"
	FailureWorker   FailureKind = "worker_error"
)

// InferenceFailure carries the typed reason behind a fallback result.
// Invocations never surface errors directly; they surface one of these.
type InferenceFailure struct {
	Kind   FailureKind `json:"kind"`
	Detail string      `json:"detail"`
}

// Reason renders the failure as a single diagnostic string
func (f *InferenceFailure) Reason() string {
	if f == nil {
		return ""
	}
	if f.Detail == "" {
		return string(f.Kind)
	}
	return string(f.Kind) + ": " + f.Detail
}

// ImageOutcome is the tagged result of an image inference: Result is always
// non-nil (a deterministic fallback on failure) and Failure is nil exactly
// when the worker genuinely succeeded.
type ImageOutcome struct {
	Result  *ImageInference
	Failure *InferenceFailure
}

// OK reports whether the inference genuinely succeeded
func (o *ImageOutcome) OK() bool {
	return o != nil && o.Failure == nil && o.Result != nil && o.Result.Success
}

// SoilOutcome is the tagged result of a soil inference
type SoilOutcome struct {
	Result  *SoilInference
	Failure *InferenceFailure
}

// OK reports whether the inference genuinely succeeded
func (o *SoilOutcome) OK() bool {
	return o != nil && o.Failure == nil && o.Result != nil && o.Result.Success
}

// FallbackImageOutcome builds the zero-confidence result returned on any
// image inference failure path
func FallbackImageOutcome(userID, imageID string, kind FailureKind, detail string) *ImageOutcome {
	failure := &InferenceFailure{Kind: kind, Detail: detail}
	return &ImageOutcome{
		Result: &ImageInference{
			Success:      false,
			HealthStatus: HealthStatusUnknown,
			UserID:       userID,
			ImageID:      imageID,
			Error:        failure.Reason(),
		},
		Failure: failure,
	}
}

// FallbackSoilOutcome builds the zero-confidence result returned on any
// soil inference failure path
func FallbackSoilOutcome(userID, soilID string, kind FailureKind, detail string) *SoilOutcome {
	failure := &InferenceFailure{Kind: kind, Detail: detail}
	return &SoilOutcome{
		Result: &SoilInference{
			Success:    false,
			SoilStatus: SoilStatusUnknown,
			UserID:     userID,
			SoilID:     soilID,
			Error:      failure.Reason(),
		},
		Failure: failure,
	}
}
