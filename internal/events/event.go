// Package events defines the canonical event record shared by every
// component downstream of ingestion, and the per-source profiles used
// to validate and attribute observations.
package events

import "time"

// SourceID identifies a wearable data source.
type SourceID string

const (
	SourceApple  SourceID = "apple"
	SourceGoogle SourceID = "google"
	SourceOura   SourceID = "oura"
)

// SourceProfile is the static, immutable description of a source: its
// topic, polling cadence, the fields it can report, and the per-field
// noise it adds on top of ground truth. Values are grounded on the
// data generator's SOURCE_CONFIGS and the API's display SOURCE_CONFIGS.
type SourceProfile struct {
	SourceID        SourceID
	Topic           string
	SourceName      string
	Icon            string
	Color           string
	SamplingMS      int
	SupportedFields []string
	NoiseSigma      map[string]float64
}

// Registry is the static map of all known sources, keyed by SourceID.
var Registry = map[SourceID]SourceProfile{
	SourceApple: {
		SourceID:   SourceApple,
		Topic:      "biometrics-apple",
		SourceName: "Apple HealthKit",
		Icon:       "🍎",
		Color:      "#FF3B30",
		SamplingMS: 500,
		SupportedFields: []string{
			"heart_rate", "hrv_ms", "respiratory_rate", "activity_level",
			"steps_per_minute", "calories_per_minute", "spo2_percent",
		},
		NoiseSigma: map[string]float64{
			"heart_rate": 1, // hr_variance
			"hrv_ms":     0.05 * 10,
		},
	},
	SourceGoogle: {
		SourceID:   SourceGoogle,
		Topic:      "biometrics-google",
		SourceName: "Google Fit",
		Icon:       "🏃",
		Color:      "#4285F4",
		SamplingMS: 1000,
		SupportedFields: []string{
			"heart_rate", "hrv_ms", "activity_level",
			"steps_per_minute", "calories_per_minute",
		},
		NoiseSigma: map[string]float64{
			"heart_rate": 3,
			"hrv_ms":     0.15 * 10,
		},
	},
	SourceOura: {
		SourceID:   SourceOura,
		Topic:      "biometrics-oura",
		SourceName: "Oura Ring",
		Icon:       "💍",
		Color:      "#8B5CF6",
		SamplingMS: 1000,
		SupportedFields: []string{
			"heart_rate", "hrv_ms", "spo2_percent", "skin_temp_c",
			"respiratory_rate", "sleep_quality",
		},
		NoiseSigma: map[string]float64{
			"heart_rate":  2,
			"hrv_ms":      0.08 * 10,
			"skin_temp_c": 0.02,
		},
	},
}

// AggregatableFields is the domain of metrics the fusion table tracks,
// the union of every source's SupportedFields.
var AggregatableFields = []string{
	"heart_rate", "hrv_ms", "spo2_percent", "skin_temp_c",
	"respiratory_rate", "activity_level", "steps_per_minute",
	"calories_per_minute", "sleep_quality",
}

// RawEvent is the canonical, sparse biometric sample. Keys absent from
// Fields mean "not observed" for that source, never zero.
type RawEvent struct {
	EventID    string             `json:"event_id"`
	Timestamp  time.Time          `json:"timestamp"`
	UserID     string             `json:"user_id"`
	Source     SourceID           `json:"source"`
	SourceName string             `json:"source_name"`
	Fields     map[string]float64 `json:"-"`
}

// Get returns the value for a field and whether it was observed.
func (e RawEvent) Get(field string) (float64, bool) {
	v, ok := e.Fields[field]
	return v, ok
}

// Alert is the canonical anomaly/deviation record emitted by C7/C8.
type Alert struct {
	AlertID         string    `json:"alert_id"`
	AlertType       string    `json:"alert_type"`
	UserID          string    `json:"user_id"`
	Severity        string    `json:"severity"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	AggregateValue  float64   `json:"avg_heart_rate"`
	EventCount      int       `json:"event_count"`
	Description     string    `json:"description"`
	EnrichedInsight string    `json:"ai_insight,omitempty"`
	Resolved        bool      `json:"resolved"`
}

// Severity levels, ordered low to high.
const (
	SeverityLow      = "LOW"
	SeverityModerate = "MODERATE"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// Alert type names emitted by the detector and baseline deviation.
const (
	AlertTachycardiaAtRest   = "TACHYCARDIA_AT_REST"
	AlertLowSpO2Hypoxia      = "LOW_SPO2_HYPOXIA"
	AlertElevatedTemperature = "ELEVATED_TEMPERATURE"
)
