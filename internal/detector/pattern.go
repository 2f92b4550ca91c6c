// Package detector implements the sustained-condition anomaly patterns:
// per-user, per-pattern streak detection over an ordered event stream,
// mirroring the MATCH_RECOGNIZE queries the pipeline used to run.
package detector

import (
	"time"

	"github.com/eljaska/telara/internal/events"
)

// WatermarkSlack is how far out of order an event may arrive and still
// be accepted for detection; events older than this relative to the
// newest seen for a user are dropped from pattern matching (they are
// still stored upstream).
const WatermarkSlack = 5 * time.Second

// Pattern describes one sustained-condition rule: a minimum run length
// of consecutive events satisfying Matches, terminated by the first
// event that does not.
type Pattern struct {
	AlertType string
	MinRun    int
	Field     string
	Matches   func(value float64) bool
	Severity  func(avg float64) string
	Describe  func(avg float64, count int) string
}

// Patterns are the three configured sustained-condition detectors.
var Patterns = []Pattern{
	{
		AlertType: events.AlertTachycardiaAtRest,
		MinRun:    5,
		Field:     "heart_rate",
		Matches:   func(v float64) bool { return v > 100 },
		Severity: func(avg float64) string {
			switch {
			case avg > 130:
				return events.SeverityCritical
			case avg > 115:
				return events.SeverityHigh
			default:
				return events.SeverityMedium
			}
		},
	},
	{
		AlertType: events.AlertLowSpO2Hypoxia,
		MinRun:    3,
		Field:     "spo2_percent",
		Matches:   func(v float64) bool { return v < 94 },
		Severity: func(avg float64) string {
			switch {
			case avg < 90:
				return events.SeverityCritical
			case avg < 92:
				return events.SeverityHigh
			default:
				return events.SeverityMedium
			}
		},
	},
	{
		AlertType: events.AlertElevatedTemperature,
		MinRun:    3,
		Field:     "skin_temp_c",
		Matches:   func(v float64) bool { return v > 37.5 },
		Severity: func(avg float64) string {
			switch {
			case avg > 38.5:
				return events.SeverityCritical
			case avg > 38.0:
				return events.SeverityHigh
			default:
				return events.SeverityMedium
			}
		},
	},
}

// extraPredicate returns the additional per-pattern conjuncts that the
// field/Matches pair alone can't express (tachycardia also requires
// sedentary activity and step rate when both fields are present; if
// either is absent, only the heart-rate condition applies).
func extraPredicate(alertType string, e events.RawEvent) bool {
	switch alertType {
	case events.AlertTachycardiaAtRest:
		activity, hasActivity := e.Get("activity_level")
		steps, hasSteps := e.Get("steps_per_minute")
		if !hasActivity || !hasSteps {
			return true
		}
		return activity < 10 && steps < 5
	default:
		return true
	}
}
