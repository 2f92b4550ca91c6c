package detector

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eljaska/telara/internal/events"
)

func mkDetectorEvent(userID string, ts time.Time, fields map[string]float64) events.RawEvent {
	return events.RawEvent{
		EventID:   "evt",
		UserID:    userID,
		Source:    "apple_health",
		Timestamp: ts,
		Fields:    fields,
	}
}

func TestEngineEmitsTachycardiaAfterMinRunAndTerminator(t *testing.T) {
	e := NewEngine()
	base := time.Now()

	var alerts []events.Alert
	for i := 0; i < 5; i++ {
		a := e.Process(mkDetectorEvent("user-1", base.Add(time.Duration(i)*time.Second), map[string]float64{
			"heart_rate":       110,
			"activity_level":   2,
			"steps_per_minute": 1,
		}))
		alerts = append(alerts, a...)
	}
	assert.Empty(t, alerts, "no alert until the terminator closes the run")

	closing := e.Process(mkDetectorEvent("user-1", base.Add(5*time.Second), map[string]float64{
		"heart_rate":       80,
		"activity_level":   2,
		"steps_per_minute": 1,
	}))
	require.Len(t, closing, 1)
	assert.Equal(t, events.AlertTachycardiaAtRest, closing[0].AlertType)
	assert.Equal(t, 5, closing[0].EventCount)
	assert.Equal(t, events.SeverityMedium, closing[0].Severity)
}

func TestEngineSkipsRunsShorterThanMinRun(t *testing.T) {
	e := NewEngine()
	base := time.Now()

	for i := 0; i < 3; i++ {
		e.Process(mkDetectorEvent("user-1", base.Add(time.Duration(i)*time.Second), map[string]float64{
			"heart_rate":       110,
			"activity_level":   2,
			"steps_per_minute": 1,
		}))
	}
	closing := e.Process(mkDetectorEvent("user-1", base.Add(3*time.Second), map[string]float64{
		"heart_rate":       80,
		"activity_level":   2,
		"steps_per_minute": 1,
	}))
	assert.Empty(t, closing, "a 3-event run must not satisfy min_run=5")
}

func TestEngineSeverityEscalatesWithAverage(t *testing.T) {
	e := NewEngine()
	base := time.Now()

	for i := 0; i < 5; i++ {
		e.Process(mkDetectorEvent("user-1", base.Add(time.Duration(i)*time.Second), map[string]float64{
			"heart_rate":       140,
			"activity_level":   2,
			"steps_per_minute": 1,
		}))
	}
	closing := e.Process(mkDetectorEvent("user-1", base.Add(5*time.Second), map[string]float64{
		"heart_rate":       80,
		"activity_level":   2,
		"steps_per_minute": 1,
	}))
	require.Len(t, closing, 1)
	assert.Equal(t, events.SeverityCritical, closing[0].Severity)
}

func TestEngineHypoxiaDetection(t *testing.T) {
	e := NewEngine()
	base := time.Now()

	for i := 0; i < 3; i++ {
		e.Process(mkDetectorEvent("user-1", base.Add(time.Duration(i)*time.Second), map[string]float64{
			"spo2_percent": 88,
		}))
	}
	closing := e.Process(mkDetectorEvent("user-1", base.Add(3*time.Second), map[string]float64{
		"spo2_percent": 96,
	}))
	require.Len(t, closing, 1)
	assert.Equal(t, events.AlertLowSpO2Hypoxia, closing[0].AlertType)
	assert.Equal(t, events.SeverityCritical, closing[0].Severity)
}

func TestEngineDropsLateEventsPastWatermark(t *testing.T) {
	e := NewEngine()
	base := time.Now()

	e.Process(mkDetectorEvent("user-1", base, map[string]float64{"spo2_percent": 88}))
	e.Process(mkDetectorEvent("user-1", base.Add(10*time.Second), map[string]float64{"spo2_percent": 88}))

	late := mkDetectorEvent("user-1", base.Add(time.Second), map[string]float64{"spo2_percent": 88})
	alerts := e.Process(late)
	assert.Empty(t, alerts, "a late event past watermark slack produces no detection effect")
}

func TestEngineTracksUsersIndependently(t *testing.T) {
	e := NewEngine()
	base := time.Now()

	for i := 0; i < 3; i++ {
		e.Process(mkDetectorEvent("user-1", base.Add(time.Duration(i)*time.Second), map[string]float64{"spo2_percent": 88}))
	}
	alerts := e.Process(mkDetectorEvent("user-2", base, map[string]float64{"spo2_percent": 96}))
	assert.Empty(t, alerts, "user-2's terminator must not close user-1's run")
}

func TestEngineMissingFieldActsAsTerminator(t *testing.T) {
	e := NewEngine()
	base := time.Now()

	for i := 0; i < 3; i++ {
		e.Process(mkDetectorEvent("user-1", base.Add(time.Duration(i)*time.Second), map[string]float64{"skin_temp_c": 38.0}))
	}
	alerts := e.Process(mkDetectorEvent("user-1", base.Add(3*time.Second), map[string]float64{"heart_rate": 70}))
	require.Len(t, alerts, 1)
	assert.Equal(t, events.AlertElevatedTemperature, alerts[0].AlertType)
}
