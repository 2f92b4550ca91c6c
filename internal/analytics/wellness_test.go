package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eljaska/telara/internal/baseline"
	"github.com/eljaska/telara/internal/events"
)

func TestWellnessScoreReturnsNeutralOnEmptyVitals(t *testing.T) {
	score, breakdown := WellnessScore(nil, nil, nil)
	assert.Equal(t, 50, score)
	assert.Equal(t, "no_data", breakdown.HeartHealth.Status)
}

func TestWellnessScoreOptimalVitalsScoreHigh(t *testing.T) {
	base := time.Now()
	var vitals []events.RawEvent
	for i := 0; i < 10; i++ {
		vitals = append(vitals, mkAnalyticsEvent(base.Add(time.Duration(i)*time.Minute), map[string]float64{
			"heart_rate":       70,
			"hrv_ms":           65,
			"activity_level":   40,
			"steps_per_minute": 35,
			"sleep_quality":    90,
		}))
	}
	score, breakdown := WellnessScore(vitals, nil, nil)
	require.GreaterOrEqual(t, score, 80)
	assert.Equal(t, "excellent", breakdown.HeartHealth.Status)
	assert.Equal(t, "no_alerts", breakdown.AlertStatus.Status)
}

func TestWellnessScorePenalizesCriticalAlerts(t *testing.T) {
	base := time.Now()
	vitals := []events.RawEvent{mkAnalyticsEvent(base, map[string]float64{"heart_rate": 70, "hrv_ms": 65, "activity_level": 40})}
	alerts := []events.Alert{{Severity: events.SeverityCritical}, {Severity: events.SeverityHigh}}

	_, breakdown := WellnessScore(vitals, alerts, nil)
	assert.Equal(t, "critical_alerts", breakdown.AlertStatus.Status)
	assert.Equal(t, 100-25-15, breakdown.AlertStatus.Score)
}

func TestStabilityScoreUsesPersonalBaselineWhenProvided(t *testing.T) {
	base := time.Now()
	vitals := []events.RawEvent{mkAnalyticsEvent(base, map[string]float64{"heart_rate": 100})}
	bl := &baseline.Baseline{AvgHeartRate: 100}

	score := stabilityScore(vitals, bl)
	assert.Equal(t, "very_stable", score.Status)
}
