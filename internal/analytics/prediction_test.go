package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eljaska/telara/internal/baseline"
	"github.com/eljaska/telara/internal/events"
)

func TestLinearRegressionPerfectFitHasFullRSquared(t *testing.T) {
	x := []float64{0, 1, 2, 3, 4}
	y := []float64{10, 12, 14, 16, 18}
	slope, intercept, r2 := LinearRegression(x, y)
	assert.InDelta(t, 2.0, slope, 0.001)
	assert.InDelta(t, 10.0, intercept, 0.001)
	assert.InDelta(t, 1.0, r2, 0.001)
}

func TestPredictThresholdCrossingFindsRisingHeartRate(t *testing.T) {
	now := time.Now()
	base := now.Add(-50 * time.Minute)
	var vitals []events.RawEvent
	for i := 0; i < 10; i++ {
		vitals = append(vitals, mkAnalyticsEvent(base.Add(time.Duration(i)*5*time.Minute), map[string]float64{
			"heart_rate": 80 + float64(i)*2,
		}))
	}
	pred := PredictThresholdCrossing("heart_rate", vitals, 6, now)
	require.NotNil(t, pred)
	assert.Equal(t, "threshold_crossing", pred.PredictionType)
	assert.Greater(t, pred.HoursUntil, 0.0)
}

func TestPredictThresholdCrossingNilWithTooFewSamples(t *testing.T) {
	now := time.Now()
	vitals := []events.RawEvent{mkAnalyticsEvent(now, map[string]float64{"heart_rate": 120})}
	pred := PredictThresholdCrossing("heart_rate", vitals, 6, now)
	assert.Nil(t, pred)
}

func TestPredictFatigueRequiresDecliningHRVBelowBaseline(t *testing.T) {
	now := time.Now()
	base := now.Add(-2 * time.Hour)
	var vitals []events.RawEvent
	for i := 0; i < 12; i++ {
		vitals = append(vitals, mkAnalyticsEvent(base.Add(time.Duration(i)*10*time.Minute), map[string]float64{
			"hrv_ms": 60 - float64(i)*2,
		}))
	}
	bl := &baseline.Baseline{AvgHRV: 60}
	pred := PredictFatigue(vitals, bl, now)
	require.NotNil(t, pred)
	assert.Equal(t, "fatigue", pred.PredictionType)
}

func TestPredictStressRequiresAllThreeIndicators(t *testing.T) {
	now := time.Now()
	var vitals []events.RawEvent
	for i := 0; i < 15; i++ {
		vitals = append(vitals, mkAnalyticsEvent(now.Add(-time.Duration(i)*time.Minute), map[string]float64{
			"heart_rate":     100,
			"hrv_ms":         25,
			"activity_level": 5,
		}))
	}
	bl := &baseline.Baseline{AvgHeartRate: 70, AvgHRV: 50}
	pred := PredictStress(vitals, bl, now)
	require.NotNil(t, pred)
	assert.Equal(t, "stress", pred.PredictionType)
}

func TestGenerateAllPredictionsEmptyVitalsReturnsUnavailable(t *testing.T) {
	bundle := GenerateAllPredictions(nil, nil, 6, time.Now())
	assert.False(t, bundle.DataAvailable)
}
