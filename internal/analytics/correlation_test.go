package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/eljaska/telara/internal/events"
)

func mkAnalyticsEvent(ts time.Time, fields map[string]float64) events.RawEvent {
	return events.RawEvent{EventID: "evt", UserID: "user-1", Timestamp: ts, Fields: fields}
}

func TestCorrelateReturnsInsufficientDataUnderFloor(t *testing.T) {
	base := time.Now()
	var vitals []events.RawEvent
	for i := 0; i < 5; i++ {
		vitals = append(vitals, mkAnalyticsEvent(base.Add(time.Duration(i)*time.Minute), map[string]float64{
			"heart_rate": 70 + float64(i), "activity_level": float64(i),
		}))
	}
	r := Correlate("heart_rate", "activity_level", vitals)
	assert.True(t, r.InsufficientData)
}

func TestCorrelatePerfectPositiveCorrelation(t *testing.T) {
	base := time.Now()
	var vitals []events.RawEvent
	for i := 0; i < 12; i++ {
		vitals = append(vitals, mkAnalyticsEvent(base.Add(time.Duration(i)*time.Minute), map[string]float64{
			"heart_rate": 70 + float64(i), "activity_level": 10 + float64(i)*2,
		}))
	}
	r := Correlate("heart_rate", "activity_level", vitals)
	assert.False(t, r.InsufficientData)
	assert.InDelta(t, 1.0, r.Correlation, 0.01)
	assert.Equal(t, StrengthStrong, r.Strength)
	assert.Equal(t, "positive", r.Direction)
}

func TestCorrelateInvalidMetricReturnsInsufficientData(t *testing.T) {
	r := Correlate("bogus", "heart_rate", nil)
	assert.True(t, r.InsufficientData)
}

func TestStrengthBucketBoundaries(t *testing.T) {
	assert.Equal(t, StrengthStrong, strengthBucket(0.75))
	assert.Equal(t, StrengthModerate, strengthBucket(0.5))
	assert.Equal(t, StrengthWeak, strengthBucket(0.25))
	assert.Equal(t, StrengthNegligible, strengthBucket(0.1))
}
