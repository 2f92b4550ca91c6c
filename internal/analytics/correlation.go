// Package analytics computes the derived health-insight bundle:
// correlations, wellness scoring, recommendations, predictions, and
// historical comparisons, all read off a window of vitals and alerts.
package analytics

import (
	"math"
	"time"

	"github.com/eljaska/telara/internal/events"
)

// ValidCorrelationMetrics are the fields correlation analysis accepts.
var ValidCorrelationMetrics = map[string]bool{
	"heart_rate":     true,
	"hrv_ms":         true,
	"spo2_percent":   true,
	"skin_temp_c":    true,
	"activity_level": true,
}

// Correlation strength buckets.
const (
	StrengthStrong     = "strong"
	StrengthModerate   = "moderate"
	StrengthWeak       = "weak"
	StrengthNegligible = "negligible"
)

// CorrelationResult is the outcome of comparing two metrics over a window.
type CorrelationResult struct {
	Metric1        string
	Metric2        string
	Correlation    float64
	Strength       string
	Direction      string
	DataPoints     int
	Interpretation string
	InsufficientData bool
}

const minCorrelationPairs = 10

// Correlate computes the Pearson correlation between metric1 and
// metric2 across vitals where both are present, at matching indices
// (caller is expected to pass time-aligned samples).
func Correlate(metric1, metric2 string, vitals []events.RawEvent) CorrelationResult {
	if !ValidCorrelationMetrics[metric1] || !ValidCorrelationMetrics[metric2] {
		return CorrelationResult{Metric1: metric1, Metric2: metric2, InsufficientData: true}
	}

	var v1, v2 []float64
	for _, e := range vitals {
		a, okA := e.Get(metric1)
		b, okB := e.Get(metric2)
		if okA && okB {
			v1 = append(v1, a)
			v2 = append(v2, b)
		}
	}

	if len(v1) < minCorrelationPairs {
		return CorrelationResult{
			Metric1: metric1, Metric2: metric2,
			DataPoints: len(v1), InsufficientData: true,
		}
	}

	r := pearson(v1, v2)
	strength := strengthBucket(r)
	direction := "positive"
	if r < 0 {
		direction = "negative"
	}

	return CorrelationResult{
		Metric1:     metric1,
		Metric2:     metric2,
		Correlation: round3(r),
		Strength:    strength,
		Direction:   direction,
		DataPoints:  len(v1),
		Interpretation: capitalize(strength) + " " + direction + " correlation between " + metric1 + " and " + metric2,
	}
}

// LaggedCorrelate pairs each source sample at t with the nearest
// target-metric sample within ±2h of t+lag, then runs the same
// Pearson calculation on the paired values.
func LaggedCorrelate(sourceMetric, targetMetric string, lagHours float64, vitals []events.RawEvent) CorrelationResult {
	const minLaggedPairs = 5
	const tolerance = 2 * 3600.0 // seconds

	var v1, v2 []float64
	for _, src := range vitals {
		sv, ok := src.Get(sourceMetric)
		if !ok {
			continue
		}
		targetTs := src.Timestamp.Add(time.Duration(lagHours * float64(time.Hour)))

		var best events.RawEvent
		bestDiff := math.Inf(1)
		found := false
		for _, tgt := range vitals {
			tv, ok := tgt.Get(targetMetric)
			if !ok {
				continue
			}
			diff := math.Abs(tgt.Timestamp.Sub(targetTs).Seconds())
			if diff <= tolerance && diff < bestDiff {
				bestDiff = diff
				best = tgt
				found = true
				_ = tv
			}
		}
		if found {
			tv, _ := best.Get(targetMetric)
			v1 = append(v1, sv)
			v2 = append(v2, tv)
		}
	}

	if len(v1) < minLaggedPairs {
		return CorrelationResult{
			Metric1: sourceMetric, Metric2: targetMetric,
			DataPoints: len(v1), InsufficientData: true,
		}
	}

	r := pearson(v1, v2)
	strength := strengthBucket(r)
	direction := "positive"
	if r < 0 {
		direction = "negative"
	}
	return CorrelationResult{
		Metric1:     sourceMetric,
		Metric2:     targetMetric,
		Correlation: round3(r),
		Strength:    strength,
		Direction:   direction,
		DataPoints:  len(v1),
		Interpretation: capitalize(strength) + " " + direction + " lagged correlation between " + sourceMetric + " and " + targetMetric,
	}
}

func pearson(v1, v2 []float64) float64 {
	n := float64(len(v1))
	var mean1, mean2 float64
	for i := range v1 {
		mean1 += v1[i]
		mean2 += v2[i]
	}
	mean1 /= n
	mean2 /= n

	var numerator, denom1, denom2 float64
	for i := range v1 {
		d1 := v1[i] - mean1
		d2 := v2[i] - mean2
		numerator += d1 * d2
		denom1 += d1 * d1
		denom2 += d2 * d2
	}
	if denom1 == 0 || denom2 == 0 {
		return 0
	}
	return numerator / (math.Sqrt(denom1) * math.Sqrt(denom2))
}

func strengthBucket(r float64) string {
	abs := math.Abs(r)
	switch {
	case abs >= 0.7:
		return StrengthStrong
	case abs >= 0.4:
		return StrengthModerate
	case abs >= 0.2:
		return StrengthWeak
	default:
		return StrengthNegligible
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return string(s[0]-32) + s[1:]
}
