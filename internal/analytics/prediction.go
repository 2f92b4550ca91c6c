package analytics

import (
	"fmt"
	"math"
	"time"

	"github.com/eljaska/telara/internal/baseline"
	"github.com/eljaska/telara/internal/events"
)

// Prediction is a single forward-looking health signal.
type Prediction struct {
	Metric         string
	Label          string
	PredictionType string // threshold_crossing, fatigue, stress
	Severity       string // moderate, high
	PredictedTime  time.Time
	HoursUntil     float64
	CurrentValue   float64
	PredictedValue float64
	Threshold      *float64
	Confidence     float64
	Message        string
	Recommendation string
}

type thresholdSpec struct {
	name  string
	value float64
	high  bool // true = crossing upward, false = crossing downward
}

var predictionThresholds = map[string][]thresholdSpec{
	"heart_rate":   {{"high", 100, true}, {"very_high", 120, true}, {"low", 50, false}},
	"hrv_ms":       {{"low", 30, false}, {"very_low", 20, false}},
	"spo2_percent": {{"low", 95, false}, {"very_low", 92, false}},
	"skin_temp_c":  {{"high", 37.5, true}, {"very_high", 38.5, true}},
}

var metricLabels = map[string]string{
	"heart_rate":     "Heart Rate",
	"hrv_ms":         "HRV",
	"spo2_percent":   "Blood Oxygen",
	"skin_temp_c":    "Temperature",
	"activity_level": "Activity Level",
}

var thresholdRecommendations = map[[2]string]string{
	{"heart_rate", "high"}:      "Consider reducing activity and practicing calm breathing.",
	{"heart_rate", "very_high"}: "Take a break, hydrate, and monitor your stress levels.",
	{"heart_rate", "low"}:       "This is usually healthy at rest, but monitor for dizziness.",
	{"hrv_ms", "low"}:           "Your recovery may be declining. Prioritize rest and sleep.",
	{"hrv_ms", "very_low"}:      "Your body needs recovery. Avoid strenuous activity today.",
	{"spo2_percent", "low"}:     "Take deep breaths and ensure good ventilation.",
	{"spo2_percent", "very_low"}: "Seek fresh air. If persistent, consult a healthcare provider.",
	{"skin_temp_c", "high"}:     "Monitor for other symptoms. Stay hydrated and rest.",
	{"skin_temp_c", "very_high"}: "You may be developing a fever. Rest and monitor closely.",
}

// LinearRegression fits y = slope*x + intercept and returns R².
func LinearRegression(x, y []float64) (slope, intercept, rSquared float64) {
	n := float64(len(x))
	if n < 2 {
		return 0, 0, 0
	}

	var sumX, sumY, sumXY, sumX2 float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
		sumXY += x[i] * y[i]
		sumX2 += x[i] * x[i]
	}

	denominator := n*sumX2 - sumX*sumX
	if denominator == 0 {
		return 0, sumY / n, 0
	}

	slope = (n*sumXY - sumX*sumY) / denominator
	intercept = (sumY - slope*sumX) / n

	yMean := sumY / n
	var ssTot, ssRes float64
	for i := range x {
		ssTot += (y[i] - yMean) * (y[i] - yMean)
		predicted := slope*x[i] + intercept
		ssRes += (y[i] - predicted) * (y[i] - predicted)
	}

	if ssTot > 0 {
		rSquared = 1 - ssRes/ssTot
	}
	if rSquared < 0 {
		rSquared = 0
	}
	return slope, intercept, rSquared
}

// PredictMetricValue fits a trend line over timestamps/values and
// projects hoursAhead forward, returning a confidence gated by both
// fit quality (R²) and how much data-span backs the fit.
func PredictMetricValue(timestamps []time.Time, values []float64, hoursAhead float64) (predicted, slopePerHour, confidence float64) {
	if len(values) < 5 {
		if len(values) == 0 {
			return 0, 0, 0
		}
		return values[len(values)-1], 0, 0
	}

	base := timestamps[0]
	x := make([]float64, len(timestamps))
	for i, ts := range timestamps {
		x[i] = ts.Sub(base).Hours()
	}

	slope, intercept, rSquared := LinearRegression(x, values)

	futureX := x[len(x)-1] + hoursAhead
	predicted = slope*futureX + intercept

	dataSpanHours := timestamps[len(timestamps)-1].Sub(base).Hours()
	recencyFactor := math.Min(1.0, dataSpanHours/2)

	confidence = rSquared * recencyFactor * 0.8
	return predicted, slope, confidence
}

// PredictThresholdCrossing scans the configured thresholds for metric
// and returns the soonest crossing within maxHours, or nil.
func PredictThresholdCrossing(metric string, vitals []events.RawEvent, maxHours float64, now time.Time) *Prediction {
	thresholds, ok := predictionThresholds[metric]
	if !ok {
		return nil
	}

	var timestamps []time.Time
	var values []float64
	for _, v := range vitals {
		if val, ok := v.Get(metric); ok {
			timestamps = append(timestamps, v.Timestamp)
			values = append(values, val)
		}
	}
	if len(values) < 5 {
		return nil
	}

	currentValue := values[len(values)-1]
	_, slope, confidence := PredictMetricValue(timestamps, values, 1)
	if confidence < 0.3 {
		return nil
	}

	for _, th := range thresholds {
		if th.high {
			if slope > 0 && currentValue < th.value {
				hoursToThreshold := (th.value - currentValue) / slope
				if hoursToThreshold > 0 && hoursToThreshold <= maxHours {
					return buildThresholdPrediction(metric, th, currentValue, hoursToThreshold, confidence, now, true)
				}
			}
		} else {
			if slope < 0 && currentValue > th.value {
				hoursToThreshold := (currentValue - th.value) / -slope
				if hoursToThreshold > 0 && hoursToThreshold <= maxHours {
					return buildThresholdPrediction(metric, th, currentValue, hoursToThreshold, confidence, now, false)
				}
			}
		}
	}
	return nil
}

func buildThresholdPrediction(metric string, th thresholdSpec, currentValue, hoursToThreshold, confidence float64, now time.Time, rising bool) *Prediction {
	severity := "moderate"
	if contains(th.name, "very") {
		severity = "high"
	}
	threshold := th.value
	verb := "exceed"
	if !rising {
		verb = "drop below"
	}
	label := metricLabels[metric]

	return &Prediction{
		Metric:         metric,
		Label:          label,
		PredictionType: "threshold_crossing",
		Severity:       severity,
		PredictedTime:  now.Add(time.Duration(hoursToThreshold * float64(time.Hour))),
		HoursUntil:     round1(hoursToThreshold),
		CurrentValue:   currentValue,
		PredictedValue: threshold,
		Threshold:      &threshold,
		Confidence:     round2(confidence),
		Message:        fmt.Sprintf("Your %s may %s %.1f in approximately %.1f hours", label, verb, threshold, hoursToThreshold),
		Recommendation: thresholdRecommendations[[2]string{metric, th.name}],
	}
}

// PredictFatigue flags a declining-HRV trend heading below 85% of
// the user's personal baseline.
func PredictFatigue(vitals []events.RawEvent, bl *baseline.Baseline, now time.Time) *Prediction {
	if len(vitals) < 10 {
		return nil
	}

	var timestamps []time.Time
	var values []float64
	for _, v := range vitals {
		if val, ok := v.Get("hrv_ms"); ok {
			timestamps = append(timestamps, v.Timestamp)
			values = append(values, val)
		}
	}
	if len(values) < 5 {
		return nil
	}

	predictedHRV, slope, confidence := PredictMetricValue(timestamps, values, 2)
	currentHRV := values[len(values)-1]
	baselineHRV := 50.0
	if bl != nil && bl.AvgHRV > 0 {
		baselineHRV = bl.AvgHRV
	}

	if slope >= -1 || currentHRV >= baselineHRV*0.85 {
		return nil
	}

	hoursToLowHRV := 4.0
	if slope < 0 {
		hoursToLowHRV = math.Abs((currentHRV - 30) / slope)
	}
	hoursToLowHRV = math.Min(hoursToLowHRV, 6)

	predictedTime := now.Add(time.Duration(hoursToLowHRV * float64(time.Hour)))
	threshold := 30.0

	return &Prediction{
		Metric:         "fatigue",
		Label:          "Energy Level",
		PredictionType: "fatigue",
		Severity:       "moderate",
		PredictedTime:  predictedTime,
		HoursUntil:     round1(hoursToLowHRV),
		CurrentValue:   currentHRV,
		PredictedValue: predictedHRV,
		Threshold:      &threshold,
		Confidence:     round2(confidence * 0.8),
		Message:        fmt.Sprintf("Based on your current HRV trajectory, you may experience fatigue %s", timeOfDayMessage(predictedTime)),
		Recommendation: "Consider a short break, light stretching, or a brief walk to boost energy.",
	}
}

// PredictStress flags elevated HR with compressed HRV and low activity
// relative to the user's baseline, over the most recent samples.
func PredictStress(vitals []events.RawEvent, bl *baseline.Baseline, now time.Time) *Prediction {
	if len(vitals) < 10 {
		return nil
	}

	recentN := 20
	if len(vitals) < recentN {
		recentN = len(vitals)
	}
	recent := vitals[:recentN]

	avgHR, nHR := avgField(recent, "heart_rate")
	avgHRV, nHRV := avgField(recent, "hrv_ms")
	avgActivity, nActivity := avgField(recent, "activity_level")
	if nHR == 0 || nHRV == 0 {
		return nil
	}
	if nActivity == 0 {
		avgActivity = 20
	}

	baselineHR := 72.0
	baselineHRV := 50.0
	if bl != nil {
		if bl.AvgHeartRate > 0 {
			baselineHR = bl.AvgHeartRate
		}
		if bl.AvgHRV > 0 {
			baselineHRV = bl.AvgHRV
		}
	}

	hrElevated := avgHR > baselineHR*1.15
	hrvCompressed := avgHRV < baselineHRV*0.75
	lowActivity := avgActivity < 30

	if !(hrElevated && hrvCompressed && lowActivity) {
		return nil
	}

	confidence := 0.6
	if hrElevated {
		confidence += 0.1
	}
	if hrvCompressed {
		confidence += 0.1
	}

	severity := "moderate"
	if avgHR >= baselineHR*1.25 {
		severity = "high"
	}

	return &Prediction{
		Metric:         "stress",
		Label:          "Stress Level",
		PredictionType: "stress",
		Severity:       severity,
		PredictedTime:  now.Add(time.Hour),
		HoursUntil:     1,
		CurrentValue:   avgHR,
		PredictedValue: avgHR * 1.05,
		Threshold:      nil,
		Confidence:     round2(confidence),
		Message:        fmt.Sprintf("Your vitals suggest elevated stress: HR %.0f bpm (elevated) with compressed HRV (%.0f ms)", avgHR, avgHRV),
		Recommendation: "Try a 5-minute breathing exercise or step away from stressors. Consider a short walk.",
	}
}

func timeOfDayMessage(t time.Time) string {
	h := t.Hour()
	switch {
	case h >= 12 && h < 14:
		return "around lunchtime"
	case h >= 14 && h < 17:
		return fmt.Sprintf("around %dpm", h-12)
	case h >= 17:
		return "this evening"
	default:
		return fmt.Sprintf("around %dam", h)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
