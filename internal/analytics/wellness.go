package analytics

import (
	"github.com/eljaska/telara/internal/baseline"
	"github.com/eljaska/telara/internal/events"
)

// SubScore is one weighted component of the wellness score.
type SubScore struct {
	Score  int
	Status string
}

// WellnessBreakdown holds every component behind the final score.
type WellnessBreakdown struct {
	HeartHealth  SubScore
	Recovery     SubScore
	Activity     SubScore
	Stability    SubScore
	AlertStatus  SubScore
	AlertCounts  AlertCounts
}

// AlertCounts tallies active alerts by severity for the alert subscore.
type AlertCounts struct {
	Critical, High, Medium, Low int
}

// Wellness weights: heart health 25%, recovery 20%, activity 20%,
// stability 20%, alert status 15%.
const (
	weightHeartHealth = 0.25
	weightRecovery    = 0.20
	weightActivity    = 0.20
	weightStability   = 0.20
	weightAlertStatus = 0.15
)

// WellnessScore computes the 0-100 composite score and its breakdown.
func WellnessScore(vitals []events.RawEvent, alerts []events.Alert, bl *baseline.Baseline) (int, WellnessBreakdown) {
	if len(vitals) == 0 {
		return 50, WellnessBreakdown{
			HeartHealth: SubScore{50, "no_data"},
			Recovery:    SubScore{50, "no_data"},
			Activity:    SubScore{50, "no_data"},
			Stability:   SubScore{50, "no_data"},
			AlertStatus: SubScore{100, "no_alerts"},
		}
	}

	breakdown := WellnessBreakdown{
		HeartHealth: heartHealthScore(vitals),
		Recovery:    recoveryScore(vitals),
		Activity:    activityScore(vitals),
		Stability:   stabilityScore(vitals, bl),
		AlertStatus: alertScore(alerts),
	}
	breakdown.AlertCounts = countAlerts(alerts)

	weighted := float64(breakdown.HeartHealth.Score)*weightHeartHealth +
		float64(breakdown.Recovery.Score)*weightRecovery +
		float64(breakdown.Activity.Score)*weightActivity +
		float64(breakdown.Stability.Score)*weightStability +
		float64(breakdown.AlertStatus.Score)*weightAlertStatus

	return int(weighted), breakdown
}

func avgField(vitals []events.RawEvent, field string) (float64, int) {
	var sum float64
	var n int
	for _, e := range vitals {
		if v, ok := e.Get(field); ok {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return sum / float64(n), n
}

func statusByThreshold(combined float64) string {
	switch {
	case combined >= 85:
		return "excellent"
	case combined >= 70:
		return "good"
	case combined >= 50:
		return "fair"
	default:
		return "needs_attention"
	}
}

func heartHealthScore(vitals []events.RawEvent) SubScore {
	avgHR, nHR := avgField(vitals, "heart_rate")
	avgHRV, nHRV := avgField(vitals, "hrv_ms")
	if nHR == 0 || nHRV == 0 {
		return SubScore{50, "incomplete_data"}
	}

	var hrScore int
	switch {
	case avgHR >= 60 && avgHR <= 80:
		hrScore = 100
	case avgHR >= 55 && avgHR <= 90:
		hrScore = 80
	case avgHR >= 50 && avgHR <= 100:
		hrScore = 60
	default:
		hrScore = 40
	}

	var hrvScore int
	switch {
	case avgHRV >= 60:
		hrvScore = 100
	case avgHRV >= 45:
		hrvScore = 85
	case avgHRV >= 30:
		hrvScore = 65
	case avgHRV >= 20:
		hrvScore = 45
	default:
		hrvScore = 30
	}

	combined := float64(hrScore)*0.4 + float64(hrvScore)*0.6
	return SubScore{int(combined), statusByThreshold(combined)}
}

func recoveryScore(vitals []events.RawEvent) SubScore {
	avgHRV, nHRV := avgField(vitals, "hrv_ms")
	avgSleep, nSleep := avgField(vitals, "sleep_quality")

	hrvScore := 50
	if nHRV >= 5 {
		switch {
		case avgHRV >= 50:
			hrvScore = 90
		case avgHRV >= 40:
			hrvScore = 75
		case avgHRV >= 30:
			hrvScore = 55
		default:
			hrvScore = 35
		}
	}

	sleepScore := 70
	if nSleep > 0 {
		switch {
		case avgSleep >= 85:
			sleepScore = 100
		case avgSleep >= 70:
			sleepScore = 80
		case avgSleep >= 55:
			sleepScore = 60
		default:
			sleepScore = 40
		}
	}

	combined := float64(hrvScore)*0.6 + float64(sleepScore)*0.4
	return SubScore{int(combined), statusByThreshold(combined)}
}

func activityScore(vitals []events.RawEvent) SubScore {
	avgActivity, nActivity := avgField(vitals, "activity_level")
	avgSteps, _ := avgField(vitals, "steps_per_minute")
	if nActivity == 0 {
		return SubScore{50, "incomplete_data"}
	}

	var activityScore int
	switch {
	case avgActivity >= 50:
		activityScore = 95
	case avgActivity >= 35:
		activityScore = 80
	case avgActivity >= 20:
		activityScore = 65
	case avgActivity >= 10:
		activityScore = 50
	default:
		activityScore = 35
	}

	var stepsScore int
	switch {
	case avgSteps >= 50:
		stepsScore = 100
	case avgSteps >= 30:
		stepsScore = 85
	case avgSteps >= 15:
		stepsScore = 65
	case avgSteps >= 5:
		stepsScore = 45
	default:
		stepsScore = 30
	}

	combined := float64(activityScore)*0.6 + float64(stepsScore)*0.4
	status := "very_sedentary"
	switch {
	case combined >= 80:
		status = "active"
	case combined >= 60:
		status = "moderate"
	case combined >= 40:
		status = "sedentary"
	}
	return SubScore{int(combined), status}
}

func stabilityScore(vitals []events.RawEvent, bl *baseline.Baseline) SubScore {
	avgHR := 72.0
	avgHRVBaseline := 50.0
	avgSpO2Baseline := 98.0
	avgTempBaseline := 36.5
	if bl != nil {
		avgHR = bl.AvgHeartRate
		avgHRVBaseline = bl.AvgHRV
		avgSpO2Baseline = bl.AvgSpO2
		avgTempBaseline = bl.AvgTemp
	}

	var deviations []float64
	if hr, n := avgField(vitals, "heart_rate"); n > 0 && avgHR > 0 {
		deviations = append(deviations, absf(hr-avgHR)/avgHR)
	}
	if hrv, n := avgField(vitals, "hrv_ms"); n > 0 && avgHRVBaseline > 0 {
		deviations = append(deviations, absf(hrv-avgHRVBaseline)/avgHRVBaseline)
	}
	if spo2, n := avgField(vitals, "spo2_percent"); n > 0 && avgSpO2Baseline > 0 {
		deviations = append(deviations, 2*absf(spo2-avgSpO2Baseline)/avgSpO2Baseline)
	}
	if temp, n := avgField(vitals, "skin_temp_c"); n > 0 && avgTempBaseline > 0 {
		deviations = append(deviations, 3*absf(temp-avgTempBaseline)/avgTempBaseline)
	}

	if len(deviations) == 0 {
		return SubScore{50, "no_baseline"}
	}

	var sum float64
	for _, d := range deviations {
		sum += d
	}
	avgDeviation := sum / float64(len(deviations))

	switch {
	case avgDeviation <= 0.05:
		return SubScore{100, "very_stable"}
	case avgDeviation <= 0.10:
		return SubScore{85, "stable"}
	case avgDeviation <= 0.20:
		return SubScore{70, "slight_variance"}
	case avgDeviation <= 0.35:
		return SubScore{50, "moderate_variance"}
	default:
		return SubScore{30, "high_variance"}
	}
}

func countAlerts(alerts []events.Alert) AlertCounts {
	var c AlertCounts
	for _, a := range alerts {
		switch a.Severity {
		case events.SeverityCritical:
			c.Critical++
		case events.SeverityHigh:
			c.High++
		case events.SeverityMedium:
			c.Medium++
		case events.SeverityLow:
			c.Low++
		}
	}
	return c
}

func alertScore(alerts []events.Alert) SubScore {
	if len(alerts) == 0 {
		return SubScore{100, "no_alerts"}
	}
	c := countAlerts(alerts)
	penalty := c.Critical*25 + c.High*15 + c.Medium*8 + c.Low*3
	score := 100 - penalty
	if score < 0 {
		score = 0
	}

	status := "no_alerts"
	switch {
	case c.Critical > 0:
		status = "critical_alerts"
	case c.High > 0:
		status = "high_alerts"
	case c.Medium > 0:
		status = "moderate_alerts"
	case c.Low > 0:
		status = "minor_alerts"
	}
	return SubScore{score, status}
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
