package baseline

import (
	"fmt"
	"math"
	"sort"

	"github.com/eljaska/telara/internal/events"
)

// Deviation severities. Distinct from events.Severity: deviations are
// a personal-baseline signal, not the pattern detector's alert feed.
const (
	DeviationSeverityHigh     = "high"
	DeviationSeverityModerate = "moderate"
)

// Deviation describes one metric's departure from a user's personal norm.
type Deviation struct {
	Metric        string
	Label         string
	Current       float64
	Baseline      float64
	Unit          string
	PercentChange float64
	Direction     string
	Severity      string
	Message       string
}

// Report bundles every deviation found in one reading, most severe first.
type Report struct {
	HasDeviation      bool
	Deviations        []Deviation
	BaselineDataPoints int
	PrimaryDeviation  *Deviation
}

// CheckDeviation compares current against the user's baseline and
// returns nil if there isn't enough history yet or nothing deviates.
func (m *Maintainer) CheckDeviation(userID string, current events.RawEvent) *Report {
	b, ok := m.Get(userID)
	if !ok || b.DataPoints < MinDataPoints {
		return nil
	}

	var deviations []Deviation

	if hr, ok := current.Get("heart_rate"); ok && b.AvgHeartRate > 0 {
		pctChange := (hr - b.AvgHeartRate) / b.AvgHeartRate * 100
		zScore := zscore(hr, b.AvgHeartRate, b.StdHeartRate)
		if math.Abs(pctChange) > 15 || math.Abs(zScore) > 2 {
			direction := "lower"
			if pctChange > 0 {
				direction = "higher"
			}
			severity := DeviationSeverityModerate
			if math.Abs(pctChange) > 25 {
				severity = DeviationSeverityHigh
			}
			deviations = append(deviations, Deviation{
				Metric: "heart_rate", Label: "Heart Rate",
				Current: hr, Baseline: math.Round(b.AvgHeartRate), Unit: "bpm",
				PercentChange: round1(pctChange), Direction: direction, Severity: severity,
				Message: fmt.Sprintf("Your HR is %.0f bpm - %.0f%% %s than YOUR typical %.0f bpm",
					hr, math.Abs(math.Round(pctChange)), direction, math.Round(b.AvgHeartRate)),
			})
		}
	}

	if hrv, ok := current.Get("hrv_ms"); ok && b.AvgHRV > 0 {
		pctChange := (hrv - b.AvgHRV) / b.AvgHRV * 100
		zScore := zscore(hrv, b.AvgHRV, b.StdHRV)
		if pctChange < -20 || zScore < -2 {
			severity := DeviationSeverityModerate
			if pctChange < -30 {
				severity = DeviationSeverityHigh
			}
			deviations = append(deviations, Deviation{
				Metric: "hrv_ms", Label: "HRV",
				Current: hrv, Baseline: math.Round(b.AvgHRV), Unit: "ms",
				PercentChange: round1(pctChange), Direction: "lower", Severity: severity,
				Message: fmt.Sprintf("Your HRV is %.0f ms - %.0f%% lower than YOUR typical %.0f ms (indicates reduced recovery)",
					hrv, math.Abs(math.Round(pctChange)), math.Round(b.AvgHRV)),
			})
		}
	}

	if spo2, ok := current.Get("spo2_percent"); ok && b.AvgSpO2 > 0 {
		if spo2 < 95 || spo2 < b.AvgSpO2-2 {
			pctChange := (spo2 - b.AvgSpO2) / b.AvgSpO2 * 100
			severity := DeviationSeverityModerate
			if spo2 < 94 {
				severity = DeviationSeverityHigh
			}
			deviations = append(deviations, Deviation{
				Metric: "spo2_percent", Label: "Blood Oxygen",
				Current: spo2, Baseline: math.Round(b.AvgSpO2), Unit: "%",
				PercentChange: round1(pctChange), Direction: "lower", Severity: severity,
				Message: fmt.Sprintf("Your SpO2 is %.0f%% - below YOUR typical %.0f%%", spo2, math.Round(b.AvgSpO2)),
			})
		}
	}

	if temp, ok := current.Get("skin_temp_c"); ok && b.AvgTemp > 0 {
		diff := temp - b.AvgTemp
		if math.Abs(diff) > 0.5 {
			pctChange := diff / b.AvgTemp * 100
			direction := "lower"
			if diff > 0 {
				direction = "higher"
			}
			severity := DeviationSeverityModerate
			if math.Abs(diff) > 1.0 {
				severity = DeviationSeverityHigh
			}
			prep := "below"
			if diff > 0 {
				prep = "above"
			}
			deviations = append(deviations, Deviation{
				Metric: "skin_temp_c", Label: "Temperature",
				Current: round1(temp), Baseline: round1(b.AvgTemp), Unit: "°C",
				PercentChange: round1(pctChange), Direction: direction, Severity: severity,
				Message: fmt.Sprintf("Your temp is %.1f°C - %.1f°C %s YOUR typical %.1f°C",
					round1(temp), math.Abs(round1(diff)), prep, round1(b.AvgTemp)),
			})
		}
	}

	if len(deviations) == 0 {
		return nil
	}

	sort.SliceStable(deviations, func(i, j int) bool {
		return severityRank(deviations[i].Severity) < severityRank(deviations[j].Severity)
	})

	return &Report{
		HasDeviation:       true,
		Deviations:         deviations,
		BaselineDataPoints: b.DataPoints,
		PrimaryDeviation:   &deviations[0],
	}
}

func zscore(value, mean, std float64) float64 {
	if std <= 0 {
		return 0
	}
	return (value - mean) / std
}

func severityRank(s string) int {
	if s == DeviationSeverityHigh {
		return 0
	}
	return 1
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
