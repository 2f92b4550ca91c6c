package analytics

import (
	"time"

	"github.com/eljaska/telara/internal/events"
)

// MetricWindowStats summarises one metric over one 7-day window.
type MetricWindowStats struct {
	Avg, Min, Max float64
	Count         int
}

// MetricComparison compares the same metric across two adjacent
// 7-day windows.
type MetricComparison struct {
	Metric              string
	Current             MetricWindowStats
	Previous            MetricWindowStats
	Delta               float64
	PercentChange       float64
	ImprovementDirection string // "higher_better", "lower_better", "stability_better"
	Improved            bool
}

// higherIsBetter classifies each metric's improvement direction, per
// spec: HRV/SpO2/activity higher is better, HR lower is better,
// temperature favors stability (improvement means the window average
// moved by at most 0.2 from the previous window, not a direction).
var higherIsBetter = map[string]string{
	"hrv_ms":         "higher_better",
	"spo2_percent":   "higher_better",
	"activity_level": "higher_better",
	"heart_rate":     "lower_better",
	"skin_temp_c":    "stability_better",
}

const comparisonWindow = 7 * 24 * time.Hour

// HistoricalComparison compares vitals in [now-14d, now-7d) against
// [now-7d, now) for every metric present in either window.
func HistoricalComparison(vitals []events.RawEvent, now time.Time) []MetricComparison {
	currentStart := now.Add(-comparisonWindow)
	previousStart := currentStart.Add(-comparisonWindow)

	metrics := []string{"heart_rate", "hrv_ms", "spo2_percent", "skin_temp_c", "activity_level"}

	var out []MetricComparison
	for _, metric := range metrics {
		var curVals, prevVals []float64
		for _, e := range vitals {
			v, ok := e.Get(metric)
			if !ok {
				continue
			}
			switch {
			case !e.Timestamp.Before(currentStart):
				curVals = append(curVals, v)
			case !e.Timestamp.Before(previousStart) && e.Timestamp.Before(currentStart):
				prevVals = append(prevVals, v)
			}
		}

		if len(curVals) == 0 && len(prevVals) == 0 {
			continue
		}

		cur := windowStats(curVals)
		prev := windowStats(prevVals)
		delta := cur.Avg - prev.Avg
		pct := 0.0
		if prev.Avg != 0 {
			pct = delta / prev.Avg * 100
		}

		direction := higherIsBetter[metric]
		improved := classifyImprovement(direction, delta, cur.Avg, prev.Avg)

		out = append(out, MetricComparison{
			Metric:               metric,
			Current:              cur,
			Previous:             prev,
			Delta:                round2(delta),
			PercentChange:        round1(pct),
			ImprovementDirection: direction,
			Improved:             improved,
		})
	}
	return out
}

func classifyImprovement(direction string, delta, curAvg, prevAvg float64) bool {
	switch direction {
	case "higher_better":
		return delta > 0
	case "lower_better":
		return delta < 0
	case "stability_better":
		_ = curAvg
		_ = prevAvg
		// "improved" means the window-to-window average barely moved.
		return absf(delta) <= 0.2
	default:
		return false
	}
}

func windowStats(values []float64) MetricWindowStats {
	if len(values) == 0 {
		return MetricWindowStats{}
	}
	sum, min, max := values[0], values[0], values[0]
	for _, v := range values[1:] {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return MetricWindowStats{
		Avg:   sum / float64(len(values)),
		Min:   min,
		Max:   max,
		Count: len(values),
	}
}

// AlertSeverityComparison compares alert counts by severity across the
// same two adjacent windows.
type AlertSeverityComparison struct {
	Severity string
	Current  int
	Previous int
}

// CompareAlertCounts buckets alerts into the two windows by severity.
func CompareAlertCounts(alerts []events.Alert, now time.Time) []AlertSeverityComparison {
	currentStart := now.Add(-comparisonWindow)
	previousStart := currentStart.Add(-comparisonWindow)

	counts := map[string][2]int{}
	for _, a := range alerts {
		sev := a.Severity
		c := counts[sev]
		switch {
		case !a.StartTime.Before(currentStart):
			c[0]++
		case !a.StartTime.Before(previousStart) && a.StartTime.Before(currentStart):
			c[1]++
		}
		counts[sev] = c
	}

	severities := []string{events.SeverityCritical, events.SeverityHigh, events.SeverityMedium, events.SeverityLow}
	var out []AlertSeverityComparison
	for _, sev := range severities {
		c := counts[sev]
		out = append(out, AlertSeverityComparison{Severity: sev, Current: c[0], Previous: c[1]})
	}
	return out
}
