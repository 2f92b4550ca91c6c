package analytics

import (
	"sort"
	"time"

	"github.com/eljaska/telara/internal/baseline"
	"github.com/eljaska/telara/internal/events"
)

// PredictionBundle is the full set of predictions for one user.
type PredictionBundle struct {
	Predictions          []Prediction
	DataAvailable        bool
	DataPointsAnalyzed   int
	PredictionHorizonHrs float64
}

var thresholdMetrics = []string{"heart_rate", "hrv_ms", "spo2_percent", "skin_temp_c"}

// GenerateAllPredictions runs every prediction type over vitals (the
// last ~2h of samples) and returns them ranked by severity then
// urgency, matching the original's ordering.
func GenerateAllPredictions(vitals []events.RawEvent, bl *baseline.Baseline, maxHours float64, now time.Time) PredictionBundle {
	if len(vitals) == 0 {
		return PredictionBundle{DataAvailable: false}
	}

	var predictions []Prediction
	for _, metric := range thresholdMetrics {
		if p := PredictThresholdCrossing(metric, vitals, maxHours, now); p != nil {
			predictions = append(predictions, *p)
		}
	}
	if p := PredictFatigue(vitals, bl, now); p != nil {
		predictions = append(predictions, *p)
	}
	if p := PredictStress(vitals, bl, now); p != nil {
		predictions = append(predictions, *p)
	}

	sort.SliceStable(predictions, func(i, j int) bool {
		si, sj := severityOrder(predictions[i].Severity), severityOrder(predictions[j].Severity)
		if si != sj {
			return si < sj
		}
		return predictions[i].HoursUntil < predictions[j].HoursUntil
	})

	return PredictionBundle{
		Predictions:          predictions,
		DataAvailable:        true,
		DataPointsAnalyzed:   len(vitals),
		PredictionHorizonHrs: maxHours,
	}
}

func severityOrder(s string) int {
	switch s {
	case "high":
		return 0
	case "moderate":
		return 1
	default:
		return 2
	}
}
