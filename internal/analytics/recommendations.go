package analytics

import (
	"fmt"
	"sort"
	"time"

	"github.com/eljaska/telara/internal/events"
)

// Recommendation is one actionable suggestion, ranked by Priority
// (lower is more urgent).
type Recommendation struct {
	Priority int
	Message  string
}

const defaultRecommendationLimit = 5

// Recommendations builds a priority-ordered rule-based list from the
// wellness breakdown, current vitals, and hour of day, returning the
// top `limit` (0 means defaultRecommendationLimit).
func Recommendations(breakdown WellnessBreakdown, latest events.RawEvent, now time.Time, limit int) []Recommendation {
	if limit <= 0 {
		limit = defaultRecommendationLimit
	}

	var recs []Recommendation

	if breakdown.HeartHealth.Score < 70 {
		if hrv, ok := latest.Get("hrv_ms"); ok && hrv < 40 {
			recs = append(recs, Recommendation{3, "Your HRV is below optimal. Consider stress-reduction techniques like deep breathing or meditation."})
		}
		if hr, ok := latest.Get("heart_rate"); ok && hr > 85 {
			recs = append(recs, Recommendation{3, "Your resting heart rate is elevated. Ensure you're well-hydrated and consider reducing caffeine intake."})
		}
	}

	if breakdown.Recovery.Score < 70 {
		recs = append(recs, Recommendation{4, "Your recovery score is low. Prioritize sleep quality and consider lighter exercise today."})
	}

	if breakdown.Activity.Score < 60 {
		recs = append(recs, Recommendation{4, "Your activity level is low. Try to incorporate short walks or stretching breaks."})
	}

	if breakdown.Stability.Score < 60 {
		recs = append(recs, Recommendation{4, "Your vitals are showing unusual variance. Monitor for any symptoms and maintain regular routines."})
	}

	recs = append(recs, timeOfDayRecommendations(now)...)

	if breakdown.AlertCounts.Critical > 0 {
		recs = append([]Recommendation{{0, "CRITICAL: You have critical health alerts. Consider consulting a healthcare provider."}}, recs...)
	}

	if len(recs) == 0 {
		recs = append(recs, Recommendation{5, "Great job! Your wellness metrics are looking healthy. Keep up your current habits."})
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].Priority < recs[j].Priority })

	if len(recs) > limit {
		recs = recs[:limit]
	}
	return recs
}

func timeOfDayBucket(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 17:
		return "afternoon"
	case hour >= 17 && hour < 21:
		return "evening"
	default:
		return "night"
	}
}

func timeOfDayRecommendations(now time.Time) []Recommendation {
	switch timeOfDayBucket(now.Hour()) {
	case "morning":
		return []Recommendation{{5, "Start your day with light movement to get your circulation going."}}
	case "night":
		return []Recommendation{{5, fmt.Sprintf("It's %d:00 — consider winding down for better recovery overnight.", now.Hour())}}
	default:
		return nil
	}
}
