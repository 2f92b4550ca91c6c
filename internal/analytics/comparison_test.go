package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eljaska/telara/internal/events"
)

func TestHistoricalComparisonSplitsIntoTwoWindows(t *testing.T) {
	now := time.Now()
	var vitals []events.RawEvent
	// current window: last 5 days (0-4 days ago), heart_rate trending down (improved)
	for i := 0; i < 5; i++ {
		vitals = append(vitals, mkAnalyticsEvent(now.Add(-time.Duration(i)*24*time.Hour), map[string]float64{"heart_rate": 65}))
	}
	// previous window: 8-10 days ago
	for i := 8; i < 11; i++ {
		vitals = append(vitals, mkAnalyticsEvent(now.Add(-time.Duration(i)*24*time.Hour), map[string]float64{"heart_rate": 80}))
	}

	comparisons := HistoricalComparison(vitals, now)
	var hr *MetricComparison
	for i := range comparisons {
		if comparisons[i].Metric == "heart_rate" {
			hr = &comparisons[i]
		}
	}
	require.NotNil(t, hr)
	assert.Equal(t, 5, hr.Current.Count)
	assert.Equal(t, 3, hr.Previous.Count)
	assert.True(t, hr.Improved, "lower heart rate than prior window should read as improved")
}

func TestCompareAlertCountsBucketsBySeverityAndWindow(t *testing.T) {
	now := time.Now()
	alerts := []events.Alert{
		{Severity: events.SeverityCritical, StartTime: now.Add(-1 * time.Hour)},
		{Severity: events.SeverityCritical, StartTime: now.Add(-9 * 24 * time.Hour)},
		{Severity: events.SeverityHigh, StartTime: now.Add(-2 * time.Hour)},
	}
	result := CompareAlertCounts(alerts, now)

	var critical, high AlertSeverityComparison
	for _, r := range result {
		if r.Severity == events.SeverityCritical {
			critical = r
		}
		if r.Severity == events.SeverityHigh {
			high = r
		}
	}
	assert.Equal(t, 1, critical.Current)
	assert.Equal(t, 1, critical.Previous)
	assert.Equal(t, 1, high.Current)
	assert.Equal(t, 0, high.Previous)
}
