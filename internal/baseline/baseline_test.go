package baseline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eljaska/telara/internal/events"
)

func mkBaselineEvent(userID string, fields map[string]float64) events.RawEvent {
	return events.RawEvent{EventID: "evt", UserID: userID, Fields: fields}
}

func TestMaintainerSeedsDefaultsOnFirstUpdate(t *testing.T) {
	m := NewMaintainer()
	m.Update(mkBaselineEvent("user-1", map[string]float64{"heart_rate": 72}))

	b, ok := m.Get("user-1")
	require.True(t, ok)
	assert.Equal(t, 1, b.DataPoints)
	// EMA from the seeded default (72) toward 72 stays at 72.
	assert.InDelta(t, 72.0, b.AvgHeartRate, 0.01)
}

func TestMaintainerEMAMovesTowardNewValue(t *testing.T) {
	m := NewMaintainer()
	for i := 0; i < 5; i++ {
		m.Update(mkBaselineEvent("user-1", map[string]float64{"heart_rate": 100}))
	}
	b, ok := m.Get("user-1")
	require.True(t, ok)
	assert.Greater(t, b.AvgHeartRate, 72.0)
	assert.Less(t, b.AvgHeartRate, 100.0)
}

func TestMaintainerLeavesFieldUntouchedWhenAbsent(t *testing.T) {
	m := NewMaintainer()
	m.Update(mkBaselineEvent("user-1", map[string]float64{"heart_rate": 90}))
	before, _ := m.Get("user-1")

	m.Update(mkBaselineEvent("user-1", map[string]float64{"spo2_percent": 97}))
	after, _ := m.Get("user-1")

	assert.Equal(t, before.AvgHeartRate, after.AvgHeartRate)
	assert.Equal(t, 2, after.DataPoints)
}

func TestMaintainerTracksUsersIndependently(t *testing.T) {
	m := NewMaintainer()
	m.Update(mkBaselineEvent("user-1", map[string]float64{"heart_rate": 120}))
	m.Update(mkBaselineEvent("user-2", map[string]float64{"heart_rate": 60}))

	b1, _ := m.Get("user-1")
	b2, _ := m.Get("user-2")
	assert.NotEqual(t, b1.AvgHeartRate, b2.AvgHeartRate)
}

func TestMaintainerGetUnknownUserReturnsFalse(t *testing.T) {
	m := NewMaintainer()
	_, ok := m.Get("nobody")
	assert.False(t, ok)
}
