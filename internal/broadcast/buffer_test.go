package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eljaska/telara/internal/events"
)

func mkVital(ts time.Time, source events.SourceID) events.RawEvent {
	return events.RawEvent{
		EventID:    "evt",
		Timestamp:  ts,
		UserID:     "user-1",
		Source:     source,
		SourceName: "test",
		Fields:     map[string]float64{"heart_rate": 70},
	}
}

func TestMessageBufferSnapshotCapsAtInitialStateLimits(t *testing.T) {
	b := NewMessageBuffer()
	base := time.Now()
	for i := 0; i < 80; i++ {
		b.AddVital(mkVital(base.Add(time.Duration(i)*time.Second), events.SourceApple))
	}
	for i := 0; i < 30; i++ {
		b.AddAlert(events.Alert{AlertID: "a", UserID: "user-1"})
	}

	snap := b.Snapshot()
	assert.Equal(t, "initial_state", snap.Type)
	assert.Len(t, snap.Data.Vitals, initialStateVitals)
	assert.Len(t, snap.Data.Alerts, initialStateAlerts)
}

func TestMessageBufferRetainsMoreThanItReplaysInternally(t *testing.T) {
	b := NewMessageBuffer()
	base := time.Now()
	for i := 0; i < maxBufferedVitals+20; i++ {
		b.AddVital(mkVital(base.Add(time.Duration(i)*time.Second), events.SourceGoogle))
	}
	require.Len(t, b.vitals, maxBufferedVitals)
}

func TestMessageBufferTracksPerSourceStats(t *testing.T) {
	b := NewMessageBuffer()
	now := time.Now()
	b.AddVital(mkVital(now, events.SourceOura))
	b.AddVital(mkVital(now.Add(time.Second), events.SourceOura))

	snap := b.Snapshot()
	stat := snap.Data.SourceStats[events.SourceOura]
	assert.Equal(t, uint64(2), stat.Count)
	assert.NotEmpty(t, stat.LastTime)
}
