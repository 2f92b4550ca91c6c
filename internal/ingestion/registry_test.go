package ingestion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eljaska/telara/internal/events"
)

func TestNewRegistrySeedsAllKnownSourcesEnabled(t *testing.T) {
	r := NewRegistry()
	status := r.Status()

	require.Len(t, status, len(events.Registry))
	for id, s := range status {
		assert.True(t, s.Enabled, "source %s should start enabled", id)
		assert.True(t, s.Connected)
		assert.Equal(t, uint64(0), s.EventsReceived)
	}
}

func TestDisableSourceStopsCountingEnabled(t *testing.T) {
	r := NewRegistry()
	ok := r.Disable(events.SourceApple)
	require.True(t, ok)

	assert.False(t, r.IsEnabled(events.SourceApple))
	assert.True(t, r.IsEnabled(events.SourceOura))

	status := r.Status()[events.SourceApple]
	assert.False(t, status.Enabled)
	assert.False(t, status.Connected)
}

func TestEnableUnknownSourceReturnsFalse(t *testing.T) {
	r := NewRegistry()
	ok := r.Enable(events.SourceID("fitbit"))
	assert.False(t, ok)
}

func TestRecordEventIncrementsCounterAndTimestamp(t *testing.T) {
	r := NewRegistry()
	r.RecordEvent(events.SourceGoogle)
	r.RecordEvent(events.SourceGoogle)

	status := r.Status()[events.SourceGoogle]
	assert.Equal(t, uint64(2), status.EventsReceived)
	require.NotNil(t, status.LastEventTime)
}

func TestDispatcherFansOutToAllListeners(t *testing.T) {
	d := NewDispatcher()
	var a, b int
	d.AddListener(func(e events.RawEvent) { a++ })
	d.AddListener(func(e events.RawEvent) { b++ })

	d.dispatchEvent(events.RawEvent{EventID: "evt-1"})

	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
}

func TestDispatcherFansOutAlertsIndependentlyOfEvents(t *testing.T) {
	d := NewDispatcher()
	var alerts int
	var vitals int
	d.AddAlertListener(func(a events.Alert) { alerts++ })
	d.AddListener(func(e events.RawEvent) { vitals++ })

	d.dispatchAlert(events.Alert{AlertID: "alert-1"})

	assert.Equal(t, 1, alerts)
	assert.Equal(t, 0, vitals)
}
