// Package broadcast fans out ingested vitals and alerts to connected
// WebSocket clients, replaying recent history to new connections.
package broadcast

import (
	"sync"

	"github.com/eljaska/telara/internal/events"
)

const (
	maxBufferedVitals = 100
	maxBufferedAlerts = 50

	initialStateVitals = 50
	initialStateAlerts = 20
)

// SourceStat is the per-source message count and last-seen time handed
// to new connections as part of initial_state.
type SourceStat struct {
	Count    uint64 `json:"count"`
	LastTime string `json:"last_time,omitempty"`
}

// MessageBuffer holds the most recent vitals and alerts so a newly
// connected client can be caught up without replaying the whole topic.
// Grounded on the original consumer's bounded ring buffers: it keeps
// more history internally (100 vitals, 50 alerts) than it hands out in
// a single initial_state snapshot (50 vitals, 20 alerts).
type MessageBuffer struct {
	mu     sync.Mutex
	vitals []events.RawEvent
	alerts []events.Alert

	sourceStats map[events.SourceID]*SourceStat
}

// NewMessageBuffer creates an empty buffer seeded with every known source.
func NewMessageBuffer() *MessageBuffer {
	b := &MessageBuffer{
		sourceStats: make(map[events.SourceID]*SourceStat),
	}
	for id := range events.Registry {
		b.sourceStats[id] = &SourceStat{}
	}
	return b
}

// AddVital records a vital and updates its source's stats.
func (b *MessageBuffer) AddVital(e events.RawEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.vitals = append(b.vitals, e)
	if len(b.vitals) > maxBufferedVitals {
		b.vitals = b.vitals[len(b.vitals)-maxBufferedVitals:]
	}

	stat, ok := b.sourceStats[e.Source]
	if !ok {
		stat = &SourceStat{}
		b.sourceStats[e.Source] = stat
	}
	stat.Count++
	stat.LastTime = e.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z")
}

// AddAlert records an alert.
func (b *MessageBuffer) AddAlert(a events.Alert) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.alerts = append(b.alerts, a)
	if len(b.alerts) > maxBufferedAlerts {
		b.alerts = b.alerts[len(b.alerts)-maxBufferedAlerts:]
	}
}

func tail[T any](items []T, n int) []T {
	if len(items) <= n {
		out := make([]T, len(items))
		copy(out, items)
		return out
	}
	out := make([]T, n)
	copy(out, items[len(items)-n:])
	return out
}

// InitialState is the snapshot sent once to every new connection.
type InitialState struct {
	Type string           `json:"type"`
	Data InitialStateData `json:"data"`
}

// InitialStateData carries the replay payload.
type InitialStateData struct {
	Vitals      []events.RawEvent              `json:"vitals"`
	Alerts      []events.Alert                 `json:"alerts"`
	SourceStats map[events.SourceID]SourceStat `json:"source_stats"`
}

// Snapshot builds the initial_state payload for a new connection.
func (b *MessageBuffer) Snapshot() InitialState {
	b.mu.Lock()
	defer b.mu.Unlock()

	stats := make(map[events.SourceID]SourceStat, len(b.sourceStats))
	for id, s := range b.sourceStats {
		stats[id] = *s
	}

	return InitialState{
		Type: "initial_state",
		Data: InitialStateData{
			Vitals:      tail(b.vitals, initialStateVitals),
			Alerts:      tail(b.alerts, initialStateAlerts),
			SourceStats: stats,
		},
	}
}
