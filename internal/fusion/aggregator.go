package fusion

import (
	"sort"
	"sync"
	"time"

	"github.com/eljaska/telara/internal/events"
)

// FreshnessWindow bounds how old a per-source reading can be before it
// is excluded from the aggregated display state.
const FreshnessWindow = 10 * time.Second

type sourceReading struct {
	value      float64
	timestamp  time.Time
	sourceName string
}

// MetricValue is the best current display value for one metric, plus
// source attribution for the UI to show which devices contributed.
type MetricValue struct {
	Value        float64
	Sources      []string
	SourceIcons  []string
	FreshnessMS  int64
	ReadingCount int
}

// FusionTable tracks the latest reading from every source for every
// metric, keyed by user, and computes the freshness-windowed "best"
// value per metric: the single most recent fresh reading, with every
// contributing source listed for attribution.
type FusionTable struct {
	mu sync.Mutex

	// userID -> metric -> source -> reading
	latest map[string]map[string]map[events.SourceID]sourceReading

	lastUpdate time.Time
}

// NewFusionTable creates an empty table.
func NewFusionTable() *FusionTable {
	return &FusionTable{
		latest: make(map[string]map[string]map[events.SourceID]sourceReading),
	}
}

// Add records every field present on e as a new per-source reading.
func (f *FusionTable) Add(e events.RawEvent) {
	if e.Source == "" {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	userMetrics, ok := f.latest[e.UserID]
	if !ok {
		userMetrics = make(map[string]map[events.SourceID]sourceReading)
		f.latest[e.UserID] = userMetrics
	}

	for _, metric := range events.AggregatableFields {
		v, ok := e.Get(metric)
		if !ok {
			continue
		}
		bySource, ok := userMetrics[metric]
		if !ok {
			bySource = make(map[events.SourceID]sourceReading)
			userMetrics[metric] = bySource
		}
		bySource[e.Source] = sourceReading{
			value:      v,
			timestamp:  e.Timestamp,
			sourceName: e.SourceName,
		}
	}

	f.lastUpdate = time.Now().UTC()
}

// State is the aggregated display state for one user.
type State struct {
	Vitals      map[string]MetricValue
	LastUpdate  time.Time
	SourceCount int
}

func sourceIcon(id events.SourceID) string {
	if p, ok := events.Registry[id]; ok {
		return p.Icon
	}
	return "📊"
}

// Aggregated computes the current freshness-windowed state for a user.
func (f *FusionTable) Aggregated(userID string) State {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now().UTC()
	userMetrics := f.latest[userID]

	vitals := make(map[string]MetricValue)
	activeSources := make(map[events.SourceID]bool)

	for metric, bySource := range userMetrics {
		type fresh struct {
			source events.SourceID
			sourceReading
			ageMS int64
		}
		var readings []fresh

		for source, r := range bySource {
			age := now.Sub(r.timestamp)
			if age > FreshnessWindow {
				continue
			}
			readings = append(readings, fresh{source: source, sourceReading: r, ageMS: age.Milliseconds()})
			activeSources[source] = true
		}
		if len(readings) == 0 {
			continue
		}

		sort.Slice(readings, func(i, j int) bool {
			return readings[i].timestamp.After(readings[j].timestamp)
		})

		best := readings[0]
		var sources, icons []string
		for _, r := range readings {
			sources = append(sources, string(r.source))
			icons = append(icons, sourceIcon(r.source))
		}

		vitals[metric] = MetricValue{
			Value:        best.value,
			Sources:      sources,
			SourceIcons:  icons,
			FreshnessMS:  best.ageMS,
			ReadingCount: len(readings),
		}
	}

	return State{
		Vitals:      vitals,
		LastUpdate:  f.lastUpdate,
		SourceCount: len(activeSources),
	}
}

// SourceBreakdownEntry is one source's contribution to a metric.
type SourceBreakdownEntry struct {
	Source     events.SourceID
	SourceName string
	Icon       string
	Value      float64
	Timestamp  time.Time
}

// SourceBreakdown returns every source's latest reading for a metric,
// newest first, regardless of freshness.
func (f *FusionTable) SourceBreakdown(userID, metric string) []SourceBreakdownEntry {
	f.mu.Lock()
	defer f.mu.Unlock()

	userMetrics, ok := f.latest[userID]
	if !ok {
		return nil
	}
	bySource, ok := userMetrics[metric]
	if !ok {
		return nil
	}

	out := make([]SourceBreakdownEntry, 0, len(bySource))
	for source, r := range bySource {
		out = append(out, SourceBreakdownEntry{
			Source:     source,
			SourceName: r.sourceName,
			Icon:       sourceIcon(source),
			Value:      r.value,
			Timestamp:  r.timestamp,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

// Clear empties the table, used on a fresh-start restart.
func (f *FusionTable) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.latest = make(map[string]map[string]map[events.SourceID]sourceReading)
}
