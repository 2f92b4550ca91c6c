// Package query routes vitals read requests between the speed layer
// (in-memory hot ring) and the batch layer (persistent store),
// mirroring the lambda architecture's realtime/historical split.
package query

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/eljaska/telara/internal/events"
	"github.com/eljaska/telara/internal/fusion"
)

// RealtimeThreshold is the window size at or below which queries are
// answered from the speed layer; above it they go to the batch layer.
const RealtimeThreshold = 30 * time.Minute

// StatsThreshold is the window size at or below which stats queries
// are answered from the speed layer.
const StatsThreshold = time.Hour

// HistoricalReader answers batch-layer queries against the persistent
// store. Implemented by ClickHouseReader in production, faked in
// tests.
type HistoricalReader interface {
	RecentVitals(ctx context.Context, userID string, since time.Time) ([]events.RawEvent, error)
	Stats(ctx context.Context, userID string, since time.Time) (map[string]fusion.MetricStats, error)
}

// Router answers vitals queries by routing to whichever layer owns the
// requested window.
type Router struct {
	ring       *fusion.HotRing
	historical HistoricalReader

	// sf collapses concurrent identical batch-layer lookups (the same
	// user and window requested by more than one dashboard client at
	// once) into a single persistent-store scan.
	sf singleflight.Group
}

// NewRouter binds a router to its speed-layer ring and batch-layer reader.
func NewRouter(ring *fusion.HotRing, historical HistoricalReader) *Router {
	return &Router{ring: ring, historical: historical}
}

// RecentVitals returns vitals from the last `window` for userID, routed
// to the speed layer for windows at or under RealtimeThreshold and to
// the batch layer otherwise.
func (r *Router) RecentVitals(ctx context.Context, userID string, window time.Duration) ([]events.RawEvent, error) {
	if window <= RealtimeThreshold {
		return r.ring.Recent(userID, window), nil
	}

	key := fmt.Sprintf("recent:%s:%d", userID, window)
	v, err, _ := r.sf.Do(key, func() (interface{}, error) {
		since := time.Now().Add(-window)
		return r.historical.RecentVitals(ctx, userID, since)
	})
	if err != nil {
		return nil, err
	}
	return v.([]events.RawEvent), nil
}

// Stats returns per-metric aggregates for the last `window`, routed to
// the speed layer for windows at or under StatsThreshold.
func (r *Router) Stats(ctx context.Context, userID string, window time.Duration) (map[string]fusion.MetricStats, error) {
	if window <= StatsThreshold {
		return r.ring.Stats(userID, window), nil
	}

	key := fmt.Sprintf("stats:%s:%d", userID, window)
	v, err, _ := r.sf.Do(key, func() (interface{}, error) {
		since := time.Now().Add(-window)
		return r.historical.Stats(ctx, userID, since)
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]fusion.MetricStats), nil
}

// Latest always reads the speed layer: the most recent reading is by
// definition real-time data.
func (r *Router) Latest(userID string) (events.RawEvent, bool) {
	return r.ring.Latest(userID)
}
