// Package baseline maintains a per-user exponential moving average and
// running standard deviation of each vital, then flags readings that
// deviate sharply from that user's own personal baseline.
package baseline

import (
	"math"
	"sync"
	"time"

	"github.com/eljaska/telara/internal/events"
)

// Alpha is the EMA smoothing factor: lower adapts slower.
const Alpha = 0.1

// MinDataPoints is the number of updates required before deviation
// checks run; before that there isn't enough personal history.
const MinDataPoints = 10

// defaults seed a brand-new baseline before any real samples arrive.
const (
	defaultHR       = 72.0
	defaultHRV      = 50.0
	defaultSpO2     = 98.0
	defaultTemp     = 36.5
	defaultActivity = 20.0

	defaultStdHR   = 5.0
	defaultStdHRV  = 5.0
	defaultStdSpO2 = 1.0
	defaultStdTemp = 0.2
)

// Baseline is one user's rolling vitals profile.
type Baseline struct {
	UserID       string
	AvgHeartRate float64
	AvgHRV       float64
	AvgSpO2      float64
	AvgTemp      float64
	AvgActivity  float64
	StdHeartRate float64
	StdHRV       float64
	StdSpO2      float64
	StdTemp      float64
	DataPoints   int
	UpdatedAt    time.Time
}

// Maintainer keeps one Baseline per user, updated on every incoming event.
type Maintainer struct {
	mu        sync.Mutex
	baselines map[string]*Baseline
}

// NewMaintainer creates an empty maintainer.
func NewMaintainer() *Maintainer {
	return &Maintainer{baselines: make(map[string]*Baseline)}
}

// Update folds one event's vitals into the user's baseline via EMA, and
// updates the running std estimate for every field present in e.
func (m *Maintainer) Update(e events.RawEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.baselines[e.UserID]
	if !ok {
		b = &Baseline{
			UserID:       e.UserID,
			AvgHeartRate: defaultHR,
			AvgHRV:       defaultHRV,
			AvgSpO2:      defaultSpO2,
			AvgTemp:      defaultTemp,
			AvgActivity:  defaultActivity,
			StdHeartRate: defaultStdHR,
			StdHRV:       defaultStdHRV,
			StdSpO2:      defaultStdSpO2,
			StdTemp:      defaultStdTemp,
		}
		m.baselines[e.UserID] = b
	}

	if hr, ok := e.Get("heart_rate"); ok {
		newAvg := Alpha*hr + (1-Alpha)*b.AvgHeartRate
		b.StdHeartRate = runningStd(b.StdHeartRate, hr, newAvg)
		b.AvgHeartRate = newAvg
	}
	if hrv, ok := e.Get("hrv_ms"); ok {
		newAvg := Alpha*hrv + (1-Alpha)*b.AvgHRV
		b.StdHRV = runningStd(b.StdHRV, hrv, newAvg)
		b.AvgHRV = newAvg
	}
	if spo2, ok := e.Get("spo2_percent"); ok {
		newAvg := Alpha*spo2 + (1-Alpha)*b.AvgSpO2
		b.StdSpO2 = runningStd(b.StdSpO2, spo2, newAvg)
		b.AvgSpO2 = newAvg
	}
	if temp, ok := e.Get("skin_temp_c"); ok {
		newAvg := Alpha*temp + (1-Alpha)*b.AvgTemp
		b.StdTemp = runningStd(b.StdTemp, temp, newAvg)
		b.AvgTemp = newAvg
	}
	if activity, ok := e.Get("activity_level"); ok {
		b.AvgActivity = Alpha*activity + (1-Alpha)*b.AvgActivity
	}

	b.DataPoints++
	b.UpdatedAt = time.Now().UTC()
}

func runningStd(oldStd, value, newAvg float64) float64 {
	return math.Sqrt((1-Alpha)*oldStd*oldStd + Alpha*(value-newAvg)*(value-newAvg))
}

// Get returns a copy of the user's current baseline, or false if no
// event has been seen for them yet.
func (m *Maintainer) Get(userID string) (Baseline, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.baselines[userID]
	if !ok {
		return Baseline{}, false
	}
	return *b, true
}

// Snapshot returns a copy of every baseline currently held, for periodic
// persistence to the metadata store.
func (m *Maintainer) Snapshot() []Baseline {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Baseline, 0, len(m.baselines))
	for _, b := range m.baselines {
		out = append(out, *b)
	}
	return out
}

// Seed installs a baseline loaded from persistent storage, replacing
// any baseline held for that user. Nothing in this module calls it at
// startup.
func (m *Maintainer) Seed(b Baseline) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := b
	m.baselines[b.UserID] = &cp
}
