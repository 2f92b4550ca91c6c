// Package groundtruth evolves the single physiological state each user's
// wearables all sample from, so Apple/Google/Oura readings for the same
// user stay mutually consistent at any instant.
package groundtruth

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// State is the user's true physiological snapshot at an instant. All
// sources observe this with their own noise layered on top.
type State struct {
	Timestamp         time.Time
	HeartRate         float64
	HRVMs             float64
	SpO2Percent       float64
	SkinTempC         float64
	RespiratoryRate   float64
	ActivityLevel     float64
	StepsPerMinute    float64
	CaloriesPerMinute float64
	SleepQuality      float64
}

// clampRange holds the per-metric lower and upper clamp bounds used by
// the random walk. Values are the ground truth engine's own constants,
// carried over unchanged.
type clampRange struct{ min, max float64 }

const reversionStrength = 0.1

var (
	hrClamp     = clampRange{45, 180}
	hrvClamp    = clampRange{10, 120}
	spo2Clamp   = clampRange{94, 100}
	tempClamp   = clampRange{35.5, 38.5}
	respClamp   = clampRange{10, 30}
	actClamp    = clampRange{0, 100}
	stepsClamp  = clampRange{0, 120}
	calClamp    = clampRange{0.8, 15}
	sleepClamp  = clampRange{40, 100}
)

const (
	sigmaHR    = 2.0
	sigmaHRV   = 3.0
	sigmaSpO2  = 0.2
	sigmaTemp  = 0.05
	sigmaResp  = 0.5
	sigmaAct   = 5.0
	sigmaSteps = 2.0
	sigmaCal   = 0.1
	sigmaSleep = 1.0
)

// circadianOffsets is the hour-of-day bucket table. Hours not covered by
// an explicit bucket fall into the late-night default.
type circadian struct {
	heartRate, hrv, activity, sleepQuality float64
}

func circadianOffsets(hour int) circadian {
	switch {
	case hour >= 2 && hour <= 5:
		return circadian{heartRate: -12, hrv: 15, activity: -8, sleepQuality: 10}
	case hour >= 6 && hour <= 8:
		return circadian{heartRate: -5, hrv: 5, activity: 5}
	case hour >= 9 && hour <= 11:
		return circadian{heartRate: 3, activity: 10}
	case hour >= 12 && hour <= 14:
		return circadian{heartRate: 5, hrv: -5}
	case hour >= 15 && hour <= 17:
		return circadian{heartRate: 5, activity: 8}
	case hour >= 18 && hour <= 20:
		return circadian{heartRate: 8, hrv: -8, activity: 15}
	case hour >= 21 && hour <= 23:
		return circadian{heartRate: -5, hrv: 5, activity: -5}
	default: // 0-1
		return circadian{heartRate: -8, hrv: 10, activity: -7}
	}
}

// AnomalyPattern is a named catalog entry overriding the normal target
// for one or more fields while active. Each override is a (min,max)
// range; the engine targets its midpoint (or, for SpO2/skin_temp, draws
// a fresh uniform sample each tick, matching the source's own volatility
// under anomaly).
type AnomalyPattern struct {
	HeartRate      *clampRange
	HRVMs          *clampRange
	SpO2Percent    *clampRange
	SkinTempC      *clampRange
	ActivityLevel  *clampRange
}

func rangePtr(min, max float64) *clampRange { return &clampRange{min, max} }

// Patterns is the fixed catalog of injectable anomalies. Reconstructed
// from cross-referencing the data generator's own overlay usage and the
// detector's sustained-condition thresholds, since the ranges dict it
// imports is missing from the retrieved source.
var Patterns = map[string]AnomalyPattern{
	"tachycardia_at_rest": {
		HeartRate:     rangePtr(105, 140),
		ActivityLevel: rangePtr(0, 8),
	},
	"hypoxia": {
		SpO2Percent: rangePtr(85, 93),
	},
	"fever_onset": {
		SkinTempC: rangePtr(37.6, 39.0),
	},
	"burnout_stress": {
		HeartRate:     rangePtr(85, 105),
		HRVMs:         rangePtr(15, 35),
		ActivityLevel: rangePtr(0, 15),
	},
	"dehydration": {
		HeartRate:   rangePtr(90, 115),
		SpO2Percent: rangePtr(92, 96),
		SkinTempC:   rangePtr(37.0, 37.8),
	},
}

// AnomalyStatus reports the currently active overlay for a user, if any.
type AnomalyStatus struct {
	Active          bool
	Kind            string
	RemainingSeconds float64
}

// Engine evolves one user's ground truth state. Safe for concurrent use.
type Engine struct {
	mu sync.Mutex

	heartRate         float64
	hrvMs             float64
	spo2Percent       float64
	skinTempC         float64
	respiratoryRate   float64
	activityLevel     float64
	stepsPerMinute    float64
	caloriesPerMinute float64
	sleepQuality      float64

	lastUpdate time.Time

	anomalyKind string
	anomalyEnd  time.Time

	baselineHROffset   float64
	baselineHRVOffset  float64
	baselineTempOffset float64

	rng *rand.Rand
}

// NewEngine creates an engine seeded at the midpoint of normal ranges,
// with a randomised per-user baseline offset.
func NewEngine() *Engine {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Engine{
		heartRate:         70,
		hrvMs:             55,
		spo2Percent:       98,
		skinTempC:         36.5,
		respiratoryRate:   14,
		activityLevel:     10,
		stepsPerMinute:    0,
		caloriesPerMinute: 1.2,
		sleepQuality:      75,
		lastUpdate:        time.Now(),
		baselineHROffset:  (rng.Float64()*2 - 1) * 5,
		baselineHRVOffset: (rng.Float64()*2 - 1) * 5,
		baselineTempOffset: (rng.Float64()*2 - 1) * 0.2,
		rng:                rng,
	}
}

func clamp(v float64, r clampRange) float64 {
	if v < r.min {
		return r.min
	}
	if v > r.max {
		return r.max
	}
	return v
}

// randomWalk applies mean reversion plus gaussian noise scaled by dt.
func (e *Engine) randomWalk(current, target, volatility, dt float64) float64 {
	reversion := reversionStrength * (target - current) * dt
	noise := e.rng.NormFloat64() * volatility * math.Sqrt(dt)
	return current + reversion + noise
}

func (e *Engine) activeAnomaly() (AnomalyPattern, bool) {
	if e.anomalyKind == "" {
		return AnomalyPattern{}, false
	}
	if time.Now().After(e.anomalyEnd) {
		e.anomalyKind = ""
		return AnomalyPattern{}, false
	}
	p, ok := Patterns[e.anomalyKind]
	return p, ok
}

// evolve advances the state by the elapsed wall-clock time since the
// last call, capped at 5s to avoid huge jumps after a long pause.
func (e *Engine) evolve() {
	now := time.Now()
	dt := now.Sub(e.lastUpdate).Seconds()
	if dt > 5.0 {
		dt = 5.0
	}
	if dt < 0.05 {
		return
	}

	circ := circadianOffsets(now.UTC().Hour())
	anomaly, anomalyActive := e.activeAnomaly()

	hrTarget := 70 + circ.heartRate + e.baselineHROffset
	hrvTarget := 55 + circ.hrv + e.baselineHRVOffset
	activityTarget := 10 + circ.activity

	if anomalyActive && anomaly.HeartRate != nil {
		hrTarget = (anomaly.HeartRate.min + anomaly.HeartRate.max) / 2
	}
	if anomalyActive && anomaly.HRVMs != nil {
		hrvTarget = (anomaly.HRVMs.min + anomaly.HRVMs.max) / 2
	}
	if anomalyActive && anomaly.ActivityLevel != nil {
		activityTarget = (anomaly.ActivityLevel.min + anomaly.ActivityLevel.max) / 2
	}

	e.heartRate = clamp(e.randomWalk(e.heartRate, hrTarget, sigmaHR, dt), hrClamp)
	e.hrvMs = clamp(e.randomWalk(e.hrvMs, hrvTarget, sigmaHRV, dt), hrvClamp)

	if anomalyActive && anomaly.SpO2Percent != nil {
		r := *anomaly.SpO2Percent
		e.spo2Percent = r.min + e.rng.Float64()*(r.max-r.min)
	} else {
		e.spo2Percent = clamp(e.randomWalk(e.spo2Percent, 98, sigmaSpO2, dt), spo2Clamp)
	}

	if anomalyActive && anomaly.SkinTempC != nil {
		r := *anomaly.SkinTempC
		e.skinTempC = r.min + e.rng.Float64()*(r.max-r.min)
	} else {
		tempTarget := 36.5 + e.baselineTempOffset
		e.skinTempC = clamp(e.randomWalk(e.skinTempC, tempTarget, sigmaTemp, dt), tempClamp)
	}

	respTarget := 14 + (e.heartRate-70)*0.05
	e.respiratoryRate = clamp(e.randomWalk(e.respiratoryRate, respTarget, sigmaResp, dt), respClamp)

	e.activityLevel = clamp(e.randomWalk(e.activityLevel, activityTarget, sigmaAct, dt), actClamp)

	var stepsTarget float64
	switch {
	case e.activityLevel < 20:
		stepsTarget = 0
	case e.activityLevel < 40:
		stepsTarget = float64(e.rng.Intn(11))
	default:
		stepsTarget = e.activityLevel * 0.5
	}
	e.stepsPerMinute = clamp(e.randomWalk(e.stepsPerMinute, stepsTarget, sigmaSteps, dt), stepsClamp)

	calTarget := 1.0 + e.activityLevel*0.05
	e.caloriesPerMinute = clamp(e.randomWalk(e.caloriesPerMinute, calTarget, sigmaCal, dt), calClamp)

	e.sleepQuality = clamp(e.randomWalk(e.sleepQuality, 75, sigmaSleep, dt), sleepClamp)

	e.lastUpdate = now
}

// Current evolves the state to now and returns the result.
func (e *Engine) Current() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.evolve()
	return State{
		Timestamp:         time.Now().UTC(),
		HeartRate:         round1(e.heartRate),
		HRVMs:             round1(e.hrvMs),
		SpO2Percent:       round1(e.spo2Percent),
		SkinTempC:         round2(e.skinTempC),
		RespiratoryRate:   round1(e.respiratoryRate),
		ActivityLevel:     round1(e.activityLevel),
		StepsPerMinute:    round1(e.stepsPerMinute),
		CaloriesPerMinute: round2(e.caloriesPerMinute),
		SleepQuality:      round1(e.sleepQuality),
	}
}

// StateAt synthesizes a plausible historical snapshot for backfilling,
// without mutating or depending on the engine's live evolution: circadian
// adjustment and gaussian noise only, no anomaly influence.
func (e *Engine) StateAt(t time.Time) State {
	e.mu.Lock()
	defer e.mu.Unlock()

	circ := circadianOffsets(t.UTC().Hour())

	baseHR := 70 + circ.heartRate + e.baselineHROffset
	baseHRV := 55 + circ.hrv + e.baselineHRVOffset
	baseActivity := 10 + circ.activity

	hr := baseHR + e.rng.NormFloat64()*3
	hrv := baseHRV + e.rng.NormFloat64()*4
	activity := baseActivity + e.rng.NormFloat64()*5
	if activity < 0 {
		activity = 0
	}

	var steps float64
	hour := t.UTC().Hour()
	switch {
	case hour >= 0 && hour <= 6:
		steps = 0
	case activity < 20:
		steps = float64(e.rng.Intn(6))
	default:
		steps = activity*0.4 + e.rng.NormFloat64()*3
	}

	return State{
		Timestamp:         t.UTC(),
		HeartRate:         clamp(hr, hrClamp),
		HRVMs:             clamp(hrv, hrvClamp),
		SpO2Percent:       round1(97 + e.rng.Float64()*2),
		SkinTempC:         round2(36.5 + e.baselineTempOffset + e.rng.NormFloat64()*0.1),
		RespiratoryRate:   clamp(14+e.rng.NormFloat64()*1, respClamp),
		ActivityLevel:     clamp(activity, actClamp),
		StepsPerMinute:    clamp(steps, stepsClamp),
		CaloriesPerMinute: round2(1.0 + activity*0.05 + e.rng.NormFloat64()*0.1),
		SleepQuality:      round1(75 + circ.sleepQuality + e.rng.NormFloat64()*3),
	}
}

// InjectAnomaly activates a named overlay for duration. Unknown kinds
// are a no-op; callers surface the validation error to the user.
func (e *Engine) InjectAnomaly(kind string, duration time.Duration) bool {
	if _, ok := Patterns[kind]; !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.anomalyKind = kind
	e.anomalyEnd = time.Now().Add(duration)
	return true
}

// AnomalyStatus reports whether an overlay is active and how long it has left.
func (e *Engine) AnomalyStatus() AnomalyStatus {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.anomalyKind == "" {
		return AnomalyStatus{}
	}
	remaining := time.Until(e.anomalyEnd).Seconds()
	if remaining < 0 {
		remaining = 0
	}
	return AnomalyStatus{
		Active:           remaining > 0,
		Kind:             e.anomalyKind,
		RemainingSeconds: round1(remaining),
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }

// Registry is the thread-safe per-user singleton map, matching the
// original's get_ground_truth pattern.
type Registry struct {
	mu      sync.Mutex
	engines map[string]*Engine
}

// NewRegistry creates an empty per-user engine registry.
func NewRegistry() *Registry {
	return &Registry{engines: make(map[string]*Engine)}
}

// Get returns the engine for userID, creating one on first access.
func (r *Registry) Get(userID string) *Engine {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.engines[userID]
	if !ok {
		e = NewEngine()
		r.engines[userID] = e
	}
	return e
}
