package detector

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eljaska/telara/internal/events"
)

// runState tracks an in-progress candidate match for one user/pattern.
type runState struct {
	active  bool
	startTs time.Time
	endTs   time.Time
	sum     float64
	count   int
}

type userState struct {
	mu        sync.Mutex
	maxSeenTs time.Time
	runs      map[string]*runState
}

func newUserState() *userState {
	runs := make(map[string]*runState, len(Patterns))
	for _, p := range Patterns {
		runs[p.AlertType] = &runState{}
	}
	return &userState{runs: runs}
}

// Engine runs all configured Patterns per user, ordered by event
// timestamp, and returns alerts when a run closes.
type Engine struct {
	mu    sync.Mutex
	users map[string]*userState
}

// NewEngine creates an empty detector. Per-user state is intentionally
// not persisted: a restart resumes from latest offsets with fresh
// state, and duplicate alerts on replay are absorbed by upsert on
// alert_id downstream.
func NewEngine() *Engine {
	return &Engine{users: make(map[string]*userState)}
}

func (eng *Engine) userFor(userID string) *userState {
	eng.mu.Lock()
	defer eng.mu.Unlock()
	u, ok := eng.users[userID]
	if !ok {
		u = newUserState()
		eng.users[userID] = u
	}
	return u
}

// Process evaluates e against every pattern and returns any alerts
// that closed as a result. Events older than WatermarkSlack relative
// to the newest seen for this user are dropped from detection.
func (eng *Engine) Process(e events.RawEvent) []events.Alert {
	u := eng.userFor(e.UserID)
	u.mu.Lock()
	defer u.mu.Unlock()

	if e.Timestamp.After(u.maxSeenTs) {
		u.maxSeenTs = e.Timestamp
	} else if u.maxSeenTs.Sub(e.Timestamp) > WatermarkSlack {
		return nil
	}

	var alerts []events.Alert
	for _, p := range Patterns {
		if alert := eng.step(e, p, u.runs[p.AlertType]); alert != nil {
			alerts = append(alerts, *alert)
		}
	}
	return alerts
}

func (eng *Engine) step(e events.RawEvent, p Pattern, run *runState) *events.Alert {
	value, present := e.Get(p.Field)
	matchesA := present && p.Matches(value) && extraPredicate(p.AlertType, e)

	if matchesA {
		if !run.active {
			run.active = true
			run.startTs = e.Timestamp
			run.sum = 0
			run.count = 0
		}
		run.endTs = e.Timestamp
		run.sum += value
		run.count++
		return nil
	}

	// e is the terminator B (negation of A): close any open run.
	if !run.active {
		return nil
	}
	closed := *run
	*run = runState{}

	if closed.count < p.MinRun {
		return nil
	}

	avg := closed.sum / float64(closed.count)
	return &events.Alert{
		AlertID:        uuid.NewString(),
		AlertType:      p.AlertType,
		UserID:         e.UserID,
		Severity:       p.Severity(avg),
		StartTime:      closed.startTs,
		EndTime:        closed.endTs,
		AggregateValue: avg,
		EventCount:     closed.count,
		Description:    describe(p.AlertType, avg, closed.count),
	}
}

func describe(alertType string, avg float64, count int) string {
	switch alertType {
	case events.AlertTachycardiaAtRest:
		return fmt.Sprintf("Sustained elevated HR (%.0f bpm avg) detected while at rest for %d consecutive readings", avg, count)
	case events.AlertLowSpO2Hypoxia:
		return fmt.Sprintf("Low blood oxygen (%.0f%% avg SpO2) detected for %d consecutive readings", avg, count)
	case events.AlertElevatedTemperature:
		return fmt.Sprintf("Elevated body temperature (%.1f°C avg) detected for %d consecutive readings", avg, count)
	default:
		return fmt.Sprintf("Sustained anomaly (%s, avg %.2f) detected for %d consecutive readings", alertType, avg, count)
	}
}
