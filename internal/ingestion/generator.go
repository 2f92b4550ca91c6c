package ingestion

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/eljaska/telara/internal/events"
	"github.com/eljaska/telara/internal/groundtruth"
)

// anomalySequence is the fixed demo rotation AUTO_ANOMALY drives,
// carried over unchanged from the data generator's own trigger loop:
// each entry runs for its duration, then a 90s cooldown before the
// next.
var anomalySequence = []struct {
	kind     string
	duration time.Duration
}{
	{"tachycardia_at_rest", 30 * time.Second},
	{"hypoxia", 20 * time.Second},
	{"fever_onset", 25 * time.Second},
}

const anomalyCooldown = 90 * time.Second
const anomalyWarmup = 60 * time.Second

// Generator drives the ground-truth engine for AUTO_START deployments,
// projecting each wearable source's noisy observation of the shared
// physiological state straight onto the dispatcher. It stands in for
// the source workers' topic subscriptions when no external data
// generator process is feeding Kafka.
type Generator struct {
	dispatcher *Dispatcher
	registry   *groundtruth.Registry
	userID     string
	interval   time.Duration
	rng        *rand.Rand
	logger     *logrus.Logger

	stop    chan struct{}
	done    chan struct{}
	workers int
}

// NewGenerator builds a generator driving userID's ground truth. When
// interval is 0, each source ticks at its own SamplingMS cadence.
func NewGenerator(dispatcher *Dispatcher, userID string, interval time.Duration, logger *logrus.Logger) *Generator {
	return &Generator{
		dispatcher: dispatcher,
		registry:   groundtruth.NewRegistry(),
		userID:     userID,
		interval:   interval,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:     logger,
	}
}

// InjectAnomaly activates a named overlay on the driven user's ground
// truth, for the HTTP-facing anomaly-injection contract.
func (g *Generator) InjectAnomaly(kind string, duration time.Duration) bool {
	return g.registry.Get(g.userID).InjectAnomaly(kind, duration)
}

// AnomalyStatus reports the active overlay, if any, for the driven
// user.
func (g *Generator) AnomalyStatus() groundtruth.AnomalyStatus {
	return g.registry.Get(g.userID).AnomalyStatus()
}

// Start launches one tick loop per registered source profile plus,
// when autoAnomaly is set, the demo anomaly-rotation loop.
func (g *Generator) Start(ctx context.Context, autoAnomaly bool) {
	g.stop = make(chan struct{})

	g.workers = len(events.Registry)
	if autoAnomaly {
		g.workers++
	}
	g.done = make(chan struct{}, g.workers)

	for _, profile := range events.Registry {
		go g.runSource(ctx, profile)
	}
	if autoAnomaly {
		go g.runAutoAnomaly(ctx)
	}
}

// Stop halts every tick loop and waits for each to exit.
func (g *Generator) Stop() {
	if g.stop == nil {
		return
	}
	close(g.stop)
	for i := 0; i < g.workers; i++ {
		<-g.done
	}
}

func (g *Generator) runSource(ctx context.Context, profile events.SourceProfile) {
	defer func() { g.done <- struct{}{} }()

	interval := time.Duration(profile.SamplingMS) * time.Millisecond
	if g.interval > 0 {
		interval = g.interval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-g.stop:
			return
		case <-ticker.C:
			g.dispatcher.DispatchEvent(g.project(profile))
		}
	}
}

func (g *Generator) runAutoAnomaly(ctx context.Context) {
	defer func() { g.done <- struct{}{} }()

	if g.logger != nil {
		g.logger.Info("auto-anomaly injection enabled, first anomaly in 60s")
	}

	timer := time.NewTimer(anomalyWarmup)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-g.stop:
		return
	case <-timer.C:
	}

	for {
		for _, step := range anomalySequence {
			g.InjectAnomaly(step.kind, step.duration)
			if g.logger != nil {
				g.logger.WithField("kind", step.kind).Info("auto-anomaly injected")
			}

			wait := time.NewTimer(step.duration + anomalyCooldown)
			select {
			case <-ctx.Done():
				wait.Stop()
				return
			case <-g.stop:
				wait.Stop()
				return
			case <-wait.C:
			}
		}
	}
}

// project synthesizes the shared ground-truth state and projects it
// onto the fields the source profile supports, adding per-field noise.
func (g *Generator) project(profile events.SourceProfile) events.RawEvent {
	state := g.registry.Get(g.userID).Current()

	fields := make(map[string]float64, len(profile.SupportedFields))
	for _, field := range profile.SupportedFields {
		v, ok := fieldValue(state, field)
		if !ok {
			continue
		}
		if sigma := profile.NoiseSigma[field]; sigma > 0 {
			v += g.rng.NormFloat64() * sigma
		}
		fields[field] = roundField(field, v)
	}

	return events.RawEvent{
		EventID:    uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		UserID:     g.userID,
		Source:     profile.SourceID,
		SourceName: profile.SourceName,
		Fields:     fields,
	}
}

func fieldValue(s groundtruth.State, field string) (float64, bool) {
	switch field {
	case "heart_rate":
		return s.HeartRate, true
	case "hrv_ms":
		return s.HRVMs, true
	case "spo2_percent":
		return s.SpO2Percent, true
	case "skin_temp_c":
		return s.SkinTempC, true
	case "respiratory_rate":
		return s.RespiratoryRate, true
	case "activity_level":
		return s.ActivityLevel, true
	case "steps_per_minute":
		return s.StepsPerMinute, true
	case "calories_per_minute":
		return s.CaloriesPerMinute, true
	case "sleep_quality":
		return s.SleepQuality, true
	default:
		return 0, false
	}
}

// roundField matches spec.md §4.1's per-field rounding: integer for
// heart_rate, hrv, resp, activity, steps, spo2; two decimals otherwise.
func roundField(field string, v float64) float64 {
	switch field {
	case "heart_rate", "hrv_ms", "respiratory_rate", "activity_level", "steps_per_minute", "spo2_percent":
		return math.Round(v)
	default:
		return math.Round(v*100) / 100
	}
}
