// Package orchestrator owns process startup order, component wiring,
// and graceful shutdown: persistent store init, HotRing reset, ingestion
// start, batch flusher start, optional ground-truth generator start, in
// that order, with the reverse on shutdown plus a final batch flush.
package orchestrator

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eljaska/telara/internal/baseline"
	"github.com/eljaska/telara/internal/broadcast"
	"github.com/eljaska/telara/internal/detector"
	"github.com/eljaska/telara/internal/events"
	"github.com/eljaska/telara/internal/fusion"
	"github.com/eljaska/telara/internal/ingestion"
	plkafka "github.com/eljaska/telara/internal/platform/kafka"
	"github.com/eljaska/telara/internal/query"
	"github.com/eljaska/telara/internal/storage"
)

// BaselinePersistInterval is how often the periodic baseline snapshot is
// written to the metadata store.
const BaselinePersistInterval = 30 * time.Second

// Deps are the externally-constructed collaborators the orchestrator
// wires together. Stores may be nil in environments without a reachable
// ClickHouse/Postgres instance (e.g. most unit tests); the orchestrator
// degrades to speed-layer-only operation in that case.
type Deps struct {
	Logger *logrus.Logger

	Brokers     []string
	GroupID     string
	AlertsTopic string
	DLQTopic    string
	DLQProducer *plkafka.Producer

	AlertPublisher detector.AlertPublisher

	VitalsStore   storage.VitalsStore
	AlertsStore   storage.AlertsStore
	BaselineStore *storage.PostgresBaselineStore

	SchemaInitter SchemaInitter
	Historical    query.HistoricalReader

	// AutoStart enables the in-process ground-truth generator (C1),
	// standing in for the external data generator's source workers when
	// nothing is feeding the vitals topics. AutoAnomaly additionally
	// drives the fixed demo anomaly rotation. UserID/EventInterval
	// configure the generator; EventInterval of 0 uses each source's own
	// sampling cadence.
	AutoStart     bool
	AutoAnomaly   bool
	UserID        string
	EventInterval time.Duration

	// Enricher, if set, augments each alert asynchronously (the
	// conversational agent's role; its internals are out of scope here).
	// Its result is pushed through the broadcast hub's EnrichmentHook
	// after the alert's original broadcast has already gone out, which
	// is the race spec.md §9 calls for.
	Enricher Enricher
}

// SchemaInitter drops and recreates the batch-layer tables. Implemented
// by a thin wrapper around the native ClickHouse connection; nil-safe.
type SchemaInitter interface {
	InitSchema(ctx context.Context) error
}

// Enricher asynchronously augments an alert with an insight from an
// external black-box enricher. Only the dispatch contract lives here;
// the enricher's own internals (the conversational agent and its tool
// invocations) are out of scope.
type Enricher interface {
	Enrich(ctx context.Context, a events.Alert) (events.Alert, error)
}

// Orchestrator wires the ingestion dispatcher to every downstream
// consumer and governs the startup/shutdown sequence.
type Orchestrator struct {
	logger *logrus.Logger

	registry   *ingestion.Registry
	dispatcher *ingestion.Dispatcher
	engine     *ingestion.Engine

	ring  *fusion.HotRing
	fused *fusion.FusionTable

	batch    *storage.BatchBuffer
	detector *detector.Worker
	maintain *baseline.Maintainer
	hub      *broadcast.Hub
	router   *query.Router

	baselineStore *storage.PostgresBaselineStore
	schemaInit    SchemaInitter

	generator   *ingestion.Generator
	autoAnomaly bool

	persistStop chan struct{}
	persistDone chan struct{}
}

// New constructs an orchestrator with every component wired: ingestion
// events fan out to the hot ring, fusion table, batch buffer, detector,
// baseline maintainer, and broadcast hub; alerts fan out to the alerts
// store and the broadcast hub.
func New(deps Deps) *Orchestrator {
	ring := fusion.NewHotRing(2000)
	fused := fusion.NewFusionTable()
	maintain := baseline.NewMaintainer()
	buf := broadcast.NewMessageBuffer()
	hub := broadcast.NewHub(buf, fused, deps.Logger)

	registry := ingestion.NewRegistry()
	dispatcher := ingestion.NewDispatcher()

	var batch *storage.BatchBuffer
	if deps.VitalsStore != nil {
		batch = storage.NewBatchBuffer(deps.VitalsStore, deps.Logger)
	}

	var det *detector.Worker
	if deps.AlertPublisher != nil {
		det = detector.NewWorker(deps.AlertPublisher, deps.AlertsTopic, deps.Logger)
	}

	dispatcher.AddListener(ring.Add)
	dispatcher.AddListener(fused.Add)
	dispatcher.AddListener(maintain.Update)
	dispatcher.AddListener(hub.HandleVital)
	if batch != nil {
		dispatcher.AddListener(batch.Add)
	}
	if det != nil {
		dispatcher.AddListener(det.HandleEvent)
	}

	dispatcher.AddAlertListener(hub.HandleAlert)
	if deps.AlertsStore != nil {
		store := deps.AlertsStore
		logger := deps.Logger
		dispatcher.AddAlertListener(func(a events.Alert) {
			if err := store.InsertAlert(context.Background(), a); err != nil {
				logger.WithError(err).Error("persist alert failed")
			}
		})
	}
	if deps.Enricher != nil {
		enricher := deps.Enricher
		logger := deps.Logger
		dispatcher.AddAlertListener(func(a events.Alert) {
			go func() {
				enriched, err := enricher.Enrich(context.Background(), a)
				if err != nil {
					logger.WithError(err).Warn("alert enrichment failed")
					return
				}
				hub.HandleEnrichment(enriched)
			}()
		})
	}

	engine := ingestion.NewEngine(deps.Brokers, deps.GroupID, deps.AlertsTopic, deps.DLQTopic, deps.DLQProducer, registry, dispatcher, deps.Logger)

	router := query.NewRouter(ring, deps.Historical)

	var generator *ingestion.Generator
	if deps.AutoStart {
		userID := deps.UserID
		if userID == "" {
			userID = "user_001"
		}
		generator = ingestion.NewGenerator(dispatcher, userID, deps.EventInterval, deps.Logger)
	}

	return &Orchestrator{
		logger:        deps.Logger,
		registry:      registry,
		dispatcher:    dispatcher,
		engine:        engine,
		ring:          ring,
		fused:         fused,
		batch:         batch,
		detector:      det,
		maintain:      maintain,
		hub:           hub,
		router:        router,
		baselineStore: deps.BaselineStore,
		schemaInit:    deps.SchemaInitter,
		generator:     generator,
		autoAnomaly:   deps.AutoAnomaly,
	}
}

// Registry exposes the source registry for the HTTP/control surface.
func (o *Orchestrator) Registry() *ingestion.Registry { return o.registry }

// Dispatcher exposes the dispatcher so callers can register additional
// listeners before Start.
func (o *Orchestrator) Dispatcher() *ingestion.Dispatcher { return o.dispatcher }

// HotRing exposes the speed-layer ring.
func (o *Orchestrator) HotRing() *fusion.HotRing { return o.ring }

// FusionTable exposes the live fusion table.
func (o *Orchestrator) FusionTable() *fusion.FusionTable { return o.fused }

// Baseline exposes the baseline maintainer.
func (o *Orchestrator) Baseline() *baseline.Maintainer { return o.maintain }

// Hub exposes the broadcast hub, used to mount its HTTP handler.
func (o *Orchestrator) Hub() *broadcast.Hub { return o.hub }

// Router exposes the read-path router for the HTTP query surface.
func (o *Orchestrator) Router() *query.Router { return o.router }

// Generator exposes the ground-truth generator, nil unless AutoStart
// was set, for the anomaly-injection control surface.
func (o *Orchestrator) Generator() *ingestion.Generator { return o.generator }

// Start runs the full startup sequence: fresh batch-layer schema, a
// cleared HotRing and FusionTable, ingestion start, and the batch
// flusher. Each step depends on the previous one having completed.
func (o *Orchestrator) Start(ctx context.Context) error {
	if o.schemaInit != nil {
		if err := o.schemaInit.InitSchema(ctx); err != nil {
			return err
		}
	}
	if o.baselineStore != nil {
		if err := o.baselineStore.InitSchema(ctx); err != nil {
			return err
		}
	}

	o.ring.Clear()
	o.fused.Clear()

	if err := o.engine.Start(ctx); err != nil {
		return err
	}

	if o.batch != nil {
		o.batch.StartFlushLoop(ctx)
	}

	if o.baselineStore != nil {
		o.persistStop = make(chan struct{})
		o.persistDone = make(chan struct{})
		go o.persistBaselinesLoop(ctx)
	}

	if o.generator != nil {
		o.generator.Start(ctx, o.autoAnomaly)
	}

	o.logger.Info("orchestrator startup sequence complete")
	return nil
}

func (o *Orchestrator) persistBaselinesLoop(ctx context.Context) {
	defer close(o.persistDone)
	ticker := time.NewTicker(BaselinePersistInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-o.persistStop:
			return
		case <-ticker.C:
			o.persistBaselines(ctx)
		}
	}
}

func (o *Orchestrator) persistBaselines(ctx context.Context) {
	snap := o.maintain.Snapshot()
	if len(snap) == 0 {
		return
	}
	if err := o.baselineStore.UpsertAll(ctx, snap); err != nil {
		o.logger.WithError(err).Warn("baseline snapshot persist failed")
	}
}

// Stop runs the shutdown sequence in reverse: ingestion workers exit
// cooperatively, the periodic baseline persistence loop stops, and the
// batch buffer drains with a final flush.
func (o *Orchestrator) Stop(ctx context.Context) {
	if o.generator != nil {
		o.generator.Stop()
	}

	o.engine.Stop()

	if o.persistStop != nil {
		close(o.persistStop)
		<-o.persistDone
		o.persistBaselines(ctx)
	}

	if o.batch != nil {
		o.batch.Stop(ctx)
	}

	o.logger.Info("orchestrator shutdown complete")
}
