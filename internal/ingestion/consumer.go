package ingestion

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/eljaska/telara/internal/events"
	plkafka "github.com/eljaska/telara/internal/platform/kafka"
)

// Engine owns one Kafka consumer per known source plus the alerts
// consumer, normalises every record, and hands it to the dispatcher.
type Engine struct {
	logger     *logrus.Logger
	registry   *Registry
	dispatcher *Dispatcher
	brokers    []string
	groupID    string
	alertsTopic string
	dlqTopic    string
	dlqProducer *plkafka.Producer

	consumers []*plkafka.Consumer
	group     *errgroup.Group
}

// NewEngine constructs the ingestion engine. groupID is the consumer
// group prefix (telara-api-<suffix> per source).
func NewEngine(brokers []string, groupID, alertsTopic, dlqTopic string, dlqProducer *plkafka.Producer, registry *Registry, dispatcher *Dispatcher, logger *logrus.Logger) *Engine {
	return &Engine{
		logger:      logger,
		registry:    registry,
		dispatcher:  dispatcher,
		brokers:     brokers,
		groupID:     groupID,
		alertsTopic: alertsTopic,
		dlqTopic:    dlqTopic,
		dlqProducer: dlqProducer,
	}
}

// sourceHandler adapts one source's decoded messages into the
// dispatcher, skipping work entirely while the source is disabled.
type sourceHandler struct {
	sourceID   events.SourceID
	registry   *Registry
	dispatcher *Dispatcher
}

func (h *sourceHandler) HandleMessage(msg plkafka.Message) error {
	if !h.registry.IsEnabled(h.sourceID) {
		return nil
	}

	var raw events.RawEvent
	if err := json.Unmarshal(msg.Value, &raw); err != nil {
		return fmt.Errorf("decode %s event: %w", h.sourceID, err)
	}

	if raw.Source == "" {
		raw.Source = h.sourceID
	}
	raw = events.Normalise(raw)

	h.registry.RecordEvent(h.sourceID)
	h.dispatcher.dispatchEvent(raw)
	return nil
}

type alertsHandler struct {
	dispatcher *Dispatcher
}

func (h *alertsHandler) HandleMessage(msg plkafka.Message) error {
	var alert events.Alert
	if err := json.Unmarshal(msg.Value, &alert); err != nil {
		return fmt.Errorf("decode alert: %w", err)
	}
	h.dispatcher.dispatchAlert(alert)
	return nil
}

// Start creates and launches one consumer goroutine per known source
// plus the alerts consumer, returning once every consumer is subscribed.
// Each consumer runs until ctx is cancelled; Stop waits on the same
// errgroup so shutdown only completes once every goroutine has exited.
func (e *Engine) Start(ctx context.Context) error {
	group, groupCtx := errgroup.WithContext(ctx)
	e.group = group

	for id, profile := range events.Registry {
		consumer, err := plkafka.NewConsumer(
			e.brokers,
			fmt.Sprintf("%s-source-%s", e.groupID, id),
			fmt.Sprintf("%s-source-%s", e.groupID, id),
			e.logger,
			&sourceHandler{sourceID: id, registry: e.registry, dispatcher: e.dispatcher},
		)
		if err != nil {
			return fmt.Errorf("create consumer for source %s: %w", id, err)
		}
		if e.dlqProducer != nil {
			consumer = consumer.WithDLQ(e.dlqProducer, e.dlqTopic)
		}
		if err := consumer.Subscribe(profile.Topic); err != nil {
			return fmt.Errorf("subscribe source %s: %w", id, err)
		}
		e.consumers = append(e.consumers, consumer)

		sourceID, c := id, consumer
		group.Go(func() error {
			if err := c.Start(groupCtx); err != nil && groupCtx.Err() == nil {
				e.logger.WithError(err).WithField("source", sourceID).Error("source consumer stopped")
				return err
			}
			return nil
		})
	}

	alertsConsumer, err := plkafka.NewConsumer(
		e.brokers,
		e.groupID+"-alerts",
		e.groupID+"-alerts",
		e.logger,
		&alertsHandler{dispatcher: e.dispatcher},
	)
	if err != nil {
		return fmt.Errorf("create alerts consumer: %w", err)
	}
	if err := alertsConsumer.Subscribe(e.alertsTopic); err != nil {
		return fmt.Errorf("subscribe alerts topic: %w", err)
	}
	e.consumers = append(e.consumers, alertsConsumer)

	group.Go(func() error {
		if err := alertsConsumer.Start(groupCtx); err != nil && groupCtx.Err() == nil {
			e.logger.WithError(err).Error("alerts consumer stopped")
			return err
		}
		return nil
	})

	e.logger.WithField("alerts_topic", e.alertsTopic).Info("ingestion engine started")
	return nil
}

// Stop closes every underlying Kafka client and waits for their
// goroutines to exit. Start's context must already be cancelled by the
// caller (cmd/telara-core cancels it before calling the orchestrator's
// Stop, which calls this) or this blocks
// until the consumers notice the closed client on their own.
func (e *Engine) Stop() {
	for _, c := range e.consumers {
		if err := c.Close(); err != nil {
			e.logger.WithError(err).Warn("error closing consumer")
		}
	}
	if e.group != nil {
		if err := e.group.Wait(); err != nil {
			e.logger.WithError(err).Warn("consumer goroutine group exited with error")
		}
	}
}
