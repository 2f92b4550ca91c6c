package detector

import (
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/eljaska/telara/internal/events"
	plkafka "github.com/eljaska/telara/internal/platform/kafka"
)

// AlertPublisher publishes a detected alert to the alerts topic.
type AlertPublisher interface {
	ProduceMessage(topic string, key, value []byte, headers map[string]string) error
}

// Worker feeds every ingested vital through the pattern Engine and
// publishes closed-run alerts to the alerts topic for the rest of the
// system (broadcast hub, alerts store) to consume.
type Worker struct {
	engine      *Engine
	producer    AlertPublisher
	alertsTopic string
	logger      *logrus.Logger
}

// NewWorker binds a detector engine to a publisher and alerts topic.
func NewWorker(producer AlertPublisher, alertsTopic string, logger *logrus.Logger) *Worker {
	return &Worker{
		engine:      NewEngine(),
		producer:    producer,
		alertsTopic: alertsTopic,
		logger:      logger,
	}
}

// HandleEvent is an ingestion.Listener: it runs the event through every
// configured pattern and publishes any alerts it closes.
func (w *Worker) HandleEvent(e events.RawEvent) {
	alerts := w.engine.Process(e)
	for _, alert := range alerts {
		w.publish(alert)
	}
}

func (w *Worker) publish(alert events.Alert) {
	payload, err := json.Marshal(alert)
	if err != nil {
		w.logger.WithError(err).Error("marshal alert failed")
		return
	}

	if err := w.producer.ProduceMessage(w.alertsTopic, []byte(alert.UserID), payload, nil); err != nil {
		w.logger.WithError(fmt.Errorf("publish alert: %w", err)).WithFields(logrus.Fields{
			"alert_type": alert.AlertType,
			"user_id":    alert.UserID,
		}).Error("failed to publish detected alert")
		return
	}

	w.logger.WithFields(logrus.Fields{
		"alert_type": alert.AlertType,
		"user_id":    alert.UserID,
		"severity":   alert.Severity,
	}).Info("published anomaly alert")
}

var _ AlertPublisher = (*plkafka.Producer)(nil)
