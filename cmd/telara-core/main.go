package main

import (
	"context"
	"strings"
	"time"

	"github.com/eljaska/telara/internal/orchestrator"
	"github.com/eljaska/telara/internal/platform/config"
	plkafka "github.com/eljaska/telara/internal/platform/kafka"
	"github.com/eljaska/telara/internal/platform/logging"
	"github.com/eljaska/telara/internal/platform/monitoring"
	"github.com/eljaska/telara/internal/platform/server"
	"github.com/eljaska/telara/internal/query"
	"github.com/eljaska/telara/internal/storage"
)

func main() {
	logger := logging.NewLoggerWithService("telara-core")
	config.LoadEnv(logger)
	cfg := config.Load()

	logger.Info("starting telara core")

	healthChecker := monitoring.NewHealthChecker("telara-core", "dev")
	metricsCollector := monitoring.NewMetricsCollector("telara_core", "dev")

	brokers := strings.Split(cfg.KafkaBootstrapServers, ",")

	alertProducer, err := plkafka.NewProducer(brokers, "telara-core-alerts", logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to create alerts producer")
	}
	defer alertProducer.Close()

	var dlqProducer *plkafka.Producer
	dlqProducer, err = plkafka.NewProducer(brokers, "telara-core-dlq", logger)
	if err != nil {
		logger.WithError(err).Warn("failed to create DLQ producer, DLQ disabled")
		dlqProducer = nil
	} else {
		defer dlqProducer.Close()
	}

	chCfg := storage.ClickHouseConfig{
		Addr:     strings.Split(cfg.ClickHouseAddr, ","),
		Database: "default",
		Username: "default",
	}

	var vitalsStore storage.VitalsStore
	var alertsStore storage.AlertsStore
	var schemaInit orchestrator.SchemaInitter
	var historical query.HistoricalReader

	if nativeConn, err := storage.ConnectClickHouseNative(chCfg, logger); err != nil {
		logger.WithError(err).Warn("ClickHouse unreachable, batch-layer persistence disabled")
	} else {
		vitalsStore = storage.NewClickHouseVitalsStore(nativeConn)
		alertsStore = storage.NewClickHouseAlertsStore(nativeConn)
		schemaInit = storage.ClickHouseSchema{Conn: nativeConn}

		if sqlConn, err := storage.ConnectClickHouseSQL(chCfg, logger); err != nil {
			logger.WithError(err).Warn("ClickHouse SQL interface unreachable, historical queries disabled")
		} else {
			historical = query.NewClickHouseReader(sqlConn)
		}
	}

	var baselineStore *storage.PostgresBaselineStore
	pgConn, err := storage.ConnectPostgres(storage.PostgresConfig{DSN: cfg.PostgresURL}, logger)
	if err != nil {
		logger.WithError(err).Warn("Postgres unreachable, baseline persistence disabled")
	} else {
		baselineStore = storage.NewPostgresBaselineStore(pgConn)
	}

	orch := orchestrator.New(orchestrator.Deps{
		Logger:         logger,
		Brokers:        brokers,
		GroupID:        "telara-api-consumer",
		AlertsTopic:    cfg.KafkaAlertsTopic,
		DLQTopic:       "biometrics-dlq",
		DLQProducer:    dlqProducer,
		AlertPublisher: alertProducer,
		VitalsStore:    vitalsStore,
		AlertsStore:    alertsStore,
		BaselineStore:  baselineStore,
		SchemaInitter:  schemaInit,
		Historical:     historical,
		AutoStart:      cfg.AutoStart,
		AutoAnomaly:    cfg.AutoAnomaly,
		UserID:         cfg.UserID,
		EventInterval:  time.Duration(cfg.EventIntervalMS) * time.Millisecond,
	})

	connGauge := metricsCollector.NewGauge("broadcast_connections", "Active broadcast WebSocket connections", nil)
	orch.Hub().SetConnectionsGauge(connGauge.WithLabelValues())

	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"KAFKA_BOOTSTRAP_SERVERS": cfg.KafkaBootstrapServers,
		"KAFKA_ALERTS_TOPIC":      cfg.KafkaAlertsTopic,
		"CLICKHOUSE_ADDR":         cfg.ClickHouseAddr,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := orch.Start(ctx); err != nil {
		logger.WithError(err).Fatal("orchestrator startup failed")
	}

	router := server.SetupRouter(logger, "telara-core", healthChecker, metricsCollector)
	router.GET("/ws/vitals", orch.Hub().Handler(logger))

	serverCfg := server.DefaultConfig("telara-core", cfg.Port)

	if err := server.Start(ctx, serverCfg, router, logger, func() {
		cancel()
		orch.Stop(context.Background())
	}); err != nil {
		logger.WithError(err).Fatal("HTTP server startup failed")
	}
}
