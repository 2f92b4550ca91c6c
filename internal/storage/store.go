// Package storage implements the batch layer of the lambda architecture:
// a buffered writer that accumulates vitals and flushes them to the
// persistent store on an interval, independent of the speed layer.
package storage

import (
	"context"
	"database/sql"

	"github.com/ClickHouse/clickhouse-go/v2"
	chdriver "github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/eljaska/telara/internal/events"
	"github.com/eljaska/telara/internal/platform/logging"
)

// ClickHouseConfig mirrors the platform's shared connection settings.
type ClickHouseConfig struct {
	Addr     []string
	Database string
	Username string
	Password string
	Debug    bool
}

// DefaultClickHouseConfig matches the teacher's shared defaults.
func DefaultClickHouseConfig() ClickHouseConfig {
	return ClickHouseConfig{
		Addr:     []string{"127.0.0.1:9000"},
		Database: "default",
		Username: "default",
		Password: "",
	}
}

// ConnectClickHouseNative opens a native ClickHouse connection, used for
// batch inserts.
func ConnectClickHouseNative(cfg ClickHouseConfig, logger logging.Logger) (chdriver.Conn, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: cfg.Addr,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: cfg.Debug,
	})
	if err != nil {
		return nil, err
	}
	if err := conn.Ping(context.Background()); err != nil {
		return nil, err
	}

	logger.WithFields(logging.Fields{
		"addr":     cfg.Addr,
		"database": cfg.Database,
	}).Info("connected to ClickHouse")

	return conn, nil
}

// ConnectClickHouseSQL opens a database/sql-interface ClickHouse
// connection, used for SELECT queries (the read path), as distinct from
// the native connection used for batch inserts.
func ConnectClickHouseSQL(cfg ClickHouseConfig, logger logging.Logger) (*sql.DB, error) {
	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: cfg.Addr,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.Username,
			Password: cfg.Password,
		},
		Debug: cfg.Debug,
	})
	if err := conn.Ping(); err != nil {
		return nil, err
	}

	logger.WithFields(logging.Fields{
		"addr":     cfg.Addr,
		"database": cfg.Database,
	}).Info("connected to ClickHouse (SQL interface)")

	return conn, nil
}

// VitalsStore persists confirmed vitals batches. Implemented by
// ClickHouseVitalsStore; a fake in tests stands in for the connection.
type VitalsStore interface {
	InsertVitals(ctx context.Context, batch []events.RawEvent) error
}

// ClickHouseVitalsStore writes vitals batches into the vitals table.
type ClickHouseVitalsStore struct {
	conn chdriver.Conn
}

// NewClickHouseVitalsStore wraps a native ClickHouse connection.
func NewClickHouseVitalsStore(conn chdriver.Conn) *ClickHouseVitalsStore {
	return &ClickHouseVitalsStore{conn: conn}
}

// InsertVitals writes one batch via a prepared ClickHouse batch insert,
// mirroring the original's bulk INSERT OR REPLACE semantics (ReplacingMergeTree
// keyed on event_id on the ClickHouse side handles the "OR REPLACE" part).
func (s *ClickHouseVitalsStore) InsertVitals(ctx context.Context, batch []events.RawEvent) error {
	if len(batch) == 0 {
		return nil
	}

	chBatch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO vitals (
			event_id, timestamp, user_id, source,
			heart_rate, hrv_ms, spo2_percent, skin_temp_c,
			respiratory_rate, activity_level, steps_per_minute,
			calories_per_minute, sleep_quality
		)`)
	if err != nil {
		return err
	}

	// Absent fields are written as NULL, never as zero.
	opt := func(e events.RawEvent, key string) *float64 {
		if v, ok := e.Get(key); ok {
			return &v
		}
		return nil
	}

	for _, e := range batch {
		if err := chBatch.Append(
			e.EventID, e.Timestamp, e.UserID, string(e.Source),
			opt(e, "heart_rate"), opt(e, "hrv_ms"), opt(e, "spo2_percent"),
			opt(e, "skin_temp_c"), opt(e, "respiratory_rate"), opt(e, "activity_level"),
			opt(e, "steps_per_minute"), opt(e, "calories_per_minute"), opt(e, "sleep_quality"),
		); err != nil {
			return err
		}
	}

	return chBatch.Send()
}

// AlertsStore persists closed-run alerts. Alerts are low-volume compared
// to vitals, so each one is written directly rather than batched.
type AlertsStore interface {
	InsertAlert(ctx context.Context, a events.Alert) error
}

// ClickHouseAlertsStore writes alerts into the alerts table.
type ClickHouseAlertsStore struct {
	conn chdriver.Conn
}

// NewClickHouseAlertsStore wraps a native ClickHouse connection.
func NewClickHouseAlertsStore(conn chdriver.Conn) *ClickHouseAlertsStore {
	return &ClickHouseAlertsStore{conn: conn}
}

// InsertAlert appends one alert row.
func (s *ClickHouseAlertsStore) InsertAlert(ctx context.Context, a events.Alert) error {
	return s.conn.Exec(ctx, `
		INSERT INTO alerts (
			alert_id, timestamp, user_id, alert_type, severity,
			description, avg_heart_rate, event_count, ai_insight, resolved
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.AlertID, a.StartTime, a.UserID, a.AlertType, a.Severity,
		a.Description, a.AggregateValue, a.EventCount, a.EnrichedInsight, a.Resolved,
	)
}
