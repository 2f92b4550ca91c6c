package storage

import (
	"context"

	chdriver "github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// InitSchema drops and recreates the vitals and alerts tables, mirroring
// the original's "fresh tables on each launch" startup contract: this is
// a demo/single-node system with no cross-restart durability goal, so
// each process start begins from empty batch-layer tables rather than
// running migrations against whatever is already there.
// ClickHouseSchema adapts a native connection to the orchestrator's
// SchemaInitter interface.
type ClickHouseSchema struct {
	Conn chdriver.Conn
}

// InitSchema runs InitSchema against the wrapped connection.
func (s ClickHouseSchema) InitSchema(ctx context.Context) error {
	return InitSchema(ctx, s.Conn)
}

func InitSchema(ctx context.Context, conn chdriver.Conn) error {
	drops := []string{
		`DROP TABLE IF EXISTS vitals`,
		`DROP TABLE IF EXISTS alerts`,
	}
	for _, stmt := range drops {
		if err := conn.Exec(ctx, stmt); err != nil {
			return err
		}
	}

	if err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS vitals (
			event_id String,
			timestamp DateTime64(3),
			user_id String,
			source String,
			heart_rate Nullable(Float64),
			hrv_ms Nullable(Float64),
			spo2_percent Nullable(Float64),
			skin_temp_c Nullable(Float64),
			respiratory_rate Nullable(Float64),
			activity_level Nullable(Float64),
			steps_per_minute Nullable(Float64),
			calories_per_minute Nullable(Float64),
			sleep_quality Nullable(Float64)
		) ENGINE = ReplacingMergeTree
		ORDER BY (user_id, timestamp, event_id)
	`); err != nil {
		return err
	}

	if err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS alerts (
			alert_id String,
			timestamp DateTime64(3),
			user_id String,
			alert_type String,
			severity String,
			description String,
			avg_heart_rate Nullable(Float64),
			event_count Int32,
			ai_insight String,
			resolved UInt8 DEFAULT 0
		) ENGINE = ReplacingMergeTree
		ORDER BY (user_id, timestamp, alert_id)
	`); err != nil {
		return err
	}

	return nil
}
