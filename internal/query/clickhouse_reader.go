package query

import (
	"context"
	"database/sql"
	"time"

	"github.com/eljaska/telara/internal/events"
	"github.com/eljaska/telara/internal/fusion"
)

// ClickHouseReader answers batch-layer queries against the vitals table
// using the database/sql ClickHouse interface.
type ClickHouseReader struct {
	db *sql.DB
}

// NewClickHouseReader wraps a database/sql ClickHouse connection.
func NewClickHouseReader(db *sql.DB) *ClickHouseReader {
	return &ClickHouseReader{db: db}
}

// RecentVitals returns every vitals row for userID newer than since,
// newest first.
func (r *ClickHouseReader) RecentVitals(ctx context.Context, userID string, since time.Time) ([]events.RawEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT event_id, timestamp, user_id, source,
			heart_rate, hrv_ms, spo2_percent, skin_temp_c,
			respiratory_rate, activity_level, steps_per_minute,
			calories_per_minute, sleep_quality
		FROM vitals
		WHERE user_id = ? AND timestamp > ?
		ORDER BY timestamp DESC
	`, userID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []events.RawEvent
	for rows.Next() {
		var e events.RawEvent
		var source string
		var hr, hrv, spo2, temp, resp, activity, steps, cal, sleep sql.NullFloat64

		if err := rows.Scan(
			&e.EventID, &e.Timestamp, &e.UserID, &source,
			&hr, &hrv, &spo2, &temp, &resp, &activity, &steps, &cal, &sleep,
		); err != nil {
			return nil, err
		}

		e.Source = events.SourceID(source)
		e.Fields = make(map[string]float64)
		assignIfValid(e.Fields, "heart_rate", hr)
		assignIfValid(e.Fields, "hrv_ms", hrv)
		assignIfValid(e.Fields, "spo2_percent", spo2)
		assignIfValid(e.Fields, "skin_temp_c", temp)
		assignIfValid(e.Fields, "respiratory_rate", resp)
		assignIfValid(e.Fields, "activity_level", activity)
		assignIfValid(e.Fields, "steps_per_minute", steps)
		assignIfValid(e.Fields, "calories_per_minute", cal)
		assignIfValid(e.Fields, "sleep_quality", sleep)

		out = append(out, e)
	}
	return out, rows.Err()
}

func assignIfValid(fields map[string]float64, key string, v sql.NullFloat64) {
	if v.Valid {
		fields[key] = v.Float64
	}
}

// Stats computes per-metric avg/min/max for userID since the given time
// in a single-row query. Count is the total number of rows in the
// window, the same for every metric, not a per-metric non-null count.
func (r *ClickHouseReader) Stats(ctx context.Context, userID string, since time.Time) (map[string]fusion.MetricStats, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT
			count(*),
			avg(heart_rate), min(heart_rate), max(heart_rate),
			avg(hrv_ms), min(hrv_ms), max(hrv_ms),
			avg(spo2_percent), min(spo2_percent), max(spo2_percent),
			avg(skin_temp_c), min(skin_temp_c), max(skin_temp_c)
		FROM vitals
		WHERE user_id = ? AND timestamp > ?
	`, userID, since)

	var count int
	var hrAvg, hrMin, hrMax sql.NullFloat64
	var hrvAvg, hrvMin, hrvMax sql.NullFloat64
	var spo2Avg, spo2Min, spo2Max sql.NullFloat64
	var tempAvg, tempMin, tempMax sql.NullFloat64

	if err := row.Scan(
		&count,
		&hrAvg, &hrMin, &hrMax,
		&hrvAvg, &hrvMin, &hrvMax,
		&spo2Avg, &spo2Min, &spo2Max,
		&tempAvg, &tempMin, &tempMax,
	); err != nil {
		return nil, err
	}

	out := make(map[string]fusion.MetricStats)
	addStat(out, "heart_rate", count, hrAvg, hrMin, hrMax)
	addStat(out, "hrv_ms", count, hrvAvg, hrvMin, hrvMax)
	addStat(out, "spo2_percent", count, spo2Avg, spo2Min, spo2Max)
	addStat(out, "skin_temp_c", count, tempAvg, tempMin, tempMax)
	return out, nil
}

func addStat(out map[string]fusion.MetricStats, metric string, count int, avg, min, max sql.NullFloat64) {
	if !avg.Valid {
		return
	}
	out[metric] = fusion.MetricStats{
		Count:   count,
		Average: avg.Float64,
		Min:     min.Float64,
		Max:     max.Float64,
	}
}
