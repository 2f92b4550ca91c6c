package storage

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eljaska/telara/internal/baseline"
	"github.com/eljaska/telara/internal/events"
)

func TestPostgresBaselineStoreUpsertRunsOnConflictUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	b := baseline.Baseline{
		UserID: "user-1", AvgHeartRate: 72, AvgHRV: 50, AvgSpO2: 98, AvgTemp: 36.5, AvgActivity: 20,
		StdHeartRate: 5, StdHRV: 5, StdSpO2: 1, StdTemp: 0.2, DataPoints: 12, UpdatedAt: time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO user_baselines").
		WithArgs(b.UserID, b.AvgHeartRate, b.AvgHRV, b.AvgSpO2, b.AvgTemp, b.AvgActivity,
			b.StdHeartRate, b.StdHRV, b.StdSpO2, b.StdTemp, b.DataPoints, b.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewPostgresBaselineStore(db)
	require.NoError(t, store.Upsert(context.Background(), b))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBaselineStoreLoadAllScansRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"user_id", "avg_heart_rate", "avg_hrv", "avg_spo2", "avg_temp", "avg_activity",
		"std_heart_rate", "std_hrv", "std_spo2", "std_temp", "data_points", "updated_at",
	}).AddRow("user-1", 72.0, 50.0, 98.0, 36.5, 20.0, 5.0, 5.0, 1.0, 0.2, 12, now)

	mock.ExpectQuery("SELECT user_id, avg_heart_rate").WillReturnRows(rows)

	store := NewPostgresBaselineStore(db)
	out, err := store.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "user-1", out[0].UserID)
	assert.Equal(t, 12, out[0].DataPoints)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMaintainerSnapshotAndSeedRoundTrip(t *testing.T) {
	m := baseline.NewMaintainer()
	m.Update(events.RawEvent{
		EventID: "evt", UserID: "user-1", Source: events.SourceApple, SourceName: "Apple HealthKit",
		Timestamp: time.Now(), Fields: map[string]float64{"heart_rate": 80},
	})

	snap := m.Snapshot()
	require.Len(t, snap, 1)

	fresh := baseline.NewMaintainer()
	fresh.Seed(snap[0])

	got, ok := fresh.Get("user-1")
	require.True(t, ok)
	assert.Equal(t, snap[0].AvgHeartRate, got.AvgHeartRate)
	assert.Equal(t, snap[0].DataPoints, got.DataPoints)
}
