package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eljaska/telara/internal/events"
	"github.com/eljaska/telara/internal/storage"
)

func newTestLogger() *logrus.Logger {
	logger, _ := test.NewNullLogger()
	return logger
}

func mkTestVital(userID string) events.RawEvent {
	return events.RawEvent{
		EventID: "evt-1", UserID: userID, Source: events.SourceApple, SourceName: "Apple HealthKit",
		Timestamp: time.Now(), Fields: map[string]float64{"heart_rate": 90},
	}
}

func TestNewWiresEventListenersAcrossComponents(t *testing.T) {
	o := New(Deps{Logger: newTestLogger(), AlertsTopic: "biometrics-alerts"})

	o.Dispatcher().DispatchEvent(mkTestVital("user-1"))

	assert.Len(t, o.HotRing().Recent("user-1", time.Hour), 1, "event must reach the hot ring")

	state := o.FusionTable().Aggregated("user-1")
	assert.Contains(t, state.Vitals, "heart_rate", "event must reach the fusion table")

	_, ok := o.Baseline().Get("user-1")
	assert.True(t, ok, "event must reach the baseline maintainer")
}

func TestNewWiresAlertListenersToAlertsStore(t *testing.T) {
	store := &fakeAlertsStore{}
	o := New(Deps{Logger: newTestLogger(), AlertsTopic: "biometrics-alerts", AlertsStore: store})

	alert := events.Alert{AlertID: "al-1", UserID: "user-1", AlertType: events.AlertTachycardiaAtRest}
	o.Dispatcher().DispatchAlert(alert)

	require.Len(t, store.alerts, 1)
	assert.Equal(t, "al-1", store.alerts[0].AlertID)
}

type fakeAlertsStore struct {
	alerts []events.Alert
}

func (f *fakeAlertsStore) InsertAlert(ctx context.Context, a events.Alert) error {
	f.alerts = append(f.alerts, a)
	return nil
}

func TestPersistBaselinesUpsertsSnapshotToStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	o := New(Deps{Logger: newTestLogger(), AlertsTopic: "biometrics-alerts"})
	o.baselineStore = storage.NewPostgresBaselineStore(db)
	o.maintain.Update(mkTestVital("user-1"))

	mock.ExpectExec("INSERT INTO user_baselines").WillReturnResult(sqlmock.NewResult(0, 1))

	o.persistBaselines(context.Background())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPersistBaselinesSkipsWhenNoBaselinesYet(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	o := New(Deps{Logger: newTestLogger(), AlertsTopic: "biometrics-alerts"})
	o.baselineStore = storage.NewPostgresBaselineStore(db)

	o.persistBaselines(context.Background())
	assert.NoError(t, mock.ExpectationsWereMet(), "no baselines means no queries should run")
}

type fakeEnricher struct {
	insight string
}

func (f *fakeEnricher) Enrich(ctx context.Context, a events.Alert) (events.Alert, error) {
	a.EnrichedInsight = f.insight
	return a, nil
}

func TestNewWiresEnricherToHubHandleEnrichment(t *testing.T) {
	o := New(Deps{Logger: newTestLogger(), AlertsTopic: "biometrics-alerts", Enricher: &fakeEnricher{insight: "elevated resting heart rate"}})

	alert := events.Alert{AlertID: "al-1", UserID: "user-1", AlertType: events.AlertTachycardiaAtRest}
	o.Dispatcher().DispatchAlert(alert)

	require.Eventually(t, func() bool {
		buffered := o.Hub().Buffer().Snapshot()
		for _, a := range buffered.Data.Alerts {
			if a.AlertID == "al-1" && a.EnrichedInsight == "elevated resting heart rate" {
				return true
			}
		}
		return false
	}, time.Second, 10*time.Millisecond, "enrichment should reach the hub asynchronously")
}

func TestNewWithoutEnricherLeavesAlertUnenriched(t *testing.T) {
	o := New(Deps{Logger: newTestLogger(), AlertsTopic: "biometrics-alerts"})

	alert := events.Alert{AlertID: "al-1", UserID: "user-1", AlertType: events.AlertTachycardiaAtRest}
	o.Dispatcher().DispatchAlert(alert)

	buffered := o.Hub().Buffer().Snapshot()
	require.Len(t, buffered.Data.Alerts, 1)
	assert.Empty(t, buffered.Data.Alerts[0].EnrichedInsight)
}

func TestNewWithAutoStartBuildsGenerator(t *testing.T) {
	o := New(Deps{Logger: newTestLogger(), AlertsTopic: "biometrics-alerts", AutoStart: true, UserID: "user-1"})
	assert.NotNil(t, o.Generator())
}

func TestNewWithoutAutoStartLeavesGeneratorNil(t *testing.T) {
	o := New(Deps{Logger: newTestLogger(), AlertsTopic: "biometrics-alerts"})
	assert.Nil(t, o.Generator())
}

func TestOrchestratorAccessorsReturnLiveComponents(t *testing.T) {
	o := New(Deps{Logger: newTestLogger(), AlertsTopic: "biometrics-alerts"})
	assert.NotNil(t, o.Registry())
	assert.NotNil(t, o.Dispatcher())
	assert.NotNil(t, o.HotRing())
	assert.NotNil(t, o.FusionTable())
	assert.NotNil(t, o.Baseline())
	assert.NotNil(t, o.Hub())
	assert.NotNil(t, o.Router())
}
