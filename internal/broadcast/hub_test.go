package broadcast

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eljaska/telara/internal/events"
	"github.com/eljaska/telara/internal/fusion"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestHub() (*Hub, *logrus.Logger) {
	logger, _ := test.NewNullLogger()
	hub := NewHub(NewMessageBuffer(), fusion.NewFusionTable(), logger)
	return hub, logger
}

func dialHub(t *testing.T, hub *Hub, logger *logrus.Logger) *websocket.Conn {
	t.Helper()
	router := gin.New()
	router.GET("/ws", hub.Handler(logger))
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestVitalEnvelopeIncludesAggregatedSnapshot(t *testing.T) {
	fused := fusion.NewFusionTable()
	e := events.RawEvent{
		EventID: "evt", UserID: "user-1", Source: events.SourceApple, SourceName: "Apple HealthKit",
		Timestamp: time.Now(), Fields: map[string]float64{"heart_rate": 80},
	}
	fused.Add(e)
	state := fused.Aggregated("user-1")

	payload, err := vitalEnvelope(e, state)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "vital", decoded["type"])
	data := decoded["data"].(map[string]interface{})
	assert.Equal(t, "user-1", data["user_id"])
	assert.Contains(t, data, "aggregated")
}

func TestAlertEnvelopeWrapsAlert(t *testing.T) {
	a := events.Alert{AlertID: "al-1", AlertType: events.AlertTachycardiaAtRest, UserID: "user-1"}
	payload, err := alertEnvelope(a)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "alert", decoded["type"])
	data := decoded["data"].(map[string]interface{})
	assert.Equal(t, "al-1", data["alert_id"])
}

func TestEnrichedAlertEnvelopeUsesDistinctType(t *testing.T) {
	a := events.Alert{AlertID: "al-1", AlertType: events.AlertTachycardiaAtRest, UserID: "user-1", EnrichedInsight: "elevated resting heart rate"}
	payload, err := enrichedAlertEnvelope(a)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "alert_enriched", decoded["type"])
	data := decoded["data"].(map[string]interface{})
	assert.Equal(t, "al-1", data["alert_id"])
}

func TestHubBroadcastsEnrichmentAfterOriginalAlert(t *testing.T) {
	hub, logger := newTestHub()
	conn := dialHub(t, hub, logger)

	_, _, err := conn.ReadMessage()
	require.NoError(t, err)

	hub.HandleAlert(events.Alert{AlertID: "al-1", UserID: "user-1"})
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, first, err := conn.ReadMessage()
	require.NoError(t, err)
	var firstDecoded map[string]interface{}
	require.NoError(t, json.Unmarshal(first, &firstDecoded))
	assert.Equal(t, "alert", firstDecoded["type"])

	hub.HandleEnrichment(events.Alert{AlertID: "al-1", UserID: "user-1", EnrichedInsight: "insight"})
	_, second, err := conn.ReadMessage()
	require.NoError(t, err)
	var secondDecoded map[string]interface{}
	require.NoError(t, json.Unmarshal(second, &secondDecoded))
	assert.Equal(t, "alert_enriched", secondDecoded["type"])
}

func TestHubStatsTracksRegisteredClients(t *testing.T) {
	hub, logger := newTestHub()
	_ = dialHub(t, hub, logger)

	require.Eventually(t, func() bool {
		return hub.Stats().ActiveConnections == 1
	}, time.Second, 10*time.Millisecond)
}

func TestHubBroadcastsVitalToConnectedClient(t *testing.T) {
	hub, logger := newTestHub()
	conn := dialHub(t, hub, logger)

	// Drain the initial_state frame first.
	_, _, err := conn.ReadMessage()
	require.NoError(t, err)

	hub.HandleVital(events.RawEvent{
		EventID: "evt-1", UserID: "user-1", Source: events.SourceApple, SourceName: "Apple HealthKit",
		Timestamp: time.Now(), Fields: map[string]float64{"heart_rate": 90},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(msg, &decoded))
	assert.Equal(t, "vital", decoded["type"])
}

func TestClientDeliverTimesOutOnSaturatedQueue(t *testing.T) {
	client := &Client{send: make(chan []byte, 1)}
	client.send <- []byte("already queued")

	ok := client.deliver([]byte("next"), 20*time.Millisecond)
	assert.False(t, ok, "deliver should time out once the send channel is saturated")
}

func TestHubEvictsClientThatFailsDelivery(t *testing.T) {
	hub, logger := newTestHub()

	// A raw upgraded connection with nothing draining its send channel:
	// deliver() is guaranteed to time out once the channel fills up.
	router := gin.New()
	router.GET("/ws", func(c *gin.Context) {
		conn, err := Upgrader.Upgrade(c.Writer, c.Request, nil)
		require.NoError(t, err)
		client := NewClient(hub, conn, logger)
		for i := 0; i < cap(client.send); i++ {
			client.send <- []byte("filler")
		}
		hub.mu.Lock()
		hub.clients[client] = true
		hub.mu.Unlock()
		<-c.Request.Context().Done()
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool {
		return hub.Stats().ActiveConnections == 1
	}, time.Second, 10*time.Millisecond)

	hub.broadcastAll([]byte("payload"))

	assert.Equal(t, 0, hub.Stats().ActiveConnections, "a client whose queue stays saturated past the send timeout is evicted")
}
