package broadcast

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/eljaska/telara/internal/events"
	"github.com/eljaska/telara/internal/fusion"
)

// sendTimeout bounds how long a single send to a client may block. A
// client that can't keep up is evicted rather than allowed to
// backpressure the rest of the hub.
const sendTimeout = 1 * time.Second

// ConnStats is a point-in-time summary of the hub's active connections.
type ConnStats struct {
	ActiveConnections int    `json:"active_connections"`
	TotalConnected    uint64 `json:"total_connected"`
}

// Hub tracks active broadcast connections and fans vitals/alerts out to
// all of them. Grounded on the upstream websocket hub's register/
// unregister/broadcast loop, simplified to this system's single
// broadcast-to-everyone contract (no per-channel subscriptions).
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool

	buffer *MessageBuffer
	fused  *fusion.FusionTable
	logger *logrus.Logger

	totalConnected uint64

	connGauge prometheus.Gauge
}

// SetConnectionsGauge wires a Prometheus gauge that tracks active
// connection count, mirroring the teacher's per-channel HubConnections
// metric (collapsed here to a single count since this hub has no
// per-channel subscriptions).
func (h *Hub) SetConnectionsGauge(g prometheus.Gauge) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connGauge = g
}

// NewHub creates a hub backed by the given replay buffer and fusion
// table (used to attach the "aggregated" snapshot to outgoing vitals).
func NewHub(buffer *MessageBuffer, fused *fusion.FusionTable, logger *logrus.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		buffer:  buffer,
		fused:   fused,
		logger:  logger,
	}
}

// Register adds a client and sends it the initial_state snapshot.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = true
	h.totalConnected++
	count := len(h.clients)
	if h.connGauge != nil {
		h.connGauge.Inc()
	}
	h.mu.Unlock()

	h.logger.WithField("client_count", count).Info("broadcast client connected")

	snapshot := h.buffer.Snapshot()
	payload, err := json.Marshal(snapshot)
	if err != nil {
		h.logger.WithError(err).Error("marshal initial state failed")
		return
	}
	c.deliver(payload, sendTimeout)
}

// Unregister removes a client from the active set.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		if h.connGauge != nil {
			h.connGauge.Dec()
		}
	}
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		c.close()
		h.logger.WithField("client_count", count).Info("broadcast client disconnected")
	}
}

// Buffer exposes the replay buffer, used by tests and the control
// surface to inspect recently broadcast vitals/alerts.
func (h *Hub) Buffer() *MessageBuffer { return h.buffer }

// Stats reports the current connection count.
func (h *Hub) Stats() ConnStats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return ConnStats{ActiveConnections: len(h.clients), TotalConnected: h.totalConnected}
}

func (h *Hub) snapshotClients() []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		out = append(out, c)
	}
	return out
}

// vitalEnvelope returns {"type":"vital", ...event fields..., "aggregated": {...}}.
func vitalEnvelope(e events.RawEvent, state fusion.State) ([]byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	data["aggregated"] = state

	out := map[string]interface{}{
		"type": "vital",
		"data": data,
	}
	return json.Marshal(out)
}

func alertEnvelope(a events.Alert) ([]byte, error) {
	out := map[string]interface{}{
		"type": "alert",
		"data": a,
	}
	return json.Marshal(out)
}

func enrichedAlertEnvelope(a events.Alert) ([]byte, error) {
	out := map[string]interface{}{
		"type": "alert_enriched",
		"data": a,
	}
	return json.Marshal(out)
}

// EnrichmentHook lets an external enricher (the conversational agent,
// treated as a black box outside this package) push a later enrichment
// for an alert already broadcast. This races the original alert
// broadcast by design: both messages are sent and connected clients are
// expected to de-duplicate on alert_id, keeping whichever form arrives
// second.
type EnrichmentHook interface {
	HandleEnrichment(a events.Alert)
}

// HandleEnrichment implements EnrichmentHook: it folds the enriched
// alert into the replay buffer (so late joiners see the enriched form)
// and fans an "alert_enriched" envelope out to every connected client.
func (h *Hub) HandleEnrichment(a events.Alert) {
	h.buffer.AddAlert(a)

	payload, err := enrichedAlertEnvelope(a)
	if err != nil {
		h.logger.WithError(err).Error("marshal alert_enriched broadcast failed")
		return
	}
	h.broadcastAll(payload)
}

// HandleVital is an ingestion.Listener: it records the vital in the
// replay buffer and fans it out to every connected client along with
// the user's current fused snapshot.
func (h *Hub) HandleVital(e events.RawEvent) {
	h.buffer.AddVital(e)

	state := h.fused.Aggregated(e.UserID)
	payload, err := vitalEnvelope(e, state)
	if err != nil {
		h.logger.WithError(err).Error("marshal vital broadcast failed")
		return
	}
	h.broadcastAll(payload)
}

// HandleAlert is an ingestion.AlertListener: it records the alert in
// the replay buffer and fans it out to every connected client.
func (h *Hub) HandleAlert(a events.Alert) {
	h.buffer.AddAlert(a)

	payload, err := alertEnvelope(a)
	if err != nil {
		h.logger.WithError(err).Error("marshal alert broadcast failed")
		return
	}
	h.broadcastAll(payload)
}

// broadcastAll fans payload out to every client concurrently, so one
// slow client's send timeout never delays delivery to the rest.
func (h *Hub) broadcastAll(payload []byte) {
	clients := h.snapshotClients()
	var wg sync.WaitGroup
	wg.Add(len(clients))
	for _, c := range clients {
		c := c
		go func() {
			defer wg.Done()
			if !c.deliver(payload, sendTimeout) {
				h.Unregister(c)
			}
		}()
	}
	wg.Wait()
}

// heartbeatPayload builds the idle-timeout frame a client's write pump
// pushes after heartbeatIdle seconds of silence from that client.
func heartbeatPayload() ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"type":      "heartbeat",
		"timestamp": time.Now().UTC().Format("2006-01-02T15:04:05.000Z"),
	})
}
