package broadcast

import (
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientRespondsPongToApplicationPing(t *testing.T) {
	hub, logger := newTestHub()
	conn := dialHub(t, hub, logger)

	// Drain initial_state.
	_, _, err := conn.ReadMessage()
	require.NoError(t, err)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("ping")))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "pong", string(msg))
}

func TestClientCloseIsIdempotent(t *testing.T) {
	hub, logger := newTestHub()
	_ = dialHub(t, hub, logger)

	require.Eventually(t, func() bool {
		return hub.Stats().ActiveConnections == 1
	}, time.Second, 10*time.Millisecond)

	c := hub.snapshotClients()[0]
	c.close()
	assert.NotPanics(t, func() { c.close() })
}
