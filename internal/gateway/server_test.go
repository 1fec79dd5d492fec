package gateway_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"matchserver/internal/gateway"
	"matchserver/internal/match"
	"matchserver/internal/protocol"
	"matchserver/internal/room"
	"matchserver/internal/session"
)

func startServer(t *testing.T) (*httptest.Server, *session.Registry) {
	t.Helper()
	logger := zap.NewNop()
	registry := session.NewRegistry(logger)
	queues := match.NewQueues()
	pool := room.NewPool(logger)
	svc := match.NewService(match.DefaultModes(), queues, pool, registry, nil, logger)
	registry.OnDisconnect(svc.Disconnect)

	mux := http.NewServeMux()
	gateway.NewServer(registry, svc, logger).RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, registry
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) *protocol.ServerEnvelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var env protocol.ServerEnvelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return &env
}

func TestServeWS_WelcomePush(t *testing.T) {
	srv, registry := startServer(t)
	conn := dial(t, srv)

	env := readEnvelope(t, conn)
	assert.Equal(t, protocol.PushWelcome, env.Event)
	assert.Equal(t, protocol.CodeOK, env.Code)

	data, ok := env.Data.(map[string]any)
	require.True(t, ok)
	connID, ok := data["conn_id"].(string)
	require.True(t, ok)
	assert.NotNil(t, registry.Get(connID))
}

func TestServeWS_PingPong(t *testing.T) {
	srv, _ := startServer(t)
	conn := dial(t, srv)
	readEnvelope(t, conn) // welcome

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"msg_id":"m1","cmd":"sys.ping"}`)))

	env := readEnvelope(t, conn)
	assert.Equal(t, "m1", env.MsgID)
	assert.Equal(t, protocol.CodeOK, env.Code)
}

func TestServeWS_MalformedKeepsConnectionOpen(t *testing.T) {
	srv, _ := startServer(t)
	conn := dial(t, srv)
	readEnvelope(t, conn) // welcome

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("??")))
	env := readEnvelope(t, conn)
	assert.Equal(t, protocol.CodeMalformedEnvelope, env.Code)

	// Still alive afterwards.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"msg_id":"m2","cmd":"sys.ping"}`)))
	env = readEnvelope(t, conn)
	assert.Equal(t, "m2", env.MsgID)
}

func TestServeWS_DisconnectRemovesFromRegistry(t *testing.T) {
	srv, registry := startServer(t)
	conn := dial(t, srv)
	readEnvelope(t, conn) // welcome

	require.Equal(t, 1, registry.Count())
	conn.Close()

	require.Eventually(t, func() bool {
		return registry.Count() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServeWS_SweepDisconnectsSilentConnection(t *testing.T) {
	srv, registry := startServer(t)
	conn := dial(t, srv)
	readEnvelope(t, conn) // welcome

	time.Sleep(30 * time.Millisecond)
	removed := registry.SweepExpired(10 * time.Millisecond)
	require.Len(t, removed, 1)

	// The server side closed the socket; the client read fails.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
