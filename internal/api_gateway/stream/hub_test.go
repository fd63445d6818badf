package stream

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trading-account-engine/internal/domain/shared"
)

func newTestHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.Serve(w, r, shared.AccountID(r.URL.Query().Get("account")))
	}))
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, accountID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?account=" + accountID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestHub_StreamsStatesOfSubscribedAccount(t *testing.T) {
	hub, srv := newTestHub(t)

	conn := dial(t, srv, "SIM-001")
	defer conn.Close()
	other := dial(t, srv, "SIM-002")
	defer other.Close()

	require.Eventually(t, func() bool {
		return hub.Subscribers("SIM-001") == 1 && hub.Subscribers("SIM-002") == 1
	}, time.Second, 10*time.Millisecond)

	payload := []byte(`{"account_id":"SIM-001","account_type":"CASH"}`)
	require.NoError(t, hub.HandleMessage(context.Background(), []byte("SIM-001"), payload))

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, got, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, string(payload), string(got))

	_ = other.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = other.ReadMessage()
	assert.Error(t, err, "other account must not receive the state")
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub, srv := newTestHub(t)

	conn := dial(t, srv, "SIM-001")
	require.Eventually(t, func() bool { return hub.Subscribers("SIM-001") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Subscribers("SIM-001") == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_HandleMessageDropsUndecodable(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.NoError(t, hub.HandleMessage(context.Background(), nil, []byte("not json")))
	assert.NoError(t, hub.HandleMessage(context.Background(), nil, []byte(`{"balances":[]}`)))
}

func TestHub_BroadcastDropsForFullClient(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	c := &client{accountID: "SIM-001", send: make(chan []byte, 1)}
	hub.subscribers["SIM-001"] = map[*client]struct{}{c: {}}

	hub.Broadcast("SIM-001", []byte("a"))
	hub.Broadcast("SIM-001", []byte("b"))

	assert.Len(t, c.send, 1)
	assert.Equal(t, []byte("a"), <-c.send)
}
