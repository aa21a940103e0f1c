package streamhost

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func newWSTestServer(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		handler(conn)
	}))
	return server
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWSClient_ReceivesEvents(t *testing.T) {
	sent := []StreamEvent{
		{Kind: "create", Asset: "USDX", From: "vault", To: "holderA", Rate: 100, Timestamp: 1000},
		{Kind: "update", Asset: "USDX", From: "vault", To: "holderA", Rate: 250, Timestamp: 2000},
		{Kind: "delete", Asset: "USDX", From: "vault", To: "holderA", Rate: 0, Timestamp: 3000},
	}

	server := newWSTestServer(t, func(conn *websocket.Conn) {
		for _, ev := range sent {
			data, _ := json.Marshal(ev)
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
		// Hold the connection open until the client disconnects.
		conn.ReadMessage()
	})
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL(server), nil)
	require.NoError(t, err)
	defer client.Close()

	var got []StreamEvent
	timeout := time.After(5 * time.Second)
	for len(got) < len(sent) {
		select {
		case ev := <-client.Events():
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("timed out with %d of %d events", len(got), len(sent))
		}
	}

	require.Equal(t, sent, got)
}

func TestWSClient_SkipsMalformedMessages(t *testing.T) {
	server := newWSTestServer(t, func(conn *websocket.Conn) {
		conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		ev := StreamEvent{Kind: "create", Asset: "USDX", To: "holderB", Rate: 7, Timestamp: 1000}
		data, _ := json.Marshal(ev)
		conn.WriteMessage(websocket.TextMessage, data)
		conn.ReadMessage()
	})
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL(server), nil)
	require.NoError(t, err)
	defer client.Close()

	select {
	case ev := <-client.Events():
		require.Equal(t, "create", ev.Kind)
		require.Equal(t, int64(7), ev.Rate)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event after malformed message")
	}
}

func TestWSClient_CloseIsIdempotent(t *testing.T) {
	server := newWSTestServer(t, func(conn *websocket.Conn) {
		conn.ReadMessage()
	})
	defer server.Close()

	client, err := NewWSClient(context.Background(), wsURL(server), nil)
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	// Channel is closed after shutdown.
	_, open := <-client.Events()
	require.False(t, open)
}
