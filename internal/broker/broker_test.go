package broker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeBroker accepts one websocket connection shaped like the subset of the
// NATS text protocol this package speaks, and lets the test publish MSG
// frames to whatever the client last subscribed to.
func fakeBroker(t *testing.T) (*httptest.Server, chan *websocket.Conn) {
	t.Helper()
	upgrader := websocket.Upgrader{}
	conns := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- ws
		for {
			var f frame
			if err := ws.ReadJSON(&f); err != nil {
				return
			}
		}
	}))
	return srv, conns
}

func TestDial_SendsConnectFrame(t *testing.T) {
	srv, _ := fakeBroker(t)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := New(Config{URL: wsURL, User: "agg", Password: "secret"}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Dial(ctx))
	defer c.Close()
}

func TestSubscribeAndDispatch_DeliversMatchingSubjectOnly(t *testing.T) {
	srv, conns := fakeBroker(t)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := New(Config{URL: wsURL}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Dial(ctx))
	defer c.Close()

	serverSide := <-conns

	var mu sync.Mutex
	var received []Message
	require.NoError(t, c.Subscribe("tasks.received", func(m Message) {
		mu.Lock()
		received = append(received, m)
		mu.Unlock()
	}))

	runCtx, runCancel := context.WithCancel(context.Background())
	go c.Run(runCtx)
	defer runCancel()

	require.NoError(t, serverSide.WriteJSON(frame{Op: "MSG", Subject: "nodes.heartbeat", Payload: "ignored"}))
	require.NoError(t, serverSide.WriteJSON(frame{Op: "MSG", Subject: "tasks.received", Payload: `{"nodeId":"1"}`}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, "tasks.received", received[0].Subject)
	require.Equal(t, `{"nodeId":"1"}`, string(received[0].Data))
}

func TestPublish_WithoutDialReturnsTransientError(t *testing.T) {
	c := New(Config{URL: "ws://127.0.0.1:0"}, zerolog.Nop())
	err := c.Publish("rollup.history", []byte(`{}`))
	require.Error(t, err)
}
