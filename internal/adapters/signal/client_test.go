package signal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krailo/intercom/internal/core"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// busHarness fakes the host event bus for one client connection.
type busHarness struct {
	conns chan *websocket.Conn
	srv   *httptest.Server
}

func newBusHarness(t *testing.T) *busHarness {
	t.Helper()
	h := &busHarness{conns: make(chan *websocket.Conn, 1)}
	h.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth_required"}))
		var auth map[string]string
		require.NoError(t, conn.ReadJSON(&auth))
		assert.Equal(t, "auth", auth["type"])
		assert.Equal(t, "secret-token", auth["access_token"])
		require.NoError(t, conn.WriteJSON(map[string]string{"type": "auth_ok"}))

		for range subscribedEvents() {
			var sub map[string]any
			require.NoError(t, conn.ReadJSON(&sub))
			assert.Equal(t, "subscribe_events", sub["type"])
		}

		h.conns <- conn
	}))
	t.Cleanup(h.srv.Close)
	return h
}

func (h *busHarness) url() string {
	return "ws" + strings.TrimPrefix(h.srv.URL, "http")
}

func TestClientReceivesInboundEvents(t *testing.T) {
	h := newBusHarness(t)

	received := make(chan core.InboundEvent, 1)
	c := NewClient(h.url(), "secret-token", func(ev core.InboundEvent) {
		received <- ev
	})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	conn := <-h.conns
	frame := map[string]any{
		"id":   1,
		"type": "event",
		"event": map[string]any{
			"event_type": evIncomingCall,
			"data": map[string]string{
				"call_id": "c1", "caller": "008", "callee": "1000", "sdp": "v=0",
			},
		},
	}
	require.NoError(t, conn.WriteJSON(frame))

	select {
	case ev := <-received:
		in, ok := ev.(core.IncomingCall)
		require.True(t, ok)
		assert.Equal(t, "c1", in.CallID)
	case <-time.After(3 * time.Second):
		t.Fatal("inbound event never reached handler")
	}
}

func TestClientPublishFiresEvent(t *testing.T) {
	h := newBusHarness(t)

	c := NewClient(h.url(), "secret-token", func(core.InboundEvent) {})
	require.NoError(t, c.Connect(context.Background()))
	defer c.Close()

	conn := <-h.conns
	require.NoError(t, c.Publish(context.Background(), core.SeekCall{Number: "1000"}))

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Type      string          `json:"type"`
		EventType string          `json:"event_type"`
		EventData json.RawMessage `json:"event_data"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "fire_event", msg.Type)
	assert.Equal(t, evSeekCall, msg.EventType)
	assert.JSONEq(t, `{"number":"1000"}`, string(msg.EventData))
}

func TestPublishAfterCloseFails(t *testing.T) {
	h := newBusHarness(t)

	c := NewClient(h.url(), "secret-token", func(core.InboundEvent) {})
	require.NoError(t, c.Connect(context.Background()))
	<-h.conns

	c.Close()
	c.Close()

	err := c.Publish(context.Background(), core.SeekCall{Number: "1000"})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrDeliveryFailed)
}

func TestContextCancelStopsClient(t *testing.T) {
	h := newBusHarness(t)

	c := NewClient(h.url(), "secret-token", func(core.InboundEvent) {})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Connect(ctx))
	conn := <-h.conns

	cancel()

	require.Eventually(t, func() bool {
		return c.Publish(context.Background(), core.SeekCall{Number: "1000"}) != nil
	}, 3*time.Second, 10*time.Millisecond, "client must shut down on context cancel")

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "peer must observe the connection closing")
}
