// Package signal connects the call engine to the host's websocket event bus.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/krailo/intercom/internal/core"
)

var ErrBackpressure = errors.New("backpressure")

// Client is a websocket client of the host event bus. It authenticates,
// subscribes to the inbound call events, and translates between raw named
// events and the closed variants in core.
type Client struct {
	url     string
	token   string
	handler core.InboundHandler

	conn   *websocket.Conn
	send   chan []byte
	nextID atomic.Int64

	mu     sync.RWMutex
	closed bool
}

func NewClient(url, token string, handler core.InboundHandler) *Client {
	return &Client{
		url:     url,
		token:   token,
		handler: handler,
		send:    make(chan []byte, 32),
	}
}

type envelope struct {
	ID    int64           `json:"id,omitempty"`
	Type  string          `json:"type"`
	Event json.RawMessage `json:"event,omitempty"`
}

type busEvent struct {
	EventType string          `json:"event_type"`
	Data      json.RawMessage `json:"data"`
}

// Connect dials the bus, runs the auth handshake, subscribes to the call
// events, and starts the read/write pumps. The connection lives until ctx
// is canceled or the peer closes.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("dial bus: %w", err)
	}
	c.conn = conn

	if err := c.authenticate(); err != nil {
		conn.Close()
		return err
	}

	for _, eventType := range subscribedEvents() {
		sub := map[string]any{
			"id":         c.nextID.Add(1),
			"type":       "subscribe_events",
			"event_type": eventType,
		}
		if err := conn.WriteJSON(sub); err != nil {
			conn.Close()
			return fmt.Errorf("subscribe %s: %w", eventType, err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	go c.writePump(ctx)
	go c.readPump(ctx, cancel)
	// ReadMessage does not watch ctx; closing the conn is what unblocks the
	// read pump when the context is canceled.
	go func() {
		<-ctx.Done()
		c.Close()
	}()

	log.Info().Str("module", "signal").Str("url", c.url).Msg("connected to event bus")
	return nil
}

func (c *Client) authenticate() error {
	var hello envelope
	if err := c.conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("read auth_required: %w", err)
	}
	if hello.Type != "auth_required" {
		// Some bus builds skip the handshake entirely.
		log.Warn().Str("module", "signal").Str("type", hello.Type).Msg("no auth handshake")
		return nil
	}
	if err := c.conn.WriteJSON(map[string]string{"type": "auth", "access_token": c.token}); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}
	var result envelope
	if err := c.conn.ReadJSON(&result); err != nil {
		return fmt.Errorf("read auth result: %w", err)
	}
	if result.Type != "auth_ok" {
		return fmt.Errorf("bus rejected auth: %s", result.Type)
	}
	return nil
}

// Publish fires an outbound call event on the bus. A delivery failure is
// returned to the caller, which owns the retry policy.
func (c *Client) Publish(_ context.Context, ev core.OutboundEvent) error {
	eventType, payload, err := encodeOutbound(ev)
	if err != nil {
		return err
	}
	msg := map[string]any{
		"id":         c.nextID.Add(1),
		"type":       "fire_event",
		"event_type": eventType,
		"event_data": payload,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}
	return c.trySend(data)
}

func (c *Client) trySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return fmt.Errorf("%w: connection closed", core.ErrDeliveryFailed)
	}
	select {
	case c.send <- data:
		return nil
	default:
		return fmt.Errorf("%w: %w", core.ErrDeliveryFailed, ErrBackpressure)
	}
}

func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (c *Client) readPump(ctx context.Context, cancel context.CancelFunc) {
	defer func() {
		log.Info().Str("module", "signal").Msg("readPump closing")
		cancel()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("readPump read error")
				return
			}
			c.handleFrame(data)
		}
	}
}

func (c *Client) handleFrame(data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}
	switch env.Type {
	case "event":
		var ev busEvent
		if err := json.Unmarshal(env.Event, &ev); err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("bad event frame")
			return
		}
		inbound, err := decodeInbound(ev.EventType, ev.Data)
		if err != nil {
			log.Error().Err(err).Str("module", "signal").Msg("decode inbound")
			return
		}
		log.Debug().Str("module", "signal").Str("event_type", ev.EventType).Msg("inbound event")
		c.handler(inbound)
	case "result":
		// Command acks; failures are logged and otherwise ignored.
		var res struct {
			Success *bool `json:"success"`
		}
		if err := json.Unmarshal(data, &res); err == nil && res.Success != nil && !*res.Success {
			log.Warn().Str("module", "signal").Int64("id", env.ID).Msg("bus command failed")
		}
	case "pong":
	default:
		log.Warn().Str("module", "signal").Str("type", env.Type).Msg("unknown bus frame")
	}
}

// Close shuts the connection down. Idempotent.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
	if c.conn != nil {
		_ = c.conn.Close()
	}
}
