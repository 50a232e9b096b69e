package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// The broadcast-channel adapter generalizes a single in-process broadcast
// channel into a small relay any number of processes can dial into: a
// BroadcastHub holds the authoritative per-key logs and rebroadcasts every
// newly pushed event to all connected clients; a BroadcastAdapter is the
// client side, maintaining a local read cache that Pull serves from.
//
// This is adapted directly from the teacher's websocket signaling server
// (Hub/Client/ServeWs): one goroutine owns the shared state and channel
// triad (register/unregister/push), and each connection runs a read pump
// and a write pump with the same ping/pong keepalive.
const (
	broadcastWriteWait  = 10 * time.Second
	broadcastPongWait   = 60 * time.Second
	broadcastPingPeriod = (broadcastPongWait * 9) / 10
	broadcastMaxMessage = 64 * 1024
)

// broadcastEnvelope is the only message shape exchanged over the hub
// websocket: a client sends one to push an event; the hub sends one per
// relayed event, to every connected client, including the original sender.
type broadcastEnvelope struct {
	Event Event `json:"event"`
}

// BroadcastHub is the server side of the broadcast-channel adapter.
type BroadcastHub struct {
	mu       sync.Mutex
	logs     map[string][]Event
	clients  map[*hubClient]bool
	upgrader websocket.Upgrader

	register   chan *hubClient
	unregister chan *hubClient
	push       chan Event
}

// NewBroadcastHub creates a hub ready to be run and served.
func NewBroadcastHub() *BroadcastHub {
	return &BroadcastHub{
		logs:    make(map[string][]Event),
		clients: make(map[*hubClient]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  broadcastMaxMessage,
			WriteBufferSize: broadcastMaxMessage,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		register:   make(chan *hubClient),
		unregister: make(chan *hubClient),
		push:       make(chan Event),
	}
}

// Run processes registrations and pushes until ctx is cancelled. It must run
// in its own goroutine; it is the single writer of hub state.
func (h *BroadcastHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				close(c.send)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			h.mu.Unlock()

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()

		case event := <-h.push:
			if err := event.Validate(); err != nil {
				continue
			}
			h.mu.Lock()
			key := event.Key()
			event.Index = len(h.logs[key])
			h.logs[key] = append(h.logs[key], event)
			for c := range h.clients {
				select {
				case c.send <- event:
				default:
					// slow consumer: drop it rather than block the hub loop
				}
			}
			h.mu.Unlock()
		}
	}
}

// ServeHTTP upgrades the request to a websocket connection and attaches it
// to the hub, mirroring the teacher's ServeWs handler factory.
func (h *BroadcastHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &hubClient{hub: h, conn: conn, send: make(chan Event, 256)}
	h.register <- c

	go c.writePump()
	go c.readPump()
}

type hubClient struct {
	hub  *BroadcastHub
	conn *websocket.Conn
	send chan Event
}

func (c *hubClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(broadcastMaxMessage)
	c.conn.SetReadDeadline(time.Now().Add(broadcastPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(broadcastPongWait))
		return nil
	})

	for {
		var env broadcastEnvelope
		if err := c.conn.ReadJSON(&env); err != nil {
			return
		}
		c.hub.push <- env.Event
	}
}

func (c *hubClient) writePump() {
	ticker := time.NewTicker(broadcastPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(broadcastWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(broadcastEnvelope{Event: event}); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(broadcastWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// BroadcastAdapter is the client side of the broadcast-channel adapter: it
// dials a BroadcastHub, mirrors every relayed event into a local per-key
// cache, and serves Pull from that cache.
type BroadcastAdapter struct {
	conn      *websocket.Conn
	outgoing  chan Event
	done      chan struct{}
	rtcConfig RTCConfig

	mu     sync.Mutex
	logs   map[string][]Event
	closed bool
}

var _ Adapter = (*BroadcastAdapter)(nil)

// NewBroadcastAdapter dials hubURL (a ws:// or wss:// address serving a
// BroadcastHub) and starts its read/write pumps.
func NewBroadcastAdapter(hubURL string, rtcConfig ...RTCConfig) (*BroadcastAdapter, error) {
	conn, _, err := websocket.DefaultDialer.Dial(hubURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransientSignalingFailure, err)
	}

	cfg := DefaultRTCConfig()
	if len(rtcConfig) > 0 {
		cfg = rtcConfig[0]
	}

	a := &BroadcastAdapter{
		conn:      conn,
		outgoing:  make(chan Event, 16),
		done:      make(chan struct{}),
		rtcConfig: cfg,
		logs:      make(map[string][]Event),
	}

	conn.SetReadLimit(broadcastMaxMessage)
	conn.SetReadDeadline(time.Now().Add(broadcastPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(broadcastPongWait))
		return nil
	})

	go a.readPump()
	go a.writePump()

	return a, nil
}

func (a *BroadcastAdapter) readPump() {
	defer a.conn.Close()
	for {
		var env broadcastEnvelope
		if err := a.conn.ReadJSON(&env); err != nil {
			return
		}
		a.mu.Lock()
		key := env.Event.Key()
		a.logs[key] = append(a.logs[key], env.Event)
		a.mu.Unlock()
	}
}

func (a *BroadcastAdapter) writePump() {
	ticker := time.NewTicker(broadcastPingPeriod)
	defer func() {
		ticker.Stop()
		a.conn.Close()
	}()

	for {
		select {
		case event := <-a.outgoing:
			a.conn.SetWriteDeadline(time.Now().Add(broadcastWriteWait))
			if err := a.conn.WriteJSON(broadcastEnvelope{Event: event}); err != nil {
				return
			}

		case <-ticker.C:
			a.conn.SetWriteDeadline(time.Now().Add(broadcastWriteWait))
			if err := a.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-a.done:
			a.conn.SetWriteDeadline(time.Now().Add(broadcastWriteWait))
			a.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func (a *BroadcastAdapter) Push(ctx context.Context, event Event) error {
	if err := event.Validate(); err != nil {
		return err
	}

	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return ErrAdapterClosed
	}

	select {
	case a.outgoing <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-a.done:
		return ErrAdapterClosed
	}
}

func (a *BroadcastAdapter) Pull(ctx context.Context, query PullQuery) ([]Event, error) {
	key := query.RoomID
	if key == "" {
		key = query.ChannelID
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrAdapterClosed
	}

	log := a.logs[key]
	if query.OffsetIndex >= len(log) {
		return nil, nil
	}
	out := make([]Event, len(log)-query.OffsetIndex)
	copy(out, log[query.OffsetIndex:])
	return out, nil
}

func (a *BroadcastAdapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	close(a.done)
	return nil
}

func (a *BroadcastAdapter) RTCConfiguration() RTCConfig {
	return a.rtcConfig
}
