// Package stream broadcasts derived events to WebSocket clients.
package stream

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/solatis/eventfilter/internal/types"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 64
)

// Hub fans emissions out to connected clients.
//
// Each client owns a buffered send queue drained by its own writer
// goroutine. A client whose queue is full misses the message; the hub
// never blocks the engine on a slow reader.
//
// Clients may restrict the stream with ?types=a,b (exact derived types).
type Hub struct {
	upgrader websocket.Upgrader
	log      zerolog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool

	connected prometheus.Gauge
	dropped   prometheus.Counter
	sent      prometheus.Counter
}

type client struct {
	conn  *websocket.Conn
	send  chan []byte
	types map[string]bool // nil receives everything
}

func (c *client) wants(eventType string) bool {
	return c.types == nil || c.types[eventType]
}

// NewHub creates a hub. Metrics are registered when registerer is non-nil.
func NewHub(log zerolog.Logger, registerer prometheus.Registerer) (*Hub, error) {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		log:     log,
		clients: make(map[*client]struct{}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "eventfilter",
			Subsystem: "stream",
			Name:      "clients_connected",
			Help:      "Number of currently connected stream clients",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventfilter",
			Subsystem: "stream",
			Name:      "messages_dropped_total",
			Help:      "Messages not delivered because a client queue was full",
		}),
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "eventfilter",
			Subsystem: "stream",
			Name:      "messages_queued_total",
			Help:      "Messages queued for delivery to stream clients",
		}),
	}

	if registerer != nil {
		for _, c := range []prometheus.Collector{h.connected, h.dropped, h.sent} {
			if err := registerer.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return h, nil
}

// Listener forwards one emission to every interested client.
// Suitable for bus.Listen(bus.AnyType, hub.Listener).
func (h *Hub) Listener(em types.Emission) {
	data, err := json.Marshal(em)
	if err != nil {
		h.log.Warn().Err(err).Str("type", em.Type).Msg("emission not encodable")
		return
	}
	h.Broadcast(em.Type, data)
}

// Broadcast queues data for every client subscribed to eventType.
func (h *Hub) Broadcast(eventType string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		if !c.wants(eventType) {
			continue
		}
		select {
		case c.send <- data:
			h.sent.Inc()
		default:
			h.dropped.Inc()
			h.log.Debug().Str("type", eventType).Msg("stream client queue full")
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and streams emissions until the client
// disconnects or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &client{
		conn:  conn,
		send:  make(chan []byte, sendBuffer),
		types: parseTypes(r.URL.Query().Get("types")),
	}
	if !h.register(c) {
		conn.Close()
		return
	}

	go h.writeLoop(c)

	// Inbound messages are ignored; reading surfaces disconnects and
	// processes control frames.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	h.unregister(c)
}

// Close disconnects all clients and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.connected.Set(0)
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.connected.Set(float64(len(h.clients)))
	h.log.Debug().Str("remote", c.conn.RemoteAddr().String()).Int("clients", len(h.clients)).Msg("stream client connected")
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.connected.Set(float64(len(h.clients)))
	h.log.Debug().Str("remote", c.conn.RemoteAddr().String()).Int("clients", len(h.clients)).Msg("stream client disconnected")
}

// writeLoop drains the send queue. A closed queue ends the connection.
func (h *Hub) writeLoop(c *client) {
	defer c.conn.Close()

	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Debug().Err(err).Msg("stream write failed")
			// Unblock the reader; unregister closes the queue.
			c.conn.Close()
			for range c.send {
			}
			return
		}
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
}

func parseTypes(raw string) map[string]bool {
	if raw == "" {
		return nil
	}
	set := make(map[string]bool)
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			set[t] = true
		}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}
