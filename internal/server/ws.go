package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"titanic-predictor/internal/metrics"
	"titanic-predictor/internal/storage"
)

const (
	writeWait      = 10 * time.Second
	clientSendSize = 16
)

// Hub fans each prediction record out to connected websocket subscribers.
// Slow clients are dropped rather than allowed to back up the broadcast.
type Hub struct {
	clients    map[*wsClient]bool
	broadcast  chan storage.PredictionRecord
	register   chan *wsClient
	unregister chan *wsClient
	done       chan struct{}
	stopOnce   sync.Once
	upgrader   websocket.Upgrader
	metrics    *metrics.Metrics
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{
		clients:    make(map[*wsClient]bool),
		broadcast:  make(chan storage.PredictionRecord, 64),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		done:       make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		metrics: m,
	}
}

// Run owns the client set. All registration and broadcast goes through this
// loop, so no client map access needs further locking.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			for c := range h.clients {
				close(c.send)
				c.conn.Close()
			}
			return
		case c := <-h.register:
			h.clients[c] = true
			if h.metrics != nil {
				h.metrics.WSClients.Set(float64(len(h.clients)))
			}
		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			if h.metrics != nil {
				h.metrics.WSClients.Set(float64(len(h.clients)))
			}
		case rec := <-h.broadcast:
			data, err := json.Marshal(rec)
			if err != nil {
				continue
			}
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// Stop shuts the hub down. Safe to call more than once.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Broadcast queues a record for delivery. Drops the record if the hub is
// saturated or stopped; the event stream is best-effort.
func (h *Hub) Broadcast(rec storage.PredictionRecord) {
	select {
	case h.broadcast <- rec:
	case <-h.done:
	default:
	}
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &wsClient{conn: conn, send: make(chan []byte, clientSendSize)}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump(h)
}

func (c *wsClient) writePump() {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// readPump discards inbound frames; the stream is one-way. Its job is to
// notice the client going away.
func (c *wsClient) readPump(h *Hub) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
