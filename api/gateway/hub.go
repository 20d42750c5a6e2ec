package gateway

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"vela/service"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // single-instrument demo surface, no origin policy
	},
}

const (
	// per-client send queue depth; a client this far behind is dropped
	sendBuffer = 256
	writeWait  = 5 * time.Second
)

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

// writePump drains the client's send queue onto the socket. Every write
// carries a deadline so a stalled peer errors out instead of holding the
// pump.
func (c *wsClient) writePump(h *Hub) {
	for data := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.drop(c)
			return
		}
	}
}

// Hub fans trade events out to websocket subscribers. It implements
// service.TradeSink; PublishTrade is called from the Logger worker and
// must not block, so each client gets a buffered send queue drained by
// its own writer and clients that fall behind are dropped.
type Hub struct {
	clients   map[*wsClient]bool
	clientsMu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*wsClient]bool)}
}

// PublishTrade broadcasts one trade event to all connected clients. The
// hand-off is a non-blocking queue send; a full queue marks the client
// dead.
func (h *Hub) PublishTrade(te service.TradeEvent) {
	data, err := json.Marshal(te)
	if err != nil {
		log.Printf("[ws] marshal trade %d: %v", te.TradeID, err)
		return
	}

	var dead []*wsClient
	h.clientsMu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			dead = append(dead, c)
		}
	}
	h.clientsMu.RUnlock()

	for _, c := range dead {
		h.drop(c)
	}
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade: %v", err)
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, sendBuffer)}

	h.clientsMu.Lock()
	h.clients[c] = true
	h.clientsMu.Unlock()

	go c.writePump(h)

	// reader loop exists only to detect close
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.drop(c)
				return
			}
		}
	}()
}

// drop removes a client and closes its queue. The queue close is safe
// against concurrent PublishTrade sends because both run under clientsMu.
func (h *Hub) drop(c *wsClient) {
	h.clientsMu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		_ = c.conn.Close()
	}
	h.clientsMu.Unlock()
}

// Close disconnects all clients.
func (h *Hub) Close() {
	h.clientsMu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		_ = c.conn.Close()
	}
	h.clientsMu.Unlock()
}
