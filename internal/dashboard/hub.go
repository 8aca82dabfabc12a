package dashboard

import (
	"sync"

	"github.com/gorilla/websocket"

	"geomesh.io/hyperbr/internal/log"
)

// pushMessage is the envelope sent to dashboard clients.
type pushMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// hub fans push messages out to all connected websocket clients. Slow
// clients are disconnected rather than allowed to stall the rest.
type hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]chan pushMessage
	closed  bool
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]chan pushMessage)}
}

// add registers conn and starts its writer. Returns false when the hub
// is already closed.
func (h *hub) add(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	ch := make(chan pushMessage, 32)
	h.clients[conn] = ch
	go h.writer(conn, ch)
	return true
}

func (h *hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	ch, ok := h.clients[conn]
	if ok {
		delete(h.clients, conn)
	}
	h.mu.Unlock()
	if ok {
		close(ch)
	}
	conn.Close()
}

func (h *hub) writer(conn *websocket.Conn, ch chan pushMessage) {
	for msg := range ch {
		if err := conn.WriteJSON(msg); err != nil {
			log.GetLogger().WithError(err).Debug("dashboard client write failed")
			h.remove(conn)
			return
		}
	}
}

// broadcast queues msg for every client.
func (h *hub) broadcast(msg pushMessage) {
	h.mu.Lock()
	stale := []*websocket.Conn(nil)
	for conn, ch := range h.clients {
		select {
		case ch <- msg:
		default:
			stale = append(stale, conn)
		}
	}
	h.mu.Unlock()
	for _, conn := range stale {
		h.remove(conn)
	}
}

// close disconnects every client.
func (h *hub) close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()
	for _, conn := range conns {
		h.remove(conn)
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
