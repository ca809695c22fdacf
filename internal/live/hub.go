package live

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"leadline/internal/domain"
)

const (
	writeTimeout = 5 * time.Second
	sendBuffer   = 64
)

// Message is the frame sent to every connected client.
type Message struct {
	Type  string       `json:"type"`
	Event domain.Event `json:"event"`
}

type client struct {
	conn *websocket.Conn
	send chan Message
}

// Hub fans committed events out to websocket clients. Each client has its
// own queue and writer, so Publish never waits on the network.
type Hub struct {
	clients  map[*websocket.Conn]*client
	lock     sync.Mutex
	upgrader websocket.Upgrader
	Logger   *log.Logger
}

// NewHub builds a hub. checkOrigin may be nil to accept any origin.
func NewHub(checkOrigin func(r *http.Request) bool) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &Hub{
		clients:  make(map[*websocket.Conn]*client),
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
	}
}

func (h *Hub) logger() *log.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return log.Default()
}

func (h *Hub) add(conn *websocket.Conn) *client {
	h.lock.Lock()
	defer h.lock.Unlock()
	c := &client{conn: conn, send: make(chan Message, sendBuffer)}
	h.clients[conn] = c
	return c
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.dropLocked(conn)
}

func (h *Hub) dropLocked(conn *websocket.Conn) {
	c, ok := h.clients[conn]
	if !ok {
		return
	}
	delete(h.clients, conn)
	close(c.send)
	conn.Close()
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and keeps the client registered until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger().Printf("live: upgrade: %v", err)
		return
	}
	c := h.add(conn)
	go h.write(c)
	defer h.remove(conn)
	for {
		// Clients only listen; reads detect disconnects.
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) write(c *client) {
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.conn.WriteJSON(msg); err != nil {
			h.logger().Printf("live: drop client: %v", err)
			h.remove(c.conn)
			return
		}
	}
}

// Publish implements events.Publisher.
func (h *Hub) Publish(evt domain.Event) {
	h.Broadcast(Message{Type: evt.Type, Event: evt})
}

// Broadcast queues msg for every client. A client whose queue is full is dropped.
func (h *Hub) Broadcast(msg Message) {
	h.lock.Lock()
	defer h.lock.Unlock()
	for conn, c := range h.clients {
		select {
		case c.send <- msg:
		default:
			h.logger().Printf("live: drop client: send queue full")
			h.dropLocked(conn)
		}
	}
}
