package live

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"leadline/internal/domain"
)

func TestHubBroadcastsPublishedEvents(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.Publish(domain.Event{ID: 7, Type: "contact.claimed", EntityKind: "contact", EntityID: "c1", ActorID: "u1"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != "contact.claimed" || msg.Event.ID != 7 || msg.Event.EntityID != "c1" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestHubDropsDisconnectedClients(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for hub.Clients() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client not removed after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHubDropsStalledClientWithoutBlocking(t *testing.T) {
	hub := NewHub(nil)
	upgraded := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := hub.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		upgraded <- conn
	}))
	defer srv.Close()

	peer, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer peer.Close()
	conn := <-upgraded

	// no writer drains this queue
	hub.lock.Lock()
	hub.clients[conn] = &client{conn: conn, send: make(chan Message, 1)}
	hub.lock.Unlock()

	done := make(chan struct{})
	go func() {
		hub.Publish(domain.Event{ID: 1, Type: "contact.claimed"})
		hub.Publish(domain.Event{ID: 2, Type: "contact.claimed"})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("publish blocked on a stalled client")
	}
	if hub.Clients() != 0 {
		t.Fatalf("expected stalled client to be dropped, got %d clients", hub.Clients())
	}
}
