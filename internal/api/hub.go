package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"

	"github.com/nightwatch-nvr/nightwatch/internal/eventbus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HubEventType names the kinds of event the UI hub pushes to connected
// browsers.
type HubEventType string

const (
	HubEventSignal HubEventType = "signal"
	HubEventLive   HubEventType = "live"
	HubEventSession HubEventType = "session"
	HubEventPing    HubEventType = "ping"
	HubEventPong    HubEventType = "pong"
)

// HubEvent is one message pushed to (or received from) a UI client.
type HubEvent struct {
	Type      HubEventType `json:"type"`
	Timestamp time.Time    `json:"timestamp"`
	Data      interface{}  `json:"data,omitempty"`
}

type hubClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub maintains the set of connected UI WebSocket clients and
// broadcasts events to them.
type Hub struct {
	clients    map[*hubClient]bool
	broadcast  chan []byte
	register   chan *hubClient
	unregister chan *hubClient
	mu         sync.RWMutex
	logger     *slog.Logger
}

// busSubjectEvents maps the event-bus subjects this service publishes
// to the HubEventType a UI client should see when one arrives.
var busSubjectEvents = map[string]HubEventType{
	eventbus.SubjectSignalChanged:  HubEventSignal,
	eventbus.SubjectSessionRevoked: HubEventSession,
	eventbus.SubjectLiveFragment:   HubEventLive,
}

func newHub(logger *slog.Logger, bus *eventbus.Bus) *Hub {
	h := &Hub{
		clients:    make(map[*hubClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *hubClient),
		unregister: make(chan *hubClient),
		logger:     logger.With("component", "ui-hub"),
	}
	h.subscribeBus(bus)
	return h
}

// subscribeBus makes the hub a NATS consumer so that connected UI
// clients see signal, session, and live-fragment events regardless of
// which process instance handled the request that produced them. A nil
// bus (no event bus configured) leaves the hub driven only by direct
// Broadcast calls from handlers in this same process.
func (h *Hub) subscribeBus(bus *eventbus.Bus) {
	if bus == nil {
		return
	}
	for subject, evType := range busSubjectEvents {
		subject, evType := subject, evType
		if _, err := bus.Subscribe(subject, func(msg *nats.Msg) {
			h.Broadcast(HubEvent{Type: evType, Data: json.RawMessage(msg.Data)})
		}); err != nil {
			h.logger.Error("failed to subscribe to event bus subject", "subject", subject, "error", err)
		}
	}
}

func (h *Hub) run() {
	for {
		select {
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

		case msg := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.logger.Warn("client buffer full, dropping event")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast fans ev out to every connected UI client.
func (h *Hub) Broadcast(ev HubEvent) {
	ev.Timestamp = time.Now()
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to marshal event", "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("broadcast channel full, dropping event")
	}
}

// ClientCount reports how many UI clients are currently connected.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// handleWebSocket upgrades /api/ws connections and starts the client's
// pumps. Requires view_video, the same permission live video requires.
func (s *Service) handleWebSocket(w http.ResponseWriter, r *http.Request, c caller) {
	if !c.permissions.ViewVideo {
		writeError(w, errUnauthorized("view_video required"))
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}
	client := &hubClient{hub: s.hub, conn: conn, send: make(chan []byte, 256)}
	s.hub.register <- client
	go client.writePump()
	go client.readPump()
}

func (c *hubClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (c *hubClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			_, _ = w.Write(msg)
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
