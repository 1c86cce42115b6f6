// Package hub pushes quote updates to browser dashboards over websockets.
package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/wonny/quoteboard/internal/quotes"
	"github.com/wonny/quoteboard/internal/realtime/feed"
	"github.com/wonny/quoteboard/pkg/logger"
)

// Outbound message types
const (
	TypeSnapshot = "snapshot"
	TypeQuote    = "quote"
	TypeRanking  = "ranking"
	TypeStatus   = "status"
	TypeError    = "error"
)

// Client actions
const (
	ActionSetSort  = "set_sort"
	ActionSnapshot = "snapshot"
)

// Message is the envelope of every server to client frame
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Request is a client to server frame
type Request struct {
	Action string `json:"action"`
	Mode   string `json:"mode,omitempty"`
}

// Snapshot is the full dashboard state sent on connect
type Snapshot struct {
	Stocks   []quotes.StockState     `json:"stocks"`
	Ranking  []quotes.StockState     `json:"ranking"`
	SortMode quotes.SortMode         `json:"sort_mode"`
	Status   quotes.ConnectionStatus `json:"status"`
}

// Ranking is broadcast after the sort mode changes
type Ranking struct {
	SortMode quotes.SortMode     `json:"sort_mode"`
	Ranking  []quotes.StockState `json:"ranking"`
}

func errorMessage(msg string) Message {
	return Message{Type: TypeError, Data: map[string]string{"message": msg}}
}

// Hub tracks connected clients and broadcasts to all of them
type Hub struct {
	engine   *quotes.Engine
	logger   *logger.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*Client]struct{}

	dropped atomic.Int64
}

// NewHub creates a websocket hub backed by engine
func NewHub(engine *quotes.Engine, log *logger.Logger) *Hub {
	return &Hub{
		engine: engine,
		logger: log.WithComponent("hub"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The dashboard may be served from another origin in development
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients: make(map[*Client]struct{}),
	}
}

// Name implements feed.Publisher
func (h *Hub) Name() string {
	return "websocket"
}

// Publish implements feed.Publisher by broadcasting a quote message
func (h *Hub) Publish(_ context.Context, u feed.Update) error {
	return h.broadcast(Message{Type: TypeQuote, Data: u})
}

// StatusChanged implements feed.StatusListener
func (h *Hub) StatusChanged(status quotes.ConnectionStatus) {
	if err := h.broadcast(Message{Type: TypeStatus, Data: status}); err != nil {
		h.logger.WithError(err).Error("Failed to broadcast status")
	}
}

// ServeHTTP upgrades the request and serves the client until it leaves
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}

	c := newClient(h, conn)
	c.sendJSON(h.snapshot())
	h.register(c)

	go c.writePump()
	go c.readPump()
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()

	c.logger.WithField("clients", count).Info("Client connected")
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()

	if ok {
		c.close()
		c.logger.WithField("clients", count).Info("Client disconnected")
	}
}

func (h *Hub) broadcast(m Message) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !c.enqueue(b) {
			h.dropped.Add(1)
			c.logger.WithField("type", m.Type).Debug("Client too slow, message dropped")
		}
	}
	return nil
}

func (h *Hub) snapshot() Message {
	return Message{Type: TypeSnapshot, Data: Snapshot{
		Stocks:   h.engine.Stocks(),
		Ranking:  h.engine.RankedView(),
		SortMode: h.engine.SortMode(),
		Status:   h.engine.ConnectionStatus(),
	}}
}

func (h *Hub) handle(c *Client, req Request) {
	switch req.Action {
	case ActionSetSort:
		mode, err := quotes.ParseSortMode(req.Mode)
		if err == nil {
			err = h.engine.SetSortMode(mode)
		}
		if err != nil {
			c.sendJSON(errorMessage(err.Error()))
			return
		}

		c.logger.WithField("mode", string(mode)).Debug("Sort mode changed by client")
		h.BroadcastRanking(mode)

	case ActionSnapshot:
		c.sendJSON(h.snapshot())

	default:
		c.sendJSON(errorMessage("unknown action: " + req.Action))
	}
}

// BroadcastRanking sends the ranking for mode to every client
func (h *Hub) BroadcastRanking(mode quotes.SortMode) {
	if err := h.broadcast(Message{Type: TypeRanking, Data: Ranking{
		SortMode: mode,
		Ranking:  h.engine.Ranking(mode),
	}}); err != nil {
		h.logger.WithError(err).Error("Failed to broadcast ranking")
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many messages were dropped for slow clients
func (h *Hub) Dropped() int64 {
	return h.dropped.Load()
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[*Client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
	h.logger.WithField("clients", len(clients)).Info("Hub closed")
}
