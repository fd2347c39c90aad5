package network

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MRamiBalles/BacklotTycoon/server/internal/engine"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/events"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/logger"
	"github.com/MRamiBalles/BacklotTycoon/server/internal/platform/metrics"
)

// DefaultSendBuffer is the per-client outgoing queue length.
const DefaultSendBuffer = 64

type directMessage struct {
	client  *Client
	payload []byte
}

// Hub maintains the set of active clients and broadcasts messages to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	direct     chan directMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	doneOnce   sync.Once
	mu         sync.Mutex

	dispatcher *Dispatcher
	sendBuffer int
	maxClients atomic.Int64
	logger     *logger.Logger
	metrics    *metrics.Collector
}

// NewHub initializes a new WebSocket Hub. m may be nil; a non-positive
// sendBuffer falls back to DefaultSendBuffer.
func NewHub(dispatcher *Dispatcher, sendBuffer int, log *logger.Logger, m *metrics.Collector) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = DefaultSendBuffer
	}
	return &Hub{
		broadcast:  make(chan []byte),
		direct:     make(chan directMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[*Client]bool),
		dispatcher: dispatcher,
		sendBuffer: sendBuffer,
		logger:     log,
		metrics:    m,
	}
}

// SetMaxClients caps concurrent connections; zero means no cap.
func (h *Hub) SetMaxClients(n int) {
	h.maxClients.Store(int64(n))
}

// Run starts the Hub's main loop to handle client connections and broadcasts.
func (h *Hub) Run(ctx context.Context) {
	defer h.doneOnce.Do(func() { close(h.done) })
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("WebSocket Hub shutting down.")
			h.mu.Lock()
			for client := range h.clients {
				h.drop(client)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			if h.metrics != nil {
				h.metrics.RecordWSConnection(1)
			}
			h.logger.Info("New WebSocket client connected")
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				h.logger.Info("WebSocket client disconnected")
			}
			h.mu.Unlock()
		case msg := <-h.direct:
			h.mu.Lock()
			if _, ok := h.clients[msg.client]; ok {
				h.deliver(msg.client, msg.payload)
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				h.deliver(client, message)
			}
			h.mu.Unlock()
		}
	}
}

// deliver queues payload for one client and drops clients that fell behind.
// Caller holds h.mu.
func (h *Hub) deliver(client *Client, payload []byte) {
	select {
	case client.send <- payload:
	default:
		h.logger.Warn("WebSocket client too slow, dropping connection")
		if h.metrics != nil {
			h.metrics.RecordWSError()
		}
		h.drop(client)
	}
}

// drop closes a client's queue. Caller holds h.mu.
func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	if h.metrics != nil {
		h.metrics.RecordWSConnection(-1)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast serializes env and sends it to all connected clients.
func (h *Hub) Broadcast(env Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("Failed to serialize " + string(env.Type) + " for WebSocket broadcast: " + err.Error())
		return
	}
	select {
	case h.broadcast <- payload:
	case <-h.done:
	}
}

// BroadcastWeek pushes a week report to every client.
func (h *Hub) BroadcastWeek(report engine.WeekReport) {
	h.Broadcast(Envelope{Type: MsgWeek, Data: report})
}

// BroadcastEvent pushes one studio event to every client.
func (h *Hub) BroadcastEvent(event events.StudioEvent) {
	h.Broadcast(Envelope{Type: MsgEvent, Data: event})
}

// reply sends env to a single client through the hub loop.
func (h *Hub) reply(client *Client, env Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		h.logger.Error("Failed to serialize reply: " + err.Error())
		return
	}
	select {
	case h.direct <- directMessage{client: client, payload: payload}:
	case <-h.done:
	}
}

// StartEventPoller spawns a goroutine that polls the EventLog and pushes new
// events to the Hub. Polling keeps broadcasting off the engine's lock.
func (h *Hub) StartEventPoller(ctx context.Context, eventLog *events.EventLog, interval time.Duration) {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	go func() {
		pollInterval := time.NewTicker(interval)
		defer pollInterval.Stop()

		lastProcessedEvent := eventLog.Len()

		for {
			select {
			case <-ctx.Done():
				return
			case <-pollInterval.C:
				if eventLog.Len() == lastProcessedEvent {
					continue
				}
				allEvents := eventLog.Replay()
				for _, event := range allEvents[lastProcessedEvent:] {
					h.BroadcastEvent(event)
				}
				lastProcessedEvent = len(allEvents)
			}
		}
	}()
}
