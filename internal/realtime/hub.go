// Package realtime pushes playback events to WebSocket clients.
package realtime

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"tubeplayer/internal/logging"
	"tubeplayer/internal/metrics"
	"tubeplayer/internal/player"
	"tubeplayer/internal/playback"
)

var log = logging.For("realtime")

// Event is the message sent to clients.
type Event struct {
	Type    string `json:"type"`
	Time    string `json:"time"`
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Percent *int   `json:"percent,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Event types.
const (
	EventWelcome      = "welcome"
	EventState        = "state"
	EventBuffering    = "buffering"
	EventQueueStarted = "queue_started"
	EventQueueStopped = "queue_stopped"
	EventQueueChanged = "queue_changed"
)

const broadcastBuffer = 256

// Hub owns the set of connected clients and fans messages out to them.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Outbound messages to all clients.
	broadcast chan []byte

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	count      atomic.Int64
	now        func() time.Time
}

var _ playback.Listener = (*Hub)(nil)

// NewHub returns a Hub with no clients. Call Run to start it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		now:        time.Now,
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.count.Store(int64(len(h.clients)))
			metrics.RealtimeClients.Set(float64(len(h.clients)))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					log.Warn("Client %s is not keeping up, disconnecting", client.addr)
					h.drop(client)
				}
			}

		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return
		}
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	close(client.send)
	h.count.Store(int64(len(h.clients)))
	metrics.RealtimeClients.Set(float64(len(h.clients)))
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	return int(h.count.Load())
}

// Publish queues ev for every client. It never blocks; events are dropped
// when the hub is backed up or stopped.
func (h *Hub) Publish(ev Event) {
	if ev.Time == "" {
		ev.Time = h.now().UTC().Format(time.RFC3339Nano)
	}
	b, err := json.Marshal(ev)
	if err != nil {
		log.Error("Failed to encode %s event: %v", ev.Type, err)
		return
	}
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.broadcast <- b:
		metrics.RealtimeEventsTotal.WithLabelValues(ev.Type).Inc()
	default:
		log.Warn("Broadcast queue full, dropping %s event", ev.Type)
	}
}

// OnStateChanged publishes a state event carrying both states.
func (h *Hub) OnStateChanged(from, to player.State) {
	h.Publish(Event{Type: EventState, From: from.String(), To: to.String()})
}

// OnBufferingChanged publishes a buffering event with the new percentage.
func (h *Hub) OnBufferingChanged(percent int) {
	h.Publish(Event{Type: EventBuffering, Percent: &percent})
}

// OnQueueStarted publishes a queue_started event.
func (h *Hub) OnQueueStarted() {
	h.Publish(Event{Type: EventQueueStarted})
}

// OnQueueStopped publishes a queue_stopped event naming the reason.
func (h *Hub) OnQueueStopped(reason playback.StopReason) {
	h.Publish(Event{Type: EventQueueStopped, Reason: reason.String()})
}

// OnQueueChanged publishes a queue_changed event. Clients refetch the
// queue themselves.
func (h *Hub) OnQueueChanged() {
	h.Publish(Event{Type: EventQueueChanged})
}
