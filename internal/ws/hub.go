package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"InboxGate/entity"
	"InboxGate/internal/lib/sl"
)

const (
	EventNewMessage       = "new_message"
	EventConnectionExpire = "connection_expired"
	EventReadReceipt      = "read_receipt"

	markReadTimeout = 5 * time.Second
)

// ReadMarker handles mark_read requests coming from inbox clients.
type ReadMarker interface {
	MarkRead(ctx context.Context, conversationID string) error
}

type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub fans events out to every connected inbox client.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex
	handler    ReadMarker
	log        *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log.With(sl.Module("ws.hub")),
	}
}

func (h *Hub) SetHandler(handler ReadMarker) {
	h.handler = handler
}

// Run is the hub's event loop; it returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.With(slog.String("username", client.username)).Debug("client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				h.log.Error("marshal event", sl.Err(err))
				continue
			}
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// slow client
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// add hands a client to Run; it reports false once the hub is stopped.
func (h *Hub) add(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// publish never blocks the caller; events are dropped when the hub is saturated.
func (h *Hub) publish(event *Event) {
	select {
	case h.broadcast <- event:
	default:
		h.log.With(slog.String("type", event.Type)).Warn("broadcast queue full, event dropped")
	}
}

func (h *Hub) BroadcastMessage(msg *entity.Message) {
	h.publish(&Event{Type: EventNewMessage, Data: msg})
}

func (h *Hub) BroadcastConnectionExpired(conn *entity.ChannelConnection) {
	h.publish(&Event{
		Type: EventConnectionExpire,
		Data: map[string]string{
			"connection_id": conn.ID,
			"workspace_id":  conn.WorkspaceID,
			"provider":      conn.Provider.String(),
			"channel":       conn.DisplayNameOrID(),
		},
	})
}

type clientEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// HandleClientMessage dispatches a message sent by an inbox client.
func (h *Hub) HandleClientMessage(username string, raw []byte) {
	if h.handler == nil {
		return
	}
	log := h.log.With(slog.String("username", username))

	var event clientEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		log.Warn("failed to parse client ws message", sl.Err(err))
		return
	}

	switch event.Type {
	case "mark_read":
		var data struct {
			ConversationID string `json:"conversation_id"`
		}
		if err := json.Unmarshal(event.Data, &data); err != nil || data.ConversationID == "" {
			log.Warn("invalid mark_read data", sl.Err(err))
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), markReadTimeout)
		defer cancel()
		if err := h.handler.MarkRead(ctx, data.ConversationID); err != nil {
			log.With(slog.String("conversation_id", data.ConversationID)).Error("mark read", sl.Err(err))
			return
		}
		h.publish(&Event{
			Type: EventReadReceipt,
			Data: map[string]string{
				"username":        username,
				"conversation_id": data.ConversationID,
			},
		})
	default:
		log.With(slog.String("type", event.Type)).Debug("unsupported client event")
	}
}
