package ws

import (
	"encoding/json"
	"log/slog"
	"sync"

	"Solvextra/entity"
)

// Event types pushed to every connected operator console. Consoles filter
// client-side; the hub does no per-conversation subscription bookkeeping.
const (
	EventMessage           = "message"
	EventStatusUpdate      = "status_update"
	EventAssignment        = "assignment"
	EventEscalation        = "escalation"
	EventNewChat           = "new_chat"
	EventChatAccepted      = "chat_accepted"
	EventAdminNotification = "admin_notification"
	EventCsatRequest       = "csat_request"
)

// Event is a single domain event serialized once and fanned out to all
// open connections.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// EventRelay mirrors hub events to an external publish point.
type EventRelay interface {
	Publish(eventType string, body []byte) error
}

// Hub maintains the set of active operator consoles and broadcasts events.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *Event
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	relay      EventRelay
	log        *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log,
	}
}

// SetRelay mirrors every broadcast to an external publisher. Relay failures
// are logged and never block the fan-out.
func (h *Hub) SetRelay(relay EventRelay) {
	h.relay = relay
}

// Run starts the hub's event loop. Should be called in a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

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
				continue
			}
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

			if h.relay != nil {
				if err := h.relay.Publish(event.Type, data); err != nil {
					h.log.Warn("event relay publish failed",
						slog.String("type", event.Type),
						slog.String("error", err.Error()),
					)
				}
			}
		}
	}
}

// BroadcastMessage announces a persisted message to all consoles.
func (h *Hub) BroadcastMessage(msg entity.Message) {
	h.broadcast <- &Event{Type: EventMessage, Data: msg}
}

// BroadcastStatus announces a conversation status change.
func (h *Hub) BroadcastStatus(conv *entity.Conversation) {
	h.broadcast <- &Event{Type: EventStatusUpdate, Data: conv}
}

// BroadcastAssignment announces conversation ownership.
func (h *Hub) BroadcastAssignment(conv *entity.Conversation, agent *entity.Agent) {
	h.broadcast <- &Event{
		Type: EventAssignment,
		Data: map[string]any{
			"conversation_id": conv.ID,
			"agent_id":        agent.ID,
			"agent_name":      agent.Name,
		},
	}
}

// BroadcastEscalation alerts every console that an acceptance window opened.
// The payload carries enough for a console to render the accept prompt.
func (h *Hub) BroadcastEscalation(conv *entity.Conversation, reason string) {
	h.broadcast <- &Event{
		Type: EventEscalation,
		Data: map[string]any{
			"conversation_id": conv.ID,
			"channel":         conv.Channel,
			"customer_name":   conv.CustomerName,
			"escalated_at":    conv.EscalatedAt,
			"reason":          reason,
		},
	}
}

// BroadcastNewChat announces a conversation created by first customer contact.
func (h *Hub) BroadcastNewChat(conv *entity.Conversation) {
	h.broadcast <- &Event{Type: EventNewChat, Data: conv}
}

// BroadcastChatAccepted names the agent who won the acceptance race.
func (h *Hub) BroadcastChatAccepted(conv *entity.Conversation, agent *entity.Agent) {
	h.broadcast <- &Event{
		Type: EventChatAccepted,
		Data: map[string]any{
			"conversation_id": conv.ID,
			"agent_id":        agent.ID,
			"agent_name":      agent.Name,
		},
	}
}

// BroadcastAdminNotification flags a conversation for direct admin attention.
func (h *Hub) BroadcastAdminNotification(conversationID, text string) {
	h.broadcast <- &Event{
		Type: EventAdminNotification,
		Data: map[string]string{
			"conversation_id": conversationID,
			"text":            text,
		},
	}
}

// BroadcastCsatRequest announces that a satisfaction survey went out.
func (h *Hub) BroadcastCsatRequest(conversationID string) {
	h.broadcast <- &Event{
		Type: EventCsatRequest,
		Data: map[string]string{"conversation_id": conversationID},
	}
}
