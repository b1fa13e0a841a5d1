package entity

import (
	"time"

	"github.com/google/uuid"
)

type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityNormal TicketPriority = "normal"
	TicketPriorityHigh   TicketPriority = "high"
	TicketPriorityUrgent TicketPriority = "urgent"
)

type TicketStatus string

const (
	TicketStatusOpen     TicketStatus = "open"
	TicketStatusResolved TicketStatus = "resolved"
)

// DefaultTicketTATHours is the turnaround target used for fallback tickets.
const DefaultTicketTATHours = 24

// Ticket is the asynchronous fallback when no agent can take a conversation
// live, or the result of a manual conversion.
type Ticket struct {
	ID             string         `json:"id" bson:"id"`
	ConversationID string         `json:"conversation_id" bson:"conversation_id"`
	Title          string         `json:"title" bson:"title"`
	Description    string         `json:"description" bson:"description"`
	Priority       TicketPriority `json:"priority" bson:"priority"`
	Status         TicketStatus   `json:"status" bson:"status"`
	TATHours       int            `json:"tat_hours" bson:"tat_hours"`
	Contact        string         `json:"contact" bson:"contact"`
	CreatedAt      time.Time      `json:"created_at" bson:"created_at"`
	ResolvedAt     *time.Time     `json:"resolved_at,omitempty" bson:"resolved_at,omitempty"`
}

func NewTicket(conversationID, title, description string, priority TicketPriority, tatHours int, contact string) *Ticket {
	if priority == "" {
		priority = TicketPriorityNormal
	}
	if tatHours <= 0 {
		tatHours = DefaultTicketTATHours
	}
	return &Ticket{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Title:          title,
		Description:    description,
		Priority:       priority,
		Status:         TicketStatusOpen,
		TATHours:       tatHours,
		Contact:        contact,
		CreatedAt:      time.Now(),
	}
}
