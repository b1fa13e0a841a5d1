package entity

import (
	"time"

	"github.com/google/uuid"
)

type ConversationStatus string

const (
	StatusOpen              ConversationStatus = "open"
	StatusPendingAcceptance ConversationStatus = "pending_acceptance"
	StatusAssigned          ConversationStatus = "assigned"
	StatusTicket            ConversationStatus = "ticket"
	StatusResolved          ConversationStatus = "resolved"
)

// Conversation is one customer dialog per (channel, external user id).
// It is never hard-deleted; resolved conversations are reopened in place
// when the customer writes again.
type Conversation struct {
	ID              string             `json:"id" bson:"id"`
	Channel         string             `json:"channel" bson:"channel"`
	ExternalUserID  string             `json:"external_user_id" bson:"external_user_id"`
	CustomerName    string             `json:"customer_name" bson:"customer_name"`
	CustomerContact string             `json:"customer_contact" bson:"customer_contact"`
	Status          ConversationStatus `json:"status" bson:"status"`
	AssignedAgentID string             `json:"assigned_agent_id" bson:"assigned_agent_id"`
	EscalatedAt     *time.Time         `json:"escalated_at,omitempty" bson:"escalated_at,omitempty"`
	LastMessageAt   time.Time          `json:"last_message_at" bson:"last_message_at"`
	LastCustomerAt  time.Time          `json:"last_customer_at" bson:"last_customer_at"`
	CheckCount      int                `json:"check_count" bson:"check_count"`
	MidCheck        bool               `json:"mid_check" bson:"mid_check"`
	CreatedAt       time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at" bson:"updated_at"`
}

func NewConversation(channel, externalUserID, customerName string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:             uuid.NewString(),
		Channel:        channel,
		ExternalUserID: externalUserID,
		CustomerName:   customerName,
		Status:         StatusOpen,
		LastMessageAt:  now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Live reports whether a human or the responder is still expected to act.
func (c *Conversation) Live() bool {
	return c.Status != StatusResolved && c.Status != StatusTicket
}

func (c *Conversation) IsAssigned() bool {
	return c.Status == StatusAssigned
}
