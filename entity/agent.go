package entity

import (
	"time"

	"github.com/google/uuid"
)

type AgentAvailability string

const (
	AvailabilityAvailable    AgentAvailability = "available"
	AvailabilityBreak        AgentAvailability = "break"
	AvailabilityTraining     AgentAvailability = "training"
	AvailabilityFloorSupport AgentAvailability = "floor_support"
	AvailabilityNotAvailable AgentAvailability = "not_available"
	AvailabilityOffline      AgentAvailability = "offline"
)

func ValidAvailability(a AgentAvailability) bool {
	switch a {
	case AvailabilityAvailable, AvailabilityBreak, AvailabilityTraining,
		AvailabilityFloorSupport, AvailabilityNotAvailable, AvailabilityOffline:
		return true
	}
	return false
}

// Agent is an operator who can own live conversations. ActiveChats is
// maintained with atomic increments in the store and never goes negative.
type Agent struct {
	ID           string            `json:"id" bson:"id"`
	Username     string            `json:"username" bson:"username" validate:"required"`
	Name         string            `json:"name" bson:"name" validate:"omitempty"`
	Email        string            `json:"email" bson:"email" validate:"omitempty,email"`
	Availability AgentAvailability `json:"availability" bson:"availability"`
	ActiveChats  int               `json:"active_chats" bson:"active_chats"`
	Token        string            `json:"-" bson:"token"`
	CreatedAt    time.Time         `json:"created_at" bson:"created_at"`
}

func NewAgent(username, name, email string) *Agent {
	return &Agent{
		ID:           uuid.NewString(),
		Username:     username,
		Name:         name,
		Email:        email,
		Availability: AvailabilityOffline,
		Token:        uuid.NewString(),
		CreatedAt:    time.Now(),
	}
}

func (a *Agent) IsAvailable() bool {
	return a.Availability == AvailabilityAvailable
}
