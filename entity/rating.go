package entity

import (
	"time"

	"github.com/google/uuid"
)

// SatisfactionRating is created at most once per resolution event.
type SatisfactionRating struct {
	ID             string    `json:"id" bson:"id"`
	ConversationID string    `json:"conversation_id" bson:"conversation_id"`
	TicketID       string    `json:"ticket_id,omitempty" bson:"ticket_id,omitempty"`
	Rating         int       `json:"rating" bson:"rating" validate:"min=1,max=5"`
	Comment        string    `json:"comment,omitempty" bson:"comment,omitempty"`
	CreatedAt      time.Time `json:"created_at" bson:"created_at"`
}

func NewSatisfactionRating(conversationID, ticketID string, rating int, comment string) *SatisfactionRating {
	return &SatisfactionRating{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		TicketID:       ticketID,
		Rating:         rating,
		Comment:        comment,
		CreatedAt:      time.Now(),
	}
}
