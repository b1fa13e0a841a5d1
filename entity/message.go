package entity

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type SenderRole string

const (
	RoleCustomer  SenderRole = "customer"
	RoleAgent     SenderRole = "agent"
	RoleAutomated SenderRole = "automated"
)

// Message is an append-only record; it is never edited after creation.
type Message struct {
	ID             string     `json:"id" bson:"id"`
	ConversationID string     `json:"conversation_id" bson:"conversation_id"`
	Role           SenderRole `json:"role" bson:"role"`
	SenderName     string     `json:"sender_name" bson:"sender_name"`
	Text           string     `json:"text" bson:"text"`
	CreatedAt      time.Time  `json:"created_at" bson:"created_at"`
}

func NewMessage(conversationID string, role SenderRole, senderName, text string) *Message {
	return &Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		SenderName:     senderName,
		Text:           text,
		CreatedAt:      time.Now(),
	}
}

// surveyMarker identifies the satisfaction survey prompt. A customer reply
// is consumed as a rating only when the preceding outbound message carries it.
const surveyMarker = "rate your experience from 1 to 5"

// SurveyPrompt is the fixed satisfaction survey text sent on resolution.
const SurveyPrompt = "Thank you for contacting support! Please rate your experience from 1 to 5."

func IsSurveyPrompt(text string) bool {
	return strings.Contains(strings.ToLower(text), surveyMarker)
}

// ParseRating interprets a bare 1-5 reply as a satisfaction rating.
func ParseRating(text string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || n < 1 || n > 5 {
		return 0, false
	}
	return n, true
}
