package conversation

import (
	"Solvextra/entity"
	"context"
)

type Core interface {
	ListConversations(ctx context.Context) ([]entity.Conversation, error)
	GetConversation(ctx context.Context, id string) (*entity.Conversation, error)
	GetMessages(ctx context.Context, conversationID string, limit, offset int) ([]entity.Message, error)
	Escalate(ctx context.Context, conversationID, reason string, adminOnlyIfNoAgent bool) error
	Accept(ctx context.Context, conversationID, agentID string) (*entity.Conversation, error)
	AssignAgent(ctx context.Context, conversationID, agentID string) (*entity.Conversation, error)
	SendAgentMessage(ctx context.Context, conversationID, agentID, text string) (*entity.Conversation, error)
	Resolve(ctx context.Context, conversationID string) (*entity.Conversation, error)
	ConvertToTicket(ctx context.Context, conversationID, title string, priority entity.TicketPriority) (*entity.Ticket, error)
}
