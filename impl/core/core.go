package core

import (
	"Solvextra/entity"
	"Solvextra/internal/lib/sl"
	"context"
	"fmt"
	"log/slog"
)

// Repository is the read/write surface the API layer needs beyond the
// routing engine's own operations.
type Repository interface {
	ListConversations(ctx context.Context) ([]entity.Conversation, error)
	GetConversation(ctx context.Context, id string) (*entity.Conversation, error)
	GetMessages(ctx context.Context, conversationID string, limit, offset int) ([]entity.Message, error)

	ListAgents(ctx context.Context) ([]entity.Agent, error)
	GetAgent(ctx context.Context, id string) (*entity.Agent, error)
	UpsertAgent(ctx context.Context, agent *entity.Agent) error
	SetAgentAvailability(ctx context.Context, id string, availability entity.AgentAvailability) error

	ListOpenTickets(ctx context.Context) ([]entity.Ticket, error)
	ListRatings(ctx context.Context) ([]entity.SatisfactionRating, error)
}

// Engine is the routing engine surface exposed through the API.
type Engine interface {
	OnCustomerMessage(ctx context.Context, channel, externalUserID, name, text string) (*entity.Conversation, error)
	Escalate(ctx context.Context, conversationID, reason string, adminOnlyIfNoAgent bool) error
	Accept(ctx context.Context, conversationID, agentID string) (*entity.Conversation, error)
	AssignAgent(ctx context.Context, conversationID, agentID string) (*entity.Conversation, error)
	SendAgentMessage(ctx context.Context, conversationID string, agent *entity.Agent, text string) (*entity.Conversation, error)
	Resolve(ctx context.Context, conversationID string) (*entity.Conversation, error)
	ConvertToTicket(ctx context.Context, conversationID, title string, priority entity.TicketPriority) (*entity.Ticket, error)
	ResolveTicket(ctx context.Context, ticketID string) (*entity.Ticket, error)
}

// AuthService resolves operator tokens.
type AuthService interface {
	AuthenticateByToken(token string) (*entity.OperatorAuth, error)
	ValidateToken(token string) (string, error)
}

// Core wires the engine, store and auth service behind the single facade
// the HTTP layer is built against.
type Core struct {
	repo        Repository
	engine      Engine
	authService AuthService
	log         *slog.Logger
}

func New(log *slog.Logger) *Core {
	return &Core{
		log: log.With(sl.Module("core")),
	}
}

func (c *Core) SetRepository(repo Repository) {
	c.repo = repo
}

func (c *Core) SetEngine(engine Engine) {
	c.engine = engine
}

func (c *Core) SetAuthService(auth AuthService) {
	c.authService = auth
}

func (c *Core) AuthenticateByToken(token string) (*entity.OperatorAuth, error) {
	if c.authService == nil {
		return nil, fmt.Errorf("authentication not configured")
	}
	return c.authService.AuthenticateByToken(token)
}

func (c *Core) ValidateToken(token string) (string, error) {
	if c.authService == nil {
		return "", fmt.Errorf("authentication not configured")
	}
	return c.authService.ValidateToken(token)
}

func (c *Core) ListConversations(ctx context.Context) ([]entity.Conversation, error) {
	return c.repo.ListConversations(ctx)
}

func (c *Core) GetConversation(ctx context.Context, id string) (*entity.Conversation, error) {
	return c.repo.GetConversation(ctx, id)
}

func (c *Core) GetMessages(ctx context.Context, conversationID string, limit, offset int) ([]entity.Message, error) {
	return c.repo.GetMessages(ctx, conversationID, limit, offset)
}

func (c *Core) OnCustomerMessage(ctx context.Context, channel, externalUserID, name, text string) (*entity.Conversation, error) {
	return c.engine.OnCustomerMessage(ctx, channel, externalUserID, name, text)
}

func (c *Core) Escalate(ctx context.Context, conversationID, reason string, adminOnlyIfNoAgent bool) error {
	return c.engine.Escalate(ctx, conversationID, reason, adminOnlyIfNoAgent)
}

func (c *Core) Accept(ctx context.Context, conversationID, agentID string) (*entity.Conversation, error) {
	return c.engine.Accept(ctx, conversationID, agentID)
}

func (c *Core) AssignAgent(ctx context.Context, conversationID, agentID string) (*entity.Conversation, error) {
	return c.engine.AssignAgent(ctx, conversationID, agentID)
}

// SendAgentMessage resolves the operator's agent profile before delegating,
// so handlers only deal in ids.
func (c *Core) SendAgentMessage(ctx context.Context, conversationID, agentID, text string) (*entity.Conversation, error) {
	agent, err := c.repo.GetAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("loading agent: %w", err)
	}
	return c.engine.SendAgentMessage(ctx, conversationID, agent, text)
}

func (c *Core) Resolve(ctx context.Context, conversationID string) (*entity.Conversation, error) {
	return c.engine.Resolve(ctx, conversationID)
}

func (c *Core) ConvertToTicket(ctx context.Context, conversationID, title string, priority entity.TicketPriority) (*entity.Ticket, error) {
	return c.engine.ConvertToTicket(ctx, conversationID, title, priority)
}

func (c *Core) ResolveTicket(ctx context.Context, ticketID string) (*entity.Ticket, error) {
	return c.engine.ResolveTicket(ctx, ticketID)
}

func (c *Core) ListAgents(ctx context.Context) ([]entity.Agent, error) {
	return c.repo.ListAgents(ctx)
}

func (c *Core) CreateAgent(ctx context.Context, username, name, email string) (*entity.Agent, error) {
	agent := entity.NewAgent(username, name, email)
	if err := c.repo.UpsertAgent(ctx, agent); err != nil {
		return nil, fmt.Errorf("creating agent: %w", err)
	}
	c.log.Info("agent created", slog.String("username", username))
	return agent, nil
}

func (c *Core) SetAgentAvailability(ctx context.Context, agentID string, availability entity.AgentAvailability) error {
	if !entity.ValidAvailability(availability) {
		return fmt.Errorf("invalid availability: %s", availability)
	}
	return c.repo.SetAgentAvailability(ctx, agentID, availability)
}

func (c *Core) ListOpenTickets(ctx context.Context) ([]entity.Ticket, error) {
	return c.repo.ListOpenTickets(ctx)
}

func (c *Core) ListRatings(ctx context.Context) ([]entity.SatisfactionRating, error) {
	return c.repo.ListRatings(ctx)
}
