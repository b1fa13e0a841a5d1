package agent

import (
	"Solvextra/entity"
	"context"
)

type Core interface {
	ListAgents(ctx context.Context) ([]entity.Agent, error)
	CreateAgent(ctx context.Context, username, name, email string) (*entity.Agent, error)
	SetAgentAvailability(ctx context.Context, agentID string, availability entity.AgentAvailability) error
}
