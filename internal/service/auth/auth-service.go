package auth

import (
	"Solvextra/entity"
	"Solvextra/internal/lib/sl"
	"context"
	"fmt"
	"log/slog"
)

// Repository resolves agent tokens against the store.
type Repository interface {
	GetAgentByToken(ctx context.Context, token string) (*entity.Agent, error)
}

// Service authenticates operator consoles: the configured admin key maps
// to an admin identity with no agent profile, agent tokens map to their
// agent.
type Service struct {
	repository Repository
	adminKey   string
	log        *slog.Logger
}

func NewAuthService(adminKey string, logger *slog.Logger) *Service {
	return &Service{
		adminKey: adminKey,
		log:      logger.With(sl.Module("auth-service")),
	}
}

func (s *Service) SetRepository(repository Repository) {
	s.repository = repository
}

// AuthenticateByToken resolves a bearer token to an operator identity.
func (s *Service) AuthenticateByToken(token string) (*entity.OperatorAuth, error) {
	if token == "" {
		return nil, fmt.Errorf("empty token")
	}

	if s.adminKey != "" && token == s.adminKey {
		return &entity.OperatorAuth{
			Username: "admin",
			Role:     entity.OperatorRoleAdmin,
			Token:    token,
		}, nil
	}

	if s.repository == nil {
		return nil, fmt.Errorf("authentication not enabled")
	}

	agent, err := s.repository.GetAgentByToken(context.Background(), token)
	if err != nil {
		return nil, fmt.Errorf("looking up token: %w", err)
	}
	if agent == nil {
		return nil, fmt.Errorf("token not found")
	}

	return &entity.OperatorAuth{
		Username: agent.Username,
		AgentID:  agent.ID,
		Role:     entity.OperatorRoleAgent,
		Token:    token,
	}, nil
}

// ValidateToken is the websocket upgrade check; it returns the operator name.
func (s *Service) ValidateToken(token string) (string, error) {
	op, err := s.AuthenticateByToken(token)
	if err != nil {
		return "", err
	}
	return op.Username, nil
}
