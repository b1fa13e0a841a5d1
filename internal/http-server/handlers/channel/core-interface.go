package channel

import (
	"Solvextra/entity"
	"context"
)

type Core interface {
	OnCustomerMessage(ctx context.Context, channel, externalUserID, name, text string) (*entity.Conversation, error)
}
