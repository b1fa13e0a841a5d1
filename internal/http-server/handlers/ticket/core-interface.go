package ticket

import (
	"Solvextra/entity"
	"context"
)

type Core interface {
	ListOpenTickets(ctx context.Context) ([]entity.Ticket, error)
	ResolveTicket(ctx context.Context, ticketID string) (*entity.Ticket, error)
}
