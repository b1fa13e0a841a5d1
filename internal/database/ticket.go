package repository

import (
	"Solvextra/entity"
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func (m *MongoDB) CreateTicket(ctx context.Context, t *entity.Ticket) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(ticketsCollection)
	_, err = collection.InsertOne(ctx, t)
	if err != nil {
		return fmt.Errorf("mongodb insert ticket: %w", err)
	}
	return nil
}

func (m *MongoDB) GetTicket(ctx context.Context, id string) (*entity.Ticket, error) {
	return m.findTicket(ctx, bson.D{{Key: "id", Value: id}})
}

// GetOpenTicketByConversation returns the current open ticket linked to a
// conversation, nil if there is none.
func (m *MongoDB) GetOpenTicketByConversation(ctx context.Context, conversationID string) (*entity.Ticket, error) {
	return m.findTicket(ctx, bson.D{
		{Key: "conversation_id", Value: conversationID},
		{Key: "status", Value: entity.TicketStatusOpen},
	})
}

func (m *MongoDB) findTicket(ctx context.Context, filter bson.D) (*entity.Ticket, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(ticketsCollection)

	var t entity.Ticket
	err = collection.FindOne(ctx, filter).Decode(&t)
	if err != nil {
		return nil, m.findError(err)
	}
	return &t, nil
}

func (m *MongoDB) ListOpenTickets(ctx context.Context) ([]entity.Ticket, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(ticketsCollection)
	filter := bson.D{{Key: "status", Value: entity.TicketStatusOpen}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find tickets: %w", err)
	}
	defer cursor.Close(ctx)

	var tickets []entity.Ticket
	if err = cursor.All(ctx, &tickets); err != nil {
		return nil, fmt.Errorf("mongodb decode tickets: %w", err)
	}
	return tickets, nil
}

// ResolveTicket closes an open ticket, stamping the resolution time.
// Returns (nil, nil) when the ticket is missing or already resolved.
func (m *MongoDB) ResolveTicket(ctx context.Context, id string, at time.Time) (*entity.Ticket, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(ticketsCollection)
	filter := bson.D{{Key: "id", Value: id}, {Key: "status", Value: entity.TicketStatusOpen}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "status", Value: entity.TicketStatusResolved},
		{Key: "resolved_at", Value: at},
	}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var t entity.Ticket
	err = collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&t)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("mongodb resolve ticket: %w", err)
	}
	return &t, nil
}
