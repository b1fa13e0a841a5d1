package repository

import (
	"Solvextra/entity"
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SaveMessage appends a message. Messages are immutable once written.
func (m *MongoDB) SaveMessage(ctx context.Context, msg *entity.Message) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(messagesCollection)
	_, err = collection.InsertOne(ctx, msg)
	if err != nil {
		return fmt.Errorf("mongodb insert message: %w", err)
	}
	return nil
}

// GetMessages returns messages for a conversation, newest first.
func (m *MongoDB) GetMessages(ctx context.Context, conversationID string, limit, offset int) ([]entity.Message, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(messagesCollection)
	filter := bson.D{{Key: "conversation_id", Value: conversationID}}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit)).
		SetSkip(int64(offset))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find messages: %w", err)
	}
	defer cursor.Close(ctx)

	var messages []entity.Message
	if err = cursor.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("mongodb decode messages: %w", err)
	}
	return messages, nil
}

// GetLastMessage returns the newest message of a conversation, nil if none.
func (m *MongoDB) GetLastMessage(ctx context.Context, conversationID string) (*entity.Message, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(messagesCollection)
	filter := bson.D{{Key: "conversation_id", Value: conversationID}}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var msg entity.Message
	err = collection.FindOne(ctx, filter, opts).Decode(&msg)
	if err != nil {
		return nil, m.findError(err)
	}
	return &msg, nil
}
