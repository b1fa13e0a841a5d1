package repository

import (
	"Solvextra/entity"
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UpsertAgent persists an agent keyed by username.
func (m *MongoDB) UpsertAgent(ctx context.Context, agent *entity.Agent) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(agentsCollection)
	filter := bson.D{{Key: "username", Value: agent.Username}}
	update := bson.D{{Key: "$set", Value: agent}}
	opts := options.Update().SetUpsert(true)

	_, err = collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("mongodb upsert agent: %w", err)
	}
	return nil
}

func (m *MongoDB) GetAgent(ctx context.Context, id string) (*entity.Agent, error) {
	return m.findAgent(ctx, bson.D{{Key: "id", Value: id}})
}

func (m *MongoDB) GetAgentByToken(ctx context.Context, token string) (*entity.Agent, error) {
	return m.findAgent(ctx, bson.D{{Key: "token", Value: token}})
}

func (m *MongoDB) findAgent(ctx context.Context, filter bson.D) (*entity.Agent, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(agentsCollection)

	var agent entity.Agent
	err = collection.FindOne(ctx, filter).Decode(&agent)
	if err != nil {
		return nil, m.findError(err)
	}
	return &agent, nil
}

func (m *MongoDB) ListAgents(ctx context.Context) ([]entity.Agent, error) {
	return m.listAgents(ctx, bson.D{})
}

func (m *MongoDB) ListAvailableAgents(ctx context.Context) ([]entity.Agent, error) {
	return m.listAgents(ctx, bson.D{{Key: "availability", Value: entity.AvailabilityAvailable}})
}

func (m *MongoDB) listAgents(ctx context.Context, filter bson.D) ([]entity.Agent, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(agentsCollection)
	cursor, err := collection.Find(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("mongodb find agents: %w", err)
	}
	defer cursor.Close(ctx)

	var agents []entity.Agent
	if err = cursor.All(ctx, &agents); err != nil {
		return nil, fmt.Errorf("mongodb decode agents: %w", err)
	}
	return agents, nil
}

func (m *MongoDB) SetAgentAvailability(ctx context.Context, id string, availability entity.AgentAvailability) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(agentsCollection)
	filter := bson.D{{Key: "id", Value: id}}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "availability", Value: availability}}}}

	res, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("mongodb set agent availability: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("agent not found: %s", id)
	}
	return nil
}

// IncActiveChats atomically adjusts an agent's active-conversation counter.
// Decrements only match documents with a positive counter so the value can
// never go below zero.
func (m *MongoDB) IncActiveChats(ctx context.Context, id string, delta int) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(agentsCollection)
	filter := bson.D{{Key: "id", Value: id}}
	if delta < 0 {
		filter = append(filter, bson.E{Key: "active_chats", Value: bson.D{{Key: "$gt", Value: 0}}})
	}
	update := bson.D{{Key: "$inc", Value: bson.D{{Key: "active_chats", Value: delta}}}}

	_, err = collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("mongodb inc active chats: %w", err)
	}
	return nil
}
