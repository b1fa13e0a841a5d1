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

// CreateConversation inserts a new conversation document.
func (m *MongoDB) CreateConversation(ctx context.Context, conv *entity.Conversation) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(conversationsCollection)
	_, err = collection.InsertOne(ctx, conv)
	if err != nil {
		return fmt.Errorf("mongodb insert conversation: %w", err)
	}
	return nil
}

func (m *MongoDB) GetConversation(ctx context.Context, id string) (*entity.Conversation, error) {
	return m.findConversation(ctx, bson.D{{Key: "id", Value: id}})
}

// GetConversationByChannelUser finds the single conversation for a channel
// identity, whatever its status.
func (m *MongoDB) GetConversationByChannelUser(ctx context.Context, channel, externalUserID string) (*entity.Conversation, error) {
	return m.findConversation(ctx, bson.D{
		{Key: "channel", Value: channel},
		{Key: "external_user_id", Value: externalUserID},
	})
}

func (m *MongoDB) findConversation(ctx context.Context, filter bson.D) (*entity.Conversation, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(conversationsCollection)

	var conv entity.Conversation
	err = collection.FindOne(ctx, filter).Decode(&conv)
	if err != nil {
		return nil, m.findError(err)
	}
	return &conv, nil
}

// ListConversations returns all conversations, most recently active first.
func (m *MongoDB) ListConversations(ctx context.Context) ([]entity.Conversation, error) {
	return m.listConversations(ctx, bson.D{})
}

func (m *MongoDB) ListConversationsByStatus(ctx context.Context, status entity.ConversationStatus) ([]entity.Conversation, error) {
	return m.listConversations(ctx, bson.D{{Key: "status", Value: status}})
}

func (m *MongoDB) listConversations(ctx context.Context, filter bson.D) ([]entity.Conversation, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(conversationsCollection)
	opts := options.Find().SetSort(bson.D{{Key: "last_message_at", Value: -1}})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("mongodb find conversations: %w", err)
	}
	defer cursor.Close(ctx)

	var conversations []entity.Conversation
	if err = cursor.All(ctx, &conversations); err != nil {
		return nil, fmt.Errorf("mongodb decode conversations: %w", err)
	}
	return conversations, nil
}

// transition runs a single conditional update: the filter carries the
// required current state, so concurrent writers cannot both win. Returns
// (nil, nil) when the document no longer matches.
func (m *MongoDB) transition(ctx context.Context, filter bson.D, update bson.D) (*entity.Conversation, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(conversationsCollection)
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var conv entity.Conversation
	err = collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&conv)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("mongodb conversation transition: %w", err)
	}
	return &conv, nil
}

// MarkPendingAcceptance moves an open conversation into the acceptance
// window, stamping the escalation time.
func (m *MongoDB) MarkPendingAcceptance(ctx context.Context, id string, at time.Time) (*entity.Conversation, error) {
	return m.transition(ctx,
		bson.D{{Key: "id", Value: id}, {Key: "status", Value: entity.StatusOpen}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: entity.StatusPendingAcceptance},
			{Key: "escalated_at", Value: at},
			{Key: "updated_at", Value: time.Now()},
		}}},
	)
}

// AssignFromPending claims a pending conversation for an agent. Exactly one
// concurrent caller can succeed; losers get (nil, nil).
func (m *MongoDB) AssignFromPending(ctx context.Context, id, agentID string) (*entity.Conversation, error) {
	return m.transition(ctx,
		bson.D{{Key: "id", Value: id}, {Key: "status", Value: entity.StatusPendingAcceptance}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: entity.StatusAssigned},
			{Key: "assigned_agent_id", Value: agentID},
			{Key: "updated_at", Value: time.Now()},
		}}},
	)
}

// AssignFromOpen is the manual-takeover transition: a human message into an
// open conversation claims it without an escalation round.
func (m *MongoDB) AssignFromOpen(ctx context.Context, id, agentID string) (*entity.Conversation, error) {
	return m.transition(ctx,
		bson.D{{Key: "id", Value: id}, {Key: "status", Value: entity.StatusOpen}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: entity.StatusAssigned},
			{Key: "assigned_agent_id", Value: agentID},
			{Key: "updated_at", Value: time.Now()},
		}}},
	)
}

// SetAssignedAgent is the unconditional admin assignment (transfer allowed).
func (m *MongoDB) SetAssignedAgent(ctx context.Context, id, agentID string) (*entity.Conversation, error) {
	return m.transition(ctx,
		bson.D{{Key: "id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: entity.StatusAssigned},
			{Key: "assigned_agent_id", Value: agentID},
			{Key: "updated_at", Value: time.Now()},
		}}},
	)
}

// MarkTicketFromPending converts an expired acceptance window to a ticket.
func (m *MongoDB) MarkTicketFromPending(ctx context.Context, id string) (*entity.Conversation, error) {
	return m.transition(ctx,
		bson.D{{Key: "id", Value: id}, {Key: "status", Value: entity.StatusPendingAcceptance}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: entity.StatusTicket},
			{Key: "assigned_agent_id", Value: ""},
			{Key: "updated_at", Value: time.Now()},
		}}},
	)
}

// MarkTicketFromOpen is the no-agents-available fallback at escalation time.
func (m *MongoDB) MarkTicketFromOpen(ctx context.Context, id string) (*entity.Conversation, error) {
	return m.transition(ctx,
		bson.D{{Key: "id", Value: id}, {Key: "status", Value: entity.StatusOpen}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: entity.StatusTicket},
			{Key: "assigned_agent_id", Value: ""},
			{Key: "updated_at", Value: time.Now()},
		}}},
	)
}

// MarkTicket converts any live conversation to ticket status (manual conversion).
func (m *MongoDB) MarkTicket(ctx context.Context, id string) (*entity.Conversation, error) {
	return m.transition(ctx,
		bson.D{{Key: "id", Value: id}, {Key: "status", Value: bson.D{{Key: "$in", Value: []entity.ConversationStatus{
			entity.StatusOpen, entity.StatusPendingAcceptance, entity.StatusAssigned,
		}}}}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: entity.StatusTicket},
			{Key: "assigned_agent_id", Value: ""},
			{Key: "updated_at", Value: time.Now()},
		}}},
	)
}

// ResolveAssigned resolves an agent-owned conversation, clearing the agent
// reference so the assigned-iff-agent invariant holds.
func (m *MongoDB) ResolveAssigned(ctx context.Context, id string) (*entity.Conversation, error) {
	return m.transition(ctx,
		bson.D{{Key: "id", Value: id}, {Key: "status", Value: entity.StatusAssigned}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: entity.StatusResolved},
			{Key: "assigned_agent_id", Value: ""},
			{Key: "updated_at", Value: time.Now()},
		}}},
	)
}

// MarkResolvedFromOpen resolves a still-open conversation (responder
// close-with-satisfaction). A conversation claimed by an agent in the
// meantime does not match and the write is a no-op.
func (m *MongoDB) MarkResolvedFromOpen(ctx context.Context, id string) (*entity.Conversation, error) {
	return m.transition(ctx,
		bson.D{{Key: "id", Value: id}, {Key: "status", Value: entity.StatusOpen}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: entity.StatusResolved},
			{Key: "assigned_agent_id", Value: ""},
			{Key: "updated_at", Value: time.Now()},
		}}},
	)
}

// MarkResolvedFromTicket resolves the conversation behind a closed ticket.
func (m *MongoDB) MarkResolvedFromTicket(ctx context.Context, id string) (*entity.Conversation, error) {
	return m.transition(ctx,
		bson.D{{Key: "id", Value: id}, {Key: "status", Value: entity.StatusTicket}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: entity.StatusResolved},
			{Key: "assigned_agent_id", Value: ""},
			{Key: "updated_at", Value: time.Now()},
		}}},
	)
}

// ReopenResolved reopens a resolved conversation on new customer contact,
// resetting the watchdog counters.
func (m *MongoDB) ReopenResolved(ctx context.Context, id string) (*entity.Conversation, error) {
	return m.transition(ctx,
		bson.D{{Key: "id", Value: id}, {Key: "status", Value: entity.StatusResolved}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: entity.StatusOpen},
			{Key: "assigned_agent_id", Value: ""},
			{Key: "check_count", Value: 0},
			{Key: "mid_check", Value: false},
			{Key: "updated_at", Value: time.Now()},
		}}},
	)
}

// TouchCustomerMessage records customer activity and naturally resets any
// in-flight inactivity check.
func (m *MongoDB) TouchCustomerMessage(ctx context.Context, id string, at time.Time) error {
	_, err := m.transition(ctx,
		bson.D{{Key: "id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "last_message_at", Value: at},
			{Key: "last_customer_at", Value: at},
			{Key: "check_count", Value: 0},
			{Key: "mid_check", Value: false},
			{Key: "updated_at", Value: time.Now()},
		}}},
	)
	return err
}

func (m *MongoDB) TouchOutboundMessage(ctx context.Context, id string, at time.Time) error {
	_, err := m.transition(ctx,
		bson.D{{Key: "id", Value: id}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "last_message_at", Value: at},
			{Key: "updated_at", Value: time.Now()},
		}}},
	)
	return err
}

// ListSilentOpenConversations returns open conversations with no message of
// any kind since cutoff, not already mid-check and not out of nudges.
func (m *MongoDB) ListSilentOpenConversations(ctx context.Context, cutoff time.Time, maxChecks int) ([]entity.Conversation, error) {
	return m.listConversations(ctx, bson.D{
		{Key: "status", Value: entity.StatusOpen},
		{Key: "mid_check", Value: false},
		{Key: "check_count", Value: bson.D{{Key: "$lt", Value: maxChecks}}},
		{Key: "last_customer_at", Value: bson.D{{Key: "$gt", Value: time.Time{}}, {Key: "$lte", Value: cutoff}}},
		{Key: "last_message_at", Value: bson.D{{Key: "$lte", Value: cutoff}}},
	})
}

// BeginInactivityCheck claims a conversation for a nudge. The expected
// counter value in the filter makes concurrent sweeps mutually exclusive.
func (m *MongoDB) BeginInactivityCheck(ctx context.Context, id string, expectCount int) (*entity.Conversation, error) {
	return m.transition(ctx,
		bson.D{
			{Key: "id", Value: id},
			{Key: "status", Value: entity.StatusOpen},
			{Key: "mid_check", Value: false},
			{Key: "check_count", Value: expectCount},
		},
		bson.D{
			{Key: "$set", Value: bson.D{{Key: "mid_check", Value: true}, {Key: "updated_at", Value: time.Now()}}},
			{Key: "$inc", Value: bson.D{{Key: "check_count", Value: 1}}},
		},
	)
}

func (m *MongoDB) ClearInactivityCheck(ctx context.Context, id string) error {
	_, err := m.transition(ctx,
		bson.D{{Key: "id", Value: id}, {Key: "mid_check", Value: true}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "mid_check", Value: false}, {Key: "updated_at", Value: time.Now()}}}},
	)
	return err
}

// ResolveSilent closes a conversation that exhausted its nudges and stayed
// silent past cutoff. No satisfaction survey follows this transition.
func (m *MongoDB) ResolveSilent(ctx context.Context, id string, cutoff time.Time, minChecks int) (*entity.Conversation, error) {
	return m.transition(ctx,
		bson.D{
			{Key: "id", Value: id},
			{Key: "status", Value: entity.StatusOpen},
			{Key: "check_count", Value: bson.D{{Key: "$gte", Value: minChecks}}},
			{Key: "last_customer_at", Value: bson.D{{Key: "$lte", Value: cutoff}}},
		},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: entity.StatusResolved},
			{Key: "assigned_agent_id", Value: ""},
			{Key: "mid_check", Value: false},
			{Key: "updated_at", Value: time.Now()},
		}}},
	)
}
