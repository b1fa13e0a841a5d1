package routing

import (
	"Solvextra/entity"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore is an in-memory Repository with the same conditional-write
// semantics as the mongo implementation: guarded transitions return
// (nil, nil) when the expected state no longer matches.
type memStore struct {
	mu       sync.Mutex
	convs    map[string]*entity.Conversation
	messages map[string][]entity.Message
	agents   map[string]*entity.Agent
	tickets  map[string]*entity.Ticket
	ratings  []entity.SatisfactionRating

	failCreateTicket bool
}

func newMemStore() *memStore {
	return &memStore{
		convs:    make(map[string]*entity.Conversation),
		messages: make(map[string][]entity.Message),
		agents:   make(map[string]*entity.Agent),
		tickets:  make(map[string]*entity.Ticket),
	}
}

func cloneConv(c *entity.Conversation) *entity.Conversation {
	cp := *c
	return &cp
}

func (s *memStore) CreateConversation(_ context.Context, conv *entity.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs[conv.ID] = cloneConv(conv)
	return nil
}

func (s *memStore) GetConversation(_ context.Context, id string) (*entity.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		return nil, nil
	}
	return cloneConv(c), nil
}

func (s *memStore) GetConversationByChannelUser(_ context.Context, channel, externalUserID string) (*entity.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.convs {
		if c.Channel == channel && c.ExternalUserID == externalUserID {
			return cloneConv(c), nil
		}
	}
	return nil, nil
}

func (s *memStore) ListConversationsByStatus(_ context.Context, status entity.ConversationStatus) ([]entity.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.Conversation
	for _, c := range s.convs {
		if c.Status == status {
			out = append(out, *cloneConv(c))
		}
	}
	return out, nil
}

// transition applies fn when guard passes, holding the lock for the whole
// check-and-set like the store's FindOneAndUpdate does.
func (s *memStore) transition(id string, guard func(*entity.Conversation) bool, fn func(*entity.Conversation)) (*entity.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok || !guard(c) {
		return nil, nil
	}
	fn(c)
	c.UpdatedAt = time.Now()
	return cloneConv(c), nil
}

func (s *memStore) MarkPendingAcceptance(_ context.Context, id string, at time.Time) (*entity.Conversation, error) {
	return s.transition(id,
		func(c *entity.Conversation) bool { return c.Status == entity.StatusOpen },
		func(c *entity.Conversation) {
			c.Status = entity.StatusPendingAcceptance
			c.EscalatedAt = &at
		})
}

func (s *memStore) AssignFromPending(_ context.Context, id, agentID string) (*entity.Conversation, error) {
	return s.transition(id,
		func(c *entity.Conversation) bool { return c.Status == entity.StatusPendingAcceptance },
		func(c *entity.Conversation) {
			c.Status = entity.StatusAssigned
			c.AssignedAgentID = agentID
		})
}

func (s *memStore) AssignFromOpen(_ context.Context, id, agentID string) (*entity.Conversation, error) {
	return s.transition(id,
		func(c *entity.Conversation) bool { return c.Status == entity.StatusOpen },
		func(c *entity.Conversation) {
			c.Status = entity.StatusAssigned
			c.AssignedAgentID = agentID
		})
}

func (s *memStore) SetAssignedAgent(_ context.Context, id, agentID string) (*entity.Conversation, error) {
	return s.transition(id,
		func(c *entity.Conversation) bool { return true },
		func(c *entity.Conversation) {
			c.Status = entity.StatusAssigned
			c.AssignedAgentID = agentID
		})
}

func (s *memStore) MarkTicketFromPending(_ context.Context, id string) (*entity.Conversation, error) {
	return s.transition(id,
		func(c *entity.Conversation) bool { return c.Status == entity.StatusPendingAcceptance },
		func(c *entity.Conversation) { c.Status = entity.StatusTicket })
}

func (s *memStore) MarkTicketFromOpen(_ context.Context, id string) (*entity.Conversation, error) {
	return s.transition(id,
		func(c *entity.Conversation) bool { return c.Status == entity.StatusOpen },
		func(c *entity.Conversation) { c.Status = entity.StatusTicket })
}

func (s *memStore) MarkTicket(_ context.Context, id string) (*entity.Conversation, error) {
	return s.transition(id,
		func(c *entity.Conversation) bool { return c.Live() },
		func(c *entity.Conversation) {
			c.Status = entity.StatusTicket
			c.AssignedAgentID = ""
		})
}

func (s *memStore) ResolveAssigned(_ context.Context, id string) (*entity.Conversation, error) {
	return s.transition(id,
		func(c *entity.Conversation) bool { return c.Status == entity.StatusAssigned },
		func(c *entity.Conversation) {
			c.Status = entity.StatusResolved
			c.AssignedAgentID = ""
		})
}

func (s *memStore) MarkResolvedFromOpen(_ context.Context, id string) (*entity.Conversation, error) {
	return s.transition(id,
		func(c *entity.Conversation) bool { return c.Status == entity.StatusOpen },
		func(c *entity.Conversation) {
			c.Status = entity.StatusResolved
			c.AssignedAgentID = ""
		})
}

func (s *memStore) MarkResolvedFromTicket(_ context.Context, id string) (*entity.Conversation, error) {
	return s.transition(id,
		func(c *entity.Conversation) bool { return c.Status == entity.StatusTicket },
		func(c *entity.Conversation) {
			c.Status = entity.StatusResolved
			c.AssignedAgentID = ""
		})
}

func (s *memStore) ReopenResolved(_ context.Context, id string) (*entity.Conversation, error) {
	return s.transition(id,
		func(c *entity.Conversation) bool { return c.Status == entity.StatusResolved },
		func(c *entity.Conversation) {
			c.Status = entity.StatusOpen
			c.CheckCount = 0
			c.MidCheck = false
		})
}

func (s *memStore) TouchCustomerMessage(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.convs[id]; ok {
		c.LastMessageAt = at
		c.LastCustomerAt = at
		c.CheckCount = 0
		c.MidCheck = false
	}
	return nil
}

func (s *memStore) TouchOutboundMessage(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.convs[id]; ok {
		c.LastMessageAt = at
	}
	return nil
}

func (s *memStore) SaveMessage(_ context.Context, msg *entity.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], *msg)
	return nil
}

func (s *memStore) GetMessages(_ context.Context, conversationID string, limit, offset int) ([]entity.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.messages[conversationID]
	var out []entity.Message
	for i := len(all) - 1 - offset; i >= 0 && len(out) < limit; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (s *memStore) GetLastMessage(_ context.Context, conversationID string) (*entity.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.messages[conversationID]
	if len(all) == 0 {
		return nil, nil
	}
	last := all[len(all)-1]
	return &last, nil
}

func (s *memStore) GetAgent(_ context.Context, id string) (*entity.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (s *memStore) ListAvailableAgents(_ context.Context) ([]entity.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.Agent
	for _, a := range s.agents {
		if a.IsAvailable() {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *memStore) IncActiveChats(_ context.Context, agentID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[agentID]
	if !ok {
		return nil
	}
	if delta < 0 && a.ActiveChats <= 0 {
		return nil
	}
	a.ActiveChats += delta
	return nil
}

func (s *memStore) CreateTicket(_ context.Context, t *entity.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreateTicket {
		return fmt.Errorf("ticket store unavailable")
	}
	cp := *t
	s.tickets[t.ID] = &cp
	return nil
}

func (s *memStore) GetOpenTicketByConversation(_ context.Context, conversationID string) (*entity.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tickets {
		if t.ConversationID == conversationID && t.Status == entity.TicketStatusOpen {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) ResolveTicket(_ context.Context, id string, at time.Time) (*entity.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok || t.Status != entity.TicketStatusOpen {
		return nil, nil
	}
	t.Status = entity.TicketStatusResolved
	t.ResolvedAt = &at
	cp := *t
	return &cp, nil
}

func (s *memStore) SaveRating(_ context.Context, r *entity.SatisfactionRating) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ratings = append(s.ratings, *r)
	return nil
}

func (s *memStore) ticketCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tickets)
}

// recorder captures broadcast events by name.
type recorder struct {
	mu     sync.Mutex
	events []string
	admin  []string
}

func (r *recorder) record(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, name)
}

func (r *recorder) BroadcastMessage(entity.Message)      { r.record("message") }
func (r *recorder) BroadcastStatus(*entity.Conversation) { r.record("status_update") }
func (r *recorder) BroadcastAssignment(*entity.Conversation, *entity.Agent) {
	r.record("assignment")
}
func (r *recorder) BroadcastEscalation(_ *entity.Conversation, _ string) { r.record("escalation") }
func (r *recorder) BroadcastNewChat(*entity.Conversation)                { r.record("new_chat") }
func (r *recorder) BroadcastChatAccepted(*entity.Conversation, *entity.Agent) {
	r.record("chat_accepted")
}
func (r *recorder) BroadcastCsatRequest(string) { r.record("csat_request") }

func (r *recorder) BroadcastAdminNotification(_, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "admin_notification")
	r.admin = append(r.admin, text)
}

func (r *recorder) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == name {
			n++
		}
	}
	return n
}

func (r *recorder) has(name string) bool { return r.count(name) > 0 }

// stubResponder returns a fixed reply or error. An optional before hook runs
// first, standing in for work that happens during the model round trip.
type stubResponder struct {
	reply  *entity.BotReply
	err    error
	before func()
}

func (s *stubResponder) Generate(context.Context, string, []entity.Message) (*entity.BotReply, error) {
	if s.before != nil {
		s.before()
	}
	return s.reply, s.err
}

// stubDeliverer records delivered texts.
type stubDeliverer struct {
	mu    sync.Mutex
	texts []string
}

func (d *stubDeliverer) Deliver(_ context.Context, _, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.texts = append(d.texts, text)
	return nil
}

func (d *stubDeliverer) delivered() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.texts...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, opts Options) (*Engine, *memStore, *recorder) {
	t.Helper()
	store := newMemStore()
	rec := &recorder{}
	e := New(store, rec, testLogger(), opts)
	return e, store, rec
}

func addAgent(store *memStore, id string, availability entity.AgentAvailability) *entity.Agent {
	a := &entity.Agent{
		ID:           id,
		Username:     id,
		Name:         "Agent " + id,
		Availability: availability,
	}
	store.mu.Lock()
	store.agents[id] = a
	store.mu.Unlock()
	return a
}

func addConversation(store *memStore, status entity.ConversationStatus) *entity.Conversation {
	conv := entity.NewConversation("telegram", "user-1", "Alice")
	conv.Status = status
	store.mu.Lock()
	store.convs[conv.ID] = conv
	store.mu.Unlock()
	return conv
}

func TestOnCustomerMessageRejectsEmpty(t *testing.T) {
	e, _, _ := newTestEngine(t, Options{})

	_, err := e.OnCustomerMessage(context.Background(), "telegram", "u1", "Alice", "   ")
	require.ErrorIs(t, err, ErrInvalidMessage)

	_, err = e.OnCustomerMessage(context.Background(), "", "u1", "Alice", "hi")
	require.ErrorIs(t, err, ErrInvalidMessage)
}

func TestFirstContactCreatesConversation(t *testing.T) {
	e, store, rec := newTestEngine(t, Options{})
	e.SetResponder(&stubResponder{reply: &entity.BotReply{Content: "Hello, how can I help?"}})

	conv, err := e.OnCustomerMessage(context.Background(), "telegram", "u1", "Alice", "hi")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, entity.StatusOpen, conv.Status)
	assert.True(t, rec.has("new_chat"))
	assert.True(t, rec.has("message"))

	// Second message reuses the same conversation.
	again, err := e.OnCustomerMessage(context.Background(), "telegram", "u1", "Alice", "still here")
	require.NoError(t, err)
	assert.Equal(t, conv.ID, again.ID)
	assert.Equal(t, 1, rec.count("new_chat"))

	msgs, err := store.GetMessages(context.Background(), conv.ID, 10, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 4) // two customer messages, two automated replies
}

func TestEscalateOpensAcceptanceWindow(t *testing.T) {
	e, store, rec := newTestEngine(t, Options{AcceptWindow: time.Minute})
	addAgent(store, "a1", entity.AvailabilityAvailable)
	conv := addConversation(store, entity.StatusOpen)

	err := e.Escalate(context.Background(), conv.ID, "customer asked for a human", false)
	require.NoError(t, err)

	got, _ := store.GetConversation(context.Background(), conv.ID)
	assert.Equal(t, entity.StatusPendingAcceptance, got.Status)
	require.NotNil(t, got.EscalatedAt)
	assert.True(t, rec.has("escalation"))
	assert.True(t, rec.has("status_update"))
	assert.Equal(t, 0, store.ticketCount())
}

func TestEscalateIsIdempotentWhilePending(t *testing.T) {
	e, store, rec := newTestEngine(t, Options{AcceptWindow: time.Minute})
	addAgent(store, "a1", entity.AvailabilityAvailable)
	conv := addConversation(store, entity.StatusOpen)

	require.NoError(t, e.Escalate(context.Background(), conv.ID, "first", false))
	require.NoError(t, e.Escalate(context.Background(), conv.ID, "second", false))

	assert.Equal(t, 1, rec.count("escalation"))
}

func TestEscalateResolvedFails(t *testing.T) {
	e, store, _ := newTestEngine(t, Options{})
	conv := addConversation(store, entity.StatusResolved)

	err := e.Escalate(context.Background(), conv.ID, "reason", false)
	require.ErrorIs(t, err, ErrWrongStatus)
}

func TestEscalateNoAgentsCreatesTicket(t *testing.T) {
	e, store, rec := newTestEngine(t, Options{})
	addAgent(store, "a1", entity.AvailabilityBreak)
	conv := addConversation(store, entity.StatusOpen)

	err := e.Escalate(context.Background(), conv.ID, "nobody home", false)
	require.NoError(t, err)

	got, _ := store.GetConversation(context.Background(), conv.ID)
	assert.Equal(t, entity.StatusTicket, got.Status)
	assert.Equal(t, 1, store.ticketCount())
	assert.True(t, rec.has("admin_notification"))
}

func TestEscalateNoAgentsAdminOnlyStaysOpen(t *testing.T) {
	e, store, rec := newTestEngine(t, Options{})
	conv := addConversation(store, entity.StatusOpen)

	err := e.Escalate(context.Background(), conv.ID, "responder down", true)
	require.NoError(t, err)

	got, _ := store.GetConversation(context.Background(), conv.ID)
	assert.Equal(t, entity.StatusOpen, got.Status)
	assert.Equal(t, 0, store.ticketCount())
	assert.True(t, rec.has("admin_notification"))
}

func TestTicketFallbackFailureLeavesConversationOpen(t *testing.T) {
	e, store, _ := newTestEngine(t, Options{})
	conv := addConversation(store, entity.StatusOpen)
	store.failCreateTicket = true

	err := e.Escalate(context.Background(), conv.ID, "nobody home", false)
	require.Error(t, err)

	got, _ := store.GetConversation(context.Background(), conv.ID)
	assert.Equal(t, entity.StatusOpen, got.Status)
}

func TestAcceptFirstWins(t *testing.T) {
	e, store, rec := newTestEngine(t, Options{AcceptWindow: time.Minute})
	addAgent(store, "a1", entity.AvailabilityAvailable)
	addAgent(store, "a2", entity.AvailabilityAvailable)
	conv := addConversation(store, entity.StatusOpen)
	require.NoError(t, e.Escalate(context.Background(), conv.ID, "race", false))

	type result struct {
		agentID string
		err     error
	}
	results := make(chan result, 2)
	var wg sync.WaitGroup
	for _, id := range []string{"a1", "a2"} {
		wg.Add(1)
		go func(agentID string) {
			defer wg.Done()
			_, err := e.Accept(context.Background(), conv.ID, agentID)
			results <- result{agentID, err}
		}(id)
	}
	wg.Wait()
	close(results)

	var winners, losers []result
	for r := range results {
		if r.err == nil {
			winners = append(winners, r)
		} else {
			losers = append(losers, r)
		}
	}
	require.Len(t, winners, 1)
	require.Len(t, losers, 1)
	require.ErrorIs(t, losers[0].err, ErrNotPending)

	got, _ := store.GetConversation(context.Background(), conv.ID)
	assert.Equal(t, entity.StatusAssigned, got.Status)
	assert.Equal(t, winners[0].agentID, got.AssignedAgentID)

	winner, _ := store.GetAgent(context.Background(), winners[0].agentID)
	assert.Equal(t, 1, winner.ActiveChats)
	loser, _ := store.GetAgent(context.Background(), losers[0].agentID)
	assert.Equal(t, 0, loser.ActiveChats)

	assert.Equal(t, 1, rec.count("chat_accepted"))
}

func TestAcceptRequiresAgent(t *testing.T) {
	e, store, _ := newTestEngine(t, Options{})
	conv := addConversation(store, entity.StatusPendingAcceptance)

	_, err := e.Accept(context.Background(), conv.ID, "")
	require.ErrorIs(t, err, ErrNotAgent)

	_, err = e.Accept(context.Background(), conv.ID, "ghost")
	require.ErrorIs(t, err, ErrUnknownAgent)
}

func TestAcceptNotPending(t *testing.T) {
	e, store, _ := newTestEngine(t, Options{})
	addAgent(store, "a1", entity.AvailabilityAvailable)
	conv := addConversation(store, entity.StatusOpen)

	_, err := e.Accept(context.Background(), conv.ID, "a1")
	require.ErrorIs(t, err, ErrNotPending)
}

func TestAcceptAfterWindowExpires(t *testing.T) {
	e, store, _ := newTestEngine(t, Options{AcceptWindow: 50 * time.Millisecond})
	addAgent(store, "a1", entity.AvailabilityAvailable)

	conv := addConversation(store, entity.StatusPendingAcceptance)
	past := time.Now().Add(-time.Second)
	store.mu.Lock()
	store.convs[conv.ID].EscalatedAt = &past
	store.mu.Unlock()

	_, err := e.Accept(context.Background(), conv.ID, "a1")
	require.ErrorIs(t, err, ErrWindowExpired)

	// Lazy expiry converts the stale window to a ticket.
	got, _ := store.GetConversation(context.Background(), conv.ID)
	assert.Equal(t, entity.StatusTicket, got.Status)
	assert.Equal(t, 1, store.ticketCount())

	agent, _ := store.GetAgent(context.Background(), "a1")
	assert.Equal(t, 0, agent.ActiveChats)
}

func TestWindowTimerExpiresToTicket(t *testing.T) {
	e, store, rec := newTestEngine(t, Options{AcceptWindow: 40 * time.Millisecond})
	addAgent(store, "a1", entity.AvailabilityAvailable)
	conv := addConversation(store, entity.StatusOpen)
	require.NoError(t, e.Escalate(context.Background(), conv.ID, "going stale", false))

	require.Eventually(t, func() bool {
		got, _ := store.GetConversation(context.Background(), conv.ID)
		return got.Status == entity.StatusTicket
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, 1, store.ticketCount())
	assert.True(t, rec.has("admin_notification"))
}

func TestRestoreWindowsRearmsPending(t *testing.T) {
	e, store, _ := newTestEngine(t, Options{AcceptWindow: 40 * time.Millisecond})

	conv := addConversation(store, entity.StatusPendingAcceptance)
	past := time.Now().Add(-time.Minute)
	store.mu.Lock()
	store.convs[conv.ID].EscalatedAt = &past
	store.mu.Unlock()

	require.NoError(t, e.RestoreWindows(context.Background()))

	require.Eventually(t, func() bool {
		got, _ := store.GetConversation(context.Background(), conv.ID)
		return got.Status == entity.StatusTicket
	}, time.Second, 10*time.Millisecond)
}

func TestManualTakeoverFromOpen(t *testing.T) {
	e, store, rec := newTestEngine(t, Options{})
	agent := addAgent(store, "a1", entity.AvailabilityAvailable)
	conv := addConversation(store, entity.StatusOpen)
	deliverer := &stubDeliverer{}
	e.RegisterChannel("telegram", deliverer)

	got, err := e.SendAgentMessage(context.Background(), conv.ID, agent, "I will handle this")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusAssigned, got.Status)
	assert.Equal(t, "a1", got.AssignedAgentID)
	assert.True(t, rec.has("assignment"))
	assert.Equal(t, []string{"I will handle this"}, deliverer.delivered())

	stored, _ := store.GetAgent(context.Background(), "a1")
	assert.Equal(t, 1, stored.ActiveChats)
}

func TestSendMessageOnlyAssignedAgent(t *testing.T) {
	e, store, _ := newTestEngine(t, Options{})
	owner := addAgent(store, "a1", entity.AvailabilityAvailable)
	other := addAgent(store, "a2", entity.AvailabilityAvailable)
	conv := addConversation(store, entity.StatusAssigned)
	store.mu.Lock()
	store.convs[conv.ID].AssignedAgentID = owner.ID
	store.mu.Unlock()

	_, err := e.SendAgentMessage(context.Background(), conv.ID, other, "mine now")
	require.ErrorIs(t, err, ErrWrongStatus)

	_, err = e.SendAgentMessage(context.Background(), conv.ID, owner, "hello")
	require.NoError(t, err)
}

func TestAssignAgentTransfersCounters(t *testing.T) {
	e, store, rec := newTestEngine(t, Options{})
	first := addAgent(store, "a1", entity.AvailabilityAvailable)
	first.ActiveChats = 1
	addAgent(store, "a2", entity.AvailabilityBreak)

	conv := addConversation(store, entity.StatusAssigned)
	store.mu.Lock()
	store.convs[conv.ID].AssignedAgentID = "a1"
	store.mu.Unlock()

	got, err := e.AssignAgent(context.Background(), conv.ID, "a2")
	require.NoError(t, err)
	assert.Equal(t, "a2", got.AssignedAgentID)
	assert.True(t, rec.has("assignment"))

	a1, _ := store.GetAgent(context.Background(), "a1")
	a2, _ := store.GetAgent(context.Background(), "a2")
	assert.Equal(t, 0, a1.ActiveChats)
	assert.Equal(t, 1, a2.ActiveChats)
}

func TestResolveSendsSurvey(t *testing.T) {
	e, store, rec := newTestEngine(t, Options{})
	agent := addAgent(store, "a1", entity.AvailabilityAvailable)
	agent.ActiveChats = 1
	conv := addConversation(store, entity.StatusAssigned)
	store.mu.Lock()
	store.convs[conv.ID].AssignedAgentID = "a1"
	store.mu.Unlock()
	deliverer := &stubDeliverer{}
	e.RegisterChannel("telegram", deliverer)

	got, err := e.Resolve(context.Background(), conv.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusResolved, got.Status)
	assert.Empty(t, got.AssignedAgentID)
	assert.True(t, rec.has("csat_request"))

	texts := deliverer.delivered()
	require.Len(t, texts, 1)
	assert.True(t, entity.IsSurveyPrompt(texts[0]))

	stored, _ := store.GetAgent(context.Background(), "a1")
	assert.Equal(t, 0, stored.ActiveChats)
}

func TestResolveRequiresAssigned(t *testing.T) {
	e, store, _ := newTestEngine(t, Options{})
	conv := addConversation(store, entity.StatusOpen)

	_, err := e.Resolve(context.Background(), conv.ID)
	require.ErrorIs(t, err, ErrWrongStatus)
}

func TestRatingReplyAfterSurvey(t *testing.T) {
	e, store, rec := newTestEngine(t, Options{})
	conv := addConversation(store, entity.StatusResolved)
	require.NoError(t, store.SaveMessage(context.Background(),
		entity.NewMessage(conv.ID, entity.RoleAutomated, "Assistant", entity.SurveyPrompt)))

	got, err := e.OnCustomerMessage(context.Background(), "telegram", "user-1", "Alice", "4")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusResolved, got.Status)

	store.mu.Lock()
	ratings := append([]entity.SatisfactionRating(nil), store.ratings...)
	store.mu.Unlock()
	require.Len(t, ratings, 1)
	assert.Equal(t, 4, ratings[0].Rating)
	assert.Equal(t, conv.ID, ratings[0].ConversationID)
	assert.True(t, rec.has("admin_notification"))

	stored, _ := store.GetConversation(context.Background(), conv.ID)
	assert.Equal(t, entity.StatusResolved, stored.Status)
}

func TestRatingLinksOpenTicket(t *testing.T) {
	e, store, _ := newTestEngine(t, Options{})
	conv := addConversation(store, entity.StatusResolved)
	ticket := entity.NewTicket(conv.ID, "t", "d", entity.TicketPriorityNormal, 24, "")
	require.NoError(t, store.CreateTicket(context.Background(), ticket))
	require.NoError(t, store.SaveMessage(context.Background(),
		entity.NewMessage(conv.ID, entity.RoleAutomated, "Assistant", entity.SurveyPrompt)))

	_, err := e.OnCustomerMessage(context.Background(), "telegram", "user-1", "Alice", "5")
	require.NoError(t, err)

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.ratings, 1)
	assert.Equal(t, ticket.ID, store.ratings[0].TicketID)
}

func TestNumericReplyWithoutSurveyReopens(t *testing.T) {
	e, store, _ := newTestEngine(t, Options{})
	conv := addConversation(store, entity.StatusResolved)
	require.NoError(t, store.SaveMessage(context.Background(),
		entity.NewMessage(conv.ID, entity.RoleCustomer, "Alice", "thanks")))

	got, err := e.OnCustomerMessage(context.Background(), "telegram", "user-1", "Alice", "4")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusOpen, got.Status)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Empty(t, store.ratings)
}

func TestReplyAfterResolveReopens(t *testing.T) {
	e, store, rec := newTestEngine(t, Options{})
	e.SetResponder(&stubResponder{reply: &entity.BotReply{Content: "Welcome back"}})
	conv := addConversation(store, entity.StatusResolved)
	require.NoError(t, store.SaveMessage(context.Background(),
		entity.NewMessage(conv.ID, entity.RoleAutomated, "Assistant", entity.SurveyPrompt)))

	got, err := e.OnCustomerMessage(context.Background(), "telegram", "user-1", "Alice", "it broke again")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusOpen, got.Status)
	assert.True(t, rec.has("status_update"))
}

func TestResponderErrorEscalates(t *testing.T) {
	e, store, rec := newTestEngine(t, Options{AcceptWindow: time.Minute})
	e.SetResponder(&stubResponder{err: fmt.Errorf("model timeout")})
	addAgent(store, "a1", entity.AvailabilityAvailable)

	conv, err := e.OnCustomerMessage(context.Background(), "telegram", "u1", "Alice", "help")
	require.NoError(t, err)

	got, _ := store.GetConversation(context.Background(), conv.ID)
	assert.Equal(t, entity.StatusPendingAcceptance, got.Status)
	assert.True(t, rec.has("escalation"))
}

func TestResponderEscalateFlag(t *testing.T) {
	e, store, _ := newTestEngine(t, Options{AcceptWindow: time.Minute})
	e.SetResponder(&stubResponder{reply: &entity.BotReply{
		Content:        "Let me get someone for you.",
		ShouldEscalate: true,
	}})
	addAgent(store, "a1", entity.AvailabilityAvailable)
	deliverer := &stubDeliverer{}
	e.RegisterChannel("telegram", deliverer)

	conv, err := e.OnCustomerMessage(context.Background(), "telegram", "u1", "Alice", "I need a human")
	require.NoError(t, err)

	got, _ := store.GetConversation(context.Background(), conv.ID)
	assert.Equal(t, entity.StatusPendingAcceptance, got.Status)
	// The reply is delivered before the handoff.
	assert.Equal(t, []string{"Let me get someone for you."}, deliverer.delivered())
}

func TestDetectorCatchesHandoffPhrase(t *testing.T) {
	e, store, _ := newTestEngine(t, Options{AcceptWindow: time.Minute})
	e.SetResponder(&stubResponder{reply: &entity.BotReply{
		Content: "I will transfer you to a human agent now.",
	}})
	addAgent(store, "a1", entity.AvailabilityAvailable)

	conv, err := e.OnCustomerMessage(context.Background(), "telegram", "u1", "Alice", "this is not working")
	require.NoError(t, err)

	got, _ := store.GetConversation(context.Background(), conv.ID)
	assert.Equal(t, entity.StatusPendingAcceptance, got.Status)
}

func TestResponderCloseWithSatisfaction(t *testing.T) {
	e, store, rec := newTestEngine(t, Options{})
	e.SetResponder(&stubResponder{reply: &entity.BotReply{
		Content:                     "Glad I could help!",
		ShouldCloseWithSatisfaction: true,
	}})
	deliverer := &stubDeliverer{}
	e.RegisterChannel("telegram", deliverer)

	conv, err := e.OnCustomerMessage(context.Background(), "telegram", "u1", "Alice", "thanks, all good")
	require.NoError(t, err)

	got, _ := store.GetConversation(context.Background(), conv.ID)
	assert.Equal(t, entity.StatusResolved, got.Status)
	assert.True(t, rec.has("csat_request"))

	texts := deliverer.delivered()
	require.Len(t, texts, 2)
	assert.True(t, entity.IsSurveyPrompt(texts[1]))
}

func TestCloseWithSatisfactionLosesToTakeover(t *testing.T) {
	e, store, rec := newTestEngine(t, Options{})
	agent := addAgent(store, "a1", entity.AvailabilityAvailable)

	rsp := &stubResponder{reply: &entity.BotReply{
		Content:                     "Glad I could help!",
		ShouldCloseWithSatisfaction: true,
	}}
	// An agent takes the conversation over while the responder round trip
	// is in flight.
	rsp.before = func() {
		conv, err := store.GetConversationByChannelUser(context.Background(), "telegram", "u1")
		require.NoError(t, err)
		require.NotNil(t, conv)
		_, err = e.SendAgentMessage(context.Background(), conv.ID, agent, "I'll take this one")
		require.NoError(t, err)
	}
	e.SetResponder(rsp)

	conv, err := e.OnCustomerMessage(context.Background(), "telegram", "u1", "Alice", "thanks, all good")
	require.NoError(t, err)

	// The takeover wins: the conversation stays with the agent and the
	// stale close does not fire.
	got, _ := store.GetConversation(context.Background(), conv.ID)
	assert.Equal(t, entity.StatusAssigned, got.Status)
	assert.Equal(t, "a1", got.AssignedAgentID)
	assert.False(t, rec.has("csat_request"))

	stored, _ := store.GetAgent(context.Background(), "a1")
	assert.Equal(t, 1, stored.ActiveChats)
}

func TestNoResponderEscalatesAdminOnly(t *testing.T) {
	e, store, rec := newTestEngine(t, Options{})

	conv, err := e.OnCustomerMessage(context.Background(), "telegram", "u1", "Alice", "anyone there?")
	require.NoError(t, err)

	// No agents online: flagged for admin, not abandoned to a ticket.
	got, _ := store.GetConversation(context.Background(), conv.ID)
	assert.Equal(t, entity.StatusOpen, got.Status)
	assert.Equal(t, 0, store.ticketCount())
	assert.True(t, rec.has("admin_notification"))
}

func TestConvertToTicket(t *testing.T) {
	e, store, _ := newTestEngine(t, Options{TicketTATHours: 24})
	agent := addAgent(store, "a1", entity.AvailabilityAvailable)
	agent.ActiveChats = 1
	conv := addConversation(store, entity.StatusAssigned)
	store.mu.Lock()
	store.convs[conv.ID].AssignedAgentID = "a1"
	store.mu.Unlock()

	ticket, err := e.ConvertToTicket(context.Background(), conv.ID, "Needs billing review", entity.TicketPriorityHigh)
	require.NoError(t, err)
	assert.Equal(t, entity.TicketPriorityHigh, ticket.Priority)
	assert.Equal(t, 24, ticket.TATHours)

	got, _ := store.GetConversation(context.Background(), conv.ID)
	assert.Equal(t, entity.StatusTicket, got.Status)

	stored, _ := store.GetAgent(context.Background(), "a1")
	assert.Equal(t, 0, stored.ActiveChats)
}

func TestConvertResolvedFails(t *testing.T) {
	e, store, _ := newTestEngine(t, Options{})
	conv := addConversation(store, entity.StatusResolved)

	_, err := e.ConvertToTicket(context.Background(), conv.ID, "", "")
	require.ErrorIs(t, err, ErrWrongStatus)
}

func TestResolveTicketClosesConversationWithoutSurvey(t *testing.T) {
	e, store, rec := newTestEngine(t, Options{})
	conv := addConversation(store, entity.StatusTicket)
	ticket := entity.NewTicket(conv.ID, "t", "d", entity.TicketPriorityNormal, 24, "")
	require.NoError(t, store.CreateTicket(context.Background(), ticket))
	deliverer := &stubDeliverer{}
	e.RegisterChannel("telegram", deliverer)

	resolved, err := e.ResolveTicket(context.Background(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.TicketStatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)

	got, _ := store.GetConversation(context.Background(), conv.ID)
	assert.Equal(t, entity.StatusResolved, got.Status)

	// Ticket resolutions do not trigger the satisfaction survey.
	assert.Empty(t, deliverer.delivered())
	assert.False(t, rec.has("csat_request"))
}

func TestResolveTicketUnknown(t *testing.T) {
	e, _, _ := newTestEngine(t, Options{})

	_, err := e.ResolveTicket(context.Background(), "no-such-ticket")
	require.ErrorIs(t, err, ErrTicketNotFound)
}
