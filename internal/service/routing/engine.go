package routing

import (
	"Solvextra/entity"
	"Solvextra/internal/lib/sl"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Repository is the durable store contract the engine routes against.
// Conditional transitions return (nil, nil) when the guarded state no
// longer matches, which is how concurrent writers lose races safely.
type Repository interface {
	CreateConversation(ctx context.Context, conv *entity.Conversation) error
	GetConversation(ctx context.Context, id string) (*entity.Conversation, error)
	GetConversationByChannelUser(ctx context.Context, channel, externalUserID string) (*entity.Conversation, error)
	ListConversationsByStatus(ctx context.Context, status entity.ConversationStatus) ([]entity.Conversation, error)
	MarkPendingAcceptance(ctx context.Context, id string, at time.Time) (*entity.Conversation, error)
	AssignFromPending(ctx context.Context, id, agentID string) (*entity.Conversation, error)
	AssignFromOpen(ctx context.Context, id, agentID string) (*entity.Conversation, error)
	SetAssignedAgent(ctx context.Context, id, agentID string) (*entity.Conversation, error)
	MarkTicketFromPending(ctx context.Context, id string) (*entity.Conversation, error)
	MarkTicketFromOpen(ctx context.Context, id string) (*entity.Conversation, error)
	MarkTicket(ctx context.Context, id string) (*entity.Conversation, error)
	ResolveAssigned(ctx context.Context, id string) (*entity.Conversation, error)
	MarkResolvedFromOpen(ctx context.Context, id string) (*entity.Conversation, error)
	MarkResolvedFromTicket(ctx context.Context, id string) (*entity.Conversation, error)
	ReopenResolved(ctx context.Context, id string) (*entity.Conversation, error)
	TouchCustomerMessage(ctx context.Context, id string, at time.Time) error
	TouchOutboundMessage(ctx context.Context, id string, at time.Time) error

	SaveMessage(ctx context.Context, msg *entity.Message) error
	GetMessages(ctx context.Context, conversationID string, limit, offset int) ([]entity.Message, error)
	GetLastMessage(ctx context.Context, conversationID string) (*entity.Message, error)

	GetAgent(ctx context.Context, id string) (*entity.Agent, error)
	ListAvailableAgents(ctx context.Context) ([]entity.Agent, error)
	IncActiveChats(ctx context.Context, agentID string, delta int) error

	CreateTicket(ctx context.Context, t *entity.Ticket) error
	GetOpenTicketByConversation(ctx context.Context, conversationID string) (*entity.Ticket, error)
	ResolveTicket(ctx context.Context, id string, at time.Time) (*entity.Ticket, error)

	SaveRating(ctx context.Context, r *entity.SatisfactionRating) error
}

// Broadcaster pushes domain events to every connected operator console.
type Broadcaster interface {
	BroadcastMessage(msg entity.Message)
	BroadcastStatus(conv *entity.Conversation)
	BroadcastAssignment(conv *entity.Conversation, agent *entity.Agent)
	BroadcastEscalation(conv *entity.Conversation, reason string)
	BroadcastNewChat(conv *entity.Conversation)
	BroadcastChatAccepted(conv *entity.Conversation, agent *entity.Agent)
	BroadcastAdminNotification(conversationID, text string)
	BroadcastCsatRequest(conversationID string)
}

// Responder is the automated-responder collaborator.
type Responder interface {
	Generate(ctx context.Context, text string, history []entity.Message) (*entity.BotReply, error)
}

// Deliverer pushes outbound text to the customer on one channel. Delivery
// failures are logged and tolerated, never retried.
type Deliverer interface {
	Deliver(ctx context.Context, externalUserID, text string) error
}

// Options carries the engine timings; zero values fall back to defaults.
type Options struct {
	AcceptWindow   time.Duration
	TicketTATHours int
	HistoryLimit   int
}

func (o *Options) withDefaults() {
	if o.AcceptWindow <= 0 {
		o.AcceptWindow = 30 * time.Second
	}
	if o.TicketTATHours <= 0 {
		o.TicketTATHours = entity.DefaultTicketTATHours
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = 20
	}
}

// Engine owns the conversation state machine: escalation, the acceptance
// window, manual assignment, resolution and the ticket fallback.
type Engine struct {
	repo      Repository
	hub       Broadcaster
	responder Responder
	detector  EscalationDetector
	timers    *windowTimers
	opts      Options

	chmu     sync.RWMutex
	channels map[string]Deliverer

	log *slog.Logger
}

func New(repo Repository, hub Broadcaster, log *slog.Logger, opts Options) *Engine {
	opts.withDefaults()
	return &Engine{
		repo:     repo,
		hub:      hub,
		detector: NewRegexDetector(),
		timers:   newWindowTimers(),
		opts:     opts,
		channels: make(map[string]Deliverer),
		log:      log.With(sl.Module("routing")),
	}
}

// SetResponder enables the automated responder. Without one, every inbound
// customer message on an open conversation escalates for admin attention.
func (e *Engine) SetResponder(r Responder) {
	e.responder = r
}

// SetDetector replaces the escalation-intent policy.
func (e *Engine) SetDetector(d EscalationDetector) {
	e.detector = d
}

// RegisterChannel binds an outbound deliverer to a channel name.
func (e *Engine) RegisterChannel(channel string, d Deliverer) {
	e.chmu.Lock()
	defer e.chmu.Unlock()
	e.channels[channel] = d
}

// OnCustomerMessage is the canonical inbound entry point for every channel
// adapter. It creates the conversation on first contact, persists and
// broadcasts the message, and dispatches on the current status.
func (e *Engine) OnCustomerMessage(ctx context.Context, channel, externalUserID, name, text string) (*entity.Conversation, error) {
	if channel == "" || externalUserID == "" || strings.TrimSpace(text) == "" {
		return nil, ErrInvalidMessage
	}

	conv, err := e.repo.GetConversationByChannelUser(ctx, channel, externalUserID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}

	isNew := false
	if conv == nil {
		conv = entity.NewConversation(channel, externalUserID, name)
		if err := e.repo.CreateConversation(ctx, conv); err != nil {
			return nil, fmt.Errorf("creating conversation: %w", err)
		}
		isNew = true
	}

	// A bare 1-5 reply right after the survey prompt is a rating, not a
	// reopen. Checked before the new message is persisted so "the
	// preceding message" is still the survey.
	if conv.Status == entity.StatusResolved {
		if rating, ok := entity.ParseRating(text); ok {
			last, err := e.repo.GetLastMessage(ctx, conv.ID)
			if err != nil {
				return nil, fmt.Errorf("loading last message: %w", err)
			}
			if last != nil && last.Role != entity.RoleCustomer && entity.IsSurveyPrompt(last.Text) {
				return conv, e.consumeRating(ctx, conv, rating, name, text)
			}
		}
		reopened, err := e.repo.ReopenResolved(ctx, conv.ID)
		if err != nil {
			return nil, fmt.Errorf("reopening conversation: %w", err)
		}
		if reopened != nil {
			conv = reopened
			e.hub.BroadcastStatus(conv)
			e.log.Info("conversation reopened",
				slog.String("conversation_id", conv.ID),
				slog.String("channel", conv.Channel),
			)
		}
	}

	msg := entity.NewMessage(conv.ID, entity.RoleCustomer, name, text)
	if err := e.repo.SaveMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("saving message: %w", err)
	}
	if err := e.repo.TouchCustomerMessage(ctx, conv.ID, msg.CreatedAt); err != nil {
		e.log.Error("touch customer message", sl.Err(err), slog.String("conversation_id", conv.ID))
	}
	e.hub.BroadcastMessage(*msg)
	if isNew {
		e.hub.BroadcastNewChat(conv)
	}

	if conv.Status == entity.StatusOpen {
		return conv, e.respond(ctx, conv, text)
	}
	return conv, nil
}

// respond runs one automated-responder round trip for an open conversation.
// A responder failure is treated as the customer needing a human.
func (e *Engine) respond(ctx context.Context, conv *entity.Conversation, text string) error {
	if e.responder == nil {
		return e.Escalate(ctx, conv.ID, "automated responder unavailable", true)
	}

	history, err := e.repo.GetMessages(ctx, conv.ID, e.opts.HistoryLimit, 0)
	if err != nil {
		e.log.Error("loading history", sl.Err(err), slog.String("conversation_id", conv.ID))
	}

	reply, err := e.responder.Generate(ctx, text, history)
	if err != nil {
		e.log.Error("responder failed", sl.Err(err), slog.String("conversation_id", conv.ID))
		return e.Escalate(ctx, conv.ID, "automated responder error", false)
	}

	if reply.Content != "" {
		e.sendOutbound(ctx, conv, entity.RoleAutomated, "Assistant", reply.Content)
	}

	if reply.ShouldEscalate || e.detector.Detect(reply.Content) {
		return e.Escalate(ctx, conv.ID, "customer needs a human", false)
	}

	if reply.ShouldCloseWithSatisfaction {
		return e.closeWithSurvey(ctx, conv.ID)
	}
	return nil
}

// Escalate transfers ownership away from the automated responder. With
// available agents it opens the acceptance window; otherwise it either
// flags the conversation for admin attention or falls back to a ticket.
// Repeat triggers on already-escalated conversations are no-ops.
func (e *Engine) Escalate(ctx context.Context, conversationID, reason string, adminOnlyIfNoAgent bool) error {
	conv, err := e.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("loading conversation: %w", err)
	}
	if conv == nil {
		return ErrConversationNotFound
	}

	switch conv.Status {
	case entity.StatusPendingAcceptance, entity.StatusAssigned:
		e.log.Debug("escalation ignored, already escalated",
			slog.String("conversation_id", conversationID),
			slog.String("status", string(conv.Status)),
		)
		return nil
	case entity.StatusTicket, entity.StatusResolved:
		return ErrWrongStatus
	}

	agents, err := e.repo.ListAvailableAgents(ctx)
	if err != nil {
		return fmt.Errorf("listing agents: %w", err)
	}

	if len(agents) > 0 {
		pending, err := e.repo.MarkPendingAcceptance(ctx, conversationID, time.Now())
		if err != nil {
			return fmt.Errorf("opening acceptance window: %w", err)
		}
		if pending == nil {
			// Lost a race with another transition; the winner broadcasts.
			return nil
		}
		e.scheduleExpiry(pending)
		e.hub.BroadcastEscalation(pending, reason)
		e.hub.BroadcastStatus(pending)
		e.log.Info("acceptance window opened",
			slog.String("conversation_id", pending.ID),
			slog.String("reason", reason),
			slog.Int("available_agents", len(agents)),
		)
		return nil
	}

	if adminOnlyIfNoAgent {
		// Not abandoned: stays open, flagged for direct admin reply.
		e.hub.BroadcastAdminNotification(conv.ID, "no agents available: "+reason)
		e.log.Info("admin attention requested", slog.String("conversation_id", conv.ID))
		return nil
	}

	return e.ticketFallback(ctx, conv, reason)
}

// ticketFallback creates the ticket before flipping status, so a failed
// ticket write leaves the conversation open and the error surfaced instead
// of an ambiguous half-state.
func (e *Engine) ticketFallback(ctx context.Context, conv *entity.Conversation, reason string) error {
	t := entity.NewTicket(conv.ID,
		"Support request from "+displayName(conv),
		reason,
		entity.TicketPriorityNormal,
		e.opts.TicketTATHours,
		conv.CustomerContact,
	)
	if err := e.repo.CreateTicket(ctx, t); err != nil {
		return fmt.Errorf("creating fallback ticket: %w", err)
	}

	moved, err := e.repo.MarkTicketFromOpen(ctx, conv.ID)
	if err != nil {
		return fmt.Errorf("converting to ticket: %w", err)
	}
	if moved == nil {
		return nil
	}
	e.hub.BroadcastStatus(moved)
	e.hub.BroadcastAdminNotification(moved.ID, "ticket created: "+t.Title)
	e.log.Info("fallback ticket created",
		slog.String("conversation_id", conv.ID),
		slog.String("ticket_id", t.ID),
	)
	return nil
}

// Accept claims a pending conversation for an agent; the first caller
// inside the window wins by a conditional store write.
func (e *Engine) Accept(ctx context.Context, conversationID, agentID string) (*entity.Conversation, error) {
	if agentID == "" {
		return nil, ErrNotAgent
	}
	agent, err := e.repo.GetAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("loading agent: %w", err)
	}
	if agent == nil {
		return nil, ErrUnknownAgent
	}

	conv, err := e.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	if conv.Status != entity.StatusPendingAcceptance {
		return nil, ErrNotPending
	}
	if conv.EscalatedAt == nil || time.Since(*conv.EscalatedAt) > e.opts.AcceptWindow {
		// Expiry is derived from the stored timestamp, not the timer, so
		// a restart cannot leave a stale window acceptable.
		e.expirePending(ctx, conversationID)
		return nil, ErrWindowExpired
	}

	won, err := e.repo.AssignFromPending(ctx, conversationID, agentID)
	if err != nil {
		return nil, fmt.Errorf("claiming conversation: %w", err)
	}
	if won == nil {
		return nil, ErrNotPending
	}

	e.timers.cancel(conversationID)
	if err := e.repo.IncActiveChats(ctx, agentID, 1); err != nil {
		e.log.Error("incrementing active chats", sl.Err(err), slog.String("agent_id", agentID))
	}
	e.hub.BroadcastChatAccepted(won, agent)
	e.hub.BroadcastAssignment(won, agent)
	e.hub.BroadcastStatus(won)
	e.log.Info("conversation accepted",
		slog.String("conversation_id", won.ID),
		slog.String("agent_id", agentID),
	)
	return won, nil
}

// scheduleExpiry arms the server-owned window timer for a pending conversation.
func (e *Engine) scheduleExpiry(conv *entity.Conversation) {
	remaining := e.opts.AcceptWindow
	if conv.EscalatedAt != nil {
		remaining = e.opts.AcceptWindow - time.Since(*conv.EscalatedAt)
	}
	if remaining < 0 {
		remaining = 0
	}
	id := conv.ID
	e.timers.schedule(id, remaining, func() {
		e.expirePending(context.Background(), id)
	})
}

// expirePending converts an expired acceptance window to a ticket. The
// conditional transition makes it race-safe against a concurrent accept.
func (e *Engine) expirePending(ctx context.Context, conversationID string) {
	moved, err := e.repo.MarkTicketFromPending(ctx, conversationID)
	if err != nil {
		e.log.Error("expiring acceptance window", sl.Err(err), slog.String("conversation_id", conversationID))
		return
	}
	if moved == nil {
		// Accepted first, or already expired elsewhere.
		return
	}
	e.timers.cancel(conversationID)

	t := entity.NewTicket(moved.ID,
		"Unaccepted escalation from "+displayName(moved),
		"acceptance window expired with no agent",
		entity.TicketPriorityNormal,
		e.opts.TicketTATHours,
		moved.CustomerContact,
	)
	if err := e.repo.CreateTicket(ctx, t); err != nil {
		e.log.Error("creating expiry ticket", sl.Err(err), slog.String("conversation_id", moved.ID))
		e.hub.BroadcastAdminNotification(moved.ID, "acceptance window expired, ticket creation failed")
		return
	}
	e.hub.BroadcastStatus(moved)
	e.hub.BroadcastAdminNotification(moved.ID, "acceptance window expired, ticket created")
	e.log.Info("acceptance window expired",
		slog.String("conversation_id", moved.ID),
		slog.String("ticket_id", t.ID),
	)
}

// RestoreWindows re-arms timers for conversations left pending across a
// restart; windows already past their deadline convert immediately.
func (e *Engine) RestoreWindows(ctx context.Context) error {
	pending, err := e.repo.ListConversationsByStatus(ctx, entity.StatusPendingAcceptance)
	if err != nil {
		return fmt.Errorf("listing pending conversations: %w", err)
	}
	for i := range pending {
		e.scheduleExpiry(&pending[i])
	}
	if len(pending) > 0 {
		e.log.Info("restored acceptance windows", slog.Int("count", len(pending)))
	}
	return nil
}

// AssignAgent is the admin override: assign any agent regardless of
// availability, with transfer semantics for the counters.
func (e *Engine) AssignAgent(ctx context.Context, conversationID, agentID string) (*entity.Conversation, error) {
	agent, err := e.repo.GetAgent(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("loading agent: %w", err)
	}
	if agent == nil {
		return nil, ErrUnknownAgent
	}

	conv, err := e.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	if conv.Status == entity.StatusResolved {
		return nil, ErrWrongStatus
	}

	previous := conv.AssignedAgentID
	assigned, err := e.repo.SetAssignedAgent(ctx, conversationID, agentID)
	if err != nil {
		return nil, fmt.Errorf("assigning agent: %w", err)
	}
	e.timers.cancel(conversationID)

	if previous != "" && previous != agentID {
		if err := e.repo.IncActiveChats(ctx, previous, -1); err != nil {
			e.log.Error("decrementing previous agent", sl.Err(err), slog.String("agent_id", previous))
		}
	}
	if previous != agentID {
		if err := e.repo.IncActiveChats(ctx, agentID, 1); err != nil {
			e.log.Error("incrementing active chats", sl.Err(err), slog.String("agent_id", agentID))
		}
	}

	e.hub.BroadcastAssignment(assigned, agent)
	e.hub.BroadcastStatus(assigned)
	e.log.Info("agent assigned",
		slog.String("conversation_id", conversationID),
		slog.String("agent_id", agentID),
		slog.String("previous_agent_id", previous),
	)
	return assigned, nil
}

// SendAgentMessage delivers a human reply. Sending into an open
// conversation is a manual takeover that claims it for the sender.
func (e *Engine) SendAgentMessage(ctx context.Context, conversationID string, agent *entity.Agent, text string) (*entity.Conversation, error) {
	if agent == nil || agent.ID == "" {
		return nil, ErrNotAgent
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrInvalidMessage
	}

	conv, err := e.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}

	switch conv.Status {
	case entity.StatusOpen:
		taken, err := e.repo.AssignFromOpen(ctx, conversationID, agent.ID)
		if err != nil {
			return nil, fmt.Errorf("manual takeover: %w", err)
		}
		if taken == nil {
			return nil, ErrWrongStatus
		}
		conv = taken
		e.timers.cancel(conversationID)
		if err := e.repo.IncActiveChats(ctx, agent.ID, 1); err != nil {
			e.log.Error("incrementing active chats", sl.Err(err), slog.String("agent_id", agent.ID))
		}
		e.hub.BroadcastAssignment(conv, agent)
		e.hub.BroadcastStatus(conv)
		e.log.Info("manual takeover",
			slog.String("conversation_id", conversationID),
			slog.String("agent_id", agent.ID),
		)
	case entity.StatusAssigned:
		if conv.AssignedAgentID != agent.ID {
			return nil, ErrWrongStatus
		}
	default:
		return nil, ErrWrongStatus
	}

	e.sendOutbound(ctx, conv, entity.RoleAgent, agent.Name, text)
	return conv, nil
}

// Resolve closes an assigned conversation and requests a satisfaction
// rating from the customer.
func (e *Engine) Resolve(ctx context.Context, conversationID string) (*entity.Conversation, error) {
	conv, err := e.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}

	agentID := conv.AssignedAgentID
	resolved, err := e.repo.ResolveAssigned(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("resolving conversation: %w", err)
	}
	if resolved == nil {
		return nil, ErrWrongStatus
	}

	if agentID != "" {
		if err := e.repo.IncActiveChats(ctx, agentID, -1); err != nil {
			e.log.Error("decrementing active chats", sl.Err(err), slog.String("agent_id", agentID))
		}
	}

	e.sendOutbound(ctx, resolved, entity.RoleAutomated, "Assistant", entity.SurveyPrompt)
	e.hub.BroadcastCsatRequest(resolved.ID)
	e.hub.BroadcastStatus(resolved)
	e.log.Info("conversation resolved",
		slog.String("conversation_id", resolved.ID),
		slog.String("agent_id", agentID),
	)
	return resolved, nil
}

// closeWithSurvey handles the responder's "customer is satisfied" intent on
// an open conversation. The transition is guarded on open: a manual takeover
// landing during the responder round trip wins, and the new owner decides
// how the conversation ends.
func (e *Engine) closeWithSurvey(ctx context.Context, conversationID string) error {
	resolved, err := e.repo.MarkResolvedFromOpen(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("closing conversation: %w", err)
	}
	if resolved == nil {
		e.log.Debug("close with satisfaction skipped, conversation no longer open",
			slog.String("conversation_id", conversationID),
		)
		return nil
	}
	e.sendOutbound(ctx, resolved, entity.RoleAutomated, "Assistant", entity.SurveyPrompt)
	e.hub.BroadcastCsatRequest(resolved.ID)
	e.hub.BroadcastStatus(resolved)
	e.log.Info("conversation closed with satisfaction", slog.String("conversation_id", resolved.ID))
	return nil
}

// ConvertToTicket is the manual conversion of a live conversation.
func (e *Engine) ConvertToTicket(ctx context.Context, conversationID, title string, priority entity.TicketPriority) (*entity.Ticket, error) {
	conv, err := e.repo.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}
	if !conv.Live() {
		return nil, ErrWrongStatus
	}

	if title == "" {
		title = "Support request from " + displayName(conv)
	}
	t := entity.NewTicket(conv.ID, title, "manual conversion", priority,
		e.opts.TicketTATHours, conv.CustomerContact)
	if err := e.repo.CreateTicket(ctx, t); err != nil {
		return nil, fmt.Errorf("creating ticket: %w", err)
	}

	previous := conv.AssignedAgentID
	moved, err := e.repo.MarkTicket(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("converting to ticket: %w", err)
	}
	if moved == nil {
		return nil, ErrWrongStatus
	}
	e.timers.cancel(conversationID)
	if previous != "" {
		if err := e.repo.IncActiveChats(ctx, previous, -1); err != nil {
			e.log.Error("decrementing active chats", sl.Err(err), slog.String("agent_id", previous))
		}
	}
	e.hub.BroadcastStatus(moved)
	e.hub.BroadcastAdminNotification(moved.ID, "ticket created: "+t.Title)
	return t, nil
}

// ResolveTicket closes a ticket and its linked conversation. No survey is
// sent for the asynchronous path.
func (e *Engine) ResolveTicket(ctx context.Context, ticketID string) (*entity.Ticket, error) {
	t, err := e.repo.ResolveTicket(ctx, ticketID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("resolving ticket: %w", err)
	}
	if t == nil {
		return nil, ErrTicketNotFound
	}

	resolved, err := e.repo.MarkResolvedFromTicket(ctx, t.ConversationID)
	if err != nil {
		e.log.Error("resolving ticket conversation", sl.Err(err), slog.String("conversation_id", t.ConversationID))
	} else if resolved != nil {
		e.hub.BroadcastStatus(resolved)
	}
	e.log.Info("ticket resolved", slog.String("ticket_id", t.ID))
	return t, nil
}

// SendAutomated persists and delivers a system message (watchdog nudges,
// closing notices).
func (e *Engine) SendAutomated(ctx context.Context, conv *entity.Conversation, text string) error {
	e.sendOutbound(ctx, conv, entity.RoleAutomated, "Assistant", text)
	return nil
}

// consumeRating records a satisfaction reply without reopening the
// conversation.
func (e *Engine) consumeRating(ctx context.Context, conv *entity.Conversation, rating int, name, text string) error {
	msg := entity.NewMessage(conv.ID, entity.RoleCustomer, name, text)
	if err := e.repo.SaveMessage(ctx, msg); err != nil {
		return fmt.Errorf("saving rating message: %w", err)
	}
	e.hub.BroadcastMessage(*msg)

	ticketID := ""
	if t, err := e.repo.GetOpenTicketByConversation(ctx, conv.ID); err == nil && t != nil {
		ticketID = t.ID
	}
	r := entity.NewSatisfactionRating(conv.ID, ticketID, rating, "")
	if err := e.repo.SaveRating(ctx, r); err != nil {
		return fmt.Errorf("saving rating: %w", err)
	}

	e.sendOutbound(ctx, conv, entity.RoleAutomated, "Assistant", "Thank you for your feedback!")
	e.hub.BroadcastAdminNotification(conv.ID, fmt.Sprintf("satisfaction rating received: %d", rating))
	e.log.Info("satisfaction rating recorded",
		slog.String("conversation_id", conv.ID),
		slog.Int("rating", rating),
	)
	return nil
}

// sendOutbound persists an outbound message, broadcasts it and pushes it to
// the customer's channel. Channel failures are logged, non-fatal.
func (e *Engine) sendOutbound(ctx context.Context, conv *entity.Conversation, role entity.SenderRole, senderName, text string) {
	msg := entity.NewMessage(conv.ID, role, senderName, text)
	if err := e.repo.SaveMessage(ctx, msg); err != nil {
		e.log.Error("saving outbound message", sl.Err(err), slog.String("conversation_id", conv.ID))
		return
	}
	if err := e.repo.TouchOutboundMessage(ctx, conv.ID, msg.CreatedAt); err != nil {
		e.log.Error("touch outbound message", sl.Err(err), slog.String("conversation_id", conv.ID))
	}
	e.hub.BroadcastMessage(*msg)

	e.chmu.RLock()
	deliverer := e.channels[conv.Channel]
	e.chmu.RUnlock()
	if deliverer == nil {
		e.log.Warn("no deliverer for channel", slog.String("channel", conv.Channel))
		return
	}
	if err := deliverer.Deliver(ctx, conv.ExternalUserID, text); err != nil {
		e.log.Error("channel delivery failed",
			sl.Err(err),
			slog.String("channel", conv.Channel),
			slog.String("conversation_id", conv.ID),
		)
	}
}

func displayName(conv *entity.Conversation) string {
	if conv.CustomerName != "" {
		return conv.CustomerName
	}
	return conv.ExternalUserID
}
