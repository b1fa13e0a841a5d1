package watchdog

import (
	"Solvextra/entity"
	"Solvextra/internal/lib/sl"
	"context"
	"log/slog"
	"time"
)

const (
	nudgeText   = "Are you still there? Let us know if you need anything else."
	closingText = "We have not heard back from you, so we are closing this conversation. Feel free to write again any time!"
)

// Repository is the slice of the store the watchdog sweeps against. All
// transitions are conditional writes so a customer reply racing the sweep
// cannot produce duplicate nudges.
type Repository interface {
	ListSilentOpenConversations(ctx context.Context, cutoff time.Time, maxChecks int) ([]entity.Conversation, error)
	BeginInactivityCheck(ctx context.Context, id string, expectCount int) (*entity.Conversation, error)
	ClearInactivityCheck(ctx context.Context, id string) error
	ResolveSilent(ctx context.Context, id string, cutoff time.Time, minChecks int) (*entity.Conversation, error)
	GetConversation(ctx context.Context, id string) (*entity.Conversation, error)
}

// MessageSender delivers the nudge and closing messages to the customer.
type MessageSender interface {
	SendAutomated(ctx context.Context, conv *entity.Conversation, text string) error
}

// Broadcaster announces the silent-close status change.
type Broadcaster interface {
	BroadcastStatus(conv *entity.Conversation)
}

// Options carries the sweep timings; zero values fall back to the
// production defaults.
type Options struct {
	Period    time.Duration
	Silence   time.Duration
	FollowUp  time.Duration
	MaxChecks int
}

func (o *Options) withDefaults() {
	if o.Period <= 0 {
		o.Period = time.Minute
	}
	if o.Silence <= 0 {
		o.Silence = 10 * time.Minute
	}
	if o.FollowUp <= 0 {
		o.FollowUp = 30 * time.Second
	}
	if o.MaxChecks <= 0 {
		o.MaxChecks = 3
	}
}

// Watchdog periodically nudges silent customers on open conversations and
// resolves them after the final unanswered nudge. Silent closes never
// request a satisfaction rating.
type Watchdog struct {
	repo   Repository
	sender MessageSender
	hub    Broadcaster
	opts   Options
	log    *slog.Logger
}

func New(repo Repository, sender MessageSender, hub Broadcaster, log *slog.Logger, opts Options) *Watchdog {
	opts.withDefaults()
	return &Watchdog{
		repo:   repo,
		sender: sender,
		hub:    hub,
		opts:   opts,
		log:    log.With(sl.Module("watchdog")),
	}
}

// Run sweeps on a fixed period until the context is cancelled. Should be
// called in a goroutine.
func (w *Watchdog) Run(ctx context.Context) {
	ticker := time.NewTicker(w.opts.Period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep nudges every open conversation silent past the threshold. The
// mid-check marker claimed by BeginInactivityCheck guarantees at most one
// in-flight nudge per conversation.
func (w *Watchdog) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-w.opts.Silence)
	silent, err := w.repo.ListSilentOpenConversations(ctx, cutoff, w.opts.MaxChecks)
	if err != nil {
		w.log.Error("listing silent conversations", sl.Err(err))
		return
	}

	for i := range silent {
		conv := silent[i]
		claimed, err := w.repo.BeginInactivityCheck(ctx, conv.ID, conv.CheckCount)
		if err != nil {
			w.log.Error("claiming inactivity check", sl.Err(err), slog.String("conversation_id", conv.ID))
			continue
		}
		if claimed == nil {
			// Another sweep or a customer reply got here first.
			continue
		}

		if err := w.sender.SendAutomated(ctx, claimed, nudgeText); err != nil {
			w.log.Error("sending nudge", sl.Err(err), slog.String("conversation_id", claimed.ID))
		}
		w.log.Info("inactivity nudge sent",
			slog.String("conversation_id", claimed.ID),
			slog.Int("check_count", claimed.CheckCount),
		)

		id := claimed.ID
		time.AfterFunc(w.opts.FollowUp, func() {
			w.followUp(context.Background(), id)
		})
	}
}

// followUp inspects a nudged conversation. After the final nudge with
// continued silence it resolves the conversation; otherwise it releases
// the mid-check marker so the next sweep may nudge again.
func (w *Watchdog) followUp(ctx context.Context, conversationID string) {
	conv, err := w.repo.GetConversation(ctx, conversationID)
	if err != nil {
		w.log.Error("loading conversation", sl.Err(err), slog.String("conversation_id", conversationID))
		return
	}
	if conv == nil || conv.Status != entity.StatusOpen {
		return
	}
	if !conv.MidCheck {
		// Customer replied before the follow-up fired; counters already reset.
		return
	}

	if conv.CheckCount >= w.opts.MaxChecks {
		cutoff := time.Now().Add(-w.opts.Silence)
		resolved, err := w.repo.ResolveSilent(ctx, conversationID, cutoff, w.opts.MaxChecks)
		if err != nil {
			w.log.Error("resolving silent conversation", sl.Err(err), slog.String("conversation_id", conversationID))
			return
		}
		if resolved != nil {
			if err := w.sender.SendAutomated(ctx, resolved, closingText); err != nil {
				w.log.Error("sending closing notice", sl.Err(err), slog.String("conversation_id", resolved.ID))
			}
			w.hub.BroadcastStatus(resolved)
			w.log.Info("silent conversation resolved", slog.String("conversation_id", resolved.ID))
			return
		}
	}

	if err := w.repo.ClearInactivityCheck(ctx, conversationID); err != nil {
		w.log.Error("clearing inactivity check", sl.Err(err), slog.String("conversation_id", conversationID))
	}
}
