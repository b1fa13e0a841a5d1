package logger

import (
	"context"
	"fmt"
	"log/slog"
)

// MessageSender delivers log records to an admin chat.
type MessageSender interface {
	SendMessage(msg string)
}

// telegramHandler fans records at or above min out to an admin chat in
// addition to the wrapped handler.
type telegramHandler struct {
	next   slog.Handler
	sender MessageSender
	min    slog.Level
}

// SetupTelegramHandler forwards records at or above min to the sender.
func SetupTelegramHandler(log *slog.Logger, sender MessageSender, min slog.Level) *slog.Logger {
	return slog.New(&telegramHandler{
		next:   log.Handler(),
		sender: sender,
		min:    min,
	})
}

func (h *telegramHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *telegramHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= h.min {
		text := fmt.Sprintf("[%s] %s", r.Level, r.Message)
		r.Attrs(func(a slog.Attr) bool {
			text += fmt.Sprintf("\n%s: %s", a.Key, a.Value)
			return true
		})
		go h.sender.SendMessage(text)
	}
	return h.next.Handle(ctx, r)
}

func (h *telegramHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &telegramHandler{next: h.next.WithAttrs(attrs), sender: h.sender, min: h.min}
}

func (h *telegramHandler) WithGroup(name string) slog.Handler {
	return &telegramHandler{next: h.next.WithGroup(name), sender: h.sender, min: h.min}
}
