package routing

import (
	"sync"
	"time"
)

// windowTimers owns the server-side acceptance-window timers, one per
// pending conversation, cancellable when an agent accepts early. Expiry is
// additionally re-derived from the stored escalation timestamp on every
// accept, so a lost timer cannot leave a window open forever.
type windowTimers struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newWindowTimers() *windowTimers {
	return &windowTimers{timers: make(map[string]*time.Timer)}
}

func (w *windowTimers) schedule(conversationID string, d time.Duration, fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[conversationID]; ok {
		t.Stop()
	}
	w.timers[conversationID] = time.AfterFunc(d, func() {
		w.cancel(conversationID)
		fn()
	})
}

func (w *windowTimers) cancel(conversationID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.timers[conversationID]; ok {
		t.Stop()
		delete(w.timers, conversationID)
	}
}
