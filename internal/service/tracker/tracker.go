// Package tracker computes which artifacts are affected by upstream changes
// and notifies registered listeners.
package tracker

import (
	"log/slog"
	"sync"

	"duckstack/internal/graph"
)

// Listener receives the affected closure of one reported change.
type Listener func(affected []string)

// ListenerID identifies a registered listener for Unregister.
type ListenerID uint64

type registration struct {
	id ListenerID
	fn Listener
}

// Tracker holds no change history: reporting the same change twice yields
// the same affected set.
type Tracker struct {
	mu        sync.Mutex
	graph     *graph.Graph
	listeners []registration
	nextID    ListenerID
	logger    *slog.Logger
}

// New creates a tracker over g. A nil logger discards.
func New(g *graph.Graph, logger *slog.Logger) *Tracker {
	if g == nil {
		g = graph.New()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Tracker{graph: g, logger: logger}
}

// Replace swaps the graph after a specification update. Registered
// listeners are kept.
func (t *Tracker) Replace(g *graph.Graph) {
	if g == nil {
		g = graph.New()
	}
	t.mu.Lock()
	t.graph = g
	t.mu.Unlock()
}

// RegisterListener appends fn to the notification list. Listeners run in
// registration order.
func (t *Tracker) RegisterListener(fn Listener) ListenerID {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	t.listeners = append(t.listeners, registration{id: t.nextID, fn: fn})
	return t.nextID
}

// Unregister removes a listener. Unknown ids are ignored.
func (t *Tracker) Unregister(id ListenerID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, r := range t.listeners {
		if r.id == id {
			t.listeners = append(t.listeners[:i:i], t.listeners[i+1:]...)
			return
		}
	}
}

// ReportChange computes the affected closure of changed and invokes every
// listener once with it, synchronously. An empty change set affects nothing
// and notifies no one.
func (t *Tracker) ReportChange(changed ...string) []string {
	if len(changed) == 0 {
		return nil
	}

	t.mu.Lock()
	affected := t.graph.AffectedBy(changed...)
	listeners := append([]registration(nil), t.listeners...)
	t.mu.Unlock()

	t.logger.Info("change reported", "changed", changed, "affected", affected, "listeners", len(listeners))
	for _, r := range listeners {
		r.fn(append([]string(nil), affected...))
	}
	return affected
}
