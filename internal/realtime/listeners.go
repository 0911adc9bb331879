package realtime

import (
	"log/slog"
	"sync"

	"github.com/BranchManager69/degenduel-realtime/internal/protocol"
)

// ListenerFunc receives envelopes matching the listener's filter.
type ListenerFunc func(env protocol.Envelope)

// listenerEntry is one registered consumer.
type listenerEntry struct {
	id     string
	types  map[protocol.MessageType]struct{}
	topics map[protocol.Topic]struct{} // nil means no topic filter
	fn     ListenerFunc
}

// matches applies the dispatch rule: the type must be registered, and the
// topic filter passes when unset on either side. SYSTEM envelopes are
// broadcast and bypass topic filters entirely.
func (e *listenerEntry) matches(env protocol.Envelope) bool {
	if _, ok := e.types[env.Type]; !ok {
		return false
	}
	if env.Type == protocol.TypeSystem {
		return true
	}
	if e.topics == nil || env.Topic == "" {
		return true
	}
	_, ok := e.topics[env.Topic]
	return ok
}

// ListenerRegistry fans decoded envelopes out to many independent consumers
// over one transport. Registration is upsert-by-id: re-registering an id
// replaces the prior entry in place. Consumers hold only the returned
// disposer; disposal is immediate, and once it returns no further dispatch to
// that id occurs.
type ListenerRegistry struct {
	logger *slog.Logger

	mu      sync.Mutex
	order   []string
	entries map[string]*listenerEntry
}

// NewListenerRegistry creates an empty registry.
func NewListenerRegistry(logger *slog.Logger) *ListenerRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &ListenerRegistry{
		logger:  logger,
		entries: make(map[string]*listenerEntry),
	}
}

// Register adds or replaces the listener with the given id and returns its
// disposer. A nil topics slice registers for all topics of the given types.
func (r *ListenerRegistry) Register(id string, types []protocol.MessageType, topics []protocol.Topic, fn ListenerFunc) func() {
	entry := &listenerEntry{
		id:    id,
		types: make(map[protocol.MessageType]struct{}, len(types)),
		fn:    fn,
	}
	for _, t := range types {
		entry.types[t] = struct{}{}
	}
	if topics != nil {
		entry.topics = make(map[protocol.Topic]struct{}, len(topics))
		for _, t := range topics {
			entry.topics[t] = struct{}{}
		}
	}

	r.mu.Lock()
	if _, exists := r.entries[id]; !exists {
		r.order = append(r.order, id)
	}
	r.entries[id] = entry
	r.mu.Unlock()

	return func() { r.remove(id) }
}

// remove deletes exactly one id.
func (r *ListenerRegistry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return
	}
	delete(r.entries, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of active listeners.
func (r *ListenerRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Dispatch invokes matching listeners synchronously in registration order.
// A panicking callback is diagnosed and isolated; the remaining listeners
// still run. Each callback's registration is re-checked at invoke time so a
// disposer returning mid-dispatch stops delivery to that id.
func (r *ListenerRegistry) Dispatch(env protocol.Envelope) {
	r.mu.Lock()
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	r.mu.Unlock()

	for _, id := range ids {
		r.mu.Lock()
		entry, ok := r.entries[id]
		r.mu.Unlock()
		if !ok || !entry.matches(env) {
			continue
		}
		r.invoke(entry, env)
	}
}

func (r *ListenerRegistry) invoke(entry *listenerEntry, env protocol.Envelope) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("listener panicked",
				"listener", entry.id,
				"type", string(env.Type),
				"topic", string(env.Topic),
				"panic", rec,
			)
		}
	}()
	entry.fn(env)
}
