package realtime

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/BranchManager69/degenduel-realtime/internal/auth"
	"github.com/BranchManager69/degenduel-realtime/internal/protocol"
)

// SubscriptionRegistry tracks what should be subscribed, independent of
// connection churn. Server-side subscriptions do not survive a reconnect;
// on every open or authentication the desired set is re-asserted from here.
//
// Dedup here is advisory; the server remains the source of truth for what
// is actually registered.
type SubscriptionRegistry struct {
	logger *slog.Logger

	mu      sync.Mutex
	desired map[protocol.Topic]struct{}
}

// NewSubscriptionRegistry creates a registry seeded with the public topic
// set, which every connection asserts regardless of auth state.
func NewSubscriptionRegistry(logger *slog.Logger) *SubscriptionRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &SubscriptionRegistry{
		logger:  logger,
		desired: make(map[protocol.Topic]struct{}),
	}
	for _, t := range protocol.PublicTopics() {
		r.desired[t] = struct{}{}
	}
	return r
}

// Add marks topics as desired and returns only the ones that were not
// already present. Duplicate adds are no-ops.
func (r *SubscriptionRegistry) Add(topics ...protocol.Topic) []protocol.Topic {
	r.mu.Lock()
	defer r.mu.Unlock()

	var added []protocol.Topic
	for _, t := range topics {
		if _, ok := r.desired[t]; ok {
			continue
		}
		r.desired[t] = struct{}{}
		added = append(added, t)
	}
	return added
}

// Remove drops topics from the desired set and returns the ones that were
// actually present.
func (r *SubscriptionRegistry) Remove(topics ...protocol.Topic) []protocol.Topic {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed []protocol.Topic
	for _, t := range topics {
		if _, ok := r.desired[t]; !ok {
			continue
		}
		delete(r.desired, t)
		removed = append(removed, t)
	}
	return removed
}

// Len returns the size of the desired set.
func (r *SubscriptionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.desired)
}

// Public returns the desired topics that flow without authentication.
func (r *SubscriptionRegistry) Public() []protocol.Topic {
	return r.filter(func(t protocol.Topic) bool {
		return protocol.RequiredCapability(t) == protocol.CapPublic
	})
}

// Restricted returns the desired topics the given identity may subscribe to
// beyond the public set. Admin-only topics are included only for admins; the
// gating map in protocol.TopicCapabilities is the single auditable place
// deciding which capability each topic needs.
func (r *SubscriptionRegistry) Restricted(identity auth.Identity) []protocol.Topic {
	return r.filter(func(t protocol.Topic) bool {
		switch protocol.RequiredCapability(t) {
		case protocol.CapAuthenticated:
			return identity.LoggedIn()
		case protocol.CapAdmin:
			return identity.LoggedIn() && identity.IsAdmin()
		}
		return false
	})
}

func (r *SubscriptionRegistry) filter(keep func(protocol.Topic) bool) []protocol.Topic {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []protocol.Topic
	for t := range r.desired {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
