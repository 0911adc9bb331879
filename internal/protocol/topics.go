package protocol

// Topic is a named logical channel a consumer subscribes to.
type Topic string

const (
	TopicMarketData   Topic = "market-data"
	TopicSystem       Topic = "system"
	TopicContest      Topic = "contest"
	TopicPortfolio    Topic = "portfolio"
	TopicWallet       Topic = "wallet"
	TopicNotification Topic = "notification"
	TopicUser         Topic = "user"
	TopicAdmin        Topic = "admin"
)

// Capability gates access to a topic group.
type Capability int

const (
	// CapPublic topics flow on anonymous connections.
	CapPublic Capability = iota
	// CapAuthenticated topics require a logged-in session.
	CapAuthenticated
	// CapAdmin topics additionally require the admin role.
	CapAdmin
)

// TopicCapabilities is the declarative topic → required-capability map.
// Topics absent from the map are treated as public.
var TopicCapabilities = map[Topic]Capability{
	TopicMarketData:   CapPublic,
	TopicSystem:       CapPublic,
	TopicContest:      CapPublic,
	TopicPortfolio:    CapAuthenticated,
	TopicWallet:       CapAuthenticated,
	TopicNotification: CapAuthenticated,
	TopicUser:         CapAuthenticated,
	TopicAdmin:        CapAdmin,
}

// RequiredCapability returns the capability needed to subscribe to a topic.
func RequiredCapability(t Topic) Capability {
	if c, ok := TopicCapabilities[t]; ok {
		return c
	}
	return CapPublic
}

// PublicTopics is the topic set subscribed on every connection, authenticated
// or not, so market data keeps flowing when auth is impossible.
func PublicTopics() []Topic {
	return []Topic{TopicSystem, TopicMarketData, TopicContest}
}

// RestrictedTopics is the topic set carried on the authenticated subscribe.
func RestrictedTopics() []Topic {
	return []Topic{TopicPortfolio, TopicWallet, TopicNotification, TopicUser}
}
