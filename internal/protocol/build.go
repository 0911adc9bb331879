package protocol

import "github.com/google/uuid"

// NewSubscribe builds a SUBSCRIBE envelope. An empty authToken produces a
// public subscribe.
func NewSubscribe(topics []Topic, authToken string) Envelope {
	return Envelope{
		Type:      TypeSubscribe,
		Topics:    topics,
		AuthToken: authToken,
		Timestamp: now(),
	}
}

// NewUnsubscribe builds an UNSUBSCRIBE envelope.
func NewUnsubscribe(topics []Topic) Envelope {
	return Envelope{
		Type:      TypeUnsubscribe,
		Topics:    topics,
		Timestamp: now(),
	}
}

// NewRequest builds a REQUEST envelope with a fresh requestId for
// response correlation.
func NewRequest(topic Topic, action string, params map[string]any) Envelope {
	return Envelope{
		Type:      TypeRequest,
		Topic:     topic,
		Action:    action,
		RequestID: uuid.NewString(),
		Params:    params,
		Timestamp: now(),
	}
}

// NewCommand builds a fire-and-forget COMMAND envelope.
func NewCommand(topic Topic, action string, params map[string]any) Envelope {
	return Envelope{
		Type:      TypeCommand,
		Topic:     topic,
		Action:    action,
		Params:    params,
		Timestamp: now(),
	}
}

// NewPing builds the heartbeat probe. The server accepts the ping in the
// REQUEST {topic: system, action: ping} form.
func NewPing() Envelope {
	return Envelope{
		Type:      TypeRequest,
		Topic:     TopicSystem,
		Action:    ActionPing,
		RequestID: uuid.NewString(),
		Timestamp: now(),
	}
}
