package protocol

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrMissingType  = errors.New("envelope missing type")
	ErrMissingTopic = errors.New("envelope missing topic")
)

// MessageType distinguishes the protocol role of an envelope.
type MessageType string

const (
	TypeSubscribe      MessageType = "SUBSCRIBE"
	TypeUnsubscribe    MessageType = "UNSUBSCRIBE"
	TypeRequest        MessageType = "REQUEST"
	TypeCommand        MessageType = "COMMAND"
	TypeData           MessageType = "DATA"
	TypeError          MessageType = "ERROR"
	TypeSystem         MessageType = "SYSTEM"
	TypeAcknowledgment MessageType = "ACKNOWLEDGMENT"
	TypePing           MessageType = "PING"
	TypePong           MessageType = "PONG"
)

// System envelope actions.
const (
	ActionPing     = "ping"
	ActionPong     = "pong"
	ActionShutdown = "shutdown"
)

// Server error codes carried on ERROR envelopes.
const (
	CodeTokenExpired  = 4401
	CodeTokenRequired = 4011
	CodeRateLimited   = 4290
)

// Close codes on the transport.
const (
	CloseNormal         = 1000
	CloseGoingAway      = 1001
	CloseAbnormal       = 1006
	CloseServiceRestart = 1012
)

// Envelope is the structured unit exchanged over the connection. All fields
// except Type are optional; which ones are populated depends on Type.
type Envelope struct {
	Type      MessageType     `json:"type"`
	Topic     Topic           `json:"topic,omitempty"`
	Action    string          `json:"action,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	Code      int             `json:"code,omitempty"`
	Reason    string          `json:"reason,omitempty"`

	// SUBSCRIBE / UNSUBSCRIBE fields.
	Topics    []Topic `json:"topics,omitempty"`
	AuthToken string  `json:"authToken,omitempty"`

	// ACKNOWLEDGMENT / ERROR fields.
	Operation string `json:"operation,omitempty"`
	Message   string `json:"message,omitempty"`

	// Params are extra request/command parameters. They are flattened into
	// the top level of the serialized frame, matching the server contract
	// REQUEST {topic, action, requestId, ...params}.
	Params map[string]any `json:"-"`
}

// envelope is the plain wire shape without the Params flattening.
type envelope Envelope

// MarshalJSON flattens Params into the top-level object.
func (e Envelope) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(envelope(e))
	if err != nil {
		return nil, err
	}
	if len(e.Params) == 0 {
		return base, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range e.Params {
		// Named fields win over params on key collision.
		if _, taken := merged[k]; taken {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		merged[k] = raw
	}
	return json.Marshal(merged)
}

// Parse decodes an inbound frame into a canonical Envelope, normalizing
// legacy shapes. A frame without a recognizable type is a protocol error.
func Parse(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, (*envelope)(&env)); err != nil {
		return Envelope{}, err
	}
	if env.Type == "" {
		return Envelope{}, ErrMissingType
	}
	if legacy, ok := normalizeLegacy(env, data); ok {
		return legacy, nil
	}
	if err := env.validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// validate enforces the per-type required fields on inbound envelopes.
func (e Envelope) validate() error {
	switch e.Type {
	case TypeData, TypeSubscribe, TypeUnsubscribe:
		if e.Topic == "" && len(e.Topics) == 0 {
			return ErrMissingTopic
		}
	}
	return nil
}

// IsPong reports whether the envelope is a heartbeat reply, in either the
// dedicated PONG form or the SYSTEM:pong form.
func (e Envelope) IsPong() bool {
	if e.Type == TypePong {
		return true
	}
	return e.Type == TypeSystem && e.Action == ActionPong
}

// IsShutdownNotice reports whether the envelope announces a planned server
// restart.
func (e Envelope) IsShutdownNotice() bool {
	return e.Type == TypeSystem && e.Action == ActionShutdown
}

// IsTokenExpiry reports whether an ERROR envelope signals that the presented
// auth token is no longer valid.
func (e Envelope) IsTokenExpiry() bool {
	if e.Type != TypeError {
		return false
	}
	return e.Code == CodeTokenExpired || e.Code == CodeTokenRequired
}

// ShutdownNotice is the data payload of a SYSTEM:shutdown envelope.
type ShutdownNotice struct {
	ExpectedDowntimeMs int64  `json:"expectedDowntimeMs"`
	Reason             string `json:"reason"`
}

// DecodeShutdown extracts the restart window from a shutdown notice. A
// missing or malformed payload yields a zero notice; callers apply defaults.
func (e Envelope) DecodeShutdown() ShutdownNotice {
	var n ShutdownNotice
	if len(e.Data) > 0 {
		_ = json.Unmarshal(e.Data, &n)
	}
	return n
}

// now returns the envelope timestamp format used on outbound frames.
func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
