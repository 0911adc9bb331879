package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParse_Data(t *testing.T) {
	raw := []byte(`{"type":"DATA","topic":"wallet","data":{"balance":"12.5"},"timestamp":"2026-01-10T12:00:00Z"}`)

	env, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if env.Type != TypeData {
		t.Errorf("Type = %s, want DATA", env.Type)
	}
	if env.Topic != TopicWallet {
		t.Errorf("Topic = %s, want wallet", env.Topic)
	}
	if string(env.Data) != `{"balance":"12.5"}` {
		t.Errorf("Data = %s", env.Data)
	}
}

func TestParse_MissingType(t *testing.T) {
	_, err := Parse([]byte(`{"topic":"wallet"}`))
	if !errors.Is(err, ErrMissingType) {
		t.Errorf("err = %v, want ErrMissingType", err)
	}
}

func TestParse_DataMissingTopic(t *testing.T) {
	_, err := Parse([]byte(`{"type":"DATA","data":{}}`))
	if !errors.Is(err, ErrMissingTopic) {
		t.Errorf("err = %v, want ErrMissingTopic", err)
	}
}

func TestParse_SystemWithoutTopic(t *testing.T) {
	env, err := Parse([]byte(`{"type":"SYSTEM","action":"heartbeat"}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if env.Action != "heartbeat" {
		t.Errorf("Action = %s, want heartbeat", env.Action)
	}
}

func TestParse_Malformed(t *testing.T) {
	if _, err := Parse([]byte(`{"type":`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestEnvelope_IsPong(t *testing.T) {
	tests := []struct {
		name string
		env  Envelope
		want bool
	}{
		{"dedicated pong", Envelope{Type: TypePong}, true},
		{"system pong", Envelope{Type: TypeSystem, Action: ActionPong}, true},
		{"system shutdown", Envelope{Type: TypeSystem, Action: ActionShutdown}, false},
		{"data", Envelope{Type: TypeData, Topic: TopicWallet}, false},
	}
	for _, tt := range tests {
		if got := tt.env.IsPong(); got != tt.want {
			t.Errorf("%s: IsPong() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestEnvelope_IsTokenExpiry(t *testing.T) {
	env := Envelope{Type: TypeError, Code: CodeTokenExpired, Reason: "token expired"}
	if !env.IsTokenExpiry() {
		t.Error("expected token expiry")
	}
	other := Envelope{Type: TypeError, Code: CodeRateLimited}
	if other.IsTokenExpiry() {
		t.Error("rate limit should not be token expiry")
	}
	data := Envelope{Type: TypeData, Topic: TopicWallet, Code: CodeTokenExpired}
	if data.IsTokenExpiry() {
		t.Error("non-ERROR envelope should not be token expiry")
	}
}

func TestEnvelope_DecodeShutdown(t *testing.T) {
	env := Envelope{
		Type:   TypeSystem,
		Action: ActionShutdown,
		Data:   json.RawMessage(`{"expectedDowntimeMs":40000,"reason":"deploy"}`),
	}
	n := env.DecodeShutdown()
	if n.ExpectedDowntimeMs != 40000 {
		t.Errorf("ExpectedDowntimeMs = %d, want 40000", n.ExpectedDowntimeMs)
	}
	if n.Reason != "deploy" {
		t.Errorf("Reason = %s, want deploy", n.Reason)
	}

	// Missing payload yields the zero notice.
	empty := Envelope{Type: TypeSystem, Action: ActionShutdown}
	if got := empty.DecodeShutdown(); got.ExpectedDowntimeMs != 0 {
		t.Errorf("ExpectedDowntimeMs = %d, want 0", got.ExpectedDowntimeMs)
	}
}

func TestMarshal_RequestFlattensParams(t *testing.T) {
	env := NewRequest(TopicContest, "join", map[string]any{"contestId": "c-42", "wager": 100})

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if m["type"] != "REQUEST" {
		t.Errorf("type = %v, want REQUEST", m["type"])
	}
	if m["topic"] != "contest" {
		t.Errorf("topic = %v, want contest", m["topic"])
	}
	if m["action"] != "join" {
		t.Errorf("action = %v, want join", m["action"])
	}
	if m["contestId"] != "c-42" {
		t.Errorf("contestId = %v, want c-42", m["contestId"])
	}
	if m["wager"] != float64(100) {
		t.Errorf("wager = %v, want 100", m["wager"])
	}
	if m["requestId"] == "" || m["requestId"] == nil {
		t.Error("requestId missing")
	}
	if _, nested := m["params"]; nested {
		t.Error("params must be flattened, not nested")
	}
}

func TestMarshal_ParamsDoNotShadowNamedFields(t *testing.T) {
	env := NewCommand(TopicAdmin, "maintenance", map[string]any{"type": "bogus", "mode": "on"})

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if m["type"] != "COMMAND" {
		t.Errorf("type = %v, want COMMAND", m["type"])
	}
	if m["mode"] != "on" {
		t.Errorf("mode = %v, want on", m["mode"])
	}
}

func TestNewSubscribe(t *testing.T) {
	env := NewSubscribe([]Topic{TopicMarketData, TopicSystem}, "tok-1")
	if env.Type != TypeSubscribe {
		t.Errorf("Type = %s, want SUBSCRIBE", env.Type)
	}
	if len(env.Topics) != 2 {
		t.Errorf("Topics = %v", env.Topics)
	}
	if env.AuthToken != "tok-1" {
		t.Errorf("AuthToken = %s", env.AuthToken)
	}
	if env.Timestamp == "" {
		t.Error("Timestamp not set")
	}
}

func TestNewPing(t *testing.T) {
	env := NewPing()
	if env.Type != TypeRequest {
		t.Errorf("Type = %s, want REQUEST", env.Type)
	}
	if env.Topic != TopicSystem {
		t.Errorf("Topic = %s, want system", env.Topic)
	}
	if env.Action != ActionPing {
		t.Errorf("Action = %s, want ping", env.Action)
	}
	if env.RequestID == "" {
		t.Error("RequestID not set")
	}
}

func TestRequiredCapability(t *testing.T) {
	if RequiredCapability(TopicMarketData) != CapPublic {
		t.Error("market-data should be public")
	}
	if RequiredCapability(TopicPortfolio) != CapAuthenticated {
		t.Error("portfolio should require auth")
	}
	if RequiredCapability(TopicAdmin) != CapAdmin {
		t.Error("admin should require admin")
	}
	if RequiredCapability(Topic("made-up")) != CapPublic {
		t.Error("unknown topics default to public")
	}
}
